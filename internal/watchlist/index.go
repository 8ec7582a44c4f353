package watchlist

import (
	"slices"

	"riskwatch/internal/watchlist/namematch"
)

// blockIndex narrows fuzzy candidates without dropping any entity that
// could qualify:
//
//   - full-name distance <= k implies the full-name lengths differ by <= k
//   - a part condition with the last name exact lives in byLast, and the
//     first-name variant in byFirst
//   - both parts at distance 1 implies the "first last" forms are within 2,
//     so their lengths differ by <= 2
type blockIndex struct {
	byFullLen     map[int][]int32
	byComposedLen map[int][]int32
	byFirst       map[string][]int32
	byLast        map[string][]int32
}

func newBlockIndex(entries []entry) blockIndex {
	b := blockIndex{
		byFullLen:     make(map[int][]int32),
		byComposedLen: make(map[int][]int32),
		byFirst:       make(map[string][]int32),
		byLast:        make(map[string][]int32),
	}
	for i, e := range entries {
		pos := int32(i)
		b.byFullLen[e.name.FullLen()] = append(b.byFullLen[e.name.FullLen()], pos)
		if !e.name.HasParts() {
			continue
		}
		b.byComposedLen[e.name.ComposedLen()] = append(b.byComposedLen[e.name.ComposedLen()], pos)
		b.byFirst[e.name.First] = append(b.byFirst[e.name.First], pos)
		b.byLast[e.name.Last] = append(b.byLast[e.name.Last], pos)
	}
	return b
}

// candidates returns sorted, distinct entry positions worth verifying.
func (b blockIndex) candidates(name namematch.Name, fullLimit int) []int32 {
	var out []int32
	n := name.FullLen()
	for l := n - fullLimit; l <= n+fullLimit; l++ {
		out = append(out, b.byFullLen[l]...)
	}
	if name.HasParts() {
		out = append(out, b.byFirst[name.First]...)
		out = append(out, b.byLast[name.Last]...)
		c := name.ComposedLen()
		for l := c - 2; l <= c+2; l++ {
			out = append(out, b.byComposedLen[l]...)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
