// Package namematch holds the name comparison rules used to screen customers
// against watchlists: normalisation, edit distance, the fuzzy qualifying
// conditions and the accuracy tiers.
package namematch

import (
	"strings"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
)

// Full-name edit distance limits for the fuzzy full-name condition.
const (
	PEPFullNameLimit       = 3
	SanctionsFullNameLimit = 5
)

// PartLimit bounds the edit distance of a single name part when the other
// part matches exactly.
const PartLimit = 2

// Normalize trims, collapses runs of whitespace and case-folds. Accents are
// kept: "José" and "Jose" differ by one edit.
func Normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Distance is the optimal-string-alignment Damerau-Levenshtein distance,
// counted in runes.
func Distance(a, b string) int {
	if a == b {
		return 0
	}
	return edlib.OSADamerauLevenshteinDistance(a, b)
}

// Name is a normalised name with optional first/last components.
type Name struct {
	Full  string
	First string
	Last  string
}

// NewName normalises the three components. A Name has parts only when both
// first and last are non-empty after normalisation.
func NewName(full, first, last string) Name {
	return Name{
		Full:  Normalize(full),
		First: Normalize(first),
		Last:  Normalize(last),
	}
}

// PersonName builds the name of a customer: full is "first family".
func PersonName(first, family string) Name {
	return NewName(first+" "+family, first, family)
}

// SplitName derives parts from a single-field name: the first token and
// the remainder. Single-token names have no parts.
func SplitName(full string) Name {
	n := Normalize(full)
	first, last, ok := strings.Cut(n, " ")
	if !ok {
		return Name{Full: n}
	}
	return Name{Full: n, First: first, Last: last}
}

// HasParts reports whether both first and last are present.
func (n Name) HasParts() bool {
	return n.First != "" && n.Last != ""
}

// FullLen is the rune length of the full name.
func (n Name) FullLen() int {
	return utf8.RuneCountInString(n.Full)
}

// ComposedLen is the rune length of "first last".
func (n Name) ComposedLen() int {
	return utf8.RuneCountInString(n.First) + 1 + utf8.RuneCountInString(n.Last)
}

// Comparison is the set of distances between a customer and an entity.
// First and Last are meaningful only when Parts is true.
type Comparison struct {
	Full  int
	First int
	Last  int
	Parts bool
}

// Compare measures a customer name against an entity name.
func Compare(customer, entity Name) Comparison {
	c := Comparison{Full: Distance(customer.Full, entity.Full)}
	if customer.HasParts() && entity.HasParts() {
		c.Parts = true
		c.First = Distance(customer.First, entity.First)
		c.Last = Distance(customer.Last, entity.Last)
	}
	return c
}

// Qualifies applies the fuzzy conditions. Any one is sufficient.
func (c Comparison) Qualifies(fullLimit int) bool {
	if c.Parts {
		switch {
		case c.First <= PartLimit && c.Last == 0:
			return true
		case c.First == 0 && c.Last <= PartLimit:
			return true
		case c.First == 1 && c.Last == 1:
			return true
		}
	}
	return c.Full <= fullLimit
}

// Combined ranks qualifying candidates; lower is closer.
func (c Comparison) Combined() int {
	if c.Parts {
		return c.First + c.Last
	}
	return c.Full
}

// FullDistance ranks by full-name distance alone. Sanctions entries carry
// no name components, so a split-derived part distance means nothing there.
func (c Comparison) FullDistance() int {
	return c.Full
}

// Fuzzy accuracy is confined to this band; 100 is reserved for exact
// matches.
const (
	minFuzzyAccuracy = 70.0
	maxFuzzyAccuracy = 95.0
)

// PEPAccuracy scores a qualifying PEP candidate.
func PEPAccuracy(c Comparison) float64 {
	if c.Parts {
		lo, hi := min(c.First, c.Last), max(c.First, c.Last)
		switch {
		case lo == 1 && hi == 1:
			return 95.0
		case lo == 0 && hi == 1:
			return 90.0
		case lo == 0 && hi == 2:
			return 85.0
		}
	}
	if c.Full <= PEPFullNameLimit {
		return clampFuzzy(100.0 - 10.0*float64(c.Full))
	}
	return 75.0
}

var sanctionsTiers = [...]float64{1: 95.0, 2: 90.0, 3: 85.0, 4: 80.0, 5: 75.0}

// SanctionsAccuracy scores a qualifying sanctions candidate by full-name
// distance alone.
func SanctionsAccuracy(c Comparison) float64 {
	switch {
	case c.Full <= 1:
		// distance 0 only happens for a second entity sharing the exact name
		return sanctionsTiers[1]
	case c.Full < len(sanctionsTiers):
		return sanctionsTiers[c.Full]
	}
	return minFuzzyAccuracy
}

func clampFuzzy(v float64) float64 {
	return min(max(v, minFuzzyAccuracy), maxFuzzyAccuracy)
}
