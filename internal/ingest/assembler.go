package ingest

import (
	"fmt"
	"strconv"

	"github.com/twmb/franz-go/pkg/kgo"

	id "riskwatch/pkg/domain"
	"riskwatch/pkg/platform/sentinel"
)

// Watchlist records carry the snapshot they belong to in these headers.
// Producers key every record of a snapshot by its batch ID.
const (
	HeaderBatchID   = "batch_id"
	HeaderBatchSize = "batch_size"
)

type batchHeader struct {
	id   string
	size int
}

func readBatchHeader(r *kgo.Record) (batchHeader, error) {
	var h batchHeader
	var rawSize string
	for _, kv := range r.Headers {
		switch kv.Key {
		case HeaderBatchID:
			h.id = string(kv.Value)
		case HeaderBatchSize:
			rawSize = string(kv.Value)
		}
	}
	if h.id == "" || rawSize == "" {
		return h, fmt.Errorf("missing %s/%s headers: %w", HeaderBatchID, HeaderBatchSize, sentinel.ErrIncompleteBatch)
	}
	n, err := strconv.Atoi(rawSize)
	if err != nil || n < 1 {
		return h, fmt.Errorf("invalid %s %q: %w", HeaderBatchSize, rawSize, sentinel.ErrIncompleteBatch)
	}
	h.size = n
	return h, nil
}

// progress reports what one record did to the pending snapshot.
type progress[T any] struct {
	// entities is set once the snapshot is complete.
	entities []T
	complete bool
	batchID  string
	// release holds records whose offsets no longer need to be held back.
	release []*kgo.Record
	// superseded is the ID of a pending batch dropped because a newer one
	// started before it completed.
	superseded string
}

type pendingBatch[T any] struct {
	header  batchHeader
	items   map[id.EntityID]T
	order   []id.EntityID
	records []*kgo.Record
}

// assembler collects one watchlist's records until a full snapshot has
// arrived. Only one snapshot is pending at a time; a record from a new
// batch drops the incomplete one.
type assembler[T any] struct {
	keyOf   func(T) id.EntityID
	pending *pendingBatch[T]
}

func newAssembler[T any](keyOf func(T) id.EntityID) *assembler[T] {
	return &assembler[T]{keyOf: keyOf}
}

// add folds rec into the pending snapshot. item is nil when the record
// could not be decoded; it still counts toward the batch size so the
// snapshot can complete without it.
func (a *assembler[T]) add(rec *kgo.Record, h batchHeader, item *T) progress[T] {
	var p progress[T]
	if a.pending != nil && a.pending.header.id != h.id {
		p.superseded = a.pending.header.id
		p.release = append(p.release, a.pending.records...)
		a.pending = nil
	}
	if a.pending == nil {
		a.pending = &pendingBatch[T]{header: h, items: make(map[id.EntityID]T, h.size)}
	}

	b := a.pending
	b.records = append(b.records, rec)
	if item != nil {
		key := a.keyOf(*item)
		if _, seen := b.items[key]; !seen {
			b.order = append(b.order, key)
		}
		b.items[key] = *item
	}
	if len(b.records) < b.header.size {
		return p
	}

	p.complete = true
	p.batchID = b.header.id
	p.entities = make([]T, 0, len(b.order))
	for _, key := range b.order {
		p.entities = append(p.entities, b.items[key])
	}
	p.release = append(p.release, b.records...)
	a.pending = nil
	return p
}

// held reports how many records the pending snapshot is holding back.
func (a *assembler[T]) held() int {
	if a.pending == nil {
		return 0
	}
	return len(a.pending.records)
}
