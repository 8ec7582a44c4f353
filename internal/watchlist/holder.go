package watchlist

import "sync/atomic"

// Holder publishes the snapshot of the current cycle. Readers never block
// writers; a swap is visible to the next Current call.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

// Current returns the active snapshot, or nil before the first swap.
func (h *Holder) Current() *Snapshot {
	return h.current.Load()
}

// Swap installs next and returns the snapshot it replaced.
func (h *Holder) Swap(next *Snapshot) *Snapshot {
	return h.current.Swap(next)
}
