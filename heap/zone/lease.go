package zone

import (
	"github.com/joshuapare/globalheap/heap/layout"
	"github.com/joshuapare/globalheap/internal/format"
)

// Lease is the cross-process lock word of one zone. It holds
// layout.Unleased or the generation of the owning instance. The word lives
// in the shared mapping, so every access is atomic.
type Lease struct {
	nv layout.NVZone
}

// LeaseOf returns the lease of nv.
func LeaseOf(nv layout.NVZone) Lease { return Lease{nv: nv} }

// Status returns the current holder.
func (l Lease) Status() layout.Generation { return l.nv.LeaseStatus() }

// TryLock claims the lease for gen if nobody holds it.
func (l Lease) TryLock(gen layout.Generation) bool {
	return format.CompareAndSwapWord(l.nv.HeaderBytes(), format.ZoneLeaseOffset, uint64(layout.Unleased), uint64(gen))
}

// Unlock clears the lease. Only the holder may call it.
func (l Lease) Unlock() {
	format.StoreWord(l.nv.HeaderBytes(), format.ZoneLeaseOffset, uint64(layout.Unleased))
}

// Persist flushes the lease word.
func (l Lease) Persist() error {
	return l.nv.PersistHeader(format.ZoneLeaseOffset, 8)
}
