// Package zone implements per-zone free-space management and the leasing
// protocol that partitions a shared heap between process instances.
package zone

import (
	"github.com/cockroachdb/errors"

	"github.com/joshuapare/globalheap/heap/extent"
	"github.com/joshuapare/globalheap/heap/layout"
)

// EnumerateFunc is called for each allocated extent of a newly acquired zone.
type EnumerateFunc func(z *Zone, ex extent.Extent)

// NullEnumerate ignores every extent.
var NullEnumerate EnumerateFunc = func(*Zone, extent.Extent) {}

// Zone is the volatile descriptor of a zone leased by this instance.
//
// Zone is not safe for concurrent use; the extent heap that owns it
// serializes access.
type Zone struct {
	nv  layout.NVZone
	fsm *FreeSpaceMap
}

// NewZone returns a descriptor for nv. Call Init before allocating.
func NewZone(nv layout.NVZone) *Zone {
	return &Zone{nv: nv, fsm: NewFreeSpaceMap(nv)}
}

// Init loads the free-space map from the block headers.
func (z *Zone) Init() error { return z.fsm.Init() }

// ID returns the zone id.
func (z *Zone) ID() uint64 { return z.nv.ID() }

// NVZone returns the persistent zone.
func (z *Zone) NVZone() layout.NVZone { return z.nv }

// FreeSpace returns the zone's free-space map.
func (z *Zone) FreeSpace() *FreeSpaceMap { return z.fsm }

// HasFreeSpace reports whether an extent of n blocks can be allocated.
func (z *Zone) HasFreeSpace(n uint64) bool { return z.fsm.ExistsExtent(n) }

// AllocExtent allocates n contiguous blocks and returns the first block index
// and its heap pointer.
func (z *Zone) AllocExtent(n uint64) (uint64, layout.Ptr, error) {
	ex, err := z.fsm.AllocExtent(n)
	if err != nil {
		return 0, layout.Nil, err
	}
	if err := z.nv.MarkAlloc(ex.Start, ex.Len); err != nil {
		z.fsm.FreeExtent(ex)
		return 0, layout.Nil, err
	}
	return ex.Start, z.nv.Block(ex.Start), nil
}

// FreeExtent frees the extent starting at p and returns its length in blocks.
func (z *Zone) FreeExtent(p layout.Ptr) (uint64, error) {
	idx, aligned, err := z.nv.BlockIndex(p)
	if err != nil {
		return 0, errors.Mark(err, ErrBadPointer)
	}
	if !aligned || !z.nv.BlockHeader(idx).IsExtentFirst() {
		return 0, errors.Wrapf(ErrBadPointer, "%s in zone %d", p, z.ID())
	}
	n, err := z.nv.MarkFree(idx)
	if err != nil {
		return 0, err
	}
	z.fsm.FreeExtent(extent.Extent{Start: idx, Len: n})
	return n, nil
}

// Enumerate calls fn for every allocated extent in block order.
func (z *Zone) Enumerate(fn EnumerateFunc) error {
	return Walk(z.nv, func(ex extent.Extent, free bool) bool {
		if !free {
			fn(z, ex)
		}
		return true
	})
}
