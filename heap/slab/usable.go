package slab

import (
	"github.com/cockroachdb/errors"

	"github.com/joshuapare/globalheap/heap/layout"
	"github.com/joshuapare/globalheap/heap/zone"
	"github.com/joshuapare/globalheap/internal/format"
)

// UsableSize returns the number of bytes usable at p, read from the block
// and slab headers on media. No lease is needed.
func UsableSize(lh *layout.Heap, p layout.Ptr) (uint64, error) {
	zid, err := lh.ZoneID(p)
	if err != nil {
		return 0, errors.Mark(err, zone.ErrBadPointer)
	}
	nv := lh.Zone(zid)
	idx, aligned, err := nv.BlockIndex(p)
	if err != nil {
		return 0, errors.Mark(err, zone.ErrBadPointer)
	}
	hdr := nv.BlockHeader(idx)
	if !hdr.IsExtentFirst() {
		return 0, errors.Wrapf(zone.ErrBadPointer, "%s is not in an allocated extent", p)
	}
	if hdr.Secondary != format.ExtentSlab {
		if !aligned {
			return 0, errors.Wrapf(zone.ErrBadPointer, "%s is inside an extent", p)
		}
		return uint64(hdr.Size) * format.BlockSize, nil
	}
	if aligned {
		return 0, errors.Wrapf(zone.ErrBadPointer, "%s is a slab, not an allocation", p)
	}
	nvs, err := LoadNVSlab(lh, nv.Block(idx))
	if err != nil {
		return 0, err
	}
	if _, err := nvs.BlockID(p); err != nil {
		return 0, err
	}
	return nvs.BlockSize(), nil
}
