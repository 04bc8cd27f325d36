package zone

import (
	"github.com/cockroachdb/errors"

	"github.com/joshuapare/globalheap/heap/extent"
	"github.com/joshuapare/globalheap/heap/layout"
)

// findExtent returns the extent that begins at block start: either the
// allocated extent whose ExtentFirst header sits at start, or the run of
// blocks up to the next ExtentFirst header. Run headers with no ExtentFirst
// in front of them are left over from an interrupted allocation and count as
// free.
func findExtent(nv layout.NVZone, start, end uint64) (extent.Extent, bool, error) {
	for i := start; i < end; i++ {
		bh := nv.BlockHeader(i)
		if !bh.IsExtentFirst() {
			continue
		}
		if i > start {
			return extent.Extent{Start: start, Len: i - start}, true, nil
		}
		size := uint64(bh.Size)
		if size == 0 || i+size > end {
			return extent.Extent{}, false, errors.Wrapf(ErrCorrupt,
				"zone %d block %d: extent of %d blocks in zone of %d", nv.ID(), i, size, end)
		}
		return extent.Extent{Start: i, Len: size}, false, nil
	}
	return extent.Extent{Start: start, Len: end - start}, true, nil
}

// Walk calls fn for every extent of nv in block order, reporting whether each
// is free. It stops early when fn returns false.
func Walk(nv layout.NVZone, fn func(ex extent.Extent, free bool) bool) error {
	nblocks := nv.NumBlocks()
	for next := uint64(0); next < nblocks; {
		ex, free, err := findExtent(nv, next, nblocks)
		if err != nil {
			return err
		}
		if !fn(ex, free) {
			return nil
		}
		next = ex.End()
	}
	return nil
}
