package zone

import (
	"github.com/cockroachdb/errors"

	"github.com/joshuapare/globalheap/heap/extent"
	"github.com/joshuapare/globalheap/heap/layout"
)

// FreeSpaceMap indexes the free extents of one zone.
type FreeSpaceMap struct {
	*extent.Map
	nv layout.NVZone
}

// NewFreeSpaceMap returns an empty map for nv. Call Init to load it.
func NewFreeSpaceMap(nv layout.NVZone) *FreeSpaceMap {
	return &FreeSpaceMap{Map: extent.NewMap(), nv: nv}
}

// Init rebuilds the map from the zone's block headers.
func (f *FreeSpaceMap) Init() error {
	f.Clear()
	return Walk(f.nv, func(ex extent.Extent, free bool) bool {
		if free {
			f.Insert(ex)
		}
		return true
	})
}

// ExistsExtent reports whether a free extent of at least n blocks exists.
func (f *FreeSpaceMap) ExistsExtent(n uint64) bool {
	_, ok := f.FindGE(n)
	return ok
}

// AllocExtent removes exactly n blocks from the shortest fitting extent and
// returns them.
func (f *FreeSpaceMap) AllocExtent(n uint64) (extent.Extent, error) {
	ex, ok := f.RemoveGE(n)
	if !ok {
		return extent.Extent{}, errors.Wrapf(ErrNoFit, "%d blocks", n)
	}
	if ex.Len > n {
		f.Insert(extent.Extent{Start: ex.Start + n, Len: ex.Len - n})
	}
	return extent.Extent{Start: ex.Start, Len: n}, nil
}

// FreeExtent returns ex to the map.
func (f *FreeSpaceMap) FreeExtent(ex extent.Extent) {
	f.Insert(ex)
}
