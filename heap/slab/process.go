package slab

import (
	"log/slog"
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"

	"github.com/joshuapare/globalheap/heap/extent"
	"github.com/joshuapare/globalheap/heap/extentheap"
	"github.com/joshuapare/globalheap/heap/layout"
	"github.com/joshuapare/globalheap/heap/zone"
	"github.com/joshuapare/globalheap/internal/format"
	"github.com/joshuapare/globalheap/internal/logger"
)

// acquireRetries bounds how often AcquireSlab leases a fresh zone before
// falling back to an extending allocation.
const acquireRetries = 1

// ProcessHeap is the slab heap of an instance. It hands slabs to thread
// heaps, carves new slabs from the extent heap, serves large requests as
// extents and routes every free to the heap owning the memory.
type ProcessHeap struct {
	*Heap

	extents *extentheap.Heap
	slabs   *swiss.Map[layout.Ptr, *Slab] // every slab of a leased zone, by base
	insert  zone.EnumerateFunc
	log     *slog.Logger
}

// NewProcessHeap returns a process heap allocating from extents.
func NewProcessHeap(extents *extentheap.Heap, log *slog.Logger) *ProcessHeap {
	h := &ProcessHeap{
		Heap:    NewHeap(),
		extents: extents,
		slabs:   swiss.NewMap[layout.Ptr, *Slab](64),
		log:     logger.Or(log),
	}
	h.insert = h.insertExtent
	return h
}

// Extents returns the underlying extent heap.
func (h *ProcessHeap) Extents() *extentheap.Heap { return h.extents }

// NumSlabs returns the number of slabs known to the instance.
func (h *ProcessHeap) NumSlabs() int {
	h.Lock()
	defer h.Unlock()
	return h.slabs.Count()
}

// insertExtent adopts the slabs found in a newly leased zone. It runs with
// the process lock held.
func (h *ProcessHeap) insertExtent(z *zone.Zone, ex extent.Extent) {
	nv := z.NVZone()
	if nv.BlockHeader(ex.Start).Secondary != format.ExtentSlab {
		return
	}
	base := nv.Block(ex.Start)
	if h.slabs.Has(base) {
		return
	}
	nvs, err := LoadNVSlab(z.NVZone().Heap(), base)
	if err != nil {
		h.log.Warn("skipping unreadable slab", "zone", z.ID(), "ptr", base.String(), "error", err)
		return
	}
	s := NewSlab(nvs)
	h.slabs.Put(base, s)
	h.InsertSlab(s)
}

// AcquireSlab returns a slab with a free block of class for a thread heap
// to adopt. The slab is detached with no owner.
func (h *ProcessHeap) AcquireSlab(class int) (*Slab, error) {
	h.Lock()
	defer h.Unlock()

	for r := 0; r <= acquireRetries; r++ {
		s, err := h.FindSlab(class)
		if err != nil {
			return nil, err
		}
		if s != nil {
			h.RemoveSlab(s)
			s.owner.Store(nil)
			return s, nil
		}
		if ex, err := h.extents.Malloc(format.SlabSize, false, zone.NullEnumerate); err == nil {
			return h.makeSlab(ex, class)
		}
		h.extents.MoreSpace(1, h.insert)
	}

	ex, err := h.extents.Malloc(format.SlabSize, true, h.insert)
	if err != nil {
		return nil, err
	}
	return h.makeSlab(ex, class)
}

func (h *ProcessHeap) makeSlab(ex extentheap.Extent, class int) (*Slab, error) {
	nvs, err := MakeNVSlab(h.extents.Layout(), ex.Ptr, class)
	if err == nil {
		// The slab exists once its extent is typed; before that a crash
		// leaves an unreferenced plain extent.
		err = ex.Zone.NVZone().SetExtentType(ex.Start, format.ExtentSlab)
	}
	if err != nil {
		if ferr := h.extents.FreeIn(ex.Zone, ex.Ptr); ferr != nil {
			h.log.Warn("return extent of failed slab", "ptr", ex.Ptr.String(), "error", ferr)
		}
		return nil, err
	}
	s := NewSlab(nvs)
	h.slabs.Put(ex.Ptr, s)
	h.log.Debug("slab created", "zone", ex.Zone.ID(), "ptr", ex.Ptr.String(), "class", class)
	return s, nil
}

// Malloc allocates size bytes as a whole extent.
func (h *ProcessHeap) Malloc(size uint64) (layout.Ptr, error) {
	h.Lock()
	defer h.Unlock()
	ex, err := h.extents.Malloc(size, true, h.insert)
	if err != nil {
		return layout.Nil, err
	}
	return ex.Ptr, nil
}

// Free frees p, which must come from Malloc or from a slab block of this
// or a previous instance. A zone not yet leased is leased first.
func (h *ProcessHeap) Free(p layout.Ptr) error {
	zid, err := h.extents.Layout().ZoneID(p)
	if err != nil {
		return errors.Mark(err, zone.ErrBadPointer)
	}

	h.Lock()
	z, err := h.extents.AcquireZoneByID(zid, h.insert)
	if err != nil {
		h.Unlock()
		if errors.Is(err, zone.ErrUnavailable) {
			h.log.Warn("free in zone leased by another instance", "ptr", p.String(), "zone", zid)
			return errors.Mark(err, ErrNotOwned)
		}
		return err
	}
	nv := z.NVZone()
	idx, aligned, err := nv.BlockIndex(p)
	if err != nil {
		h.Unlock()
		return errors.Mark(err, zone.ErrBadPointer)
	}
	hdr := nv.BlockHeader(idx)
	if !hdr.IsExtentFirst() {
		h.Unlock()
		return errors.Wrapf(zone.ErrBadPointer, "%s is not in an allocated extent", p)
	}
	if aligned {
		h.Unlock()
		if hdr.Secondary == format.ExtentSlab {
			return errors.Wrapf(zone.ErrBadPointer, "%s is a slab, not an allocation", p)
		}
		return h.extents.FreeIn(z, p)
	}
	s, ok := h.slabs.Get(nv.Block(idx))
	h.Unlock()
	if !ok {
		return errors.Wrapf(zone.ErrBadPointer, "%s is not in a slab", p)
	}
	return freeInSlab(s, p)
}

// freeInSlab frees p through the current owner of s, waiting out a
// transfer between heaps.
func freeInSlab(s *Slab, p layout.Ptr) error {
	for {
		owner := s.owner.Load()
		if owner == nil {
			runtime.Gosched()
			continue
		}
		owner.Lock()
		if s.owner.Load() == owner {
			err := owner.FreeBlock(s, p)
			owner.Unlock()
			return err
		}
		owner.Unlock()
	}
}

// Teardown forgets every slab. The extent heap is torn down by its owner.
func (h *ProcessHeap) Teardown() {
	h.Lock()
	defer h.Unlock()
	h.slabs = swiss.NewMap[layout.Ptr, *Slab](64)
	h.Reset()
}
