// Package memattrib binds the allocation tiers to one memory attribute: an
// interleave group. Each Heap leases only zones stamped with its group.
package memattrib

import (
	"log/slog"
	"sync/atomic"

	"github.com/joshuapare/globalheap/heap/extentheap"
	"github.com/joshuapare/globalheap/heap/layout"
	"github.com/joshuapare/globalheap/heap/slab"
	"github.com/joshuapare/globalheap/heap/zone"
	"github.com/joshuapare/globalheap/internal/logger"
)

// DefaultThreadSlots is the number of thread heaps per group when Options
// leaves it unset.
const DefaultThreadSlots = 32

// Options configures a Heap.
type Options struct {
	Group       uint8
	Generation  layout.Generation
	ThreadSlots int
	Logger      *slog.Logger
}

// Heap serves one interleave group. Small requests go through a thread
// heap slot, large ones and every free through the process heap.
type Heap struct {
	group   uint8
	zones   *zone.Heap
	extents *extentheap.Heap
	process *slab.ProcessHeap
	threads []*slab.ThreadHeap
	next    atomic.Uint32
	log     *slog.Logger
}

// New returns a heap for opts.Group over lh.
func New(lh *layout.Heap, opts Options) *Heap {
	log := logger.Or(opts.Logger).With("group", opts.Group)
	if opts.ThreadSlots <= 0 {
		opts.ThreadSlots = DefaultThreadSlots
	}

	zh := zone.NewHeap(lh, zone.Options{Generation: opts.Generation, Group: opts.Group, Logger: log})
	eh := extentheap.New(zh, log)
	ph := slab.NewProcessHeap(eh, log)

	h := &Heap{
		group:   opts.Group,
		zones:   zh,
		extents: eh,
		process: ph,
		threads: make([]*slab.ThreadHeap, opts.ThreadSlots),
		log:     log,
	}
	for i := range h.threads {
		h.threads[i] = slab.NewThreadHeap(ph)
	}
	return h
}

// Group returns the interleave group served.
func (h *Heap) Group() uint8 { return h.group }

// Zones returns the zone heap holding this group's leases.
func (h *Heap) Zones() *zone.Heap { return h.zones }

// Process returns the process slab heap.
func (h *Heap) Process() *slab.ProcessHeap { return h.process }

// NumSlots returns the number of thread heap slots.
func (h *Heap) NumSlots() int { return len(h.threads) }

// NextSlot returns a thread heap slot, cycling through all of them.
func (h *Heap) NextSlot() int {
	return int(h.next.Add(1)-1) % len(h.threads)
}

// Malloc allocates size bytes using the next thread heap slot.
func (h *Heap) Malloc(size uint64) (layout.Ptr, error) {
	return h.MallocSlot(h.NextSlot(), size)
}

// MallocSlot allocates size bytes, taking small requests from the given
// thread heap slot.
func (h *Heap) MallocSlot(slot int, size uint64) (layout.Ptr, error) {
	if size > slab.LargeThreshold {
		return h.process.Malloc(size)
	}
	return h.threads[slot%len(h.threads)].Malloc(size)
}

// Free frees p, which must lie in a zone of this group.
func (h *Heap) Free(p layout.Ptr) error {
	return h.process.Free(p)
}

// Teardown drops every slab and releases every lease of the group.
func (h *Heap) Teardown() {
	h.process.Teardown()
	for _, t := range h.threads {
		t.Lock()
		t.Reset()
		t.Unlock()
	}
	h.zones.Teardown()
	h.log.Debug("group torn down")
}
