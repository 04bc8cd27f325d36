package globalheap

import (
	"log/slog"
	"sync/atomic"

	"github.com/cockroachdb/errors"

	"github.com/joshuapare/globalheap/heap/layout"
	"github.com/joshuapare/globalheap/heap/memattrib"
	"github.com/joshuapare/globalheap/heap/slab"
	"github.com/joshuapare/globalheap/internal/format"
	"github.com/joshuapare/globalheap/internal/logger"
	"github.com/joshuapare/globalheap/internal/region"
)

// GlobalHeap is an open instance of a heap. It is safe for concurrent use.
type GlobalHeap struct {
	region *region.Region
	layout *layout.Heap
	topo   Topology
	gen    layout.Generation
	heaps  *memattrib.Allocators
	slots  atomic.Uint32
	closed atomic.Bool
	log    *slog.Logger
}

// Create creates the files of a new heap at path, formats it and opens it.
// The layout is validated before any file is written.
func Create(path string, copts CreateOptions, opts *Options) (*GlobalHeap, error) {
	o := opts.withDefaults()
	if copts.MetazoneSize == 0 {
		copts.MetazoneSize = DefaultMetazoneSize
	}
	if copts.Partitions <= 0 {
		copts.Partitions = 1
	}
	if err := format.ValidateHeap(copts.Size, copts.MetazoneSize); err != nil {
		return nil, err
	}

	paths := region.PartitionPaths(path, copts.Partitions)
	if err := region.Create(paths, copts.Size, copts.MetazoneSize); err != nil {
		return nil, err
	}
	cleanup := func() {
		for _, p := range paths {
			_ = removeFile(p)
		}
	}

	r, err := o.Space.Map(paths, region.Options{NoSync: o.NoSync})
	if err != nil {
		cleanup()
		return nil, err
	}
	lh, err := layout.Make(r, copts.Size, copts.MetazoneSize)
	if err == nil {
		err = stampGroups(lh, o.Topology.MaxInterleaveGroup())
	}
	if err != nil {
		_ = r.Close()
		cleanup()
		return nil, err
	}

	logger.Or(o.Logger).Info("heap created", "path", path, "size", copts.Size,
		"metazone_size", copts.MetazoneSize, "partitions", copts.Partitions)
	return start(r, lh, o)
}

// stampGroups assigns zone zid to interleave group zid mod (maxGroup+1).
func stampGroups(lh *layout.Heap, maxGroup uint8) error {
	groups := uint64(maxGroup) + 1
	for zid := uint64(0); zid < lh.NumZones(); zid++ {
		if err := lh.Zone(zid).SetInterleaveGroup(uint8(zid % groups)); err != nil {
			return err
		}
	}
	return nil
}

// Open maps the existing heap at path and starts a new instance on it.
func Open(path string, opts *Options) (*GlobalHeap, error) {
	o := opts.withDefaults()
	paths, err := region.Discover(path)
	if err != nil {
		return nil, err
	}
	r, err := o.Space.Map(paths, region.Options{NoSync: o.NoSync})
	if err != nil {
		return nil, err
	}
	lh, err := layout.Load(r)
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	return start(r, lh, o)
}

func start(r *region.Region, lh *layout.Heap, o Options) (*GlobalHeap, error) {
	gen, err := lh.IncrGeneration()
	if err != nil {
		_ = r.Close()
		return nil, err
	}
	log := logger.Or(o.Logger).With("instance", uint64(gen))

	g := &GlobalHeap{
		region: r,
		layout: lh,
		topo:   o.Topology,
		gen:    gen,
		log:    log,
	}
	g.heaps = memattrib.NewAllocators(o.Topology.MaxInterleaveGroup(), func(group uint8) *memattrib.Heap {
		return memattrib.New(lh, memattrib.Options{
			Group:       group,
			Generation:  gen,
			ThreadSlots: o.ThreadSlots,
			Logger:      log,
		})
	})
	log.Info("heap opened", "paths", r.Paths(), "size", lh.Size(), "zones", lh.NumZones())
	return g, nil
}

// Close releases every zone lease held by the instance and unmaps the heap.
func (g *GlobalHeap) Close() error {
	if !g.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	g.heaps.Teardown()
	if err := g.region.Sync(); err != nil {
		_ = g.region.Close()
		return err
	}
	g.log.Info("heap closed")
	return g.region.Close()
}

// Size returns the heap size in bytes.
func (g *GlobalHeap) Size() uint64 { return g.layout.Size() }

// NumZones returns the number of zones.
func (g *GlobalHeap) NumZones() uint64 { return g.layout.NumZones() }

// Instance returns the id of this open instance.
func (g *GlobalHeap) Instance() InstanceID { return g.gen }

// Paths returns the files backing the heap.
func (g *GlobalHeap) Paths() []string { return g.region.Paths() }

// Malloc allocates size bytes, trying the nearest interleave group first
// and then each other group in turn.
func (g *GlobalHeap) Malloc(size uint64) (Ptr, error) {
	return g.malloc(-1, size)
}

// MallocAttrib allocates size bytes from zones of the given interleave
// group only.
func (g *GlobalHeap) MallocAttrib(size uint64, group uint8) (Ptr, error) {
	if g.closed.Load() {
		return Nil, ErrClosed
	}
	h, err := g.heaps.Get(group)
	if err != nil {
		return Nil, err
	}
	return h.Malloc(size)
}

func (g *GlobalHeap) malloc(slot int, size uint64) (Ptr, error) {
	if g.closed.Load() {
		return Nil, ErrClosed
	}
	groups := int(g.topo.MaxInterleaveGroup()) + 1
	start := int(g.topo.NearestInterleaveGroup()) % groups

	var lastErr error
	for i := 0; i < groups; i++ {
		h, err := g.heaps.Get(uint8((start + i) % groups))
		if err != nil {
			return Nil, err
		}
		var p Ptr
		if slot < 0 {
			p, err = h.Malloc(size)
		} else {
			p, err = h.MallocSlot(slot, size)
		}
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrOutOfMemory) {
			return Nil, err
		}
		lastErr = err
	}
	return Nil, lastErr
}

// heapOf returns the group heap responsible for p.
func (g *GlobalHeap) heapOf(p Ptr) (*memattrib.Heap, error) {
	if g.closed.Load() {
		return nil, ErrClosed
	}
	zid, err := g.layout.ZoneID(p)
	if err != nil {
		return nil, errors.Mark(err, ErrBadPointer)
	}
	return g.heaps.Get(g.layout.Zone(zid).InterleaveGroup())
}

// Free frees p. Memory allocated by an earlier instance may be freed as
// long as no other live instance leases its zone.
func (g *GlobalHeap) Free(p Ptr) error {
	h, err := g.heapOf(p)
	if err != nil {
		return err
	}
	return h.Free(p)
}

// Realloc allocates size bytes in the interleave group of p, copies the
// contents that fit and frees p. A nil p behaves like Malloc.
func (g *GlobalHeap) Realloc(p Ptr, size uint64) (Ptr, error) {
	if p.IsNil() {
		return g.Malloc(size)
	}
	h, err := g.heapOf(p)
	if err != nil {
		return Nil, err
	}
	old, err := slab.UsableSize(g.layout, p)
	if err != nil {
		return Nil, err
	}
	np, err := h.Malloc(size)
	if err != nil {
		return Nil, err
	}

	n := min(old, size)
	src, err := g.layout.Bytes(p, n)
	if err != nil {
		return Nil, err
	}
	dst, err := g.layout.Bytes(np, n)
	if err != nil {
		return Nil, err
	}
	copy(dst, src)
	if err := g.layout.Persist(np, n); err != nil {
		return Nil, err
	}
	return np, h.Free(p)
}

// UsableSize returns the number of bytes usable at p, which may exceed the
// size requested from Malloc.
func (g *GlobalHeap) UsableSize(p Ptr) (uint64, error) {
	if g.closed.Load() {
		return 0, ErrClosed
	}
	return slab.UsableSize(g.layout, p)
}

// Root returns the root pointer, or Nil once the heap is closed.
func (g *GlobalHeap) Root() Ptr {
	if g.closed.Load() {
		return Nil
	}
	return g.layout.Root()
}

// SetRoot persists p as the root pointer.
func (g *GlobalHeap) SetRoot(p Ptr) error {
	if g.closed.Load() {
		return ErrClosed
	}
	return g.layout.SetRoot(p)
}

// Bytes returns the n bytes at p in the local mapping. The slice is valid
// until Close.
func (g *GlobalHeap) Bytes(p Ptr, n uint64) ([]byte, error) {
	if g.closed.Load() {
		return nil, ErrClosed
	}
	return g.layout.Bytes(p, n)
}

// Persist flushes the n bytes at p to the backing files.
func (g *GlobalHeap) Persist(p Ptr, n uint64) error {
	if g.closed.Load() {
		return ErrClosed
	}
	return g.layout.Persist(p, n)
}

// Thread returns a handle pinned to one thread heap slot. Goroutines that
// allocate heavily get better lock locality from a handle of their own.
func (g *GlobalHeap) Thread() *Thread {
	return &Thread{heap: g, slot: int(g.slots.Add(1) - 1)}
}

// Thread allocates through one thread heap slot of each group.
type Thread struct {
	heap *GlobalHeap
	slot int
}

// Malloc allocates size bytes like GlobalHeap.Malloc.
func (t *Thread) Malloc(size uint64) (Ptr, error) {
	return t.heap.malloc(t.slot, size)
}

// Free frees p like GlobalHeap.Free.
func (t *Thread) Free(p Ptr) error {
	return t.heap.Free(p)
}
