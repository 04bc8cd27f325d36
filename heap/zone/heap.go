package zone

import (
	"cmp"
	"log/slog"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"

	"github.com/joshuapare/globalheap/heap/layout"
	"github.com/joshuapare/globalheap/internal/logger"
)

// Options configures a zone heap.
type Options struct {
	// Generation identifies this instance in zone leases.
	Generation layout.Generation
	// Group restricts the heap to zones stamped with this interleave group.
	Group uint8
	// Logger receives acquire and release events. Nil selects logger.L.
	Logger *slog.Logger
}

// Heap hands out zones to one instance. A zone this instance leases is
// described by exactly one *Zone, created by the acquiring goroutine.
type Heap struct {
	rw    sync.RWMutex // serializes zone acquisition
	heap  *layout.Heap
	gen   layout.Generation
	group uint8
	zones *swiss.Map[uint64, *Zone]
	log   *slog.Logger
}

// NewHeap returns a zone heap over h.
func NewHeap(h *layout.Heap, opts Options) *Heap {
	return &Heap{
		heap:  h,
		gen:   opts.Generation,
		group: opts.Group,
		zones: swiss.NewMap[uint64, *Zone](uint32(min(h.NumZones(), 64))),
		log:   logger.Or(opts.Logger),
	}
}

// Layout returns the heap image view.
func (h *Heap) Layout() *layout.Heap { return h.heap }

// Generation returns the generation leases are taken under.
func (h *Heap) Generation() layout.Generation { return h.gen }

// Group returns the interleave group served.
func (h *Heap) Group() uint8 { return h.group }

// AcquireZone returns zone zid leased to this instance.
//
// Unless allocNew is set, a zone already leased by this instance is returned
// from the cache. An unleased zone is claimed with a compare-and-swap on its
// lease word; the winner loads its free-space map, runs fn over its
// allocated extents and caches it. When minFree is non-zero the zone must
// also hold a free extent of that many blocks; a freshly claimed zone that
// does not is released again. Every refusal wraps ErrUnavailable.
func (h *Heap) AcquireZone(allocNew bool, zid uint64, minFree uint64, fn EnumerateFunc) (*Zone, error) {
	if zid >= h.heap.NumZones() {
		return nil, errors.Wrapf(layout.ErrOutOfRange, "zone %d of %d", zid, h.heap.NumZones())
	}
	nv := h.heap.Zone(zid)
	if nv.InterleaveGroup() != h.group {
		return nil, errors.Wrapf(ErrUnavailable, "zone %d is in interleave group %d", zid, nv.InterleaveGroup())
	}
	lease := LeaseOf(nv)

	if !allocNew && lease.Status() == h.gen {
		// Read-serialize: the acquiring goroutine may still be initializing.
		h.rw.RLock()
		z, ok := h.zones.Get(zid)
		h.rw.RUnlock()
		return h.checkSpace(z, ok, minFree)
	}

	if lease.Status() != layout.Unleased {
		return nil, errors.Wrapf(ErrUnavailable, "zone %d leased by generation %d", zid, lease.Status())
	}

	h.rw.Lock()
	defer h.rw.Unlock()

	if !allocNew && lease.Status() == h.gen {
		z, ok := h.zones.Get(zid)
		return h.checkSpace(z, ok, minFree)
	}
	if lease.Status() != layout.Unleased || !lease.TryLock(h.gen) {
		return nil, errors.Wrapf(ErrUnavailable, "zone %d lost lease race", zid)
	}
	if err := lease.Persist(); err != nil {
		lease.Unlock()
		return nil, err
	}

	z := NewZone(nv)
	if err := z.Init(); err != nil {
		h.log.Warn("zone scan failed", "zone", zid, "error", err)
		h.unlease(z)
		return nil, err
	}
	if minFree > 0 && !z.HasFreeSpace(minFree) {
		h.unlease(z)
		return nil, errors.Wrapf(ErrUnavailable, "zone %d has no free extent of %d blocks", zid, minFree)
	}

	h.log.Debug("zone acquired", "zone", zid, "generation", uint64(h.gen))
	if err := z.Enumerate(fn); err != nil {
		h.unlease(z)
		return nil, err
	}
	h.zones.Put(zid, z)
	return z, nil
}

func (h *Heap) checkSpace(z *Zone, ok bool, minFree uint64) (*Zone, error) {
	if !ok {
		return nil, errors.Wrap(ErrUnavailable, "zone leased by this generation in another heap")
	}
	if minFree > 0 && !z.HasFreeSpace(minFree) {
		return nil, errors.Wrapf(ErrUnavailable, "zone %d has no free extent of %d blocks", z.ID(), minFree)
	}
	return z, nil
}

// AcquireNewZone leases the first unleased zone with a free extent of at
// least minFree blocks, scanning zone ids in order.
func (h *Heap) AcquireNewZone(minFree uint64, fn EnumerateFunc) (*Zone, error) {
	minFree = max(minFree, 1)
	for zid := uint64(0); zid < h.heap.NumZones(); zid++ {
		if z, err := h.AcquireZone(true, zid, minFree, fn); err == nil {
			return z, nil
		}
	}
	return nil, errors.Wrapf(ErrOutOfMemory, "no zone with %d free blocks in group %d", minFree, h.group)
}

// ReleaseZone gives up the lease on z. With remove the descriptor is also
// dropped from the cache.
func (h *Heap) ReleaseZone(z *Zone, remove bool) {
	h.unlease(z)
	if remove {
		h.rw.Lock()
		h.zones.Delete(z.ID())
		h.rw.Unlock()
	}
}

func (h *Heap) unlease(z *Zone) {
	h.log.Debug("zone released", "zone", z.ID())
	lease := LeaseOf(z.NVZone())
	lease.Unlock()
	if err := lease.Persist(); err != nil {
		h.log.Warn("persist lease release", "zone", z.ID(), "error", err)
	}
}

// Zone returns the cached descriptor of zone zid.
func (h *Heap) Zone(zid uint64) (*Zone, bool) {
	h.rw.RLock()
	defer h.rw.RUnlock()
	return h.zones.Get(zid)
}

// Zones returns the cached descriptors ordered by zone id.
func (h *Heap) Zones() []*Zone {
	h.rw.RLock()
	out := make([]*Zone, 0, h.zones.Count())
	h.zones.Iter(func(_ uint64, z *Zone) bool {
		out = append(out, z)
		return false
	})
	h.rw.RUnlock()
	slices.SortFunc(out, func(a, b *Zone) int { return cmp.Compare(a.ID(), b.ID()) })
	return out
}

// Teardown releases every lease this heap holds.
func (h *Heap) Teardown() {
	for _, z := range h.Zones() {
		h.ReleaseZone(z, false)
	}
}
