// Package extentheap allocates block-granular extents from the zones an
// instance leases, acquiring more zones on demand.
package extentheap

import (
	"log/slog"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/joshuapare/globalheap/heap/layout"
	"github.com/joshuapare/globalheap/heap/zone"
	"github.com/joshuapare/globalheap/internal/format"
	"github.com/joshuapare/globalheap/internal/logger"
)

// Heap is an extent allocator layered on a zone heap. All operations are
// serialized by one mutex; zone acquisition dominates their cost.
type Heap struct {
	*zone.Heap

	mu       sync.Mutex
	lastZone *zone.Zone // zone that served the latest allocation
	log      *slog.Logger
}

// New returns an extent heap over zh.
func New(zh *zone.Heap, log *slog.Logger) *Heap {
	return &Heap{Heap: zh, log: logger.Or(log)}
}

// Extent is an allocated extent.
type Extent struct {
	Zone   *zone.Zone
	Start  uint64 // first block index
	Blocks uint64
	Ptr    layout.Ptr
}

// Blocks returns the number of blocks needed for size bytes.
func Blocks(size uint64) uint64 {
	n := size / format.BlockSize
	if size%format.BlockSize != 0 || n == 0 {
		n++
	}
	return n
}

// Malloc allocates an extent of at least size bytes. Owned zones are tried
// first, starting with the one that served the previous request. With
// canExtend a new zone is leased when none fits, running fn over the new
// zone's existing extents.
func (h *Heap) Malloc(size uint64, canExtend bool, fn zone.EnumerateFunc) (Extent, error) {
	if zoneBytes := h.Layout().Geometry().NumBlocks * format.BlockSize; size > zoneBytes {
		return Extent{}, errors.Wrapf(zone.ErrOutOfMemory, "%d bytes exceed a zone of %d", size, zoneBytes)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	n := Blocks(size)
	ex, err := h.allocOwned(n)
	if err == nil {
		return ex, nil
	}
	if !canExtend {
		return Extent{}, errors.Wrapf(zone.ErrOutOfMemory, "%d blocks in owned zones", n)
	}

	z, err := h.AcquireNewZone(n, fn)
	if err != nil {
		return Extent{}, err
	}
	start, p, err := z.AllocExtent(n)
	if err != nil {
		return Extent{}, err
	}
	h.log.Debug("extent allocated in new zone", "zone", z.ID(), "start", start, "blocks", n)
	h.lastZone = z
	return Extent{Zone: z, Start: start, Blocks: n, Ptr: p}, nil
}

func (h *Heap) allocOwned(n uint64) (Extent, error) {
	if h.lastZone != nil {
		if start, p, err := h.lastZone.AllocExtent(n); err == nil {
			return Extent{Zone: h.lastZone, Start: start, Blocks: n, Ptr: p}, nil
		}
	}
	for _, z := range h.Zones() {
		if z == h.lastZone {
			continue
		}
		if start, p, err := z.AllocExtent(n); err == nil {
			h.lastZone = z
			return Extent{Zone: z, Start: start, Blocks: n, Ptr: p}, nil
		}
	}
	return Extent{}, zone.ErrNoFit
}

// FreeIn frees the extent at p in z, which this instance leases.
func (h *Heap) FreeIn(z *zone.Zone, p layout.Ptr) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := z.FreeExtent(p)
	return err
}

// AcquireZoneByID returns zone zid through the read path of AcquireZone.
func (h *Heap) AcquireZoneByID(zid uint64, fn zone.EnumerateFunc) (*zone.Zone, error) {
	return h.AcquireZone(false, zid, 0, fn)
}

// MoreSpace leases up to nzones more zones, running fn over each, and
// returns how many it got.
func (h *Heap) MoreSpace(nzones int, fn zone.EnumerateFunc) int {
	for i := 0; i < nzones; i++ {
		if _, err := h.AcquireNewZone(1, fn); err != nil {
			return i
		}
	}
	return nzones
}
