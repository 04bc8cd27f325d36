// Package layout is the typed view of a mapped global heap image.
//
// # Structure
//
// A heap is an array of equally sized metazones. Every metazone starts with a
// replica of the heap header followed by one zone:
//
//	metazone 0                     metazone 1
//	+-------------+--------------+ +-------------+--------------+
//	| heap header | zone 0       | | heap header | zone 1       | ...
//	+-------------+--------------+ +-------------+--------------+
//
// A zone holds a descriptor, one 8-byte header per block and the 256 KiB
// blocks themselves. Only metazone 0's header is authoritative for the
// generation counter and the root pointer; the other replicas carry the heap
// size and metazone size so any metazone alone can be identified.
//
// # Crash consistency
//
// Extent allocation writes every non-first block header, persists the range,
// then writes and persists the first header's ExtentFirst tag. Free clears the
// first tag before the others. A crash at any point leaves either a complete
// extent or blocks the free-space scan treats as free.
package layout

import (
	"github.com/cockroachdb/errors"

	"github.com/joshuapare/globalheap/internal/format"
)

// Heap is a view of a heap image in mem.
type Heap struct {
	mem    Memory
	geo    format.Geometry
	size   uint64
	nzones uint64
}

// Make lays out a fresh heap of heapSize bytes over mem, formatting every
// metazone.
func Make(mem Memory, heapSize, metazoneSize uint64) (*Heap, error) {
	h, err := newHeap(mem, heapSize, metazoneSize)
	if err != nil {
		return nil, err
	}
	for zid := uint64(0); zid < h.nzones; zid++ {
		if err := h.FormatMetazone(zid, true); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Load validates the heap image in mem and returns a view of it.
func Load(mem Memory) (*Heap, error) {
	if mem.Size() < format.HeapHeaderSize {
		return nil, errors.Wrapf(format.ErrTruncated, "image of %d bytes", mem.Size())
	}
	hdr := mem.Bytes(0, format.HeapHeaderSize)
	heapSize := format.ReadU64(hdr, format.HeapSizeOffset)
	log2 := format.ReadU64(hdr, format.HeapLog2SizeOffset)
	if log2 >= 64 {
		return nil, errors.Wrapf(format.ErrInvalidLayout, "metazone log2 size %d", log2)
	}

	h, err := newHeap(mem, heapSize, uint64(1)<<log2)
	if err != nil {
		return nil, err
	}
	z := h.Zone(0)
	if z.Magic() != format.ZoneMagic {
		return nil, errors.Wrapf(format.ErrBadMagic, "zone 0 magic 0x%08x", z.Magic())
	}
	if z.NumBlocks() != h.geo.NumBlocks {
		return nil, errors.Wrapf(format.ErrInvalidLayout,
			"zone 0 has %d blocks, geometry gives %d", z.NumBlocks(), h.geo.NumBlocks)
	}
	return h, nil
}

func newHeap(mem Memory, heapSize, metazoneSize uint64) (*Heap, error) {
	if err := format.ValidateHeap(heapSize, metazoneSize); err != nil {
		return nil, err
	}
	if mem.Size() < heapSize {
		return nil, errors.Wrapf(format.ErrTruncated, "heap of %d bytes in image of %d", heapSize, mem.Size())
	}
	geo, err := format.ZoneGeometry(metazoneSize)
	if err != nil {
		return nil, err
	}
	return &Heap{mem: mem, geo: geo, size: heapSize, nzones: heapSize / metazoneSize}, nil
}

// Memory returns the image the heap lives in.
func (h *Heap) Memory() Memory { return h.mem }

// Size returns the heap size in bytes.
func (h *Heap) Size() uint64 { return h.size }

// MetazoneSize returns the size of one metazone.
func (h *Heap) MetazoneSize() uint64 { return h.geo.MetazoneSize }

// NumZones returns the number of zones.
func (h *Heap) NumZones() uint64 { return h.nzones }

// Geometry returns the per-zone block layout.
func (h *Heap) Geometry() format.Geometry { return h.geo }

func (h *Heap) metazoneBase(zid uint64) uint64 { return zid << h.geo.Log2Size }

// FormatMetazone rewrites zone zid to an empty, unleased zone. The interleave
// group stamp is kept. With withHeader the heap header replica is rewritten
// too, resetting the generation and the root on metazone 0.
func (h *Heap) FormatMetazone(zid uint64, withHeader bool) error {
	if zid >= h.nzones {
		return errors.Wrapf(ErrOutOfRange, "zone %d of %d", zid, h.nzones)
	}
	base := h.metazoneBase(zid)
	if withHeader {
		hdr := h.mem.Bytes(base, format.HeapHeaderSize)
		clear(hdr)
		format.PutU64(hdr, format.HeapSizeOffset, h.size)
		format.PutU64(hdr, format.HeapLog2SizeOffset, uint64(h.geo.Log2Size))
		format.StoreWord(hdr, format.HeapGenerationOffset, 1)
		format.PutU64(hdr, format.HeapRootOffset, uint64(Nil))
		if err := h.mem.Persist(base, format.HeapHeaderSize); err != nil {
			return err
		}
	}
	return h.Zone(zid).format()
}

// IncrGeneration atomically advances the generation counter and returns the
// new value, which identifies the caller's open instance.
func (h *Heap) IncrGeneration() (Generation, error) {
	gen := format.AddWord(h.superblock(), format.HeapGenerationOffset, 1)
	if err := h.mem.Persist(format.HeapGenerationOffset, 8); err != nil {
		return 0, err
	}
	return Generation(gen), nil
}

// Generation returns the last generation handed out.
func (h *Heap) Generation() Generation {
	return Generation(format.LoadWord(h.superblock(), format.HeapGenerationOffset))
}

// Root returns the persisted root pointer.
func (h *Heap) Root() Ptr {
	return Ptr(format.LoadWord(h.superblock(), format.HeapRootOffset))
}

// SetRoot stores and persists the root pointer.
func (h *Heap) SetRoot(p Ptr) error {
	format.StoreWord(h.superblock(), format.HeapRootOffset, uint64(p))
	return h.mem.Persist(format.HeapRootOffset, 8)
}

// ReplicaHeader returns the heap size and metazone log2 size recorded in
// metazone zid's header replica.
func (h *Heap) ReplicaHeader(zid uint64) (heapSize uint64, log2 uint64) {
	hdr := h.mem.Bytes(h.metazoneBase(zid), format.HeapHeaderSize)
	return format.ReadU64(hdr, format.HeapSizeOffset), format.ReadU64(hdr, format.HeapLog2SizeOffset)
}

func (h *Heap) superblock() []byte {
	return h.mem.Bytes(0, format.HeapHeaderSize)
}

// Zone returns the zone descriptor of zone zid.
func (h *Heap) Zone(zid uint64) NVZone {
	return NVZone{heap: h, id: zid, base: h.metazoneBase(zid) + format.HeapHeaderSize}
}

// ZoneID returns the id of the zone containing p.
func (h *Heap) ZoneID(p Ptr) (uint64, error) {
	if uint64(p) >= h.size {
		return 0, errors.Wrapf(ErrOutOfRange, "pointer %s in heap of %d bytes", p, h.size)
	}
	return uint64(p) >> h.geo.Log2Size, nil
}

// Bytes returns n bytes of the mapping at p.
// The range must lie within one metazone.
func (h *Heap) Bytes(p Ptr, n uint64) ([]byte, error) {
	if err := h.checkRange(p, n); err != nil {
		return nil, err
	}
	b := h.mem.Bytes(uint64(p), n)
	if b == nil {
		return nil, errors.Wrapf(ErrOutOfRange, "[%s, +%d) is not mapped", p, n)
	}
	return b, nil
}

// Persist flushes n bytes at p.
func (h *Heap) Persist(p Ptr, n uint64) error {
	if err := h.checkRange(p, n); err != nil {
		return err
	}
	return h.mem.Persist(uint64(p), n)
}

func (h *Heap) checkRange(p Ptr, n uint64) error {
	if uint64(p) > h.size || n > h.size-uint64(p) {
		return errors.Wrapf(ErrOutOfRange, "[%s, +%d) in heap of %d bytes", p, n, h.size)
	}
	if n > 0 && uint64(p)>>h.geo.Log2Size != (uint64(p)+n-1)>>h.geo.Log2Size {
		return errors.Wrapf(ErrOutOfRange, "[%s, +%d) crosses a metazone boundary", p, n)
	}
	return nil
}
