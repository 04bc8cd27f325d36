package slab

import (
	"math/bits"

	"github.com/cockroachdb/errors"

	"github.com/joshuapare/globalheap/heap/layout"
	"github.com/joshuapare/globalheap/heap/zone"
	"github.com/joshuapare/globalheap/internal/format"
)

// NVSlab is the persistent view of a slab: a header with a bitmap of
// allocated blocks followed by equally sized blocks.
type NVSlab struct {
	heap *layout.Heap
	base layout.Ptr
	b    []byte
}

func mapSlab(h *layout.Heap, base layout.Ptr) (NVSlab, error) {
	b, err := h.Bytes(base, format.SlabSize)
	if err != nil {
		return NVSlab{}, errors.Mark(err, zone.ErrBadPointer)
	}
	return NVSlab{heap: h, base: base, b: b}, nil
}

// MakeNVSlab formats the slab extent at base for class with every block
// free. The whole header is persisted.
func MakeNVSlab(h *layout.Heap, base layout.Ptr, class int) (NVSlab, error) {
	s, err := mapSlab(h, base)
	if err != nil {
		return NVSlab{}, err
	}
	if err := s.remake(class); err != nil {
		return NVSlab{}, err
	}
	return s, nil
}

// LoadNVSlab returns the slab at base after checking its header against
// the geometry of its size class.
func LoadNVSlab(h *layout.Heap, base layout.Ptr) (NVSlab, error) {
	s, err := mapSlab(h, base)
	if err != nil {
		return NVSlab{}, err
	}
	class := int(format.ReadU16(s.b, format.SlabSizeClassOffset))
	if class >= NumClasses() {
		return NVSlab{}, errors.Wrapf(ErrBadSlab, "slab %s: size class %d", base, class)
	}
	geo := Geometry(class)
	if uint64(format.ReadU32(s.b, format.SlabHeaderSizeOffset)) != geo.HeaderSize ||
		uint64(format.ReadU32(s.b, format.SlabNumBlocksOffset)) != geo.NumBlocks {
		return NVSlab{}, errors.Wrapf(ErrBadSlab, "slab %s: header does not match class %d", base, class)
	}
	return s, nil
}

func (s NVSlab) remake(class int) error {
	if class < 0 || class >= NumClasses() {
		return errors.Wrapf(ErrBadSlab, "size class %d of %d", class, NumClasses())
	}
	geo := Geometry(class)
	clear(s.b[:geo.HeaderSize])
	format.PutU32(s.b, format.SlabHeaderSizeOffset, uint32(geo.HeaderSize))
	format.PutU16(s.b, format.SlabSizeClassOffset, uint16(class))
	format.PutU32(s.b, format.SlabNumBlocksOffset, uint32(geo.NumBlocks))
	return s.heap.Persist(s.base, geo.HeaderSize)
}

// Base returns the heap offset of the slab.
func (s NVSlab) Base() layout.Ptr { return s.base }

// SizeClass returns the slab's size class.
func (s NVSlab) SizeClass() int { return int(format.ReadU16(s.b, format.SlabSizeClassOffset)) }

// HeaderSize returns the size of the header, bitmap included.
func (s NVSlab) HeaderSize() uint64 { return uint64(format.ReadU32(s.b, format.SlabHeaderSizeOffset)) }

// NumBlocks returns the number of blocks in the slab.
func (s NVSlab) NumBlocks() uint64 { return uint64(format.ReadU32(s.b, format.SlabNumBlocksOffset)) }

// BlockSize returns the size of each block.
func (s NVSlab) BlockSize() uint64 { return ClassSize(s.SizeClass()) }

// Block returns the heap offset of block i.
func (s NVSlab) Block(i uint64) layout.Ptr {
	return s.base.Add(s.HeaderSize() + i*s.BlockSize())
}

// BlockID maps p back to its block index.
func (s NVSlab) BlockID(p layout.Ptr) (uint64, error) {
	first := s.base.Add(s.HeaderSize())
	if p < first {
		return 0, errors.Wrapf(zone.ErrBadPointer, "%s precedes the blocks of slab %s", p, s.base)
	}
	off := uint64(p - first)
	size := s.BlockSize()
	if off%size != 0 || off/size >= s.NumBlocks() {
		return 0, errors.Wrapf(zone.ErrBadPointer, "%s is not a block of slab %s", p, s.base)
	}
	return off / size, nil
}

func bitPos(i uint64) (int, byte) {
	return format.SlabBitmapOffset + int(i/8), byte(1) << (i & 7)
}

// IsFree reports whether block i is free.
func (s NVSlab) IsFree(i uint64) bool {
	off, mask := bitPos(i)
	return s.b[off]&mask == 0
}

// SetAlloc marks block i allocated and persists the bitmap byte.
func (s NVSlab) SetAlloc(i uint64) error {
	off, mask := bitPos(i)
	s.b[off] |= mask
	return s.heap.Persist(s.base.Add(uint64(off)), 1)
}

// SetFree marks block i free and persists the bitmap byte.
func (s NVSlab) SetFree(i uint64) error {
	off, mask := bitPos(i)
	s.b[off] &^= mask
	return s.heap.Persist(s.base.Add(uint64(off)), 1)
}

// CountFree counts the free blocks recorded in the bitmap.
func (s NVSlab) CountFree() uint64 {
	n := s.NumBlocks()
	bitmap := s.b[format.SlabBitmapOffset : format.SlabBitmapOffset+format.BitmapSize(n)]
	used := 0
	for i, v := range bitmap {
		if rem := n - uint64(i)*8; rem < 8 {
			v &= byte(1)<<rem - 1
		}
		used += bits.OnesCount8(v)
	}
	return n - uint64(used)
}
