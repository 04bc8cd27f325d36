package slab

import (
	"container/list"
	"sync/atomic"

	"github.com/joshuapare/globalheap/heap/layout"
)

// Slab is the volatile descriptor of a slab. It carries the free list
// rebuilt from the bitmap and its position in the owning heap's lists.
//
// A slab is guarded by the lock of its owner. The owner is nil only while
// the slab moves between heaps.
type Slab struct {
	nv    NVSlab
	owner atomic.Pointer[Heap]
	free  []uint32 // stack of free block ids, lowest id on top

	list *list.List
	elem *list.Element
}

// NewSlab returns a descriptor for nv with its free list rebuilt from the
// bitmap.
func NewSlab(nv NVSlab) *Slab {
	s := &Slab{nv: nv}
	s.rebuild()
	return s
}

func (s *Slab) rebuild() {
	n := s.nv.NumBlocks()
	s.free = s.free[:0]
	for i := n; i > 0; i-- {
		if s.nv.IsFree(i - 1) {
			s.free = append(s.free, uint32(i-1))
		}
	}
}

// NV returns the persistent view of the slab.
func (s *Slab) NV() NVSlab { return s.nv }

// SizeClass returns the slab's size class.
func (s *Slab) SizeClass() int { return s.nv.SizeClass() }

// Owner returns the heap the slab belongs to, or nil while in transit.
func (s *Slab) Owner() *Heap { return s.owner.Load() }

// NumFree returns the number of free blocks.
func (s *Slab) NumFree() uint64 { return uint64(len(s.free)) }

// IsFull reports whether every block is allocated.
func (s *Slab) IsFull() bool { return len(s.free) == 0 }

// IsEmpty reports whether every block is free.
func (s *Slab) IsEmpty() bool { return s.NumFree() == s.nv.NumBlocks() }

// Fullness returns the fullness bin of the slab, in [0, FullnessBins).
func (s *Slab) Fullness() int {
	n := s.nv.NumBlocks()
	used := n - s.NumFree()
	return int((FullnessBins - 1) * used / n)
}

func (s *Slab) allocBlock() (layout.Ptr, error) {
	top := len(s.free) - 1
	id := uint64(s.free[top])
	if err := s.nv.SetAlloc(id); err != nil {
		return layout.Nil, err
	}
	s.free = s.free[:top]
	return s.nv.Block(id), nil
}

func (s *Slab) freeBlock(p layout.Ptr) error {
	id, err := s.nv.BlockID(p)
	if err != nil {
		return err
	}
	if s.nv.IsFree(id) {
		return ErrDoubleFree
	}
	if err := s.nv.SetFree(id); err != nil {
		return err
	}
	s.free = append(s.free, uint32(id))
	return nil
}
