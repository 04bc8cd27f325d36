// Package slab serves small allocations from slabs: single-block extents
// split into equally sized blocks with an allocation bitmap in their header.
//
// # Heaps
//
// A Heap keeps its slabs in per-size-class fullness bins plus a list of
// empty slabs that may be reformatted for any class. Full slabs are in no
// list but still belong to the heap, so frees reach them through the
// owner pointer.
//
// The ProcessHeap is the single heap of an instance that lends slabs out,
// creates new ones from leased extents and routes every free. ThreadHeaps
// front it to spread allocation across independent locks.
package slab

import (
	"container/list"
	"sync"

	"github.com/joshuapare/globalheap/heap/layout"
)

// FullnessBins is the number of fullness bins per size class.
const FullnessBins = 3

// Heap is a set of slabs bucketed by size class and fullness. Callers
// hold the heap's lock around every method except Lock and Unlock.
type Heap struct {
	mu    sync.Mutex
	bins  [][FullnessBins]*list.List
	empty *list.List
}

// NewHeap returns an empty slab heap.
func NewHeap() *Heap {
	h := &Heap{
		bins:  make([][FullnessBins]*list.List, NumClasses()),
		empty: list.New(),
	}
	for class := range h.bins {
		for bin := range h.bins[class] {
			h.bins[class][bin] = list.New()
		}
	}
	return h
}

// Lock locks the heap.
func (h *Heap) Lock() { h.mu.Lock() }

// Unlock unlocks the heap.
func (h *Heap) Unlock() { h.mu.Unlock() }

// FindSlab returns a slab with a free block of class, preferring the
// fullest partially used slab. An empty slab of another class is
// reformatted for class. The slab stays in the heap.
func (h *Heap) FindSlab(class int) (*Slab, error) {
	for bin := FullnessBins - 2; bin >= 0; bin-- {
		if e := h.bins[class][bin].Front(); e != nil {
			return e.Value.(*Slab), nil
		}
	}
	for e := h.empty.Front(); e != nil; e = e.Next() {
		s := e.Value.(*Slab)
		if s.SizeClass() == class {
			return s, nil
		}
	}
	e := h.empty.Front()
	if e == nil {
		return nil, nil
	}
	s := e.Value.(*Slab)
	if err := s.nv.remake(class); err != nil {
		return nil, err
	}
	s.rebuild()
	return s, nil
}

// Reset empties the heap's lists.
func (h *Heap) Reset() {
	for class := range h.bins {
		for _, l := range h.bins[class] {
			l.Init()
		}
	}
	h.empty.Init()
}

// InsertSlab adds s to the heap and makes the heap its owner.
func (h *Heap) InsertSlab(s *Slab) {
	s.owner.Store(h)
	h.place(s)
}

// RemoveSlab takes s out of the heap's lists. The owner is left unchanged.
func (h *Heap) RemoveSlab(s *Slab) {
	if s.list != nil {
		s.list.Remove(s.elem)
		s.list, s.elem = nil, nil
	}
}

func (h *Heap) place(s *Slab) {
	var l *list.List
	switch {
	case s.IsFull():
		return
	case s.IsEmpty():
		l = h.empty
	default:
		l = h.bins[s.SizeClass()][s.Fullness()]
	}
	s.list, s.elem = l, l.PushFront(s)
}

func (h *Heap) reposition(s *Slab) {
	h.RemoveSlab(s)
	h.place(s)
}

// AllocBlock allocates a block from s, which must belong to h and have a
// free block.
func (h *Heap) AllocBlock(s *Slab) (layout.Ptr, error) {
	p, err := s.allocBlock()
	if err != nil {
		return layout.Nil, err
	}
	h.reposition(s)
	return p, nil
}

// FreeBlock frees the block at p in s, which must belong to h.
func (h *Heap) FreeBlock(s *Slab, p layout.Ptr) error {
	if err := s.freeBlock(p); err != nil {
		return err
	}
	h.reposition(s)
	return nil
}

// Stats summarizes the slabs a heap keeps in its lists.
type Stats struct {
	Slabs      int
	EmptySlabs int
	FreeBlocks uint64
}

// Stats walks the heap's lists. Full slabs are not counted.
func (h *Heap) Stats() Stats {
	var st Stats
	count := func(l *list.List) {
		for e := l.Front(); e != nil; e = e.Next() {
			st.Slabs++
			st.FreeBlocks += e.Value.(*Slab).NumFree()
		}
	}
	for class := range h.bins {
		for _, l := range h.bins[class] {
			count(l)
		}
	}
	st.EmptySlabs = h.empty.Len()
	count(h.empty)
	return st
}
