package slab

import (
	"github.com/cockroachdb/errors"

	"github.com/joshuapare/globalheap/heap/layout"
)

// ThreadHeap is a slab heap with its own lock that borrows slabs from the
// process heap as it runs dry.
type ThreadHeap struct {
	*Heap

	process *ProcessHeap
}

// NewThreadHeap returns a thread heap fed by process.
func NewThreadHeap(process *ProcessHeap) *ThreadHeap {
	return &ThreadHeap{Heap: NewHeap(), process: process}
}

// Malloc allocates a block of at least size bytes.
func (t *ThreadHeap) Malloc(size uint64) (layout.Ptr, error) {
	class := SizeClass(size)
	if size > LargeThreshold || class >= NumClasses() {
		return layout.Nil, errors.Wrapf(ErrTooLarge, "%d bytes", size)
	}

	t.Lock()
	defer t.Unlock()

	s, err := t.FindSlab(class)
	if err != nil {
		return layout.Nil, err
	}
	if s == nil {
		if s, err = t.process.AcquireSlab(class); err != nil {
			return layout.Nil, err
		}
		t.InsertSlab(s)
	}
	return t.AllocBlock(s)
}
