package memattrib

import (
	"sync"

	"github.com/cockroachdb/errors"
)

// ErrNoGroup indicates an interleave group beyond the heap's topology.
var ErrNoGroup = errors.New("memattrib: no such interleave group")

// Allocators holds the heap of each interleave group, creating them on
// first use.
type Allocators struct {
	mu    sync.RWMutex
	heaps []*Heap
	make  func(group uint8) *Heap
}

// NewAllocators returns a registry for groups 0 through maxGroup, building
// each heap with fn.
func NewAllocators(maxGroup uint8, fn func(group uint8) *Heap) *Allocators {
	return &Allocators{heaps: make([]*Heap, int(maxGroup)+1), make: fn}
}

// NumGroups returns the number of interleave groups.
func (a *Allocators) NumGroups() int { return len(a.heaps) }

// Get returns the heap of group.
func (a *Allocators) Get(group uint8) (*Heap, error) {
	if int(group) >= len(a.heaps) {
		return nil, errors.Wrapf(ErrNoGroup, "group %d of %d", group, len(a.heaps))
	}
	a.mu.RLock()
	h := a.heaps[group]
	a.mu.RUnlock()
	if h != nil {
		return h, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if h = a.heaps[group]; h == nil {
		h = a.make(group)
		a.heaps[group] = h
	}
	return h, nil
}

// Each calls fn for every heap created so far, in group order.
func (a *Allocators) Each(fn func(*Heap)) {
	a.mu.RLock()
	heaps := make([]*Heap, 0, len(a.heaps))
	for _, h := range a.heaps {
		if h != nil {
			heaps = append(heaps, h)
		}
	}
	a.mu.RUnlock()
	for _, h := range heaps {
		fn(h)
	}
}

// Teardown tears down every heap and forgets them.
func (a *Allocators) Teardown() {
	a.Each(func(h *Heap) { h.Teardown() })
	a.mu.Lock()
	clear(a.heaps)
	a.mu.Unlock()
}
