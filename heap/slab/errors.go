package slab

import "github.com/cockroachdb/errors"

var (
	// ErrDoubleFree indicates a free of a slab block that is not allocated.
	ErrDoubleFree = errors.New("slab: block already free")
	// ErrNotOwned indicates a free of memory in a zone leased by another
	// instance.
	ErrNotOwned = errors.New("slab: zone leased by another instance")
	// ErrBadSlab indicates a slab header that does not match its size class.
	ErrBadSlab = errors.New("slab: invalid slab header")
	// ErrTooLarge indicates a request above LargeThreshold sent to a slab heap.
	ErrTooLarge = errors.New("slab: request exceeds largest size class")
)
