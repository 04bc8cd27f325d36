package layout

import "github.com/cockroachdb/errors"

// ErrOutOfRange indicates a pointer or zone id outside the heap.
var ErrOutOfRange = errors.New("layout: out of heap range")
