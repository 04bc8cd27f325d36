package globalheap

import (
	"github.com/cockroachdb/errors"

	"github.com/joshuapare/globalheap/heap/layout"
	"github.com/joshuapare/globalheap/heap/memattrib"
	"github.com/joshuapare/globalheap/heap/slab"
	"github.com/joshuapare/globalheap/heap/zone"
	"github.com/joshuapare/globalheap/internal/format"
	"github.com/joshuapare/globalheap/internal/region"
)

// Errors returned by the heap. Test with errors.Is.
var (
	ErrOutOfMemory      = zone.ErrOutOfMemory
	ErrBadPointer       = zone.ErrBadPointer
	ErrCorrupt          = zone.ErrCorrupt
	ErrNotOwned         = slab.ErrNotOwned
	ErrDoubleFree       = slab.ErrDoubleFree
	ErrNoGroup          = memattrib.ErrNoGroup
	ErrInvalidLayout    = format.ErrInvalidLayout
	ErrNotPowerOfTwo    = format.ErrNotPowerOfTwo
	ErrUnknownMapping   = region.ErrUnknownMapping
	ErrDuplicateMapping = region.ErrDuplicateMapping
	ErrNoDirectory      = region.ErrNoDirectory
	ErrUnknownFSType    = region.ErrUnknownFSType
	ErrNotFound         = region.ErrNotFound
	ErrExists           = region.ErrExists
	ErrOutOfRange       = layout.ErrOutOfRange

	// ErrClosed indicates use of a heap after Close.
	ErrClosed = errors.New("globalheap: heap closed")
	// ErrInvalidInstance indicates an instance id that no open can produce.
	ErrInvalidInstance = errors.New("globalheap: invalid instance id")
)
