package zone

import "github.com/cockroachdb/errors"

var (
	// ErrOutOfMemory indicates no owned or acquirable zone has room for the request.
	ErrOutOfMemory = errors.New("zone: out of memory")
	// ErrNoFit indicates a free-space map holds no extent of the requested length.
	ErrNoFit = errors.New("zone: no free extent fits")
	// ErrUnavailable indicates a zone that cannot be acquired: it belongs to
	// another interleave group, is leased by another instance, or lacks the
	// requested free space.
	ErrUnavailable = errors.New("zone: zone unavailable")
	// ErrCorrupt indicates block headers that violate the extent layout.
	ErrCorrupt = errors.New("zone: corrupt block headers")
	// ErrBadPointer indicates a pointer that does not start an allocated extent.
	ErrBadPointer = errors.New("zone: pointer does not start an extent")
)
