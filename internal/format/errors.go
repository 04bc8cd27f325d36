package format

import "github.com/cockroachdb/errors"

var (
	// ErrNotPowerOfTwo indicates a size that must be a power of two was not.
	ErrNotPowerOfTwo = errors.New("format: not a power of two")
	// ErrInvalidLayout indicates heap geometry that cannot be laid out or a
	// mapped image whose headers disagree with its size.
	ErrInvalidLayout = errors.New("format: invalid heap layout")
	// ErrTruncated indicates the image lacked the bytes required for a structure.
	ErrTruncated = errors.New("format: truncated image")
	// ErrBadMagic indicates a zone header without the zone magic.
	ErrBadMagic = errors.New("format: zone magic mismatch")
)
