package format

import (
	"math/bits"

	cerrors "github.com/cockroachdb/errors"
	"golang.org/x/exp/constraints"
)

// AlignUp returns v rounded up to the next multiple of align, which must be a
// power of two.
//
// Example:
//
//	AlignUp(1, 64)  = 64
//	AlignUp(64, 64) = 64
//	AlignUp(65, 64) = 128
func AlignUp[T constraints.Unsigned](v, align T) T {
	return (v + align - 1) &^ (align - 1)
}

// AlignDown returns v rounded down to a multiple of align, which must be a
// power of two.
func AlignDown[T constraints.Unsigned](v, align T) T {
	return v &^ (align - 1)
}

// RoundUp returns v rounded up to a multiple of m for any non-zero m.
func RoundUp[T constraints.Unsigned](v, m T) T {
	return ((v + m - 1) / m) * m
}

// IsPow2 reports whether v is a power of two.
func IsPow2[T constraints.Unsigned](v T) bool {
	return v != 0 && v&(v-1) == 0
}

// Log2 returns floor(log2(v)) for v > 0.
func Log2(v uint64) uint {
	return uint(63 - bits.LeadingZeros64(v))
}

// CheckPow2 returns an error wrapping ErrNotPowerOfTwo when number is not a
// power of two.
func CheckPow2[T constraints.Unsigned](number T, name string) error {
	if !IsPow2(number) {
		return cerrors.Wrapf(ErrNotPowerOfTwo, "%s is %d", name, number)
	}
	return nil
}
