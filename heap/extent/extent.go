// Package extent provides the block-range value type and an index of free
// extents searchable both by position and by size.
package extent

import "fmt"

// Extent is the half-open block range [Start, Start+Len).
type Extent struct {
	Start uint64
	Len   uint64
}

// End returns the first block past the extent.
func (e Extent) End() uint64 { return e.Start + e.Len }

// Overlaps reports whether e and o overlap or touch.
func (e Extent) Overlaps(o Extent) bool {
	return (e.Start >= o.Start && e.Start <= o.End()) ||
		(o.Start >= e.Start && o.Start <= e.End())
}

// Merge returns the union of e and o when they overlap or touch, and e
// unchanged otherwise.
func (e Extent) Merge(o Extent) Extent {
	if !e.Overlaps(o) {
		return e
	}
	start := min(e.Start, o.Start)
	return Extent{Start: start, Len: max(e.End(), o.End()) - start}
}

func (e Extent) String() string { return fmt.Sprintf("(%d, %d)", e.Start, e.Len) }
