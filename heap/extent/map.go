package extent

import "github.com/google/btree"

const btreeDegree = 8

// Map holds a set of pairwise non-touching extents, indexed by start block
// for coalescing and by (length, start) for first-fit lookup.
//
// Map is not safe for concurrent use.
type Map struct {
	byStart *btree.BTreeG[Extent]
	byLen   *btree.BTreeG[Extent]
}

func lessStart(a, b Extent) bool { return a.Start < b.Start }

func lessLen(a, b Extent) bool {
	if a.Len != b.Len {
		return a.Len < b.Len
	}
	return a.Start < b.Start
}

// NewMap returns an empty map.
func NewMap() *Map {
	return &Map{
		byStart: btree.NewG(btreeDegree, lessStart),
		byLen:   btree.NewG(btreeDegree, lessLen),
	}
}

// Insert adds e, coalescing it with every stored extent it overlaps or
// touches.
func (m *Map) Insert(e Extent) {
	if e.Len == 0 {
		return
	}
	var superseded []Extent

	m.byStart.DescendLessOrEqual(e, func(p Extent) bool {
		if p.Overlaps(e) {
			e = e.Merge(p)
			superseded = append(superseded, p)
		}
		return false
	})
	m.byStart.AscendGreaterOrEqual(Extent{Start: e.Start}, func(s Extent) bool {
		if !s.Overlaps(e) {
			return false
		}
		e = e.Merge(s)
		superseded = append(superseded, s)
		return true
	})

	for _, s := range superseded {
		m.remove(s)
	}
	m.byStart.ReplaceOrInsert(e)
	m.byLen.ReplaceOrInsert(e)
}

// FindGE returns the shortest extent of at least minLen blocks, lowest start
// first among equals.
func (m *Map) FindGE(minLen uint64) (Extent, bool) {
	var found Extent
	ok := false
	m.byLen.AscendGreaterOrEqual(Extent{Len: minLen}, func(e Extent) bool {
		found, ok = e, true
		return false
	})
	return found, ok
}

// RemoveGE removes and returns the extent FindGE would return.
func (m *Map) RemoveGE(minLen uint64) (Extent, bool) {
	e, ok := m.FindGE(minLen)
	if ok {
		m.remove(e)
	}
	return e, ok
}

// Len returns the number of stored extents.
func (m *Map) Len() int { return m.byStart.Len() }

// Extents returns the stored extents in block order.
func (m *Map) Extents() []Extent {
	out := make([]Extent, 0, m.byStart.Len())
	m.byStart.Ascend(func(e Extent) bool {
		out = append(out, e)
		return true
	})
	return out
}

// Blocks returns the total number of blocks across all extents.
func (m *Map) Blocks() uint64 {
	var n uint64
	m.byStart.Ascend(func(e Extent) bool {
		n += e.Len
		return true
	})
	return n
}

// Clear removes every extent.
func (m *Map) Clear() {
	m.byStart.Clear(false)
	m.byLen.Clear(false)
}

func (m *Map) remove(e Extent) {
	m.byStart.Delete(e)
	m.byLen.Delete(e)
}
