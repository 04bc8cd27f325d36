package extent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge(t *testing.T) {
	tests := []struct {
		name string
		a, b Extent
		want Extent
	}{
		{"overlap", Extent{0, 10}, Extent{5, 10}, Extent{0, 15}},
		{"inner tail", Extent{0, 10}, Extent{5, 6}, Extent{0, 11}},
		{"same start", Extent{0, 10}, Extent{0, 11}, Extent{0, 11}},
		{"touching", Extent{0, 10}, Extent{10, 5}, Extent{0, 15}},
		{"disjoint", Extent{0, 10}, Extent{11, 10}, Extent{0, 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Merge(tt.b))
			if tt.a.Overlaps(tt.b) {
				assert.Equal(t, tt.a.Merge(tt.b), tt.b.Merge(tt.a))
			} else {
				assert.Equal(t, tt.b, tt.b.Merge(tt.a))
			}
		})
	}
}

func TestMapCoalesce(t *testing.T) {
	tests := []struct {
		name string
		in   []Extent
		want []Extent
	}{
		{"successor", []Extent{{10, 10}, {20, 10}}, []Extent{{10, 20}}},
		{"predecessor", []Extent{{10, 10}, {0, 10}}, []Extent{{0, 20}}},
		{"gap", []Extent{{10, 10}, {21, 10}}, []Extent{{10, 10}, {21, 10}}},
		{"bridge", []Extent{{0, 5}, {10, 5}, {5, 5}}, []Extent{{0, 15}}},
		{"swallow", []Extent{{2, 1}, {4, 1}, {6, 1}, {0, 10}}, []Extent{{0, 10}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMap()
			for _, e := range tt.in {
				m.Insert(e)
			}
			require.Equal(t, tt.want, m.Extents())
			require.Equal(t, len(tt.want), m.Len())
		})
	}
}

func TestMapFindTieBreak(t *testing.T) {
	m := NewMap()
	m.Insert(Extent{30, 2})
	m.Insert(Extent{25, 3})
	m.Insert(Extent{0, 1})

	e, ok := m.FindGE(2)
	require.True(t, ok)
	require.Equal(t, Extent{30, 2}, e)

	_, ok = m.FindGE(4)
	require.False(t, ok)
}

func TestMapRemoveGE(t *testing.T) {
	m := NewMap()
	m.Insert(Extent{0, 20})
	m.Insert(Extent{30, 20})
	m.Insert(Extent{80, 10})

	e, ok := m.RemoveGE(10)
	require.True(t, ok)
	require.Equal(t, Extent{80, 10}, e)

	e, ok = m.RemoveGE(15)
	require.True(t, ok)
	require.Equal(t, Extent{0, 20}, e)

	require.Equal(t, []Extent{{30, 20}}, m.Extents())
	require.Equal(t, uint64(20), m.Blocks())

	m.Clear()
	require.Zero(t, m.Len())
	_, ok = m.RemoveGE(1)
	require.False(t, ok)
}
