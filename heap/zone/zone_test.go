package zone

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/globalheap/heap/extent"
	"github.com/joshuapare/globalheap/heap/layout"
	"github.com/joshuapare/globalheap/internal/format"
	"github.com/joshuapare/globalheap/internal/region"
)

const (
	testMetazoneSize = 8 << 20
	testBlocks       = 31
)

func newTestLayout(t *testing.T, zones uint64) *layout.Heap {
	t.Helper()
	mem, err := region.Anonymous(zones * testMetazoneSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mem.Close() })

	h, err := layout.Make(mem, zones*testMetazoneSize, testMetazoneSize)
	require.NoError(t, err)
	return h
}

func newTestZone(t *testing.T) *Zone {
	t.Helper()
	z := NewZone(newTestLayout(t, 1).Zone(0))
	require.NoError(t, z.Init())
	return z
}

// requireRebuildMatches checks that a map rebuilt from the block headers
// equals the live one.
func requireRebuildMatches(t *testing.T, z *Zone) {
	t.Helper()
	shadow := NewFreeSpaceMap(z.NVZone())
	require.NoError(t, shadow.Init())
	require.Equal(t, z.FreeSpace().Extents(), shadow.Extents())
}

// =============================================================================
// FreeSpaceMap
// =============================================================================

func TestFreeSpaceMapInitEmpty(t *testing.T) {
	z := newTestZone(t)
	require.Equal(t, []extent.Extent{{Start: 0, Len: testBlocks}}, z.FreeSpace().Extents())
}

func TestFreeSpaceMapRoundTrip(t *testing.T) {
	z := newTestZone(t)

	e1, _, err := z.AllocExtent(1)
	require.NoError(t, err)
	requireRebuildMatches(t, z)
	_, _, err = z.AllocExtent(2)
	require.NoError(t, err)
	requireRebuildMatches(t, z)
	_, _, err = z.AllocExtent(3)
	require.NoError(t, err)
	requireRebuildMatches(t, z)

	_, err = z.FreeExtent(z.NVZone().Block(e1))
	require.NoError(t, err)
	require.Equal(t, []extent.Extent{{Start: 0, Len: 1}, {Start: 6, Len: testBlocks - 6}}, z.FreeSpace().Extents())
	requireRebuildMatches(t, z)

	_, _, err = z.AllocExtent(4)
	require.NoError(t, err)
	require.Equal(t, []extent.Extent{{Start: 0, Len: 1}, {Start: 10, Len: testBlocks - 10}}, z.FreeSpace().Extents())
	requireRebuildMatches(t, z)

	_, _, err = z.AllocExtent(1)
	require.NoError(t, err)
	require.Equal(t, []extent.Extent{{Start: 10, Len: testBlocks - 10}}, z.FreeSpace().Extents())
	requireRebuildMatches(t, z)
}

func TestFreeSpaceMapNoFit(t *testing.T) {
	z := newTestZone(t)
	_, _, err := z.AllocExtent(testBlocks + 1)
	require.True(t, errors.Is(err, ErrNoFit))

	_, _, err = z.AllocExtent(testBlocks)
	require.NoError(t, err)
	require.False(t, z.HasFreeSpace(1))
}

func TestInitAbsorbsOrphanRuns(t *testing.T) {
	z := newTestZone(t)
	nv := z.NVZone()

	// An allocation interrupted before its first tag was written.
	hdrs := nv.Heap().Memory().Bytes(nv.Heap().Geometry().HeadersOffset, testBlocks*format.BlockHeaderSize)
	for i := 4; i < 7; i++ {
		hdrs[i*format.BlockHeaderSize] = format.BlockExtentRun
	}
	_, _, err := z.AllocExtent(2)
	require.NoError(t, err)

	require.NoError(t, z.Init())
	require.Equal(t, []extent.Extent{{Start: 2, Len: testBlocks - 2}}, z.FreeSpace().Extents())
}

func TestInitRejectsCorruptExtent(t *testing.T) {
	z := newTestZone(t)
	nv := z.NVZone()
	hdrs := nv.Heap().Memory().Bytes(nv.Heap().Geometry().HeadersOffset, testBlocks*format.BlockHeaderSize)
	hdrs[3*format.BlockHeaderSize] = format.BlockExtentFirst

	require.True(t, errors.Is(z.Init(), ErrCorrupt))
}

// =============================================================================
// Zone
// =============================================================================

func TestZoneEnumerate(t *testing.T) {
	z := newTestZone(t)
	for _, n := range []uint64{2, 1, 5} {
		_, _, err := z.AllocExtent(n)
		require.NoError(t, err)
	}

	var got []extent.Extent
	require.NoError(t, z.Enumerate(func(zz *Zone, ex extent.Extent) {
		assert.Same(t, z, zz)
		got = append(got, ex)
	}))
	require.Equal(t, []extent.Extent{{Start: 0, Len: 2}, {Start: 2, Len: 1}, {Start: 3, Len: 5}}, got)
}

func TestZoneFreeBadPointer(t *testing.T) {
	z := newTestZone(t)
	_, p, err := z.AllocExtent(2)
	require.NoError(t, err)

	_, err = z.FreeExtent(p.Add(8))
	require.True(t, errors.Is(err, ErrBadPointer))
	_, err = z.FreeExtent(z.NVZone().Block(1))
	require.True(t, errors.Is(err, ErrBadPointer))
	_, err = z.FreeExtent(layout.Ptr(10))
	require.True(t, errors.Is(err, ErrBadPointer))

	n, err := z.FreeExtent(p)
	require.NoError(t, err)
	require.Equal(t, uint64(2), n)
	_, err = z.FreeExtent(p)
	require.True(t, errors.Is(err, ErrBadPointer))
}

// =============================================================================
// Heap
// =============================================================================

func TestHeapExhaustion(t *testing.T) {
	h := NewHeap(newTestLayout(t, 2), Options{Generation: 2})

	z0, err := h.AcquireNewZone(1, NullEnumerate)
	require.NoError(t, err)
	z1, err := h.AcquireNewZone(1, NullEnumerate)
	require.NoError(t, err)
	require.NotEqual(t, z0.ID(), z1.ID())

	_, err = h.AcquireNewZone(1, NullEnumerate)
	require.True(t, errors.Is(err, ErrOutOfMemory))

	h.ReleaseZone(z0, true)
	z2, err := h.AcquireNewZone(1, NullEnumerate)
	require.NoError(t, err)
	require.Equal(t, z0.ID(), z2.ID())

	_, err = h.AcquireNewZone(1, NullEnumerate)
	require.True(t, errors.Is(err, ErrOutOfMemory))
}

func TestHeapFastPath(t *testing.T) {
	h := NewHeap(newTestLayout(t, 1), Options{Generation: 2})

	z, err := h.AcquireZone(false, 0, 0, NullEnumerate)
	require.NoError(t, err)
	require.Equal(t, layout.Generation(2), LeaseOf(z.NVZone()).Status())

	again, err := h.AcquireZone(false, 0, 0, NullEnumerate)
	require.NoError(t, err)
	require.Same(t, z, again)

	_, err = h.AcquireZone(false, 0, testBlocks+1, NullEnumerate)
	require.True(t, errors.Is(err, ErrUnavailable))

	// A zone already owned is not "new".
	_, err = h.AcquireZone(true, 0, 1, NullEnumerate)
	require.True(t, errors.Is(err, ErrUnavailable))
}

func TestHeapReleaseWhenTooSmall(t *testing.T) {
	h := NewHeap(newTestLayout(t, 1), Options{Generation: 2})

	_, err := h.AcquireZone(true, 0, testBlocks+1, NullEnumerate)
	require.True(t, errors.Is(err, ErrUnavailable))
	require.Equal(t, layout.Unleased, LeaseOf(h.Layout().Zone(0)).Status())
	_, ok := h.Zone(0)
	require.False(t, ok)
}

func TestHeapInterleaveGroup(t *testing.T) {
	lh := newTestLayout(t, 2)
	require.NoError(t, lh.Zone(0).SetInterleaveGroup(1))

	h0 := NewHeap(lh, Options{Generation: 2, Group: 0})
	h1 := NewHeap(lh, Options{Generation: 2, Group: 1})

	_, err := h0.AcquireZone(true, 0, 1, NullEnumerate)
	require.True(t, errors.Is(err, ErrUnavailable))

	z, err := h1.AcquireNewZone(1, NullEnumerate)
	require.NoError(t, err)
	require.Equal(t, uint64(0), z.ID())
	_, err = h1.AcquireNewZone(1, NullEnumerate)
	require.True(t, errors.Is(err, ErrOutOfMemory))
}

func TestHeapLeasedByOther(t *testing.T) {
	lh := newTestLayout(t, 1)
	a := NewHeap(lh, Options{Generation: 2})
	b := NewHeap(lh, Options{Generation: 3})

	_, err := a.AcquireZone(false, 0, 0, NullEnumerate)
	require.NoError(t, err)
	_, err = b.AcquireZone(false, 0, 0, NullEnumerate)
	require.True(t, errors.Is(err, ErrUnavailable))

	a.Teardown()
	_, err = b.AcquireZone(false, 0, 0, NullEnumerate)
	require.NoError(t, err)
}

func TestHeapEnumerateOnAcquire(t *testing.T) {
	lh := newTestLayout(t, 1)
	a := NewHeap(lh, Options{Generation: 2})
	z, err := a.AcquireNewZone(1, NullEnumerate)
	require.NoError(t, err)
	_, _, err = z.AllocExtent(3)
	require.NoError(t, err)
	_, _, err = z.AllocExtent(1)
	require.NoError(t, err)
	a.Teardown()

	b := NewHeap(lh, Options{Generation: 3})
	var seen []extent.Extent
	_, err = b.AcquireNewZone(1, func(_ *Zone, ex extent.Extent) { seen = append(seen, ex) })
	require.NoError(t, err)
	require.Equal(t, []extent.Extent{{Start: 0, Len: 3}, {Start: 3, Len: 1}}, seen)
}

func TestLeaseMutualExclusionAcrossMappings(t *testing.T) {
	paths := []string{filepath.Join(t.TempDir(), "heap")}
	require.NoError(t, region.Create(paths, 2*testMetazoneSize, testMetazoneSize))

	ra, err := region.NewSpace().Map(paths, region.Options{NoSync: true})
	require.NoError(t, err)
	defer ra.Close()
	la, err := layout.Make(ra, 2*testMetazoneSize, testMetazoneSize)
	require.NoError(t, err)

	rb, err := region.NewSpace().Map(paths, region.Options{NoSync: true})
	require.NoError(t, err)
	defer rb.Close()
	lb, err := layout.Load(rb)
	require.NoError(t, err)

	for round := 0; round < 20; round++ {
		ga, err := la.IncrGeneration()
		require.NoError(t, err)
		gb, err := lb.IncrGeneration()
		require.NoError(t, err)
		heaps := []*Heap{NewHeap(la, Options{Generation: ga}), NewHeap(lb, Options{Generation: gb})}

		var wins atomic.Int32
		var wg sync.WaitGroup
		for _, h := range heaps {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := h.AcquireZone(true, 1, 1, NullEnumerate); err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		require.Equal(t, int32(1), wins.Load(), "round %d", round)

		for _, h := range heaps {
			h.Teardown()
		}
	}
}
