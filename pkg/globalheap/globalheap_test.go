package globalheap

import (
	"bytes"
	"encoding/json"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/joshuapare/globalheap/internal/format"
	"github.com/joshuapare/globalheap/internal/topology/mocks"
)

const (
	testMetazoneSize = 8 << 20
	testZones        = 4
)

func testOptions() *Options {
	return &Options{NoSync: true, Space: NewSpace()}
}

func createTestHeap(t *testing.T, opts *Options) (*GlobalHeap, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "globalheap0")
	gh, err := Create(path, CreateOptions{Size: testZones * testMetazoneSize, MetazoneSize: testMetazoneSize}, opts)
	require.NoError(t, err)
	return gh, path
}

func fill(b []byte, seed byte) {
	for i := range b {
		b[i] = seed + byte(i)
	}
}

func check(t *testing.T, b []byte, seed byte) {
	t.Helper()
	for i := range b {
		if b[i] != seed+byte(i) {
			t.Fatalf("byte %d is %#x, want %#x", i, b[i], seed+byte(i))
		}
	}
}

func TestCreateOpenClose(t *testing.T) {
	opts := testOptions()
	gh, path := createTestHeap(t, opts)
	require.Equal(t, uint64(testZones*testMetazoneSize), gh.Size())
	require.Equal(t, uint64(testZones), gh.NumZones())
	require.Equal(t, InstanceID(2), gh.Instance())
	require.NoError(t, gh.Close())
	require.True(t, errors.Is(gh.Close(), ErrClosed))

	gh, err := Open(path, opts)
	require.NoError(t, err)
	require.Equal(t, InstanceID(3), gh.Instance())
	require.Equal(t, []string{path}, gh.Paths())
	require.NoError(t, gh.Close())
}

func TestCreateValidatesLayout(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name  string
		copts CreateOptions
	}{
		{"metazone not power of two", CreateOptions{Size: 3 * testMetazoneSize, MetazoneSize: 3 << 20}},
		{"size not a multiple", CreateOptions{Size: testMetazoneSize + 4096, MetazoneSize: testMetazoneSize}},
		{"zero size", CreateOptions{MetazoneSize: testMetazoneSize}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "heap")
			_, err := Create(path, tt.copts, testOptions())
			require.True(t, errors.Is(err, ErrInvalidLayout), "got %v", err)
			_, statErr := os.Stat(path)
			require.True(t, os.IsNotExist(statErr))
		})
	}
}

func TestCreateErrors(t *testing.T) {
	opts := testOptions()
	gh, path := createTestHeap(t, opts)
	defer gh.Close()

	_, err := Create(path, CreateOptions{Size: testMetazoneSize, MetazoneSize: testMetazoneSize}, testOptions())
	require.True(t, errors.Is(err, ErrExists))

	_, err = Create(filepath.Join(t.TempDir(), "missing", "heap"),
		CreateOptions{Size: testMetazoneSize, MetazoneSize: testMetazoneSize}, testOptions())
	require.True(t, errors.Is(err, ErrNoDirectory))

	_, err = Open(filepath.Join(t.TempDir(), "nothing"), testOptions())
	require.True(t, errors.Is(err, ErrNotFound))

	_, err = Open(path, opts)
	require.True(t, errors.Is(err, ErrDuplicateMapping))
}

func TestOpenRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage")
	require.NoError(t, os.WriteFile(path, make([]byte, testMetazoneSize), 0o600))
	_, err := Open(path, testOptions())
	require.True(t, errors.Is(err, ErrInvalidLayout), "got %v", err)
}

func TestPreciseInterleaving(t *testing.T) {
	opts := testOptions()
	opts.Topology = StaticTopology{Max: 2}
	gh, _ := createTestHeap(t, opts)
	defer gh.Close()

	r, err := gh.Report(nil)
	require.NoError(t, err)
	require.Len(t, r.Zones, testZones)
	for zid, z := range r.Zones {
		assert.Equal(t, uint8(zid%3), z.Group, "zone %d", zid)
	}
}

func TestAllocFree(t *testing.T) {
	gh, _ := createTestHeap(t, testOptions())
	defer gh.Close()

	var ptrs []Ptr
	for _, size := range []uint64{1024, 2048, 256 << 10, 512 << 10} {
		p, err := gh.Malloc(size)
		require.NoError(t, err)
		require.False(t, p.IsNil())
		ptrs = append(ptrs, p)
	}
	for _, p := range ptrs {
		require.NoError(t, gh.Free(p))
	}
	require.Error(t, gh.Free(ptrs[0]))
	require.True(t, errors.Is(gh.Free(Ptr(gh.Size())), ErrBadPointer))
}

func TestAllocReload(t *testing.T) {
	opts := testOptions()
	gh, path := createTestHeap(t, opts)

	sizes := []uint64{1024, 2048, 256 << 10}
	ptrs := make([]Ptr, len(sizes))
	for i, size := range sizes {
		p, err := gh.Malloc(size)
		require.NoError(t, err)
		b, err := gh.Bytes(p, size)
		require.NoError(t, err)
		fill(b, byte(i))
		ptrs[i] = p
	}
	require.NoError(t, gh.Close())

	gh, err := Open(path, opts)
	require.NoError(t, err)
	defer gh.Close()

	for i, size := range sizes {
		b, err := gh.Bytes(ptrs[i], size)
		require.NoError(t, err)
		check(t, b, byte(i))
	}
	require.NoError(t, gh.Free(ptrs[0]))
	require.NoError(t, gh.Free(ptrs[2]))
	require.True(t, errors.Is(gh.Free(ptrs[0]), ErrDoubleFree))

	p, err := gh.Malloc(1024)
	require.NoError(t, err)
	require.Equal(t, ptrs[0], p)
}

func TestRootPersistence(t *testing.T) {
	opts := testOptions()
	gh, path := createTestHeap(t, opts)
	require.True(t, gh.Root().IsNil())

	p, err := gh.Malloc(64)
	require.NoError(t, err)
	require.NoError(t, gh.SetRoot(p))
	require.NoError(t, gh.Close())

	gh, err = Open(path, opts)
	require.NoError(t, err)
	defer gh.Close()
	require.Equal(t, p, gh.Root())
}

func TestMallocAttrib(t *testing.T) {
	opts := testOptions()
	opts.Topology = StaticTopology{Max: 1}
	gh, _ := createTestHeap(t, opts)
	defer gh.Close()

	p1, err := gh.MallocAttrib(1024, 1)
	require.NoError(t, err)
	p2, err := gh.MallocAttrib(2048, 0)
	require.NoError(t, err)

	z1, err := gh.layout.ZoneID(p1)
	require.NoError(t, err)
	z2, err := gh.layout.ZoneID(p2)
	require.NoError(t, err)
	require.Equal(t, uint64(1), z1%2)
	require.Equal(t, uint64(0), z2%2)

	require.NoError(t, gh.Free(p1))
	require.NoError(t, gh.Free(p2))

	_, err = gh.MallocAttrib(8, 2)
	require.True(t, errors.Is(err, ErrNoGroup))
}

func TestMallocFallsBackAcrossGroups(t *testing.T) {
	ctrl := gomock.NewController(t)
	topo := mocks.NewMockTopology(ctrl)
	topo.EXPECT().MaxInterleaveGroup().Return(uint8(1)).AnyTimes()
	topo.EXPECT().NearestInterleaveGroup().Return(uint8(1)).MinTimes(1)

	path := filepath.Join(t.TempDir(), "heap")
	gh, err := Create(path, CreateOptions{Size: 2 * testMetazoneSize, MetazoneSize: testMetazoneSize},
		&Options{NoSync: true, Space: NewSpace(), Topology: topo})
	require.NoError(t, err)
	defer gh.Close()

	const big = 30 * format.BlockSize
	near, err := gh.Malloc(big)
	require.NoError(t, err)
	zid, err := gh.layout.ZoneID(near)
	require.NoError(t, err)
	require.Equal(t, uint64(1), zid)

	far, err := gh.Malloc(big)
	require.NoError(t, err)
	zid, err = gh.layout.ZoneID(far)
	require.NoError(t, err)
	require.Equal(t, uint64(0), zid)

	_, err = gh.Malloc(big)
	require.True(t, errors.Is(err, ErrOutOfMemory))
}

func TestFreeNotOwned(t *testing.T) {
	owner, path := createTestHeap(t, testOptions())
	defer owner.Close()
	p, err := owner.Malloc(256)
	require.NoError(t, err)

	other, err := Open(path, testOptions())
	require.NoError(t, err)
	defer other.Close()

	require.True(t, errors.Is(other.Free(p), ErrNotOwned))
	require.NoError(t, owner.Free(p))
}

func TestFormatInstance(t *testing.T) {
	dead, path := createTestHeap(t, testOptions())
	_, err := dead.MallocAttrib(3*format.BlockSize, 0)
	require.NoError(t, err)
	_, err = dead.Malloc(100)
	require.NoError(t, err)

	n, err := FormatInstance(path, dead.Instance())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	r, err := ReportPath(path, []uint64{0})
	require.NoError(t, err)
	require.Equal(t, InstanceID(0), r.Zones[0].Owner)
	require.Zero(t, r.Zones[0].Extents)
	require.Equal(t, r.Summary.EffectiveSize, r.Summary.FreeSize)

	_, err = FormatInstance(path, 0)
	require.True(t, errors.Is(err, ErrInvalidInstance))
	require.NoError(t, dead.Close())
}

func TestFormat(t *testing.T) {
	opts := testOptions()
	gh, path := createTestHeap(t, opts)
	p, err := gh.Malloc(4096)
	require.NoError(t, err)
	require.NoError(t, gh.SetRoot(p))
	require.NoError(t, gh.Close())

	require.NoError(t, Format(path))

	gh, err = Open(path, opts)
	require.NoError(t, err)
	defer gh.Close()
	require.Equal(t, InstanceID(2), gh.Instance())
	require.True(t, gh.Root().IsNil())

	r, err := gh.Report(nil)
	require.NoError(t, err)
	require.Zero(t, r.Summary.Extents)
}

func TestFormatZones(t *testing.T) {
	opts := testOptions()
	gh, path := createTestHeap(t, opts)
	p, err := gh.Malloc(4096)
	require.NoError(t, err)
	require.NoError(t, gh.SetRoot(p))
	require.NoError(t, gh.Close())

	require.NoError(t, FormatZones(path, []uint64{0}))
	require.Error(t, FormatZones(path, []uint64{testZones}))

	r, err := ReportPath(path, nil)
	require.NoError(t, err)
	require.Zero(t, r.Summary.Extents)
	require.Equal(t, p, r.Root)
}

func TestRealloc(t *testing.T) {
	gh, _ := createTestHeap(t, testOptions())
	defer gh.Close()

	p, err := gh.Malloc(100)
	require.NoError(t, err)
	b, err := gh.Bytes(p, 100)
	require.NoError(t, err)
	fill(b, 7)

	grown, err := gh.Realloc(p, 5000)
	require.NoError(t, err)
	n, err := gh.UsableSize(grown)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, uint64(5000))
	b, err = gh.Bytes(grown, 100)
	require.NoError(t, err)
	check(t, b, 7)
	require.True(t, errors.Is(gh.Free(p), ErrDoubleFree))

	big, err := gh.Realloc(grown, 300<<10)
	require.NoError(t, err)
	b, err = gh.Bytes(big, 100)
	require.NoError(t, err)
	check(t, b, 7)

	shrunk, err := gh.Realloc(big, 16)
	require.NoError(t, err)
	b, err = gh.Bytes(shrunk, 16)
	require.NoError(t, err)
	check(t, b, 7)

	fresh, err := gh.Realloc(Nil, 10)
	require.NoError(t, err)
	require.False(t, fresh.IsNil())
}

func TestMallocTooLarge(t *testing.T) {
	gh, _ := createTestHeap(t, testOptions())
	defer gh.Close()

	for _, size := range []uint64{testZones * testMetazoneSize, math.MaxUint64} {
		_, err := gh.Malloc(size)
		require.True(t, errors.Is(err, ErrOutOfMemory), "size %d: %v", size, err)
	}
	p, err := gh.Malloc(8)
	require.NoError(t, err)
	require.NoError(t, gh.Free(p))
}

func TestClosedHeap(t *testing.T) {
	gh, _ := createTestHeap(t, testOptions())
	require.NoError(t, gh.Close())

	_, err := gh.Malloc(8)
	require.True(t, errors.Is(err, ErrClosed))
	require.True(t, errors.Is(gh.Free(Ptr(4096)), ErrClosed))
	_, err = gh.Bytes(0, 8)
	require.True(t, errors.Is(err, ErrClosed))
	require.True(t, errors.Is(gh.SetRoot(Nil), ErrClosed))
	require.True(t, errors.Is(gh.Persist(0, 8), ErrClosed))
	require.Equal(t, Nil, gh.Root())
	_, err = gh.UsableSize(Ptr(4096))
	require.True(t, errors.Is(err, ErrClosed))
	_, err = gh.Report(nil)
	require.True(t, errors.Is(err, ErrClosed))
}

func TestPartitions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap")
	opts := testOptions()
	gh, err := Create(path, CreateOptions{Size: 4 * testMetazoneSize, MetazoneSize: testMetazoneSize, Partitions: 2}, opts)
	require.NoError(t, err)
	require.Equal(t, []string{path + "-0", path + "-1"}, gh.Paths())

	var ptrs []Ptr
	for i := 0; i < 4; i++ {
		p, err := gh.Malloc(30 * format.BlockSize)
		require.NoError(t, err)
		b, err := gh.Bytes(p, 4096)
		require.NoError(t, err)
		fill(b, byte(i))
		ptrs = append(ptrs, p)
	}
	require.NoError(t, gh.Close())

	gh, err = Open(path, opts)
	require.NoError(t, err)
	for i, p := range ptrs {
		b, err := gh.Bytes(p, 4096)
		require.NoError(t, err)
		check(t, b, byte(i))
	}

	// Metazone 1 ends where the first partition does.
	_, err = gh.Bytes(Ptr(2*testMetazoneSize-8), 16)
	require.True(t, errors.Is(err, ErrOutOfRange))
	require.True(t, errors.Is(gh.Persist(Ptr(testMetazoneSize-8), 16), ErrOutOfRange))
	require.NoError(t, gh.Close())

	_, err = Create(path, CreateOptions{Size: 3 * testMetazoneSize, MetazoneSize: testMetazoneSize, Partitions: 2}, opts)
	require.Error(t, err)

	require.NoError(t, Remove(path))
	_, err = os.Stat(path + "-0")
	require.True(t, os.IsNotExist(err))
}

func TestConcurrentPatterns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap")
	gh, err := Create(path, CreateOptions{Size: 16 * testMetazoneSize, MetazoneSize: testMetazoneSize}, testOptions())
	require.NoError(t, err)
	defer gh.Close()

	type alloc struct {
		p    Ptr
		size uint64
		seed byte
	}
	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			th := gh.Thread()
			rng := rand.New(rand.NewPCG(uint64(w), 42))
			var live []alloc
			verify := func(a alloc) error {
				b, err := gh.Bytes(a.p, a.size)
				if err != nil {
					return err
				}
				for i := range b {
					if b[i] != a.seed+byte(i) {
						return errors.Newf("worker %d: %s corrupted at %d", w, a.p, i)
					}
				}
				return nil
			}
			for i := 0; i < 3000; i++ {
				if len(live) > 0 && rng.IntN(3) == 0 {
					j := rng.IntN(len(live))
					if err := verify(live[j]); err != nil {
						errs <- err
						return
					}
					if err := th.Free(live[j].p); err != nil {
						errs <- err
						return
					}
					live = append(live[:j], live[j+1:]...)
					continue
				}
				// Ten size classes per worker keep the slab count well
				// below the block count.
				size := uint64(8<<rng.IntN(10) - rng.IntN(8))
				if rng.IntN(200) == 0 {
					size = 200 << 10
				}
				p, err := th.Malloc(size)
				if err != nil {
					errs <- err
					return
				}
				a := alloc{p: p, size: size, seed: byte(rng.Uint32())}
				b, err := gh.Bytes(p, size)
				if err != nil {
					errs <- err
					return
				}
				fill(b, a.seed)
				live = append(live, a)
			}
			for _, a := range live {
				if err := verify(a); err != nil {
					errs <- err
					return
				}
				if err := gh.Free(a.p); err != nil {
					errs <- err
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestReportOutput(t *testing.T) {
	gh, path := createTestHeap(t, testOptions())
	th := gh.Thread()
	for _, size := range []uint64{64, 64, 1024, 300 << 10} {
		_, err := th.Malloc(size)
		require.NoError(t, err)
	}

	r, err := gh.Report(nil)
	require.NoError(t, err)
	require.Equal(t, 3, r.Summary.Extents)
	require.Equal(t, 2, r.Summary.Slabs)
	require.Equal(t, uint64(testZones*testMetazoneSize), r.Summary.Size)
	require.Equal(t, gh.Instance(), r.Zones[0].Owner)
	require.NoError(t, gh.Close())

	r, err = ReportPath(path, nil)
	require.NoError(t, err)

	var js bytes.Buffer
	require.NoError(t, r.WriteJSON(&js))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	require.Contains(t, decoded, "Summary")
	require.Len(t, decoded["Zones"], testZones)

	var text bytes.Buffer
	require.NoError(t, r.WriteText(&text, true))
	out := text.String()
	require.Contains(t, out, "ZONE: 3")
	require.Contains(t, out, "SUMMARY")
	require.Contains(t, out, "Per-block stats:")
	require.Contains(t, out, "33,554,432")
}
