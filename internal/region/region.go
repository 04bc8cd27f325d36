// Package region maps the partition files backing a heap and exposes the
// result as one flat, byte-addressable window.
//
// A region is one or more equally sized files laid end to end. Every
// partition is mapped independently with MAP_SHARED, so two processes (or two
// regions in one process) may see the same bytes at different virtual
// addresses. Callers therefore never hold raw addresses: they exchange heap
// offsets and translate them with Bytes at the point of use.
package region

import (
	"os"

	"github.com/cockroachdb/errors"

	"github.com/joshuapare/globalheap/internal/format"
)

// Options configures how a region is mapped.
type Options struct {
	// NoSync turns Persist and Sync into no-ops. Use it for scratch heaps
	// whose contents need not survive a crash.
	NoSync bool
}

type partition struct {
	path string
	file *os.File
	data []byte
}

// Region is a mapped heap image.
type Region struct {
	space    *Space
	key      string
	parts    []partition
	partSize uint64
	size     uint64
	pageSize uint64
	opts     Options
}

// Size returns the total mapped size in bytes.
func (r *Region) Size() uint64 { return r.size }

// Paths returns the partition file paths in heap order.
func (r *Region) Paths() []string {
	paths := make([]string, len(r.parts))
	for i, p := range r.parts {
		paths[i] = p.path
	}
	return paths
}

// Bytes returns the mapped bytes [off, off+n), or nil when the range does not
// lie within a single partition. The heap layout never places a structure
// across one.
func (r *Region) Bytes(off, n uint64) []byte {
	p, local, err := r.locate(off, n)
	if err != nil {
		return nil
	}
	return p.data[local : local+n : local+n]
}

// Persist flushes [off, off+n) to the backing files. The start is rounded
// down to a page boundary as msync requires.
func (r *Region) Persist(off, n uint64) error {
	if r.opts.NoSync || n == 0 {
		return nil
	}
	p, local, err := r.locate(off, n)
	if err != nil {
		return err
	}
	start := format.AlignDown(local, r.pageSize)
	if err := msync(p.data[start : local+n]); err != nil {
		return errors.Wrapf(err, "region: msync %s", p.path)
	}
	return nil
}

// Sync flushes every partition's file data to stable storage.
func (r *Region) Sync() error {
	if r.opts.NoSync {
		return nil
	}
	for _, p := range r.parts {
		if p.file == nil {
			continue
		}
		if err := fdatasync(p.file); err != nil {
			return errors.Wrapf(err, "region: sync %s", p.path)
		}
	}
	return nil
}

// Close unmaps the region and releases its registration in the owning space.
func (r *Region) Close() error {
	if r.space == nil {
		return r.unmap()
	}
	return r.space.Unmap(r)
}

// locate returns the partition holding [off, off+n) and the range start
// within it.
func (r *Region) locate(off, n uint64) (*partition, uint64, error) {
	idx := off / r.partSize
	if idx >= uint64(len(r.parts)) {
		return nil, 0, errors.Wrapf(ErrOutOfRange, "offset %d beyond region of %d bytes", off, r.size)
	}
	p := &r.parts[idx]
	local := off - idx*r.partSize
	if size := uint64(len(p.data)); local > size || n > size-local {
		return nil, 0, errors.Wrapf(ErrOutOfRange, "[%d, +%d) crosses the end of partition %s", off, n, p.path)
	}
	return p, local, nil
}

func (r *Region) unmap() error {
	var firstErr error
	for i := range r.parts {
		p := &r.parts[i]
		if p.data != nil {
			if err := munmap(p.data); err != nil && firstErr == nil {
				firstErr = errors.Wrapf(err, "region: munmap %s", p.path)
			}
			p.data = nil
		}
		if p.file != nil {
			if err := p.file.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
			p.file = nil
		}
	}
	return firstErr
}
