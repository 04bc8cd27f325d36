package region

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
)

// Space tracks the regions mapped by one process context. A heap that is
// already mapped in a space cannot be mapped there again; use a second space
// to open an independent view of the same files, as a second process would.
type Space struct {
	mu      sync.Mutex
	regions *swiss.Map[string, *Region]
}

// NewSpace returns an empty space.
func NewSpace() *Space {
	return &Space{regions: swiss.NewMap[string, *Region](4)}
}

// Map maps the partition files in order and returns the resulting region.
func (s *Space) Map(paths []string, opts Options) (*Region, error) {
	if len(paths) == 0 {
		return nil, errors.Wrap(ErrNotFound, "no partition paths")
	}
	key, err := filepath.Abs(paths[0])
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.regions.Has(key) {
		return nil, errors.Wrapf(ErrDuplicateMapping, "%s", key)
	}

	r := &Region{
		space:    s,
		key:      key,
		parts:    make([]partition, 0, len(paths)),
		pageSize: uint64(os.Getpagesize()),
		opts:     opts,
	}
	for _, p := range paths {
		part, err := mapFile(p)
		if err != nil {
			_ = r.unmap()
			return nil, err
		}
		size := uint64(len(part.data))
		if r.partSize == 0 {
			r.partSize = size
		}
		r.parts = append(r.parts, part)
		if size != r.partSize {
			_ = r.unmap()
			return nil, errors.Wrapf(ErrPartitionSize, "%s is %d bytes, expected %d", p, size, r.partSize)
		}
		r.size += size
	}

	s.regions.Put(key, r)
	return r, nil
}

// Unmap unmaps r and forgets it.
func (s *Space) Unmap(r *Region) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.regions.Get(r.key)
	if !ok || cur != r {
		return errors.Wrapf(ErrUnknownMapping, "%s", r.key)
	}
	s.regions.Delete(r.key)
	return r.unmap()
}

// Len returns the number of regions currently mapped.
func (s *Space) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regions.Count()
}
