package globalheap

import (
	"os"

	"github.com/cockroachdb/errors"

	"github.com/joshuapare/globalheap/heap/layout"
	"github.com/joshuapare/globalheap/internal/logger"
	"github.com/joshuapare/globalheap/internal/region"
)

func removeFile(path string) error { return os.Remove(path) }

// withImage maps the heap at path in a private space and runs fn over it.
// Administrative operations therefore never collide with an instance open
// in this process.
func withImage(path string, fn func(lh *layout.Heap) error) error {
	paths, err := region.Discover(path)
	if err != nil {
		return err
	}
	r, err := region.NewSpace().Map(paths, region.Options{})
	if err != nil {
		return err
	}
	lh, err := layout.Load(r)
	if err != nil {
		_ = r.Close()
		return err
	}
	if err := fn(lh); err != nil {
		_ = r.Close()
		return err
	}
	if err := r.Sync(); err != nil {
		_ = r.Close()
		return err
	}
	return r.Close()
}

// Remove deletes every file of the heap at path.
func Remove(path string) error {
	if err := region.Remove(path); err != nil {
		return err
	}
	logger.Info("heap removed", "path", path)
	return nil
}

// Format empties the heap at path: every zone is rewritten unleased and
// free, the generation restarts and the root is cleared. Interleave group
// stamps are kept.
func Format(path string) error {
	return withImage(path, func(lh *layout.Heap) error {
		for zid := uint64(0); zid < lh.NumZones(); zid++ {
			if err := lh.FormatMetazone(zid, true); err != nil {
				return err
			}
		}
		logger.Info("heap formatted", "path", path, "zones", lh.NumZones())
		return nil
	})
}

// FormatZones empties the given zones of the heap at path, leaving the heap
// header alone.
func FormatZones(path string, zones []uint64) error {
	return withImage(path, func(lh *layout.Heap) error {
		for _, zid := range zones {
			if err := lh.FormatMetazone(zid, false); err != nil {
				return err
			}
		}
		logger.Info("zones formatted", "path", path, "zones", zones)
		return nil
	})
}

// FormatInstance empties every zone leased by instance id and returns how
// many there were. Use it to reclaim the zones of an instance that exited
// without Close.
func FormatInstance(path string, id InstanceID) (int, error) {
	if id == layout.Unleased {
		return 0, errors.Wrapf(ErrInvalidInstance, "instance %d", id)
	}
	n := 0
	err := withImage(path, func(lh *layout.Heap) error {
		for zid := uint64(0); zid < lh.NumZones(); zid++ {
			if lh.Zone(zid).LeaseStatus() != id {
				continue
			}
			if err := lh.FormatMetazone(zid, false); err != nil {
				return err
			}
			n++
		}
		logger.Info("instance zones formatted", "path", path, "instance", uint64(id), "zones", n)
		return nil
	})
	return n, err
}
