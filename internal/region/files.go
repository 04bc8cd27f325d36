package region

import (
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cockroachdb/errors"
)

// fileMode matches the owner-only permissions heap files are created with.
const fileMode = 0o600

// PartitionPaths returns the file names a heap at path with n partitions is
// stored in. A single-partition heap lives at path itself; otherwise the
// partitions are path-0, path-1, ...
func PartitionPaths(path string, n int) []string {
	if n <= 1 {
		return []string{path}
	}
	paths := make([]string, n)
	for i := range paths {
		paths[i] = path + "-" + strconv.Itoa(i)
	}
	return paths
}

// Discover returns the partition files of an existing heap at path.
func Discover(path string) ([]string, error) {
	if _, err := os.Stat(path); err == nil {
		return []string{path}, nil
	}
	var paths []string
	for i := 0; ; i++ {
		p := path + "-" + strconv.Itoa(i)
		if _, err := os.Stat(p); err != nil {
			break
		}
		paths = append(paths, p)
	}
	if len(paths) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "%s", path)
	}
	return paths, nil
}

// Create creates the partition files for a new heap of size bytes split into
// len(paths) equal partitions. Files must not already exist. Partition size
// must be a multiple of align so no metazone straddles two files.
func Create(paths []string, size, align uint64) error {
	if len(paths) == 0 {
		return errors.Wrap(ErrPartitionSize, "no partitions")
	}
	partSize := size / uint64(len(paths))
	if partSize == 0 || partSize*uint64(len(paths)) != size || (align != 0 && partSize%align != 0) {
		return errors.Wrapf(ErrPartitionSize,
			"size %d does not split into %d partitions of a multiple of %d", size, len(paths), align)
	}

	for _, p := range paths {
		if err := CheckDirectory(filepath.Dir(p)); err != nil {
			return err
		}
	}

	created := make([]string, 0, len(paths))
	cleanup := func() {
		for _, p := range created {
			_ = os.Remove(p)
		}
	}
	for _, p := range paths {
		f, err := os.OpenFile(p, os.O_RDWR|os.O_CREATE|os.O_EXCL, fileMode)
		if err != nil {
			cleanup()
			if errors.Is(err, fs.ErrExist) {
				return errors.Wrapf(ErrExists, "%s", p)
			}
			return errors.Wrapf(err, "region: create %s", p)
		}
		created = append(created, p)
		if err := f.Truncate(int64(partSize)); err != nil {
			_ = f.Close()
			cleanup()
			return errors.Wrapf(err, "region: size %s", p)
		}
		if err := f.Close(); err != nil {
			cleanup()
			return err
		}
	}
	return nil
}

// Remove deletes every partition file of the heap at path.
func Remove(path string) error {
	paths, err := Discover(path)
	if err != nil {
		return err
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil {
			return errors.Wrapf(err, "region: remove %s", p)
		}
	}
	return nil
}

// CheckDirectory verifies dir exists and sits on a filesystem that can back
// a shared file mapping.
func CheckDirectory(dir string) error {
	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		return errors.Wrapf(ErrNoDirectory, "%s", dir)
	}
	return checkFilesystem(dir)
}
