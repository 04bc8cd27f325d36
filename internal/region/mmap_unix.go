//go:build unix

package region

import (
	"os"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// mapFile opens path read-write and maps all of it MAP_SHARED.
func mapFile(path string) (partition, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return partition{}, errors.Wrapf(err, "region: open %s", path)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return partition{}, err
	}
	size := st.Size()
	if size <= 0 || size > int64(^uint(0)>>1) {
		_ = f.Close()
		return partition{}, errors.Wrapf(ErrPartitionSize, "%s is %d bytes", path, size)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = f.Close()
		return partition{}, errors.Wrapf(err, "region: mmap %s", path)
	}
	return partition{path: path, file: f, data: data}, nil
}

// Anonymous returns a region of size bytes backed by shared anonymous memory
// rather than files. It is not registered in any space and its contents die
// with the process.
func Anonymous(size uint64) (*Region, error) {
	if size == 0 || size > uint64(^uint(0)>>1) {
		return nil, errors.Wrapf(ErrPartitionSize, "anonymous region of %d bytes", size)
	}
	data, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrap(err, "region: mmap anonymous")
	}
	return &Region{
		key:      "anonymous",
		parts:    []partition{{path: "anonymous", data: data}},
		partSize: size,
		size:     size,
		pageSize: uint64(os.Getpagesize()),
		opts:     Options{NoSync: true},
	}, nil
}

func munmap(data []byte) error {
	err := unix.Munmap(data)
	if errors.Is(err, unix.EINVAL) {
		// Treat double-unmap as no-op for callers.
		return nil
	}
	return err
}

func msync(data []byte) error {
	return unix.Msync(data, unix.MS_SYNC)
}
