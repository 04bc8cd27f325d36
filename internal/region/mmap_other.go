//go:build !unix

package region

import "os"

func mapFile(path string) (partition, error) {
	return partition{}, ErrUnsupported
}

// Anonymous is unavailable without mmap.
func Anonymous(size uint64) (*Region, error) {
	return nil, ErrUnsupported
}

func munmap(data []byte) error { return nil }

func msync(data []byte) error { return nil }

func fdatasync(f *os.File) error { return f.Sync() }

func checkFilesystem(dir string) error { return nil }
