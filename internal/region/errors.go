package region

import "github.com/cockroachdb/errors"

var (
	// ErrDuplicateMapping indicates the region is already mapped in this space.
	ErrDuplicateMapping = errors.New("region: region already mapped")
	// ErrUnknownMapping indicates an unmap of a region this space never mapped.
	ErrUnknownMapping = errors.New("region: unknown mapping")
	// ErrNoDirectory indicates the directory that should hold the heap files is missing.
	ErrNoDirectory = errors.New("region: no such directory")
	// ErrUnknownFSType indicates a filesystem that cannot back a shared mapping.
	ErrUnknownFSType = errors.New("region: unsupported filesystem type")
	// ErrNotFound indicates no partition file exists for the heap path.
	ErrNotFound = errors.New("region: heap files not found")
	// ErrExists indicates a partition file already exists at create time.
	ErrExists = errors.New("region: heap file already exists")
	// ErrPartitionSize indicates partitions of unequal or unusable size.
	ErrPartitionSize = errors.New("region: bad partition size")
	// ErrOutOfRange indicates an offset outside the mapped region.
	ErrOutOfRange = errors.New("region: offset out of range")
	// ErrUnsupported indicates the platform cannot map heap files.
	ErrUnsupported = errors.New("region: memory mapping unsupported on this platform")
)
