package format

import "github.com/cockroachdb/errors"

// Geometry describes how one metazone is carved into a heap header replica,
// a zone descriptor, the block-header array and the block array. Offsets are
// relative to the metazone base.
type Geometry struct {
	MetazoneSize  uint64
	Log2Size      uint
	ZoneSize      uint64
	NumBlocks     uint64
	HeadersOffset uint64
	BlocksOffset  uint64
}

// ZoneGeometry computes the block layout for a metazone of the given size.
//
// The block array starts on a cache-line boundary after the block headers so
// the first block never shares a line with the last header. The header array
// is sized for the largest block count that would fit without that padding,
// and the block count is then reduced to absorb the padding.
func ZoneGeometry(metazoneSize uint64) (Geometry, error) {
	if err := CheckPow2(metazoneSize, "metazone size"); err != nil {
		return Geometry{}, errors.Mark(err, ErrInvalidLayout)
	}
	if metazoneSize <= HeapHeaderSize+ZoneDescriptorSize {
		return Geometry{}, errors.Wrapf(ErrInvalidLayout, "metazone size %d too small", metazoneSize)
	}

	zoneSize := metazoneSize - HeapHeaderSize
	effective := zoneSize - ZoneDescriptorSize
	maxBlocks := effective / (BlockHeaderSize + BlockSize)
	headersAligned := AlignUp(maxBlocks*BlockHeaderSize, CacheLineSize)
	if headersAligned > effective {
		return Geometry{}, errors.Wrapf(ErrInvalidLayout, "metazone size %d too small", metazoneSize)
	}
	nblocks := (effective - headersAligned) / BlockSize
	if nblocks == 0 {
		return Geometry{}, errors.Wrapf(ErrInvalidLayout,
			"metazone size %d holds no %d-byte block", metazoneSize, BlockSize)
	}

	return Geometry{
		MetazoneSize:  metazoneSize,
		Log2Size:      Log2(metazoneSize),
		ZoneSize:      zoneSize,
		NumBlocks:     nblocks,
		HeadersOffset: HeapHeaderSize + ZonePayloadOffset,
		BlocksOffset:  HeapHeaderSize + ZonePayloadOffset + headersAligned,
	}, nil
}

// ValidateHeap checks that a heap of heapSize bytes can be split into
// metazones of metazoneSize bytes.
func ValidateHeap(heapSize, metazoneSize uint64) error {
	if _, err := ZoneGeometry(metazoneSize); err != nil {
		return err
	}
	if heapSize == 0 || heapSize%metazoneSize != 0 {
		return errors.Wrapf(ErrInvalidLayout,
			"heap size %d is not a multiple of metazone size %d", heapSize, metazoneSize)
	}
	return nil
}

// SlabGeometry describes a slab of SlabSize bytes holding blocks of one size.
type SlabGeometry struct {
	BlockSize  uint64
	MaxBlocks  uint64
	HeaderSize uint64
	NumBlocks  uint64
}

// BitmapSize returns the number of bitmap bytes needed for n bits.
func BitmapSize(n uint64) uint64 {
	return (n + 7) / 8
}

// ComputeSlabGeometry returns the largest block count N such that the fixed
// header, a bitmap of N bits and N blocks fit in a slab, then shrinks N to
// make room for rounding the header up to a cache line.
func ComputeSlabGeometry(blockSize uint64) SlabGeometry {
	maxBlocks := (SlabSize - SlabFixedHeaderSize - 1) * 8 / (1 + 8*blockSize)
	headerSize := AlignUp(SlabFixedHeaderSize+BitmapSize(maxBlocks), CacheLineSize)
	return SlabGeometry{
		BlockSize:  blockSize,
		MaxBlocks:  maxBlocks,
		HeaderSize: headerSize,
		NumBlocks:  (SlabSize - headerSize) / blockSize,
	}
}
