// Package format describes the on-media layout of a global heap image: the
// replicated heap header at the start of every metazone, the zone header and
// block-header array that follow it, and the variable-size slab header carved
// out of a slab extent. Everything here is offset arithmetic over a mapped
// byte slice; higher-level packages own the semantics.
package format

const (
	// CacheLineSize is the unit every persistent structure is padded to.
	CacheLineSize = 64

	// BlockLog2Size and BlockSize describe the fixed 256 KiB block granule.
	BlockLog2Size = 18
	BlockSize     = 1 << BlockLog2Size
)

// Heap header (1024 bytes), replicated at offset 0 of every metazone.
//
//	0x000  heap_size          u64
//	0x008  metazone_log2size  u64
//	0x010  reserved[48]
//	0x040  generation         u64   (lease superblock, own cache line)
//	0x080  root               u64   (heap offset, 0 = nil)
//	0x088  checksum           u64
//	0x090  reserved[880]
const (
	HeapHeaderSize       = 1024
	HeapSizeOffset       = 0x000
	HeapLog2SizeOffset   = 0x008
	HeapGenerationOffset = 0x040
	HeapRootOffset       = 0x080
	HeapChecksumOffset   = 0x088
)

// Zone header (128 bytes) and zone descriptor, relative to the zone base
// (metazone base + HeapHeaderSize).
//
//	0x00  magic              u32
//	0x04  metazone_log2size  u32
//	0x08  zone_size          u64
//	0x10  blocksize          u64
//	0x18  blocks_per_zone    u64
//	0x20  volatile zone slot u64   (always zero on media)
//	0x28  ig                 u8
//	0x29  reserved[23]
//	0x40  lease              u64   (own cache line)
//	0x80  block_headers      u64   (heap offset)
//	0x88  blocks             u64   (heap offset)
//	0x90  reserved[56]
//	0xC8  payload: block headers, then blocks on a cache-line boundary
const (
	ZoneHeaderSize            = 128
	ZoneMagicOffset           = 0x00
	ZoneLog2SizeOffset        = 0x04
	ZoneSizeOffset            = 0x08
	ZoneBlockSizeOffset       = 0x10
	ZoneBlocksPerZoneOffset   = 0x18
	ZoneVolatileSlotOffset    = 0x20
	ZoneInterleaveOffset      = 0x28
	ZoneLeaseOffset           = 0x40
	ZoneBlockHeadersPtrOffset = 0x80
	ZoneBlocksPtrOffset       = 0x88
	ZonePayloadOffset         = 0xC8

	// ZoneDescriptorSize is the footprint reserved for the descriptor when
	// sizing the block arrays; it is the payload offset rounded to a cache line.
	ZoneDescriptorSize = 256

	// ZoneMagic marks a formatted zone ("ZONE").
	ZoneMagic uint32 = 0x5A4F4E45
)

// Block header (8 bytes), one per block, stored contiguously after the zone
// descriptor.
//
//	0x00  primary_type    u8
//	0x01  secondary_type  u8
//	0x02  flags           u16
//	0x04  size            u32  (extent length in blocks, valid on ExtentFirst)
const (
	BlockHeaderSize      = 8
	BlockPrimaryOffset   = 0x00
	BlockSecondaryOffset = 0x01
	BlockFlagsOffset     = 0x02
	BlockSizeFieldOffset = 0x04
)

// Primary block types.
const (
	BlockFree        uint8 = 0
	BlockAlloc       uint8 = 1
	BlockExtentFirst uint8 = 2
	BlockExtentRun   uint8 = 3
)

// Secondary (extent) types, meaningful on an ExtentFirst header.
const (
	ExtentNone uint8 = 0
	ExtentSlab uint8 = 1
)

// Slab header, at offset 0 of a slab extent.
//
//	0x00  header_size  u32  (whole header, cache-line aligned)
//	0x04  sizeclass    u16
//	0x08  nblocks      u32
//	0x10  volatile slab slot u64 (always zero on media)
//	0x18  bitmap       ceil(max_nblocks/8) bytes, bit i = block i allocated
const (
	SlabHeaderSizeOffset = 0x00
	SlabSizeClassOffset  = 0x04
	SlabNumBlocksOffset  = 0x08
	SlabVolatileOffset   = 0x10
	SlabBitmapOffset     = 0x18

	// SlabFixedHeaderSize is the size of the fixed part preceding the bitmap.
	SlabFixedHeaderSize = SlabBitmapOffset

	// SlabSize is the extent size every slab occupies.
	SlabSize = BlockSize
)
