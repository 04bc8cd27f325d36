package layout

import (
	"github.com/cockroachdb/errors"

	"github.com/joshuapare/globalheap/internal/format"
)

// BlockHeader is a decoded copy of one block header.
type BlockHeader struct {
	Primary   uint8
	Secondary uint8
	Flags     uint16
	Size      uint32
}

// IsExtentFirst reports whether the block starts an allocated extent.
func (b BlockHeader) IsExtentFirst() bool { return b.Primary == format.BlockExtentFirst }

// NVZone is the persistent descriptor of one zone.
type NVZone struct {
	heap *Heap
	id   uint64
	base uint64 // heap offset of the zone header
}

// ID returns the zone id.
func (z NVZone) ID() uint64 { return z.id }

// Heap returns the heap the zone belongs to.
func (z NVZone) Heap() *Heap { return z.heap }

// HeaderBytes returns the mapped zone descriptor.
func (z NVZone) HeaderBytes() []byte {
	return z.heap.mem.Bytes(z.base, format.ZonePayloadOffset)
}

// PersistHeader flushes n bytes of the zone descriptor at off.
func (z NVZone) PersistHeader(off, n uint64) error {
	return z.heap.mem.Persist(z.base+off, n)
}

// Magic returns the zone magic.
func (z NVZone) Magic() uint32 {
	return format.ReadU32(z.HeaderBytes(), format.ZoneMagicOffset)
}

// NumBlocks returns the number of blocks in the zone.
func (z NVZone) NumBlocks() uint64 {
	return format.ReadU64(z.HeaderBytes(), format.ZoneBlocksPerZoneOffset)
}

// InterleaveGroup returns the zone's interleave group stamp.
func (z NVZone) InterleaveGroup() uint8 {
	return format.ReadU8(z.HeaderBytes(), format.ZoneInterleaveOffset)
}

// SetInterleaveGroup stamps and persists the zone's interleave group.
func (z NVZone) SetInterleaveGroup(ig uint8) error {
	format.PutU8(z.HeaderBytes(), format.ZoneInterleaveOffset, ig)
	return z.PersistHeader(format.ZoneInterleaveOffset, 1)
}

// LeaseStatus returns the generation currently holding the zone lease.
func (z NVZone) LeaseStatus() Generation {
	return Generation(format.LoadWord(z.HeaderBytes(), format.ZoneLeaseOffset))
}

// BlocksBase returns the heap pointer of block 0.
func (z NVZone) BlocksBase() Ptr {
	return Ptr(format.ReadU64(z.HeaderBytes(), format.ZoneBlocksPtrOffset))
}

func (z NVZone) headersBase() uint64 {
	return format.ReadU64(z.HeaderBytes(), format.ZoneBlockHeadersPtrOffset)
}

// Block returns the heap pointer of block idx.
func (z NVZone) Block(idx uint64) Ptr {
	return z.BlocksBase().Add(idx << format.BlockLog2Size)
}

// BlockIndex returns the index of the block containing p and whether p is
// at the start of that block.
func (z NVZone) BlockIndex(p Ptr) (idx uint64, aligned bool, err error) {
	base := z.BlocksBase()
	if p < base {
		return 0, false, errors.Wrapf(ErrOutOfRange, "pointer %s before zone %d blocks", p, z.id)
	}
	off := uint64(p - base)
	idx = off >> format.BlockLog2Size
	if idx >= z.NumBlocks() {
		return 0, false, errors.Wrapf(ErrOutOfRange, "pointer %s past zone %d blocks", p, z.id)
	}
	return idx, off&(format.BlockSize-1) == 0, nil
}

func (z NVZone) headerBytes(idx, n uint64) []byte {
	return z.heap.mem.Bytes(z.headersBase()+idx*format.BlockHeaderSize, n*format.BlockHeaderSize)
}

func (z NVZone) persistHeaders(idx, n uint64) error {
	return z.heap.mem.Persist(z.headersBase()+idx*format.BlockHeaderSize, n*format.BlockHeaderSize)
}

// BlockHeader decodes block header idx.
func (z NVZone) BlockHeader(idx uint64) BlockHeader {
	b := z.headerBytes(idx, 1)
	return BlockHeader{
		Primary:   format.ReadU8(b, format.BlockPrimaryOffset),
		Secondary: format.ReadU8(b, format.BlockSecondaryOffset),
		Flags:     format.ReadU16(b, format.BlockFlagsOffset),
		Size:      format.ReadU32(b, format.BlockSizeFieldOffset),
	}
}

// MarkAlloc tags blocks [start, start+n) as one allocated extent.
func (z NVZone) MarkAlloc(start, n uint64) error {
	if n == 0 || start+n > z.NumBlocks() {
		return errors.Wrapf(ErrOutOfRange, "extent [%d, +%d) in zone %d", start, n, z.id)
	}
	hdrs := z.headerBytes(start, n)
	format.PutU8(hdrs, format.BlockSecondaryOffset, format.ExtentNone)
	format.PutU32(hdrs, format.BlockSizeFieldOffset, uint32(n))
	for i := uint64(1); i < n; i++ {
		format.PutU8(hdrs, int(i*format.BlockHeaderSize)+format.BlockPrimaryOffset, format.BlockExtentRun)
	}
	if err := z.persistHeaders(start, n); err != nil {
		return err
	}

	// Linearization point: the extent exists once this tag is durable.
	format.PutU8(hdrs, format.BlockPrimaryOffset, format.BlockExtentFirst)
	return z.persistHeaders(start, 1)
}

// MarkFree releases the extent starting at block start and returns its
// length in blocks.
func (z NVZone) MarkFree(start uint64) (uint64, error) {
	bh := z.BlockHeader(start)
	n := uint64(bh.Size)
	if !bh.IsExtentFirst() || n == 0 || start+n > z.NumBlocks() {
		return 0, errors.Wrapf(ErrOutOfRange, "block %d of zone %d does not start an extent", start, z.id)
	}
	hdrs := z.headerBytes(start, n)

	// Linearization point: the extent is gone once this tag is durable.
	format.PutU8(hdrs, format.BlockPrimaryOffset, format.BlockFree)
	format.PutU8(hdrs, format.BlockSecondaryOffset, format.ExtentNone)
	if err := z.persistHeaders(start, 1); err != nil {
		return 0, err
	}

	clear(hdrs)
	return n, z.persistHeaders(start, n)
}

// SetExtentType stamps and persists the secondary type of the extent at start.
func (z NVZone) SetExtentType(start uint64, t uint8) error {
	format.PutU8(z.headerBytes(start, 1), format.BlockSecondaryOffset, t)
	return z.persistHeaders(start, 1)
}

// format writes an empty zone descriptor and clears every block header.
func (z NVZone) format() error {
	geo := z.heap.geo
	mzBase := z.base - format.HeapHeaderSize

	hdr := z.HeaderBytes()
	ig := format.ReadU8(hdr, format.ZoneInterleaveOffset)
	clear(hdr)
	format.PutU32(hdr, format.ZoneMagicOffset, format.ZoneMagic)
	format.PutU32(hdr, format.ZoneLog2SizeOffset, uint32(geo.Log2Size))
	format.PutU64(hdr, format.ZoneSizeOffset, geo.ZoneSize)
	format.PutU64(hdr, format.ZoneBlockSizeOffset, format.BlockSize)
	format.PutU64(hdr, format.ZoneBlocksPerZoneOffset, geo.NumBlocks)
	format.PutU8(hdr, format.ZoneInterleaveOffset, ig)
	format.StoreWord(hdr, format.ZoneLeaseOffset, uint64(Unleased))
	format.PutU64(hdr, format.ZoneBlockHeadersPtrOffset, mzBase+geo.HeadersOffset)
	format.PutU64(hdr, format.ZoneBlocksPtrOffset, mzBase+geo.BlocksOffset)
	if err := z.PersistHeader(0, format.ZonePayloadOffset); err != nil {
		return err
	}

	clear(z.headerBytes(0, geo.NumBlocks))
	return z.persistHeaders(0, geo.NumBlocks)
}
