package format

import "encoding/binary"

// Header fields are read and written in place on the mapped image. Offsets
// are relative to the start of b, which is normally one header window
// returned by the region, and multi-byte fields are little-endian.

func PutU8(b []byte, off int, v uint8) { b[off] = v }

func ReadU8(b []byte, off int) uint8 { return b[off] }

// PutU16 stores a slab size class or similar 16-bit field.
func PutU16(b []byte, off int, v uint16) {
	binary.LittleEndian.PutUint16(b[off:off+2], v)
}

func ReadU16(b []byte, off int) uint16 {
	return binary.LittleEndian.Uint16(b[off : off+2])
}

// PutU32 stores a 32-bit field such as the zone magic or a block count.
func PutU32(b []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(b[off:off+4], v)
}

func ReadU32(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off : off+4])
}

// PutU64 stores a 64-bit field with a plain write. Words that other
// instances race on (generation, lease, root) go through StoreWord instead.
func PutU64(b []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(b[off:off+8], v)
}

func ReadU64(b []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(b[off : off+8])
}
