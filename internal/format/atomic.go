package format

import (
	"sync/atomic"
	"unsafe"
)

// Word returns the 8-byte word at b[off:off+8] as a *uint64 suitable for the
// sync/atomic functions. The mapping base is page aligned, so every field the
// layout places on an 8-byte boundary is naturally aligned in memory.
//
// Atomic words are shared across processes through the mapping; they are read
// and written in host byte order, which matches the little-endian encoding on
// every platform the heap supports.
func Word(b []byte, off int) *uint64 {
	_ = b[off+7]
	return (*uint64)(unsafe.Pointer(&b[off]))
}

// LoadWord atomically loads the word at off.
func LoadWord(b []byte, off int) uint64 {
	return atomic.LoadUint64(Word(b, off))
}

// StoreWord atomically stores v at off.
func StoreWord(b []byte, off int, v uint64) {
	atomic.StoreUint64(Word(b, off), v)
}

// CompareAndSwapWord atomically replaces oldV with newV at off.
func CompareAndSwapWord(b []byte, off int, oldV, newV uint64) bool {
	return atomic.CompareAndSwapUint64(Word(b, off), oldV, newV)
}

// AddWord atomically adds delta to the word at off and returns the new value.
func AddWord(b []byte, off int, delta uint64) uint64 {
	return atomic.AddUint64(Word(b, off), delta)
}
