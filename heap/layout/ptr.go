package layout

import "strconv"

// Ptr is a heap byte offset. Offsets are the only pointers stored on media or
// exchanged between processes, since every process maps the heap at its own
// base address.
type Ptr uint64

// Nil is the null heap pointer. Offset 0 is the first heap header and can
// never be the start of an allocation.
const Nil Ptr = 0

// IsNil reports whether p is Nil.
func (p Ptr) IsNil() bool { return p == Nil }

// Add returns p advanced by n bytes.
func (p Ptr) Add(n uint64) Ptr { return p + Ptr(n) }

func (p Ptr) String() string { return "0x" + strconv.FormatUint(uint64(p), 16) }

// Generation identifies one open of the heap. Zero means "no owner".
type Generation uint64

// Unleased is the lease value of a zone no instance owns.
const Unleased Generation = 0

// Memory is a mapped heap image addressed by byte offset.
type Memory interface {
	Size() uint64
	Bytes(off, n uint64) []byte
	Persist(off, n uint64) error
}
