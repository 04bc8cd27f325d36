package globalheap

import (
	"log/slog"

	"github.com/joshuapare/globalheap/heap/layout"
	"github.com/joshuapare/globalheap/internal/region"
	"github.com/joshuapare/globalheap/internal/topology"
)

// Ptr is a heap byte offset. Nil is the null pointer.
type Ptr = layout.Ptr

// Nil is the null heap pointer.
const Nil = layout.Nil

// InstanceID identifies one open instance of a heap.
type InstanceID = layout.Generation

// Topology reports the interleave groups of the machine.
type Topology = topology.Topology

// StaticTopology is a fixed topology.
type StaticTopology = topology.Static

// Space is a mapping context. A heap can be mapped once per space; separate
// spaces behave like separate processes.
type Space = region.Space

// NewSpace returns an empty mapping context.
func NewSpace() *Space { return region.NewSpace() }

var defaultSpace = region.NewSpace()

// DefaultMetazoneSize is used when CreateOptions leaves MetazoneSize unset.
const DefaultMetazoneSize = 8 << 30

// Options controls how a heap is opened.
type Options struct {
	// Logger receives heap events.
	// If nil, the package logger from internal/logger is used.
	Logger *slog.Logger

	// Topology supplies the nearest and highest interleave groups.
	// If nil, every zone belongs to group 0.
	Topology Topology

	// Space is the mapping context the heap is mapped in.
	// If nil, a process-wide space is used.
	Space *Space

	// NoSync skips persistence barriers. Contents then survive a clean
	// Close but not a crash.
	NoSync bool

	// ThreadSlots is the number of thread heaps per interleave group.
	// Default: 32
	ThreadSlots int
}

// CreateOptions sizes a new heap.
type CreateOptions struct {
	// Size is the heap size in bytes, a multiple of MetazoneSize.
	Size uint64

	// MetazoneSize is the power-of-two size of one metazone.
	// Default: DefaultMetazoneSize
	MetazoneSize uint64

	// Partitions splits the heap into this many equal files named
	// <path>-0, <path>-1, ... Each must hold whole metazones.
	// Default: 1 (a single file at path)
	Partitions int
}

func (o *Options) withDefaults() Options {
	var out Options
	if o != nil {
		out = *o
	}
	if out.Topology == nil {
		out.Topology = topology.Default()
	}
	if out.Space == nil {
		out.Space = defaultSpace
	}
	return out
}
