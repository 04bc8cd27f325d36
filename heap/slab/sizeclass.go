package slab

import (
	"sort"

	"github.com/joshuapare/globalheap/internal/format"
)

// LargeThreshold is the largest request served from a slab. Bigger requests
// are allocated as whole extents.
const LargeThreshold = format.SlabSize / 2

// classRange contributes the sizes Min, Min+Step, ... below Max.
type classRange struct {
	Min  uint64
	Max  uint64
	Step uint64
}

// classRanges defines the size classes. Ranges may overlap; a size that
// would not increase the table is skipped.
var classRanges = []classRange{
	{Min: 8, Max: 512, Step: 8},
	{Min: 512, Max: 1024, Step: 64},
	{Min: 1024, Max: 8192, Step: 512},
	{Min: 8192, Max: 16384, Step: 1024},
	{Min: 16384, Max: 32768, Step: 2048},
	{Min: 16384, Max: 262144, Step: 16384},
}

var (
	sizeTable    = buildSizeTable(classRanges)
	slabGeometry = buildSlabGeometry(sizeTable)
)

func buildSizeTable(ranges []classRange) []uint64 {
	table := make([]uint64, 0, 128)
	for _, r := range ranges {
		for size := r.Min; size < r.Max; size += r.Step {
			if len(table) == 0 || size > table[len(table)-1] {
				table = append(table, size)
			}
		}
	}
	return table
}

func buildSlabGeometry(sizes []uint64) []format.SlabGeometry {
	geo := make([]format.SlabGeometry, len(sizes))
	for i, size := range sizes {
		geo[i] = format.ComputeSlabGeometry(size)
	}
	return geo
}

// NumClasses returns the number of size classes.
func NumClasses() int { return len(sizeTable) }

// SizeClass returns the smallest class whose block size is at least size,
// or NumClasses() when size exceeds every class.
func SizeClass(size uint64) int {
	return sort.Search(len(sizeTable), func(i int) bool { return sizeTable[i] >= size })
}

// ClassSize returns the block size of class.
func ClassSize(class int) uint64 { return sizeTable[class] }

// Geometry returns the slab layout of class.
func Geometry(class int) format.SlabGeometry { return slabGeometry[class] }
