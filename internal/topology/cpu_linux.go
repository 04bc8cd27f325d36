//go:build linux

package topology

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// currentCPU returns the lowest CPU in the calling thread's affinity mask.
func currentCPU() (int, bool) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return 0, false
	}
	for cpu := 0; cpu < int(unsafe.Sizeof(set))*8; cpu++ {
		if set.IsSet(cpu) {
			return cpu, true
		}
	}
	return 0, false
}
