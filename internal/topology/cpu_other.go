//go:build !linux

package topology

func currentCPU() (int, bool) { return 0, false }
