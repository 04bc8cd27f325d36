//go:build unix && !linux

package region

func checkFilesystem(dir string) error { return nil }
