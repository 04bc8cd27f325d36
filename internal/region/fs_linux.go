//go:build linux

package region

import (
	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// pseudoFilesystems cannot hold regular files that are mapped and flushed.
var pseudoFilesystems = map[uint32]string{
	uint32(unix.PROC_SUPER_MAGIC):    "proc",
	uint32(unix.SYSFS_MAGIC):         "sysfs",
	uint32(unix.DEVPTS_SUPER_MAGIC):  "devpts",
	uint32(unix.CGROUP_SUPER_MAGIC):  "cgroup",
	uint32(unix.CGROUP2_SUPER_MAGIC): "cgroup2",
	uint32(unix.DEBUGFS_MAGIC):       "debugfs",
	uint32(unix.SECURITYFS_MAGIC):    "securityfs",
	uint32(unix.BPF_FS_MAGIC):        "bpf",
}

func checkFilesystem(dir string) error {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return errors.Wrapf(err, "region: statfs %s", dir)
	}
	if name, ok := pseudoFilesystems[uint32(st.Type)]; ok {
		return errors.Wrapf(ErrUnknownFSType, "%s is on %s", dir, name)
	}
	return nil
}
