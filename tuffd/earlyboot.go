// This file is part of tuff
// SPDX-License-Identifier: GPL-3.0-only

package tuffd

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/tuff-os/tuff/tufflog"
)

// pseudoMount describes one early-boot pseudo-filesystem mount.
type pseudoMount struct {
	target string
	fstype string
	flags  uintptr
}

// earlyMounts is the set of mounts performed when the daemon runs as PID 1,
// in the order the boot driver protocol specifies.
var earlyMounts = []pseudoMount{
	{"/proc", "proc", unix.MS_NOSUID | unix.MS_NOEXEC | unix.MS_NODEV},
	{"/sys", "sysfs", unix.MS_NOSUID | unix.MS_NOEXEC | unix.MS_NODEV},
	{"/dev", "devtmpfs", unix.MS_NOSUID},
	{"/dev/pts", "devpts", unix.MS_NOSUID | unix.MS_NOEXEC},
}

// IsPID1 reports whether this process is running as PID 1 (the init role).
func IsPID1() bool {
	return os.Getpid() == 1
}

// EarlyBoot performs the PID-1 pseudo-filesystem mounts. Any individual
// mount failure (other than EBUSY, which means already mounted and is
// treated as success) is logged and early boot continues; it never aborts
// the daemon.
func EarlyBoot(logger *tufflog.Logger) {
	for _, m := range earlyMounts {
		if err := os.MkdirAll(m.target, 0o755); err != nil {
			logger.IoError("mkdir "+m.target, err)
			continue
		}
		if err := unix.Mount(m.fstype, m.target, m.fstype, m.flags, ""); err != nil {
			if err == unix.EBUSY {
				continue
			}
			logger.MountFailure(m.target, err)
			continue
		}
		logger.MountSuccess(m.target)
	}
}
