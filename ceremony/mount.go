// This file is part of tuff
// SPDX-License-Identifier: GPL-3.0-only

package ceremony

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// MountPoint is the ceremony's own scratch mount point. It is never touched
// by the key monitor, which owns /mnt/tuff_key_check.
const MountPoint = "/mnt/usb_tmp"

const keysSubdir = "TUFF_KEYS"

// mounter abstracts the mount/unmount syscalls for testability.
type mounter interface {
	Mount(source, target, fstype string, flags uintptr, data string) error
	Unmount(target string, flags int) error
}

type realMounter struct{}

func (realMounter) Mount(source, target, fstype string, flags uintptr, data string) error {
	return unix.Mount(source, target, fstype, flags, data)
}

func (realMounter) Unmount(target string, flags int) error {
	return unix.Unmount(target, flags)
}

var fsTypes = []string{"vfat", "exfat", "ext4", "ext3", "ext2"}

// writeKeyToDevice mounts device read-write at mountPoint (trying each
// candidate filesystem type), creates TUFF_KEYS/ if missing, writes mk to
// TUFF_KEYS/{hostUUID}.key, reads it back and compares byte-for-byte, syncs
// and unmounts. If the readback fails or does not match, it removes the
// written file before returning; other failures leave the device as is.
func writeKeyToDevice(mount mounter, mountPoint, device, hostUUID string, mk []byte) error {
	mounted := false
	for _, fstype := range fsTypes {
		if err := mount.Mount(device, mountPoint, fstype, 0, ""); err == nil {
			mounted = true
			break
		}
	}
	if !mounted {
		return fmt.Errorf("no supported filesystem matched on %s", device)
	}
	defer func() {
		if err := mount.Unmount(mountPoint, 0); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to unmount %s: %v\n", mountPoint, err)
		}
	}()

	keysDir := filepath.Join(mountPoint, keysSubdir)
	if err := os.MkdirAll(keysDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", keysDir, err)
	}

	keyPath := filepath.Join(keysDir, hostUUID+".key")
	if err := os.WriteFile(keyPath, mk, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", keyPath, err)
	}

	readback, err := os.ReadFile(keyPath)
	if err != nil || !bytes.Equal(readback, mk) {
		os.Remove(keyPath)
		if err != nil {
			return fmt.Errorf("reading back %s: %w", keyPath, err)
		}
		return fmt.Errorf("readback mismatch on %s", keyPath)
	}

	f, err := os.Open(mountPoint)
	if err == nil {
		f.Sync()
		f.Close()
	}

	return nil
}
