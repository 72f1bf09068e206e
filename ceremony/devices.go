// This file is part of tuff
// SPDX-License-Identifier: GPL-3.0-only

package ceremony

import (
	"os"
	"path/filepath"
	"strings"
)

const byIDDir = "/dev/disk/by-id"

// FS abstracts the filesystem reads the ceremony needs to enumerate
// removable candidates, following the same small local FS interface
// pattern used elsewhere in this module.
type FS interface {
	ReadDir(path string) ([]os.DirEntry, error)
}

type realFS struct{}

func (realFS) ReadDir(path string) ([]os.DirEntry, error) { return os.ReadDir(path) }

// EnumerateCandidates lists removable token candidates under
// /dev/disk/by-id, in listing order: entries named "usb-*-part1", the
// stable by-id alias for the first partition of a USB mass storage device.
// Matching on "-part1" (rather than the bare "usb-*" disk entry) guarantees
// a mountable filesystem, the way the device picker this ceremony replaces
// did it.
func EnumerateCandidates(fs FS) ([]string, error) {
	entries, err := fs.ReadDir(byIDDir)
	if err != nil {
		return nil, nil
	}

	var candidates []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "usb-") && strings.HasSuffix(name, "-part1") {
			candidates = append(candidates, filepath.Join(byIDDir, name))
		}
	}
	return candidates, nil
}
