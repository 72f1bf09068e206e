// This file is part of tuff
// SPDX-License-Identifier: GPL-3.0-only

package keymonitor

import (
	"path/filepath"
	"strings"
)

// DiscoveryMode selects how candidate removable devices are enumerated.
type DiscoveryMode int

const (
	// DiscoverSysBlock walks /sys/block and filters by the "device"
	// symlink resolving through a path containing "/usb". This is the
	// primary discovery path.
	DiscoverSysBlock DiscoveryMode = iota
	// DiscoverByID walks /dev/disk/by-id and filters by a "usb-" prefix.
	// This is the alternate path for simpler environments named in the
	// data model.
	DiscoverByID
)

const (
	sysBlockDir = "/sys/block"
	byIDDir     = "/dev/disk/by-id"
	devDir      = "/dev"
)

// enumerateCandidates lists candidate block device paths in listing order,
// using the monitor's configured discovery mode.
func (m *Monitor) enumerateCandidates() ([]string, error) {
	switch m.DiscoveryMode {
	case DiscoverByID:
		return m.enumerateByID()
	default:
		return m.enumerateSysBlock()
	}
}

// enumerateSysBlock reads /sys/block/*; for each block device whose
// "device" symlink resolves to a path containing "/usb", it lists that
// device's partition entries (subdirectory names beginning with the block
// device name but not equal to it) and maps each to /dev/{partition-name}.
func (m *Monitor) enumerateSysBlock() ([]string, error) {
	entries, err := m.fs.ReadDir(sysBlockDir)
	if err != nil {
		// /sys/block not existing (e.g. a container without sysfs) is not
		// fatal: it just means there are no candidates this scan.
		return nil, nil
	}

	var candidates []string
	for _, entry := range entries {
		name := entry.Name()
		devicePath := filepath.Join(sysBlockDir, name, "device")

		isUSB, err := m.isUSBDevice(devicePath)
		if err != nil || !isUSB {
			continue
		}

		parts, err := m.listPartitions(filepath.Join(sysBlockDir, name), name)
		if err != nil {
			continue
		}
		candidates = append(candidates, parts...)
	}
	return candidates, nil
}

func (m *Monitor) isUSBDevice(devicePath string) (bool, error) {
	if _, err := m.fs.Stat(devicePath); err != nil {
		return false, nil
	}
	target, err := m.fs.Readlink(devicePath)
	if err != nil {
		return false, err
	}
	return strings.Contains(target, "/usb"), nil
}

func (m *Monitor) listPartitions(blockPath, base string) ([]string, error) {
	entries, err := m.fs.ReadDir(blockPath)
	if err != nil {
		return nil, err
	}

	var parts []string
	for _, entry := range entries {
		name := entry.Name()
		if name == "device" {
			continue
		}
		if !strings.HasPrefix(name, base) || name == base {
			continue
		}
		parts = append(parts, filepath.Join(devDir, name))
	}
	return parts, nil
}

// enumerateByID reads /dev/disk/by-id for entries with a "usb-" prefix.
func (m *Monitor) enumerateByID() ([]string, error) {
	entries, err := m.fs.ReadDir(byIDDir)
	if err != nil {
		return nil, nil
	}

	var candidates []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "usb-") {
			candidates = append(candidates, filepath.Join(byIDDir, name))
		}
	}
	return candidates, nil
}
