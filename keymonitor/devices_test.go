// This file is part of tuff
// SPDX-License-Identifier: GPL-3.0-only

package keymonitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnumerateSysBlockFiltersNonUSB(t *testing.T) {
	fs := newFakeFS()
	fs.addDir(sysBlockDir, "sda", "sdb")
	fs.links["/sys/block/sda/device"] = "../../devices/pci0000:00/ata1/host0/target0:0:0/0:0:0:0"
	fs.links["/sys/block/sdb/device"] = "../../devices/pci0000:00/usb1/1-1/1-1:1.0/host1/target1:0:0/0:0:0:0"
	fs.addDir("/sys/block/sda", "device", "sda1")
	fs.addDir("/sys/block/sdb", "device", "sdb1")

	m := newMonitorWithDeps(fs, nil, nil)
	candidates, err := m.enumerateCandidates()
	require.NoError(t, err)
	assert.Equal(t, []string{"/dev/sdb1"}, candidates)
}

func TestEnumerateSysBlockMissingIsNotError(t *testing.T) {
	fs := newFakeFS()
	m := newMonitorWithDeps(fs, nil, nil)
	candidates, err := m.enumerateCandidates()
	require.NoError(t, err)
	assert.Nil(t, candidates)
}

func TestEnumerateByIDFiltersByPrefix(t *testing.T) {
	fs := newFakeFS()
	fs.addDir(byIDDir, "usb-SanDisk_Ultra-0:0-part1", "ata-ST1000DM-part1")

	m := newMonitorWithDeps(fs, nil, nil)
	m.DiscoveryMode = DiscoverByID
	candidates, err := m.enumerateCandidates()
	require.NoError(t, err)
	assert.Equal(t, []string{"/dev/disk/by-id/usb-SanDisk_Ultra-0:0-part1"}, candidates)
}
