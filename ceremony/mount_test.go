// This file is part of tuff
// SPDX-License-Identifier: GPL-3.0-only

package ceremony

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMounter struct {
	okFSType   string
	mountCalls []string
	unmounted  bool
}

func (m *fakeMounter) Mount(source, target, fstype string, flags uintptr, data string) error {
	m.mountCalls = append(m.mountCalls, fstype)
	if fstype == m.okFSType {
		return os.MkdirAll(target, 0o755)
	}
	return assertErr("unsupported fstype")
}

func (m *fakeMounter) Unmount(target string, flags int) error {
	m.unmounted = true
	return nil
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestWriteKeyToDeviceWritesReadableKeyFile(t *testing.T) {
	mountPoint := t.TempDir()
	mnt := &fakeMounter{okFSType: "vfat"}
	mk := []byte("01234567890123456789012345678901")[:32]

	err := writeKeyToDevice(mnt, mountPoint, "/dev/sdb1", "host-uuid", mk)
	require.NoError(t, err)
	assert.True(t, mnt.unmounted)

	data, err := os.ReadFile(filepath.Join(mountPoint, keysSubdir, "host-uuid.key"))
	require.NoError(t, err)
	assert.Equal(t, mk, data)
}

func TestWriteKeyToDeviceFailsWhenNoFSTypeMatches(t *testing.T) {
	mountPoint := t.TempDir()
	mnt := &fakeMounter{okFSType: "none-match"}
	mk := make([]byte, 32)

	err := writeKeyToDevice(mnt, mountPoint, "/dev/sdb1", "host-uuid", mk)
	assert.Error(t, err)
	assert.False(t, mnt.unmounted)
}
