// This file is part of tuff
// SPDX-License-Identifier: GPL-3.0-only

package ceremony

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirEntry struct{ name string }

func (e fakeDirEntry) Name() string               { return e.name }
func (e fakeDirEntry) IsDir() bool                { return false }
func (e fakeDirEntry) Type() os.FileMode          { return 0 }
func (e fakeDirEntry) Info() (os.FileInfo, error) { return fakeFileInfo{e.name}, nil }

type fakeFileInfo struct{ name string }

func (i fakeFileInfo) Name() string       { return i.name }
func (i fakeFileInfo) Size() int64        { return 0 }
func (i fakeFileInfo) Mode() os.FileMode  { return 0 }
func (i fakeFileInfo) ModTime() time.Time { return time.Time{} }
func (i fakeFileInfo) IsDir() bool        { return false }
func (i fakeFileInfo) Sys() interface{}   { return nil }

type fakeFS struct {
	dirs map[string][]os.DirEntry
}

func (f *fakeFS) ReadDir(path string) ([]os.DirEntry, error) {
	entries, ok := f.dirs[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return entries, nil
}

func TestEnumerateCandidatesFiltersToUSBPart1Entries(t *testing.T) {
	fs := &fakeFS{
		dirs: map[string][]os.DirEntry{
			"/dev/disk/by-id": {
				fakeDirEntry{"usb-SanDisk_Ultra_0123456789-0:0"},
				fakeDirEntry{"usb-SanDisk_Ultra_0123456789-0:0-part1"},
				fakeDirEntry{"ata-ST1000DM003-1CH162_Z1D5FRNN"},
				fakeDirEntry{"ata-ST1000DM003-1CH162_Z1D5FRNN-part1"},
			},
		},
	}

	candidates, err := EnumerateCandidates(fs)
	require.NoError(t, err)
	assert.Equal(t, []string{"/dev/disk/by-id/usb-SanDisk_Ultra_0123456789-0:0-part1"}, candidates)
}

func TestEnumerateCandidatesNoByIDDirReturnsEmpty(t *testing.T) {
	fs := &fakeFS{dirs: map[string][]os.DirEntry{}}
	candidates, err := EnumerateCandidates(fs)
	require.NoError(t, err)
	assert.Nil(t, candidates)
}
