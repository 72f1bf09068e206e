// This file is part of tuff
// SPDX-License-Identifier: GPL-3.0-only

package indexchunk

import (
	"os"

	"github.com/spf13/afero"
	"gopkg.in/check.v1"
)

// aferoFS adapts an afero.Fs to the Store's FS interface, following
// efibootmgr/fs_test.go's MapFS-over-afero pattern.
type aferoFS struct {
	fs afero.Fs
}

func (a aferoFS) MkdirAll(path string, perm os.FileMode) error { return a.fs.MkdirAll(path, perm) }
func (a aferoFS) WriteFile(path string, data []byte, perm os.FileMode) error {
	return afero.WriteFile(a.fs, path, data, perm)
}
func (a aferoFS) ReadFile(path string) ([]byte, error) { return afero.ReadFile(a.fs, path) }
func (a aferoFS) Rename(oldpath, newpath string) error { return a.fs.Rename(oldpath, newpath) }
func (a aferoFS) Stat(path string) (os.FileInfo, error) { return a.fs.Stat(path) }

type storeSuite struct {
	fs    afero.Fs
	store *Store
}

var _ = check.Suite(&storeSuite{})

func (s *storeSuite) SetUpTest(c *check.C) {
	s.fs = afero.NewMemMapFs()
	s.store = newStoreWithFS(aferoFS{s.fs}, "/var/lib/tuff")
}

func (s *storeSuite) TestLoadLatestNoneWhenAbsent(c *check.C) {
	data, err := s.store.LoadLatest()
	c.Assert(err, check.IsNil)
	c.Check(data, check.IsNil)
}

func (s *storeSuite) TestWriteThenLoadRoundTrips(c *check.C) {
	payload := []byte("generation-1-bytes")
	c.Assert(s.store.WriteLatest(payload), check.IsNil)

	data, err := s.store.LoadLatest()
	c.Assert(err, check.IsNil)
	c.Check(data, check.DeepEquals, payload)
}

func (s *storeSuite) TestSecondWriteRotatesPrev(c *check.C) {
	first := []byte("gen-1")
	second := []byte("gen-2")

	c.Assert(s.store.WriteLatest(first), check.IsNil)
	c.Assert(s.store.WriteLatest(second), check.IsNil)

	current, err := s.store.LoadLatest()
	c.Assert(err, check.IsNil)
	c.Check(current, check.DeepEquals, second)

	prev, err := s.store.LoadPrevious()
	c.Assert(err, check.IsNil)
	c.Check(prev, check.DeepEquals, first)
}

func (s *storeSuite) TestTornWriteLeavesNoCurrentRecoversAsPlaceholder(c *check.C) {
	// Simulate the crash described in the store's invariants: .prev exists
	// (the bin->prev rename completed) but the final tmp->bin rename did
	// not, so no current chunk exists. LoadLatest must report None so the
	// boot driver's placeholder path kicks in — it must never surface the
	// stale .tmp contents.
	c.Assert(s.fs.MkdirAll("/var/lib/tuff/index", 0o755), check.IsNil)
	c.Assert(afero.WriteFile(s.fs, "/var/lib/tuff/index/index_chunk.prev", []byte("old-gen"), 0o644), check.IsNil)
	c.Assert(afero.WriteFile(s.fs, "/var/lib/tuff/index/index_chunk.bin.tmp", []byte("half-written"), 0o644), check.IsNil)

	data, err := s.store.LoadLatest()
	c.Assert(err, check.IsNil)
	c.Check(data, check.IsNil)

	prev, err := s.store.LoadPrevious()
	c.Assert(err, check.IsNil)
	c.Check(prev, check.DeepEquals, []byte("old-gen"))
}
