// This file is part of tuff
// SPDX-License-Identifier: GPL-3.0-only

// Package keymonitor implements the USB Key Monitor: it blocks until a
// trusted key file is found on a mounted removable device and returns the
// raw key bytes and the key's UUID (its filename stem).
package keymonitor

import (
	"io"
	"os"
)

// FS abstracts the filesystem reads the monitor needs, following
// efibootmgr's small local FS interface pattern rather than a full VFS.
type FS interface {
	ReadDir(path string) ([]os.DirEntry, error)
	Readlink(path string) (string, error)
	MkdirAll(path string, perm os.FileMode) error
	Stat(path string) (os.FileInfo, error)
	Open(path string) (io.ReadCloser, error)
}

// realFS implements FS using the os package.
type realFS struct{}

func (realFS) ReadDir(path string) ([]os.DirEntry, error)  { return os.ReadDir(path) }
func (realFS) Readlink(path string) (string, error)       { return os.Readlink(path) }
func (realFS) MkdirAll(path string, perm os.FileMode) error { return os.MkdirAll(path, perm) }
func (realFS) Stat(path string) (os.FileInfo, error)       { return os.Stat(path) }
func (realFS) Open(path string) (io.ReadCloser, error)     { return os.Open(path) }
