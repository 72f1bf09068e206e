// This file is part of tuff
// SPDX-License-Identifier: GPL-3.0-only

package keymonitor

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/tuff-os/tuff/tufflog"
)

const (
	// keySearchLogInterval is how many poll attempts elapse between
	// KeySearch audit events, to keep the log from being flooded while
	// the daemon sits at WaitKey for an extended period.
	keySearchLogInterval = 15

	// keyFileSize is the exact size a TUFF-KEY file must have to be
	// accepted; anything else is rejected as malformed.
	keyFileSize = 32

	keysSubdir = "TUFF_KEYS"

	defaultMountPoint   = "/mnt/tuff_key_check"
	defaultPollInterval = 2 * time.Second
)

// fsTypes is the mount-type probing order: the most common removable-media
// filesystem first, falling through on any mount failure.
var fsTypes = []string{"vfat", "exfat", "ext4", "ext3", "ext2"}

// mounter abstracts the mount/unmount syscalls so tests can run without
// root or real block devices.
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

// Monitor implements the USB Key Monitor: it polls for a removable device
// carrying a TUFF_KEYS/*.key file of exactly keyFileSize bytes, mounting
// each candidate read-only to inspect it.
type Monitor struct {
	fs     FS
	mount  mounter
	logger *tufflog.Logger

	// DiscoveryMode selects between /sys/block and /dev/disk/by-id
	// candidate enumeration.
	DiscoveryMode DiscoveryMode
	// MountPoint is the scratch directory candidates are mounted at in
	// turn. Defaults to /mnt/tuff_key_check.
	MountPoint string
	// PollInterval is the delay between scan iterations. Defaults to 2s.
	PollInterval time.Duration
}

// NewMonitor returns a production Monitor logging through logger.
func NewMonitor(logger *tufflog.Logger) *Monitor {
	return &Monitor{
		fs:           realFS{},
		mount:        realMounter{},
		logger:       logger,
		MountPoint:   defaultMountPoint,
		PollInterval: defaultPollInterval,
	}
}

// newMonitorWithDeps is the test-injection constructor.
func newMonitorWithDeps(fs FS, mount mounter, logger *tufflog.Logger) *Monitor {
	return &Monitor{
		fs:           fs,
		mount:        mount,
		logger:       logger,
		MountPoint:   defaultMountPoint,
		PollInterval: defaultPollInterval,
	}
}

// WaitForKey blocks until a valid key is found on some removable device, or
// ctx is cancelled. Cancellation is only honored at the between-scan
// suspension point: once a scan iteration begins, it always runs to
// completion so a candidate is never left half-mounted.
//
// The returned error is non-nil only when ctx is cancelled (ctx.Err()) or
// for unrecoverable setup failures (for example, the scratch mount point
// cannot be created); ordinary per-device failures are logged and the scan
// continues.
func (m *Monitor) WaitForKey(ctx context.Context) (key []byte, keyUUID string, err error) {
	if err := m.fs.MkdirAll(m.MountPoint, 0o700); err != nil {
		return nil, "", err
	}

	ticker := time.NewTicker(m.pollInterval())
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		if attempt%keySearchLogInterval == 0 {
			m.logger.KeySearch("scanning for key device")
		}

		key, keyUUID, found := m.scanOnce()
		if found {
			return key, keyUUID, nil
		}

		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func (m *Monitor) pollInterval() time.Duration {
	if m.PollInterval <= 0 {
		return defaultPollInterval
	}
	return m.PollInterval
}

// scanOnce enumerates candidates and checks each in turn, returning the
// first valid key found.
func (m *Monitor) scanOnce() (key []byte, keyUUID string, found bool) {
	candidates, err := m.enumerateCandidates()
	if err != nil {
		return nil, "", false
	}

	for _, device := range candidates {
		key, keyUUID, ok := m.checkDevice(device)
		if ok {
			return key, keyUUID, true
		}
	}
	return nil, "", false
}

// checkDevice mounts device read-only under each candidate filesystem type
// in turn, searches it for a valid key, and always unmounts (lazily,
// regardless of outcome) before returning.
func (m *Monitor) checkDevice(device string) (key []byte, keyUUID string, ok bool) {
	mounted := false
	var lastErr error
	for _, fstype := range fsTypes {
		flags := uintptr(unix.MS_RDONLY)
		if err := m.mount.Mount(device, m.MountPoint, fstype, flags, ""); err != nil {
			lastErr = err
			continue
		}
		mounted = true
		break
	}
	if !mounted {
		if lastErr == nil {
			lastErr = errors.New("no supported filesystem type mounted")
		}
		m.logger.MountFailure(device, lastErr)
		return nil, "", false
	}
	defer func() {
		if err := m.mount.Unmount(m.MountPoint, unix.MNT_DETACH); err != nil {
			m.logger.IoError("unmount "+m.MountPoint, err)
		}
	}()

	m.logger.MountSuccess(m.MountPoint)

	key, keyUUID, ok = m.findKeyFile(device)
	return key, keyUUID, ok
}

// findKeyFile searches MountPoint/TUFF_KEYS for *.key entries in listing
// order, returning the first one whose contents are exactly keyFileSize
// bytes. The UUID is the file's stem.
func (m *Monitor) findKeyFile(device string) (key []byte, keyUUID string, ok bool) {
	keysDir := filepath.Join(m.MountPoint, keysSubdir)
	entries, err := m.fs.ReadDir(keysDir)
	if err != nil {
		return nil, "", false
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".key") {
			continue
		}
		uuid := strings.TrimSuffix(name, ".key")

		data, err := m.readKeyFile(filepath.Join(keysDir, name))
		if err != nil {
			m.logger.KeyRejected(device, "unreadable: "+err.Error())
			continue
		}
		if len(data) != keyFileSize {
			m.logger.KeyRejected(device, "wrong key size")
			continue
		}

		m.logger.KeyDetected(device, uuid)
		return data, uuid, true
	}
	return nil, "", false
}

func (m *Monitor) readKeyFile(path string) ([]byte, error) {
	f, err := m.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
