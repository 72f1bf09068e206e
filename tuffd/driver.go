// This file is part of tuff
// SPDX-License-Identifier: GPL-3.0-only

package tuffd

import (
	"context"
	"time"

	"github.com/tuff-os/tuff/fingerprint"
	"github.com/tuff-os/tuff/indexchunk"
	"github.com/tuff-os/tuff/tufflog"
)

// KeyWaiter is the subset of keymonitor.Monitor the driver depends on.
type KeyWaiter interface {
	WaitForKey(ctx context.Context) (key []byte, keyUUID string, err error)
}

// FingerprintVerifier is the subset of fingerprint.Store the driver depends
// on.
type FingerprintVerifier interface {
	VerifyOrStore(mk []byte) (fingerprint.Status, error)
}

// ChunkStore is the subset of indexchunk.Store the driver depends on.
type ChunkStore interface {
	LoadLatest() ([]byte, error)
	WriteLatest(data []byte) error
}

const (
	idleHeartbeat     = 10 * time.Second
	freezeHeartbeat   = 10 * time.Second
	mismatchBackoff   = 10 * time.Second
	ioErrorBackoff    = 5 * time.Second
	monitorErrBackoff = 5 * time.Second
)

// Driver runs the boot driver's main event loop, tying the key monitor,
// fingerprint store, and index-chunk store together into the boot-time
// trust decision described in the data flow.
type Driver struct {
	Monitor     KeyWaiter
	Fingerprint FingerprintVerifier
	Chunks      ChunkStore
	Logger      *tufflog.Logger
	Machine     *Machine

	// VolumeName and DefaultRedundancy parameterize the placeholder index
	// chunk written when no chunk exists yet.
	VolumeName        string
	DefaultRedundancy uint8

	// sleep is overridable in tests so the loop doesn't block real time.
	sleep func(time.Duration)
}

// NewDriver returns a Driver wired to the given components. machine is
// typically a freshly-constructed *Machine (Init).
func NewDriver(monitor KeyWaiter, fp FingerprintVerifier, chunks ChunkStore, logger *tufflog.Logger, machine *Machine) *Driver {
	return &Driver{
		Monitor:           monitor,
		Fingerprint:       fp,
		Chunks:            chunks,
		Logger:            logger,
		Machine:           machine,
		VolumeName:        "tuff-volume",
		DefaultRedundancy: 1,
		sleep:             time.Sleep,
	}
}

// Run performs the boot driver protocol: emit SystemBoot, transition to
// WaitKey, then run the main event loop until Shutdown is reached or ctx is
// cancelled.
func (d *Driver) Run(ctx context.Context, version string) error {
	d.Logger.SystemBoot(version)
	d.Machine.TransitionTo(WaitKey)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch d.Machine.Current() {
		case WaitKey:
			d.runWaitKey(ctx)
		case Normal, Warn, PendingOnly:
			d.sleep(idleHeartbeat)
		case Freeze:
			d.Logger.IoError("daemon frozen: awaiting administrator intervention", nil)
			d.sleep(freezeHeartbeat)
		case Shutdown:
			return nil
		}
	}
}

func (d *Driver) runWaitKey(ctx context.Context) {
	key, uuid, err := d.Monitor.WaitForKey(ctx)
	if err != nil {
		d.Logger.IoError("wait_for_key", err)
		d.sleep(monitorErrBackoff)
		return
	}

	status, err := d.Fingerprint.VerifyOrStore(key)
	if err != nil {
		d.Machine.TransitionTo(Warn)
		d.Logger.IoError("verify_or_store", err)
		d.sleep(ioErrorBackoff)
		return
	}
	if status == fingerprint.Mismatch {
		d.Machine.TransitionTo(Freeze)
		d.Logger.KeyMismatch(uuid)
		d.sleep(mismatchBackoff)
		return
	}

	if !d.loadOrPlaceChunk() {
		return
	}

	d.Machine.TransitionTo(Normal)
}

// loadOrPlaceChunk implements step 2 of the WaitKey success path: load the
// current chunk and validate it, or write and validate a placeholder if
// none exists. Returns false (having already transitioned to Warn and
// logged) on any failure.
func (d *Driver) loadOrPlaceChunk() bool {
	buf, err := d.Chunks.LoadLatest()
	if err != nil {
		d.Machine.TransitionTo(Warn)
		d.Logger.IoError("load_latest", err)
		return false
	}

	if buf != nil {
		if err := indexchunk.Validate(buf); err != nil {
			d.Machine.TransitionTo(Warn)
			d.Logger.IoError("validate", err)
			return false
		}
		return true
	}

	placeholder, err := indexchunk.BuildPlaceholder(d.VolumeName, d.DefaultRedundancy)
	if err != nil {
		d.Machine.TransitionTo(Warn)
		d.Logger.IoError("build_placeholder", err)
		return false
	}
	if err := d.Chunks.WriteLatest(placeholder); err != nil {
		d.Machine.TransitionTo(Warn)
		d.Logger.IoError("write_latest", err)
		return false
	}

	readback, err := d.Chunks.LoadLatest()
	if err != nil {
		d.Machine.TransitionTo(Warn)
		d.Logger.IoError("load_latest readback", err)
		return false
	}
	if err := indexchunk.Validate(readback); err != nil {
		d.Machine.TransitionTo(Warn)
		d.Logger.IoError("validate readback", err)
		return false
	}
	return true
}
