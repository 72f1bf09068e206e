// This file is part of tuff
// SPDX-License-Identifier: GPL-3.0-only

package ceremony

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/peterh/liner"
)

// Ceremony runs the one-shot provisioning flow: generate a candidate
// master key, have the operator verify it was recorded correctly, then
// write it to an operator-selected removable token.
type Ceremony struct {
	fs    FS
	mount mounter
	out   io.Writer
	line  *liner.State

	// HostUUIDOverride, when set, is used in place of the real DMI product
	// UUID. It exists for running the ceremony against a dev VM that has no
	// usable DMI data.
	HostUUIDOverride string
}

// New returns a production Ceremony reading/writing the real filesystem
// and prompting on the real terminal.
func New() *Ceremony {
	return &Ceremony{
		fs:    realFS{},
		mount: realMounter{},
		out:   os.Stdout,
		line:  liner.NewLiner(),
	}
}

// Close releases the terminal line editor.
func (c *Ceremony) Close() { c.line.Close() }

// Run executes the full ceremony. It returns a non-nil error on any
// failure or operator-cancelled verification; the candidate key is never
// persisted anywhere unless the device write at the end completes
// successfully, and this function never touches the host fingerprint file.
func (c *Ceremony) Run() error {
	c.line.SetCtrlCAborts(true)

	hostUUID, err := resolveHostUUID(c.HostUUIDOverride)
	if err != nil {
		c.printFailure(err)
		return err
	}

	mk, err := generateMK()
	if err != nil {
		c.printFailure(err)
		return err
	}

	c.printKeyBanner(mk)

	fmt.Fprintln(c.out, "[VERIFICATION REQUIRED]")
	fmt.Fprintln(c.out, "Check your photo/memo and enter the requested key parts.")
	fmt.Fprintln(c.out)

	inputStart, err := c.line.Prompt("1. Enter Line 1, Group 1 (Top-Left)     : ")
	if err != nil {
		err = fmt.Errorf("reading verification input: %w", err)
		c.printFailure(err)
		return err
	}
	inputEnd, err := c.line.Prompt("2. Enter Line 4, Group 4 (Bottom-Right) : ")
	if err != nil {
		err = fmt.Errorf("reading verification input: %w", err)
		c.printFailure(err)
		return err
	}

	if !verifyCorners(mk, inputStart, inputEnd) {
		err := fmt.Errorf("key verification failed")
		fmt.Fprintln(c.out, "\n[FAILURE] Key mismatch. Initialization ABORTED. Key discarded.")
		return err
	}

	candidates, err := EnumerateCandidates(c.fs)
	if err != nil || len(candidates) == 0 {
		err := fmt.Errorf("no removable candidate devices found")
		c.printFailure(err)
		return err
	}

	fmt.Fprintln(c.out, "\nRemovable candidates:")
	for i, candidate := range candidates {
		fmt.Fprintf(c.out, "  [%d] %s\n", i, candidate)
	}

	choice, err := c.line.Prompt("Select a device by index: ")
	if err != nil {
		err = fmt.Errorf("reading device selection: %w", err)
		c.printFailure(err)
		return err
	}
	idx, err := strconv.Atoi(choice)
	if err != nil || idx < 0 || idx >= len(candidates) {
		err := fmt.Errorf("invalid device selection %q", choice)
		c.printFailure(err)
		return err
	}

	if err := writeKeyToDevice(c.mount, MountPoint, candidates[idx], hostUUID, mk); err != nil {
		c.printFailure(err)
		return err
	}

	fmt.Fprintln(c.out, "\n[SUCCESS] Key verified. Token provisioned.")
	return nil
}

func (c *Ceremony) printKeyBanner(mk []byte) {
	fmt.Fprint(c.out, "\x1B[2J\x1B[1;1H")
	fmt.Fprintln(c.out, "================================================================")
	fmt.Fprintln(c.out, "                    [ TUFF-OS MASTER KEY ]")
	fmt.Fprintln(c.out, "================================================================")
	fmt.Fprintln(c.out, " WARNING: This key is the ONLY way to recover your data.")
	fmt.Fprintln(c.out, "          If you lose this, your data is PERMANENTLY LOST.")
	fmt.Fprintln(c.out, "          TAKE A PHOTO OF THIS SCREEN NOW.")
	fmt.Fprintln(c.out, "================================================================")
	fmt.Fprintln(c.out)
	fmt.Fprint(c.out, hexGrid(mk))
	fmt.Fprintln(c.out, "================================================================")
	fmt.Fprintln(c.out)
}

func (c *Ceremony) printFailure(err error) {
	fmt.Fprintf(c.out, "\n[FAILURE] %v\n", err)
}
