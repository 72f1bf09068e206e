// This file is part of tuff
// SPDX-License-Identifier: GPL-3.0-only

// Package tuffd implements the daemon state machine and boot driver: the
// event loop that ties the key monitor, fingerprint store, and index-chunk
// store together into the boot-time trust decision.
package tuffd

import "github.com/tuff-os/tuff/tufflog"

// State is one of the daemon's operational states.
type State int

const (
	Init State = iota
	WaitKey
	Normal
	Warn
	Freeze
	PendingOnly
	Shutdown
)

func (s State) String() string {
	switch s {
	case Init:
		return "Init"
	case WaitKey:
		return "WaitKey"
	case Normal:
		return "Normal"
	case Warn:
		return "Warn"
	case Freeze:
		return "Freeze"
	case PendingOnly:
		return "PendingOnly"
	case Shutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// transitions is the total transition table: legal (from, to) edges. The
// Freeze -> Normal edge is listed here per the data model, but the boot
// driver never calls TransitionTo(Normal) while frozen — only AdminUnfreeze
// takes that edge, resolving the open question over who is allowed to walk
// it.
var transitions = map[State]map[State]bool{
	Init:        {WaitKey: true, Freeze: true},
	WaitKey:     {Normal: true, Freeze: true},
	Normal:      {Warn: true, Freeze: true, PendingOnly: true, Shutdown: true},
	Warn:        {Normal: true, Freeze: true},
	Freeze:      {Normal: true, Shutdown: true},
	PendingOnly: {Normal: true, Freeze: true},
}

// Machine holds the daemon's current operational state and enforces the
// transition table as a single total function from (from, to) to allowed.
type Machine struct {
	current State
	logger  *tufflog.Logger
}

// NewMachine returns a Machine starting in Init.
func NewMachine(logger *tufflog.Logger) *Machine {
	return &Machine{current: Init, logger: logger}
}

// Current returns the machine's current state.
func (m *Machine) Current() State { return m.current }

// CanTransition reports whether the edge (current, next) is legal.
func (m *Machine) CanTransition(next State) bool {
	return transitions[m.current][next]
}

// TransitionTo attempts to move to next. Invalid transitions are rejected
// and logged as a first-class diagnostic rather than a silent no-op; the
// current state is left unchanged on rejection.
func (m *Machine) TransitionTo(next State) bool {
	if !m.CanTransition(next) {
		if m.logger != nil {
			m.logger.StateTransition(m.current.String(), next.String(), "invalid transition", true)
		}
		return false
	}
	if m.logger != nil {
		m.logger.StateTransition(m.current.String(), next.String(), "", false)
	}
	m.current = next
	return true
}

// AdminUnfreeze is the explicit administrator action that exits Freeze;
// the boot driver's main loop never calls it. TransitionTo(Normal) from
// Freeze is also accepted, since the edge is in the transition table.
// Reports false (and does nothing) if the machine is not currently frozen.
func (m *Machine) AdminUnfreeze() bool {
	if m.current != Freeze {
		return false
	}
	if m.logger != nil {
		m.logger.StateTransition(m.current.String(), Normal.String(), "administrator unfreeze", false)
	}
	m.current = Normal
	return true
}
