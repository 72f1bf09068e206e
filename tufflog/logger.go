// This file is part of tuff
// SPDX-License-Identifier: GPL-3.0-only

package tufflog

import (
	"encoding/json"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger emits the daemon's line-delimited JSON audit events.
// It wraps github.com/sirupsen/logrus with a custom formatter, since the
// event shape (a nested {type, details} tagged variant rather than a flat
// field set) isn't logrus's default JSON output.
type Logger struct {
	backend *logrus.Logger
}

// New returns a Logger writing to out.
func New(out io.Writer) *Logger {
	backend := logrus.New()
	backend.SetOutput(out)
	backend.SetFormatter(&eventFormatter{})
	backend.SetLevel(logrus.InfoLevel)
	return &Logger{backend: backend}
}

// NewStderr returns a Logger writing to os.Stderr, for daemon startup
// before any explicit sink is configured.
func NewStderr() *Logger { return New(os.Stderr) }

// Emit logs a single event at the given level.
func (l *Logger) Emit(level Level, eventType string, details interface{}) {
	l.backend.WithFields(logrus.Fields{
		"tuff_level":   level,
		"tuff_type":    eventType,
		"tuff_details": details,
	}).Info()
}

func (l *Logger) SystemBoot(version string) {
	l.Emit(Audit, TypeSystemBoot, SystemBootDetails{Version: version})
}

func (l *Logger) StateTransition(from, to, reason string, rejected bool) {
	level := Info
	if rejected {
		level = Warn
	}
	l.Emit(level, TypeStateTransition, StateTransitionDetails{
		From: from, To: to, Reason: reason, Rejected: rejected,
	})
}

func (l *Logger) KeySearch(status string) {
	l.Emit(Info, TypeKeySearch, KeySearchDetails{Status: status})
}

func (l *Logger) KeyDetected(device, keyUUID string) {
	l.Emit(Audit, TypeKeyDetected, KeyDetectedDetails{Device: device, KeyUUID: keyUUID})
}

func (l *Logger) KeyRejected(device, reason string) {
	l.Emit(Warn, TypeKeyRejected, KeyRejectedDetails{Device: device, Reason: reason})
}

func (l *Logger) MountSuccess(path string) {
	l.Emit(Info, TypeMountSuccess, MountSuccessDetails{Path: path})
}

func (l *Logger) MountFailure(path string, err error) {
	l.Emit(Warn, TypeMountFailure, MountFailureDetails{Path: path, Error: errString(err)})
}

func (l *Logger) IoError(context string, err error) {
	l.Emit(Error, TypeIoError, IoErrorDetails{Context: context, Error: errString(err)})
}

func (l *Logger) KeyMismatch(keyUUID string) {
	l.Emit(Error, TypeKeyMismatch, KeyMismatchDetails{KeyUUID: keyUUID})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// eventFormatter renders a logrus.Entry as {"timestamp":...,"level":...,
// "event":{"type":...,"details":...}}.
type eventFormatter struct{}

func (f *eventFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	out := struct {
		Timestamp int64       `json:"timestamp"`
		Level     Level       `json:"level"`
		Event     eventRecord `json:"event"`
	}{
		Timestamp: entry.Time.Unix(),
		Level:     levelFromFields(entry.Data),
		Event: eventRecord{
			Type:    typeFromFields(entry.Data),
			Details: entry.Data["tuff_details"],
		},
	}

	b, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

type eventRecord struct {
	Type    string      `json:"type"`
	Details interface{} `json:"details"`
}

func levelFromFields(data logrus.Fields) Level {
	if lvl, ok := data["tuff_level"].(Level); ok {
		return lvl
	}
	return Info
}

func typeFromFields(data logrus.Fields) string {
	if t, ok := data["tuff_type"].(string); ok {
		return t
	}
	return ""
}
