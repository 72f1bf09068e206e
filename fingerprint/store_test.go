// This file is part of tuff
// SPDX-License-Identifier: GPL-3.0-only

package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i + 1)
	}
	return key
}

func TestFingerprintIsLowercaseHexSHA256(t *testing.T) {
	key := sampleKey()
	sum := sha256.Sum256(key)
	want := hex.EncodeToString(sum[:])

	got := Fingerprint(key)
	assert.Equal(t, want, got)
	assert.Len(t, got, 64)
}

func TestVerifyOrStoreFirstCallStores(t *testing.T) {
	store := NewStore(t.TempDir())

	status, err := store.VerifyOrStore(sampleKey())
	require.NoError(t, err)
	assert.Equal(t, Stored, status)

	raw, err := os.ReadFile(store.path)
	require.NoError(t, err)
	assert.Equal(t, Fingerprint(sampleKey()), string(raw))
}

func TestVerifyOrStoreSubsequentCallMatches(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)

	_, err := store.VerifyOrStore(sampleKey())
	require.NoError(t, err)

	status, err := store.VerifyOrStore(sampleKey())
	require.NoError(t, err)
	assert.Equal(t, Matched, status)
}

func TestVerifyOrStoreDifferentKeyMismatches(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)

	_, err := store.VerifyOrStore(sampleKey())
	require.NoError(t, err)

	other := sampleKey()
	other[0] = 0xFF

	status, err := store.VerifyOrStore(other)
	require.NoError(t, err)
	assert.Equal(t, Mismatch, status)

	// The stored fingerprint must be untouched by the mismatch.
	raw, err := os.ReadFile(store.path)
	require.NoError(t, err)
	assert.Equal(t, Fingerprint(sampleKey()), string(raw))
}

func TestVerifyOrStoreCreatesParentDirectories(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "state")
	store := NewStore(root)

	status, err := store.VerifyOrStore(sampleKey())
	require.NoError(t, err)
	assert.Equal(t, Stored, status)
}

func TestVerifyOrStoreTrimsWhitespaceOnRead(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root)

	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.WriteFile(store.path, []byte(Fingerprint(sampleKey())+"\n"), 0o644))

	status, err := store.VerifyOrStore(sampleKey())
	require.NoError(t, err)
	assert.Equal(t, Matched, status)
}
