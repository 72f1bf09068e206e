// This file is part of tuff
// SPDX-License-Identifier: GPL-3.0-only

package ceremony

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const mkSize = 32

var upper = cases.Upper(language.Und)

// generateMK returns 32 bytes of cryptographically strong randomness: the
// candidate master key.
func generateMK() ([]byte, error) {
	mk := make([]byte, mkSize)
	if _, err := rand.Read(mk); err != nil {
		return nil, fmt.Errorf("generating candidate key: %w", err)
	}
	return mk, nil
}

// hexGrid renders mk as the 4x4 grid of 4-character groups described in the
// provisioning ceremony: 16 groups, 64 hex characters, uppercase, one row
// of 4 groups per "Line N".
func hexGrid(mk []byte) string {
	hexStr := upper.String(hex.EncodeToString(mk))

	var b strings.Builder
	for row := 0; row < 4; row++ {
		fmt.Fprintf(&b, "Line %d:  ", row+1)
		for col := 0; col < 4; col++ {
			start := (row*4 + col) * 4
			b.WriteString(hexStr[start : start+4])
			b.WriteString("     ")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// topLeftGroup and bottomRightGroup are the two corner groups the operator
// must re-enter to verify they recorded the key correctly.
func topLeftGroup(mk []byte) string {
	return upper.String(hex.EncodeToString(mk))[0:4]
}

func bottomRightGroup(mk []byte) string {
	return upper.String(hex.EncodeToString(mk))[60:64]
}

// verifyCorners compares operator-supplied input (trimmed and
// case-normalized) against the two corner groups.
func verifyCorners(mk []byte, inputStart, inputEnd string) bool {
	norm := func(s string) string { return upper.String(strings.TrimSpace(s)) }
	return norm(inputStart) == topLeftGroup(mk) && norm(inputEnd) == bottomRightGroup(mk)
}
