// This file is part of tuff
// SPDX-License-Identifier: GPL-3.0-only

// Package ceremony implements the provisioning ceremony: a one-shot,
// operator-driven tool, separate from the daemon, that initializes a fresh
// host + token pair.
package ceremony

import (
	"fmt"
	"os"
	"strings"
)

const productUUIDPath = "/sys/class/dmi/id/product_uuid"

// HostUUID reads the host's DMI product UUID from sysfs. This requires
// root and fails with a clear diagnostic if the node is absent.
func HostUUID() (string, error) {
	data, err := os.ReadFile(productUUIDPath)
	if err != nil {
		return "", fmt.Errorf("reading host UUID from %s (requires root): %w", productUUIDPath, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// resolveHostUUID returns override if set, otherwise the real DMI UUID.
// override lets the ceremony run against a dev VM that has no usable DMI
// data, without faking /sys/class/dmi/id/product_uuid.
func resolveHostUUID(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	return HostUUID()
}
