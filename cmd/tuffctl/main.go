// This file is part of tuff
// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/tuff-os/tuff/ceremony"
)

func main() {
	stateRoot := flag.String("state-root", "/var/lib/tuff", "daemon state directory (commit/truncate)")
	hostUUIDOverride := flag.String("host-uuid-override", "", "use this host UUID instead of reading DMI data (dev VMs only)")
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: tuffctl <init|commit|truncate>")
		os.Exit(1)
	}

	switch args[0] {
	case "init":
		runInit(*hostUUIDOverride)
	case "commit", "truncate":
		fmt.Printf("Not implemented yet (state root %s)\n", *stateRoot)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", args[0])
		os.Exit(1)
	}
}

func runInit(hostUUIDOverride string) {
	c := ceremony.New()
	c.HostUUIDOverride = hostUUIDOverride
	defer c.Close()

	if err := c.Run(); err != nil {
		os.Exit(1)
	}
}
