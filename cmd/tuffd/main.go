// This file is part of tuff
// SPDX-License-Identifier: GPL-3.0-only

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/tuff-os/tuff/fingerprint"
	"github.com/tuff-os/tuff/indexchunk"
	"github.com/tuff-os/tuff/keymonitor"
	"github.com/tuff-os/tuff/tuffd"
	"github.com/tuff-os/tuff/tufflog"
)

const version = "0.1.0"

func main() {
	stateRoot := flag.String("state-root", "/var/lib/tuff", "daemon state directory")
	indexDir := flag.String("index-dir", "", "index chunk directory (defaults to {state-root}/index)")
	mountPoint := flag.String("mount-point", "/mnt/tuff_key_check", "scratch mount point for key candidates")
	showVersion := flag.Bool("version", false, "print the daemon version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	logger := tufflog.NewStderr()

	if tuffd.IsPID1() {
		tuffd.EarlyBoot(logger)
	}

	monitor := keymonitor.NewMonitor(logger)
	monitor.MountPoint = *mountPoint

	fp := fingerprint.NewStore(*stateRoot)
	chunks := indexchunk.NewStore(*stateRoot, *indexDir)
	machine := tuffd.NewMachine(logger)
	driver := tuffd.NewDriver(monitor, fp, chunks, logger, machine)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := driver.Run(ctx, version); err != nil {
		logger.IoError("daemon exited", err)
		os.Exit(1)
	}
}
