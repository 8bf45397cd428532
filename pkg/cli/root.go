// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/kstat-exporter/pkg/defaults"
	"github.com/NVIDIA/kstat-exporter/pkg/logging"
	"github.com/NVIDIA/kstat-exporter/pkg/server"
)

const (
	name           = "kstatd"
	versionDefault = "dev"
)

var (
	// overridden during build with ldflags
	version = versionDefault
	commit  = "unknown"
	date    = "unknown"
)

// Execute runs the root command and exits non-zero on error.
func Execute() {
	// Handle SIGINT/SIGTERM for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1) //nolint:gocritic // stop already called
	}
}

func newRootCmd() *cli.Command {
	return &cli.Command{
		Name:                  name,
		Version:               fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Usage:                 "Linux kernel statistics exporter",
		EnableShellCompletion: true,
		DefaultCommand:        "serve",
		Description: `kstatd reads kernel statistics from procfs, sysfs, netlink and IPMI
on every scrape and exposes them in the Prometheus text format.

serve    - run the HTTP exporter (default)
snapshot - collect once and print to stdout`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config.toml (a missing file means defaults)",
				Value:   defaults.ConfigPath,
				Sources: cli.EnvVars("KSTAT_CONFIG"),
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "enable debug logging with source locations",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars(logging.EnvLogLevel),
			},
			&cli.StringFlag{
				Name:  "procfs-path",
				Usage: "override procfs_path from config.toml",
			},
			&cli.StringFlag{
				Name:  "sysfs-path",
				Usage: "override sysfs_path from config.toml",
			},
		},
		Before: initLogger,
		Commands: []*cli.Command{
			serveCmd(),
			snapshotCmd(),
		},
	}
}

func initLogger(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	level := cmd.String("log-level")
	if cmd.Bool("debug") {
		level = "debug"
	}
	logging.SetDefaultStructuredLogger(name, version, level)
	server.SetBuildInfo(version, commit, date)
	slog.Debug("starting",
		"name", name,
		"version", version,
		"commit", commit,
		"date", date,
		"logLevel", level)
	return ctx, nil
}
