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

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/kstat-exporter/pkg/datasource/catalog"
	"github.com/NVIDIA/kstat-exporter/pkg/defaults"
	"github.com/NVIDIA/kstat-exporter/pkg/serializer"
	"github.com/NVIDIA/kstat-exporter/pkg/snapshotter"
)

func snapshotCmd() *cli.Command {
	return &cli.Command{
		Name:                  "snapshot",
		EnableShellCompletion: true,
		Usage:                 "Collect kernel statistics once and print them",
		Description: `Run every enabled datasource once and write the snapshot in text,
JSON or YAML format. Failed datasources are logged and left out.

# Examples

  kstatd snapshot --format json
  kstatd snapshot --procfs-path /host/proc --sysfs-path /host/sys -o stats.txt
  kstatd snapshot --strict`,
		Flags: []cli.Flag{
			formatFlag(),
			outputFlag(),
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "overall timeout for the snapshot command",
				Value: defaults.CLISnapshotTimeout,
			},
			&cli.BoolFlag{
				Name:  "strict",
				Usage: "exit non-zero when any datasource fails",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			format, err := parseOutputFormat(cmd)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
			defer cancel()

			snap, failures := snapshotter.New(catalog.NewRegistry(), cfg).Collect(ctx)

			w := serializer.NewFileWriterOrStdout(format, cmd.String("output"))
			defer func() {
				if err := w.Close(); err != nil {
					slog.Warn("failed to close output", "error", err)
				}
			}()
			if err := w.Serialize(ctx, snap); err != nil {
				return fmt.Errorf("failed to write snapshot: %w", err)
			}

			if cmd.Bool("strict") && len(failures) > 0 {
				return fmt.Errorf("%d datasource(s) failed, first: %s: %w",
					len(failures), failures[0].Datasource, failures[0].Err)
			}
			return nil
		},
	}
}
