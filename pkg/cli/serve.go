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

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/kstat-exporter/pkg/datasource/catalog"
	"github.com/NVIDIA/kstat-exporter/pkg/defaults"
	"github.com/NVIDIA/kstat-exporter/pkg/server"
	"github.com/NVIDIA/kstat-exporter/pkg/snapshotter"
)

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:                  "serve",
		EnableShellCompletion: true,
		Usage:                 "Serve kernel statistics over HTTP",
		Description: `Serve /metrics and /metrics.json. Every scrape runs all enabled
datasources concurrently and returns a fresh snapshot.

When started by a systemd socket unit the passed socket is used instead of
the bind address.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "bind",
				Usage:   "listen address, overrides bind from config.toml",
				Value:   defaults.BindAddress,
				Sources: cli.EnvVars("KSTAT_BIND"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			snap := snapshotter.New(catalog.NewRegistry(), cfg)
			return server.Run(ctx, cfg, snap)
		},
	}
}
