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
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/kstat-exporter/pkg/config"
	"github.com/NVIDIA/kstat-exporter/pkg/serializer"
)

// Flags carry parse state, so every command gets fresh instances.
func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"t"},
		Usage:   fmt.Sprintf("output format (%s)", strings.Join(serializer.SupportedFormats(), ", ")),
		Value:   string(serializer.FormatText),
	}
}

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "output file path (default: stdout)",
	}
}

// loadConfig reads config.toml and applies command-line overrides. The
// result is validated again after the overrides.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	if v := cmd.String("procfs-path"); v != "" {
		cfg.ProcfsPath = v
	}
	if v := cmd.String("sysfs-path"); v != "" {
		cfg.SysfsPath = v
	}
	if cmd.IsSet("bind") {
		cfg.Bind = cmd.String("bind")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseOutputFormat(cmd *cli.Command) (serializer.Format, error) {
	f := serializer.Format(strings.ToLower(cmd.String("format")))
	if f.IsUnknown() {
		return "", fmt.Errorf("unknown output format: %q", cmd.String("format"))
	}
	return f, nil
}
