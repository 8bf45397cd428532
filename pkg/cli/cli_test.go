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
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/kstat-exporter/pkg/config"
	"github.com/NVIDIA/kstat-exporter/pkg/serializer"
)

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		name       string
		format     string
		wantFormat serializer.Format
		wantErr    bool
	}{
		{
			name:       "valid text format",
			format:     "text",
			wantFormat: serializer.FormatText,
		},
		{
			name:       "valid json format",
			format:     "json",
			wantFormat: serializer.FormatJSON,
		},
		{
			name:       "upper case yaml",
			format:     "YAML",
			wantFormat: serializer.FormatYAML,
		},
		{
			name:    "invalid format table",
			format:  "table",
			wantErr: true,
		},
		{
			name:    "empty format",
			format:  "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Create a minimal CLI command with the format flag
			cmd := &cli.Command{
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "format",
						Value: tt.format,
					},
				},
				Action: func(_ context.Context, c *cli.Command) error {
					got, err := parseOutputFormat(c)
					if (err != nil) != tt.wantErr {
						t.Errorf("parseOutputFormat() error = %v, wantErr %v", err, tt.wantErr)
						return nil
					}
					if !tt.wantErr && got != tt.wantFormat {
						t.Errorf("parseOutputFormat() = %v, want %v", got, tt.wantFormat)
					}
					return nil
				},
			}

			if err := cmd.Run(context.Background(), []string{"test"}); err != nil {
				t.Fatalf("failed to run command: %v", err)
			}
		})
	}
}

// runLoadConfig parses args with the global and serve flags and returns
// the loaded configuration.
func runLoadConfig(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	root := newRootCmd()
	root.Before = nil

	var (
		cfg *config.Config
		err error
	)
	serve := serveCmd()
	serve.Action = func(_ context.Context, c *cli.Command) error {
		cfg, err = loadConfig(c)
		return nil
	}
	root.Commands = []*cli.Command{serve}

	if runErr := root.Run(context.Background(), append([]string{name}, args...)); runErr != nil {
		t.Fatalf("failed to run command: %v", runErr)
	}
	return cfg, err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
bind = "127.0.0.1:9200"
procfs_path = "/host/proc"
disabled_datasources = ["ipmi"]
`)

	cfg, err := runLoadConfig(t, "--config", path, "--sysfs-path", "/host/sys", "serve")
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Bind != "127.0.0.1:9200" {
		t.Errorf("Bind = %q, want value from config file", cfg.Bind)
	}
	if cfg.ProcfsPath != "/host/proc" || cfg.SysfsPath != "/host/sys" {
		t.Errorf("paths = %q, %q", cfg.ProcfsPath, cfg.SysfsPath)
	}
	if cfg.DatasourceEnabled("ipmi") {
		t.Error("ipmi should be disabled")
	}

	cfg, err = runLoadConfig(t, "--config", path, "serve", "--bind", "127.0.0.1:9300")
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Bind != "127.0.0.1:9300" {
		t.Errorf("Bind = %q, want flag value", cfg.Bind)
	}
}

func TestLoadConfigBindFromEnv(t *testing.T) {
	t.Setenv("KSTAT_BIND", "127.0.0.1:9400")
	cfg, err := runLoadConfig(t, "--config", filepath.Join(t.TempDir(), "missing.toml"), "serve")
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Bind != "127.0.0.1:9400" {
		t.Errorf("Bind = %q, want value from KSTAT_BIND", cfg.Bind)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := map[string]string{
		"unknown datasource": `disabled_datasources = ["gpu"]`,
		"bad cidr":           `allowed_metrics_cidrs = ["10.0.0.0/33"]`,
		"bad duration":       `scrape_timeout = "soon"`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := runLoadConfig(t, "--config", writeConfig(t, content), "serve"); err == nil {
				t.Error("expected configuration error")
			}
		})
	}
}

func TestSnapshotCommand(t *testing.T) {
	root := t.TempDir()
	zone := filepath.Join(root, "sys", "class", "thermal", "thermal_zone0")
	if err := os.MkdirAll(zone, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(zone, "temp"), []byte("45000\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfgPath := writeConfig(t, `disabled_datasources = ["ipmi", "ethtool", "conntrack"]`)
	out := filepath.Join(root, "snapshot.json")

	args := []string{name,
		"--config", cfgPath,
		"--procfs-path", filepath.Join(root, "proc"),
		"--sysfs-path", filepath.Join(root, "sys"),
		"snapshot", "--format", "json", "--output", out,
	}
	if err := newRootCmd().Run(context.Background(), args); err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var samples []map[string]any
	if err := json.Unmarshal(data, &samples); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	found := false
	for _, s := range samples {
		if s["_name_"] == "thermal_zone_temperature_celsius" {
			found = true
			if s["_value_"] != 45.0 {
				t.Errorf("temperature = %v, want 45", s["_value_"])
			}
		}
	}
	if !found {
		t.Error("thermal zone sample missing from snapshot")
	}

	// The empty procfs tree makes filesystems fail, which --strict reports.
	strict := append(args[:len(args):len(args)], "--strict")
	if err := newRootCmd().Run(context.Background(), strict); err == nil {
		t.Error("expected --strict to fail when a datasource fails")
	}
}

func TestRootCommand(t *testing.T) {
	cmd := newRootCmd()
	if cmd.DefaultCommand != "serve" {
		t.Errorf("DefaultCommand = %q, want serve", cmd.DefaultCommand)
	}
	want := map[string]bool{"serve": false, "snapshot": false}
	for _, c := range cmd.Commands {
		if _, ok := want[c.Name]; ok {
			want[c.Name] = true
		}
		if c.Action == nil {
			t.Errorf("%s: Action should not be nil", c.Name)
		}
	}
	for n, ok := range want {
		if !ok {
			t.Errorf("command %q not registered", n)
		}
	}
}
