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

package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/netip"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/NVIDIA/kstat-exporter/pkg/defaults"
	"github.com/NVIDIA/kstat-exporter/pkg/errors"
)

// Datasources lists every datasource name accepted in disabled_datasources,
// in collection order.
var Datasources = []string{
	"procfs",
	"cpufreq",
	"softnet",
	"conntrack",
	"filesystems",
	"hwmon",
	"thermal",
	"rapl",
	"power_supply",
	"nvme",
	"edac",
	"numa",
	"ipmi",
	"mdraid",
	"netdev_sysfs",
	"ethtool",
}

// Config is the validated content of config.toml. It is read-only after Load.
type Config struct {
	IgnoreLoopDevices    bool     `toml:"ignore_loop_devices"`
	IgnorePPPInterfaces  bool     `toml:"ignore_ppp_interfaces"`
	IgnoreVethInterfaces bool     `toml:"ignore_veth_interfaces"`
	DisabledDatasources  []string `toml:"disabled_datasources"`

	AllowedMetricsCIDRs []string `toml:"allowed_metrics_cidrs"`
	Bind                string   `toml:"bind"`
	LogDeniedRequests   bool     `toml:"log_denied_requests"`
	Log404Requests      bool     `toml:"log_404_requests"`
	TLSCert             string   `toml:"tls_cert"`
	TLSKey              string   `toml:"tls_key"`
	AuthToken           string   `toml:"auth_token"`

	ScrapeTimeout   time.Duration `toml:"scrape_timeout"`
	ProcfsPath      string        `toml:"procfs_path"`
	SysfsPath       string        `toml:"sysfs_path"`
	ExporterMetrics bool          `toml:"exporter_metrics"`
	RateLimit       float64       `toml:"rate_limit"`
	RateLimitBurst  int           `toml:"rate_limit_burst"`
	MaxConcurrency  int           `toml:"max_concurrency"`

	prefixes []netip.Prefix
	disabled map[string]struct{}
}

// New returns a configuration populated with defaults.
func New() *Config {
	return &Config{
		Bind:            defaults.BindAddress,
		ScrapeTimeout:   defaults.ScrapeTimeout,
		ProcfsPath:      defaults.ProcPath,
		SysfsPath:       defaults.SysPath,
		ExporterMetrics: true,
		disabled:        map[string]struct{}{},
	}
}

// Load reads, decodes and validates the TOML file at path.
func Load(path string) (*Config, error) {
	cfg := New()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.WrapWithContext(errors.ErrCodeNotFound, "config file not found", err,
				map[string]any{"path": path})
		}
		return nil, errors.WrapWithContext(errors.ErrCodeInvalidConfig, "failed to parse config file", err,
			map[string]any{"path": path})
	}

	for _, k := range md.Undecoded() {
		slog.Warn("unknown config key ignored", "key", k.String(), "path", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault behaves like Load but returns validated defaults when the
// file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.CodeOf(err) != errors.ErrCodeNotFound {
		return nil, err
	}
	slog.Debug("config file not found, using defaults", "path", path)
	cfg = New()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field and builds the lookup tables used at request
// time. It is called by Load; callers that build a Config by hand must call
// it before use.
func (c *Config) Validate() error {
	c.disabled = make(map[string]struct{}, len(c.DisabledDatasources))
	for _, name := range c.DisabledDatasources {
		if !slices.Contains(Datasources, name) {
			return errors.NewWithContext(errors.ErrCodeInvalidConfig,
				fmt.Sprintf("unknown datasource %q in disabled_datasources", name),
				map[string]any{"valid": strings.Join(Datasources, ", ")})
		}
		c.disabled[name] = struct{}{}
	}

	c.prefixes = c.prefixes[:0]
	for _, raw := range c.AllowedMetricsCIDRs {
		p, err := parsePrefix(raw)
		if err != nil {
			return errors.WrapWithContext(errors.ErrCodeInvalidConfig,
				fmt.Sprintf("invalid entry %q in allowed_metrics_cidrs", raw), err, nil)
		}
		c.prefixes = append(c.prefixes, p)
	}

	if _, err := netip.ParseAddrPort(c.Bind); err != nil {
		return errors.WrapWithContext(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("invalid bind address %q", c.Bind), err, nil)
	}

	if c.ScrapeTimeout <= 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "scrape_timeout must be positive")
	}
	if c.ScrapeTimeout >= defaults.ServerWriteTimeout {
		return errors.New(errors.ErrCodeInvalidConfig,
			fmt.Sprintf("scrape_timeout must be below %v", defaults.ServerWriteTimeout))
	}

	if c.RateLimit < 0 || c.RateLimitBurst < 0 || c.MaxConcurrency < 0 {
		return errors.New(errors.ErrCodeInvalidConfig,
			"rate_limit, rate_limit_burst and max_concurrency must not be negative")
	}

	if c.ProcfsPath == "" || c.SysfsPath == "" {
		return errors.New(errors.ErrCodeInvalidConfig, "procfs_path and sysfs_path must not be empty")
	}

	if c.TLSEnabled() {
		for _, p := range []string{c.TLSCert, c.TLSKey} {
			if err := readable(p); err != nil {
				return errors.WrapWithContext(errors.ErrCodeInvalidConfig,
					"TLS material is not readable", err, map[string]any{"path": p})
			}
		}
	}
	return nil
}

// parsePrefix accepts CIDR notation or a bare address, which is treated as
// a single-host prefix.
func parsePrefix(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, err
		}
		return p.Masked(), nil
	}
	a, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Prefix{}, err
	}
	a = a.Unmap()
	return netip.PrefixFrom(a, a.BitLen()), nil
}

func readable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}

// DatasourceEnabled reports whether name is absent from disabled_datasources.
func (c *Config) DatasourceEnabled(name string) bool {
	_, off := c.disabled[name]
	return !off
}

// TLSEnabled reports whether both certificate and key are configured.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}

// TLSPartial reports whether exactly one of certificate and key is set.
// The server then falls back to plaintext and warns at startup.
func (c *Config) TLSPartial() bool {
	return (c.TLSCert == "") != (c.TLSKey == "")
}

// AuthEnabled reports whether bearer token authentication is required.
func (c *Config) AuthEnabled() bool {
	return c.AuthToken != ""
}

// AddressAllowed reports whether addr falls inside allowed_metrics_cidrs.
// An empty list allows every address. Entries are parsed on the fly when
// Validate has not run, and entries that do not parse match nothing.
func (c *Config) AddressAllowed(addr netip.Addr) bool {
	if len(c.AllowedMetricsCIDRs) == 0 {
		return true
	}
	prefixes := c.prefixes
	if len(prefixes) != len(c.AllowedMetricsCIDRs) {
		prefixes = make([]netip.Prefix, 0, len(c.AllowedMetricsCIDRs))
		for _, raw := range c.AllowedMetricsCIDRs {
			if p, err := parsePrefix(raw); err == nil {
				prefixes = append(prefixes, p)
			}
		}
	}
	addr = addr.Unmap().WithZone("")
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
