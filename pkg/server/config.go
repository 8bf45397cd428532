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

package server

import (
	"fmt"
	"math"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/NVIDIA/kstat-exporter/pkg/config"
	"github.com/NVIDIA/kstat-exporter/pkg/defaults"
)

// Config holds the HTTP settings derived from config.toml.
type Config struct {
	// Server identity
	Name    string
	Version string

	// Listener
	Address string
	TLSCert string
	TLSKey  string

	// Rate limiting configuration, disabled when RateLimit is zero
	RateLimit      rate.Limit // requests per second
	RateLimitBurst int        // burst size

	// Timeouts
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
}

// NewConfig derives the server settings from a validated application
// config. TLS is enabled only when both certificate and key are set.
func NewConfig(app *config.Config) *Config {
	cfg := &Config{
		Name:              name,
		Version:           version,
		Address:           app.Bind,
		RateLimit:         rate.Limit(app.RateLimit),
		RateLimitBurst:    app.RateLimitBurst,
		ReadTimeout:       defaults.ServerReadTimeout,
		ReadHeaderTimeout: defaults.ServerReadHeaderTimeout,
		WriteTimeout:      defaults.ServerWriteTimeout,
		IdleTimeout:       defaults.ServerIdleTimeout,
		ShutdownTimeout:   defaults.ServerShutdownTimeout,
	}
	if app.TLSEnabled() {
		cfg.TLSCert = app.TLSCert
		cfg.TLSKey = app.TLSKey
	}
	if cfg.RateLimit > 0 && cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = int(math.Ceil(app.RateLimit))
	}

	// Allow the shutdown grace period to follow the service manager's stop timeout
	if shutdownStr := os.Getenv("SHUTDOWN_TIMEOUT_SECONDS"); shutdownStr != "" {
		var seconds int
		if _, err := fmt.Sscanf(shutdownStr, "%d", &seconds); err == nil && seconds > 0 {
			cfg.ShutdownTimeout = time.Duration(seconds) * time.Second
		}
	}

	return cfg
}

// TLSEnabled reports whether the listener serves TLS.
func (c *Config) TLSEnabled() bool {
	return c.TLSCert != "" && c.TLSKey != ""
}
