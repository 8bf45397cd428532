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

// Package defaults provides centralized configuration constants for the exporter.
//
// This package defines timeout values, read limits and listener defaults used
// across the codebase. Centralizing these values ensures consistency and makes
// tuning easier.
//
// # Timeout Categories
//
//   - Datasource timeouts: scrape deadline and per round-trip bounds
//   - Server timeouts: HTTP server configuration
//   - CLI timeouts: one-shot snapshot command
//
// # Usage
//
//	import "github.com/NVIDIA/kstat-exporter/pkg/defaults"
//
//	ctx, cancel := context.WithTimeout(ctx, defaults.ScrapeTimeout)
//	defer cancel()
//
// # Timeout Guidelines
//
//   - Round-trips (netlink, IPMI, statfs) stay well below the scrape deadline
//   - The scrape deadline stays below the server write timeout
//   - Server shutdown: 30s for graceful shutdown
package defaults
