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

package defaults

import "time"

// Datasource timeouts for kernel state collection.
const (
	// ScrapeTimeout is the default overall deadline for one collection cycle.
	// Datasources still running at the deadline are reported as timed out.
	ScrapeTimeout = 10 * time.Second

	// NetlinkTimeout bounds one netlink request/response round-trip.
	NetlinkTimeout = 2 * time.Second

	// IPMITimeout bounds the wait for one IPMI response message.
	IPMITimeout = 2 * time.Second

	// StatfsTimeout bounds a single statfs call, which can hang on
	// unresponsive network mounts.
	StatfsTimeout = 1 * time.Second
)

// Server timeouts for HTTP server configuration.
const (
	// ServerReadTimeout is the maximum duration for reading a request.
	ServerReadTimeout = 10 * time.Second

	// ServerReadHeaderTimeout prevents slow header attacks.
	ServerReadHeaderTimeout = 5 * time.Second

	// ServerWriteTimeout is the maximum duration for writing a response.
	// Must exceed ScrapeTimeout so a partial snapshot can still be written.
	ServerWriteTimeout = 30 * time.Second

	// ServerIdleTimeout is the maximum duration to wait for the next request.
	ServerIdleTimeout = 120 * time.Second

	// ServerShutdownTimeout is the maximum duration for graceful shutdown.
	ServerShutdownTimeout = 30 * time.Second
)

// CLI timeouts for command-line operations.
const (
	// CLISnapshotTimeout is the default timeout for the snapshot command.
	CLISnapshotTimeout = 1 * time.Minute
)
