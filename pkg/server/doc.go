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

// Package server exposes kernel statistics snapshots over HTTP.
//
// # Endpoints
//
//	GET /metrics       Prometheus text format 0.0.4
//	GET /metrics.json  flat JSON array of samples
//	GET /              plain index
//	GET /health        liveness
//	GET /ready         readiness, 503 while starting or draining
//
// Every other path returns 404. Methods other than GET and HEAD return 405.
//
// # Access Gate
//
// Scrape endpoints check the peer address against allowed_metrics_cidrs
// (403 on mismatch) and then, when auth_token is set, the bearer token
// (401 with WWW-Authenticate: Bearer). Both denials are counted in
// metrics_requests_denied_total. Health endpoints apply only the address
// check.
//
// # Middleware
//
// Requests pass through, outermost first: metrics, request ID, panic
// recovery, rate limiting (off when rate_limit is 0) and debug logging.
//
// # Lifecycle
//
// The server takes a socket from systemd when one is passed, otherwise it
// binds the configured address. It serves TLS when both tls_cert and
// tls_key are set, reports readiness through sd_notify and shuts down
// gracefully on SIGINT or SIGTERM.
//
//	snap := snapshotter.New(catalog.NewRegistry(), cfg)
//	if err := server.Run(ctx, cfg, snap); err != nil {
//	    return err
//	}
package server
