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

// Package snapshotter runs the enabled datasources for one scrape and
// merges their results into an immutable metric.Snapshot.
//
// # Collection
//
// Collect polls every enabled datasource concurrently through an errgroup,
// optionally bounded by max_concurrency, under the scrape_timeout
// deadline:
//
//	reg := catalog.NewRegistry()
//	snap := snapshotter.New(reg, cfg)
//	s, failures := snap.Collect(ctx)
//
// A datasource failure never aborts the scrape. Failed, panicking and
// timed-out datasources are returned as Failure values sorted by name and
// logged at warn level; the snapshot holds everything that succeeded.
// Results arriving after the deadline are discarded.
//
// Each result is checked against the families its datasource declared:
// an undeclared family or a label set that differs from the declaration
// fails that datasource.
//
// # Request counters
//
// RecordRequest and RecordDenied maintain the metrics_requests_total and
// metrics_requests_denied_total counters, which are appended to every
// snapshot.
//
// # Self-instrumentation
//
// Scrape and per-datasource durations and failure counts are registered
// with the default Prometheus registry through promauto:
//
//   - kstat_scrape_duration_seconds
//   - kstat_datasource_duration_seconds{datasource}
//   - kstat_datasource_failures_total{datasource, code}
package snapshotter
