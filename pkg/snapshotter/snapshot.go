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

package snapshotter

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/NVIDIA/kstat-exporter/pkg/config"
	"github.com/NVIDIA/kstat-exporter/pkg/datasource"
	"github.com/NVIDIA/kstat-exporter/pkg/errors"
	"github.com/NVIDIA/kstat-exporter/pkg/metric"
)

// Request counters added to every snapshot.
var (
	requestsTotal = metric.NewDesc("metrics_requests_total", metric.Counter, "Total metrics requests served.")
	deniedTotal   = metric.NewDesc("metrics_requests_denied_total", metric.Counter, "Total metrics requests denied by the access gate.")
)

// Snapshotter polls the registered datasources and merges their results
// into one immutable snapshot per Collect. It keeps no state between
// collections apart from the request counters.
type Snapshotter struct {
	registry *datasource.Registry
	cfg      *config.Config

	requests atomic.Uint64
	denied   atomic.Uint64
}

// New returns a Snapshotter over the registry's datasources.
func New(registry *datasource.Registry, cfg *config.Config) *Snapshotter {
	return &Snapshotter{registry: registry, cfg: cfg}
}

// RecordRequest counts one served metrics request.
func (s *Snapshotter) RecordRequest() {
	s.requests.Add(1)
}

// RecordDenied counts one request rejected by the access gate.
func (s *Snapshotter) RecordDenied() {
	s.denied.Add(1)
}

type outcome struct {
	name   string
	result datasource.Result
}

// Collect runs every enabled datasource concurrently under the scrape
// deadline. Datasources still running at the deadline are reported as
// TIMEOUT failures and their late results are discarded. Failures are
// sorted by datasource name.
func (s *Snapshotter) Collect(ctx context.Context) (*metric.Snapshot, []Failure) {
	start := time.Now()
	defer func() {
		scrapeDuration.Observe(time.Since(start).Seconds())
	}()

	if s.cfg.ScrapeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.ScrapeTimeout)
		defer cancel()
	}

	var (
		failures []Failure
		pending  = make(map[string]bool)
		enabled  []datasource.Datasource
	)
	for _, e := range s.registry.Entries() {
		if !e.Datasource.Enabled(s.cfg) {
			continue
		}
		if e.Err != nil {
			failures = append(failures, Failure{Datasource: e.Datasource.Name(), Err: e.Err})
			continue
		}
		enabled = append(enabled, e.Datasource)
		pending[e.Datasource.Name()] = true
	}

	// Buffered so late results never block a finished collection.
	results := make(chan outcome, len(enabled))
	go s.run(ctx, enabled, results)

	var families []*metric.Family
collect:
	for len(pending) > 0 {
		select {
		case o := <-results:
			delete(pending, o.name)
			if o.result.Failed() {
				failures = append(failures, Failure{Datasource: o.name, Err: o.result.Err})
				continue
			}
			families = append(families, o.result.Families...)
		case <-ctx.Done():
			break collect
		}
	}
	for name := range pending {
		failures = append(failures, Failure{
			Datasource: name,
			Err: errors.WrapWithContext(errors.ErrCodeTimeout,
				fmt.Sprintf("datasource %s did not finish before the scrape deadline", name),
				ctx.Err(), map[string]any{"datasource": name}),
		})
	}

	families = append(families, s.counters()...)
	snap, err := metric.NewSnapshot(families...)
	if err != nil {
		// Registry ownership and per-result validation make this unreachable.
		slog.Error("failed to merge snapshot", slog.String("error", err.Error()))
		snap, _ = metric.NewSnapshot(s.counters()...)
	}

	sort.SliceStable(failures, func(i, j int) bool {
		return failures[i].Datasource < failures[j].Datasource
	})
	for _, f := range failures {
		datasourceFailures.WithLabelValues(f.Datasource, string(f.Code())).Inc()
		slog.Warn("datasource failed",
			slog.String("datasource", f.Datasource),
			slog.String("code", string(f.Code())),
			slog.String("error", f.Err.Error()))
	}

	slog.Debug("snapshot collection complete",
		slog.Int("families", snap.Len()),
		slog.Int("failures", len(failures)),
		slog.Duration("duration", time.Since(start)))

	return snap, failures
}

// run polls the datasources through an errgroup, honouring max_concurrency.
func (s *Snapshotter) run(ctx context.Context, dss []datasource.Datasource, results chan<- outcome) {
	var g errgroup.Group
	if s.cfg.MaxConcurrency > 0 {
		g.SetLimit(s.cfg.MaxConcurrency)
	}
	for _, ds := range dss {
		g.Go(func() error {
			results <- outcome{name: ds.Name(), result: s.poll(ctx, ds)}
			return nil
		})
	}
	_ = g.Wait()
}

// poll runs one datasource, converting a panic into a failure and
// checking the result against the declared families.
func (s *Snapshotter) poll(ctx context.Context, ds datasource.Datasource) (res datasource.Result) {
	name := ds.Name()
	start := time.Now()
	defer func() {
		datasourceDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}()
	defer func() {
		if r := recover(); r != nil {
			res = datasource.Failure(name, errors.New(errors.ErrCodeInternal, fmt.Sprintf("panic: %v", r)))
		}
	}()

	if err := ctx.Err(); err != nil {
		return datasource.Failure(name, errors.Wrap(errors.ErrCodeTimeout, "scrape deadline passed before poll", err))
	}
	res = ds.Poll(ctx, s.cfg)
	if res.Failed() {
		return res
	}
	if err := validate(ds, res.Families); err != nil {
		return datasource.Failure(name, err)
	}
	return res
}

// validate rejects undeclared families and families whose shape differs
// from the declaration.
func validate(ds datasource.Datasource, families []*metric.Family) error {
	declared := make(map[string]metric.Desc)
	for _, d := range ds.Families() {
		declared[d.Name] = d
	}
	seen := make(map[string]bool, len(families))
	for _, f := range families {
		d, ok := declared[f.Name]
		if !ok {
			return errors.NewWithContext(errors.ErrCodeInvalidData, "undeclared family",
				map[string]any{"family": f.Name})
		}
		if seen[f.Name] {
			return errors.NewWithContext(errors.ErrCodeDuplicateFamily, "family returned twice",
				map[string]any{"family": f.Name})
		}
		seen[f.Name] = true
		if f.Len() > 0 && !d.SameShape(f.Desc()) {
			return errors.NewWithContext(errors.ErrCodeInvalidData, "family does not match its declaration",
				map[string]any{"family": f.Name, "labels": f.LabelNames(), "declared": d.Labels})
		}
	}
	return nil
}

func (s *Snapshotter) counters() []*metric.Family {
	req := metric.NewFamilyFromDesc(requestsTotal)
	_ = req.Add(float64(s.requests.Load()))
	den := metric.NewFamilyFromDesc(deniedTotal)
	_ = den.Add(float64(s.denied.Load()))
	return []*metric.Family{req, den}
}
