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

package serializer

import (
	"cmp"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/NVIDIA/kstat-exporter/pkg/metric"
)

// EncodeText writes snap in the Prometheus text format. Families are
// written in name order and samples in label-value order. Families
// without samples are omitted.
func EncodeText(w io.Writer, snap *metric.Snapshot) error {
	for _, f := range snap.Families() {
		if f.Len() == 0 {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, toFamily(f)); err != nil {
			return fmt.Errorf("failed to encode family %s: %w", f.Name, err)
		}
	}
	return nil
}

// EncodeGathered writes the families gathered from g in the text format.
// A gather error is logged and whatever was gathered is still written, so
// a broken self-metric never costs the kernel snapshot.
func EncodeGathered(w io.Writer, g prometheus.Gatherer) error {
	mfs, err := g.Gather()
	if err != nil {
		slog.Warn("failed to gather exporter metrics", "error", err)
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to encode family %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// toFamily converts f into its client_model form with labels in
// declaration order.
func toFamily(f *metric.Family) *dto.MetricFamily {
	typ := dto.MetricType_GAUGE
	if f.Kind == metric.Counter {
		typ = dto.MetricType_COUNTER
	}
	mf := &dto.MetricFamily{
		Name: proto.String(f.Name),
		Type: typ.Enum(),
	}
	if f.Help != "" {
		mf.Help = proto.String(f.Help)
	}

	names := f.LabelNames()
	for _, s := range sortedSamples(f) {
		m := &dto.Metric{}
		for _, n := range names {
			m.Label = append(m.Label, &dto.LabelPair{
				Name:  proto.String(n),
				Value: proto.String(s.Labels[n]),
			})
		}
		if typ == dto.MetricType_COUNTER {
			m.Counter = &dto.Counter{Value: proto.Float64(s.Value)}
		} else {
			m.Gauge = &dto.Gauge{Value: proto.Float64(s.Value)}
		}
		mf.Metric = append(mf.Metric, m)
	}
	return mf
}

// sortedSamples orders samples by their label values taken in label
// declaration order.
func sortedSamples(f *metric.Family) []metric.Sample {
	names := f.LabelNames()
	samples := f.Samples()
	slices.SortStableFunc(samples, func(a, b metric.Sample) int {
		for _, n := range names {
			if c := cmp.Compare(a.Labels[n], b.Labels[n]); c != 0 {
				return c
			}
		}
		return 0
	})
	return samples
}
