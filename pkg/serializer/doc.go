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

// Package serializer renders metric snapshots for the HTTP endpoints and
// the snapshot command.
//
// # Formats
//
// Text: the Prometheus text exposition format 0.0.4, produced by
// converting each family to its client_model form and encoding it with
// expfmt. Families are written in name order, samples in label-value
// order, and labels in the order the family declares them.
//
// JSON: a flat array with one object per sample:
//
//	[{"_name_": "thermal_zone_temperature_celsius", "type": "x86_pkg_temp", "zone": "0", "_value_": 45}]
//
// YAML: the same sample list rendered as a YAML sequence.
//
// Families without samples are omitted from every format.
//
// # Usage
//
//	w := serializer.NewWriter(serializer.FormatText, os.Stdout,
//	    serializer.WithGatherer(prometheus.DefaultGatherer))
//	if err := w.Serialize(ctx, snap); err != nil {
//	    return err
//	}
//
// A gatherer appends the exporter's own instrumentation after the
// snapshot in text output.
package serializer
