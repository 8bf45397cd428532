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
	"encoding/json"
	"fmt"
	"io"
	"math"

	"gopkg.in/yaml.v3"

	"github.com/NVIDIA/kstat-exporter/pkg/metric"
)

const (
	// NameKey holds the family name in a flattened sample.
	NameKey = "_name_"
	// ValueKey holds the sample value in a flattened sample.
	ValueKey = "_value_"
)

// Flatten turns snap into one object per sample carrying the family name,
// every label and the value. Non-finite values become null.
func Flatten(snap *metric.Snapshot) []map[string]any {
	out := make([]map[string]any, 0)
	for _, f := range snap.Families() {
		for _, s := range sortedSamples(f) {
			obj := make(map[string]any, len(s.Labels)+2)
			for k, v := range s.Labels {
				obj[k] = v
			}
			obj[NameKey] = f.Name
			if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
				obj[ValueKey] = nil
			} else {
				obj[ValueKey] = s.Value
			}
			out = append(out, obj)
		}
	}
	return out
}

// EncodeJSON writes snap as a flat JSON array of samples.
func EncodeJSON(w io.Writer, snap *metric.Snapshot) error {
	if err := json.NewEncoder(w).Encode(Flatten(snap)); err != nil {
		return fmt.Errorf("failed to serialize to JSON: %w", err)
	}
	return nil
}

// EncodeYAML writes the flattened samples as a YAML sequence.
func EncodeYAML(w io.Writer, snap *metric.Snapshot) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(Flatten(snap)); err != nil {
		return fmt.Errorf("failed to serialize to YAML: %w", err)
	}
	return encoder.Close()
}
