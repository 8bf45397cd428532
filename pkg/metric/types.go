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

package metric

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/prometheus/common/model"

	"github.com/NVIDIA/kstat-exporter/pkg/errors"
)

// Kind distinguishes monotonically increasing counters from gauges.
type Kind int

const (
	// Gauge is a value that can go up and down.
	Gauge Kind = iota
	// Counter is a value that only increases between resets.
	Counter
)

// String returns the exposition type name of the kind.
func (k Kind) String() string {
	switch k {
	case Counter:
		return "counter"
	case Gauge:
		return "gauge"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText renders the kind as its exposition type name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Labels maps label names to label values.
type Labels map[string]string

// Names returns the label names in sorted order.
func (l Labels) Names() []string {
	names := make([]string, 0, len(l))
	for n := range l {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Desc declares a metric family ahead of collection.
type Desc struct {
	Name   string
	Kind   Kind
	Help   string
	Labels []string
}

// NewDesc returns a descriptor with the given label names.
func NewDesc(name string, kind Kind, help string, labels ...string) Desc {
	return Desc{
		Name:   name,
		Kind:   kind,
		Help:   help,
		Labels: labels,
	}
}

// Validate checks the family and label names against the exposition grammar.
func (d Desc) Validate() error {
	if !model.LegacyValidation.IsValidMetricName(d.Name) {
		return errors.NewWithContext(errors.ErrCodeInvalidData, "invalid metric family name",
			map[string]any{"family": d.Name})
	}
	seen := make(map[string]struct{}, len(d.Labels))
	for _, l := range d.Labels {
		if !model.LegacyValidation.IsValidLabelName(l) || strings.HasPrefix(l, "__") {
			return errors.NewWithContext(errors.ErrCodeInvalidData, "invalid label name",
				map[string]any{"family": d.Name, "label": l})
		}
		if _, dup := seen[l]; dup {
			return errors.NewWithContext(errors.ErrCodeInvalidData, "repeated label name",
				map[string]any{"family": d.Name, "label": l})
		}
		seen[l] = struct{}{}
	}
	return nil
}

// SameShape reports whether two descriptors agree on kind and label names.
func (d Desc) SameShape(o Desc) bool {
	return d.Kind == o.Kind && slices.Equal(sortedCopy(d.Labels), sortedCopy(o.Labels))
}

func sortedCopy(s []string) []string {
	c := slices.Clone(s)
	sort.Strings(c)
	return c
}

// Sample is one labelled value of a family.
type Sample struct {
	Labels Labels  `json:"labels" yaml:"labels"`
	Value  float64 `json:"value" yaml:"value"`
}
