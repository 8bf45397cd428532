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
	stderrors "errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/NVIDIA/kstat-exporter/pkg/errors"
)

var (
	// ErrDuplicateLabelSet is returned when a sample repeats the label
	// values of an existing sample in the same family.
	ErrDuplicateLabelSet = stderrors.New("duplicate label set")

	// ErrLabelSetMismatch is returned when a sample's label names differ
	// from the family's label names.
	ErrLabelSetMismatch = stderrors.New("label set mismatch")
)

// labelSep cannot appear in valid UTF-8 label values.
const labelSep = "\xff"

// Family is a named, typed group of samples sharing one label name set.
type Family struct {
	Name string
	Kind Kind
	Help string

	labelNames []string
	fixed      bool
	samples    []Sample
	index      map[string]struct{}
}

// NewFamily creates an empty family. Its label names are fixed by the
// first sample added.
func NewFamily(name string, kind Kind, help string) *Family {
	return &Family{
		Name:  name,
		Kind:  kind,
		Help:  help,
		index: make(map[string]struct{}),
	}
}

// NewFamilyFromDesc creates an empty family whose label names are fixed
// by the descriptor.
func NewFamilyFromDesc(d Desc) *Family {
	f := NewFamily(d.Name, d.Kind, d.Help)
	f.labelNames = slices.Clone(d.Labels)
	f.fixed = true
	return f
}

// LabelNames returns the family's label names in declaration order.
func (f *Family) LabelNames() []string {
	return slices.Clone(f.labelNames)
}

// Desc returns the descriptor matching the family's current shape.
func (f *Family) Desc() Desc {
	return NewDesc(f.Name, f.Kind, f.Help, f.LabelNames()...)
}

// Len returns the number of samples.
func (f *Family) Len() int {
	return len(f.samples)
}

// Samples returns a copy of the samples in insertion order.
func (f *Family) Samples() []Sample {
	out := make([]Sample, len(f.samples))
	for i, s := range f.samples {
		out[i] = Sample{Labels: maps.Clone(s.Labels), Value: s.Value}
	}
	return out
}

// AddSample appends a sample. It fails with ErrLabelSetMismatch when the
// label names differ from the family's and with ErrDuplicateLabelSet when
// the label values collide with an existing sample.
func (f *Family) AddSample(labels Labels, value float64) error {
	if !f.fixed {
		f.labelNames = labels.Names()
		f.fixed = true
	}
	if len(labels) != len(f.labelNames) {
		return f.mismatch(labels)
	}

	var b strings.Builder
	for i, n := range f.labelNames {
		v, ok := labels[n]
		if !ok {
			return f.mismatch(labels)
		}
		if i > 0 {
			b.WriteString(labelSep)
		}
		b.WriteString(v)
	}
	key := b.String()

	if _, dup := f.index[key]; dup {
		return errors.WrapWithContext(errors.ErrCodeDuplicateLabels,
			fmt.Sprintf("family %s", f.Name), ErrDuplicateLabelSet,
			map[string]any{"family": f.Name, "labels": maps.Clone(labels)})
	}
	f.index[key] = struct{}{}
	f.samples = append(f.samples, Sample{Labels: maps.Clone(labels), Value: value})
	return nil
}

// Add appends a sample whose label values are given positionally in the
// family's label name order.
func (f *Family) Add(value float64, labelValues ...string) error {
	if !f.fixed || len(labelValues) != len(f.labelNames) {
		return errors.WrapWithContext(errors.ErrCodeInvalidData,
			fmt.Sprintf("family %s: expected %d label values, got %d", f.Name, len(f.labelNames), len(labelValues)),
			ErrLabelSetMismatch, map[string]any{"family": f.Name})
	}
	labels := make(Labels, len(labelValues))
	for i, n := range f.labelNames {
		labels[n] = labelValues[i]
	}
	return f.AddSample(labels, value)
}

// Has reports whether a sample with the given positional label values
// exists.
func (f *Family) Has(labelValues ...string) bool {
	if len(labelValues) != len(f.labelNames) {
		return false
	}
	_, ok := f.index[strings.Join(labelValues, labelSep)]
	return ok
}

// Clone returns a deep copy of the family.
func (f *Family) Clone() *Family {
	c := &Family{
		Name:       f.Name,
		Kind:       f.Kind,
		Help:       f.Help,
		labelNames: slices.Clone(f.labelNames),
		fixed:      f.fixed,
		samples:    f.Samples(),
		index:      maps.Clone(f.index),
	}
	if c.index == nil {
		c.index = make(map[string]struct{})
	}
	return c
}

func (f *Family) mismatch(labels Labels) error {
	return errors.WrapWithContext(errors.ErrCodeInvalidData,
		fmt.Sprintf("family %s: labels %v, want %v", f.Name, labels.Names(), f.labelNames),
		ErrLabelSetMismatch, map[string]any{"family": f.Name})
}
