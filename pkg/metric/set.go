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

// Set accumulates the families produced by one datasource poll.
// The first error encountered is kept and returned by Families; later
// additions are still applied so one bad sample does not hide the rest
// from debugging.
type Set struct {
	families map[string]*Family
	order    []string
	err      error
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{families: make(map[string]*Family)}
}

// Family returns the family for d, creating it on first use.
func (s *Set) Family(d Desc) *Family {
	f, ok := s.families[d.Name]
	if !ok {
		f = NewFamilyFromDesc(d)
		s.families[d.Name] = f
		s.order = append(s.order, d.Name)
	}
	return f
}

// Add records a sample for d with positional label values.
func (s *Set) Add(d Desc, value float64, labelValues ...string) *Set {
	if err := s.Family(d).Add(value, labelValues...); err != nil && s.err == nil {
		s.err = err
	}
	return s
}

// AddFirst records a sample for d unless one with the same label values
// already exists. It reports whether the sample was added. Sources whose
// kernel interface can legitimately repeat a key use it to keep the
// first occurrence.
func (s *Set) AddFirst(d Desc, value float64, labelValues ...string) bool {
	if s.Family(d).Has(labelValues...) {
		return false
	}
	s.Add(d, value, labelValues...)
	return true
}

// AddLabels records a sample for d with named label values.
func (s *Set) AddLabels(d Desc, value float64, labels Labels) *Set {
	if err := s.Family(d).AddSample(labels, value); err != nil && s.err == nil {
		s.err = err
	}
	return s
}

// Err returns the first error recorded.
func (s *Set) Err() error {
	return s.err
}

// Families returns the non-empty families in first-use order, or the first
// error recorded.
func (s *Set) Families() ([]*Family, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*Family, 0, len(s.order))
	for _, n := range s.order {
		if f := s.families[n]; f.Len() > 0 {
			out = append(out, f)
		}
	}
	return out, nil
}
