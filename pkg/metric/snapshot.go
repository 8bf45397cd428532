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
	"sort"

	"github.com/NVIDIA/kstat-exporter/pkg/errors"
)

// Snapshot is the immutable set of families produced by one collection.
type Snapshot struct {
	families map[string]*Family
	names    []string
}

// NewSnapshot copies the given families into a snapshot. Two families with
// the same name are rejected.
func NewSnapshot(families ...*Family) (*Snapshot, error) {
	s := &Snapshot{families: make(map[string]*Family, len(families))}
	for _, f := range families {
		if f == nil {
			continue
		}
		if _, dup := s.families[f.Name]; dup {
			return nil, errors.NewWithContext(errors.ErrCodeDuplicateFamily,
				"family emitted twice", map[string]any{"family": f.Name})
		}
		s.families[f.Name] = f.Clone()
		s.names = append(s.names, f.Name)
	}
	sort.Strings(s.names)
	return s, nil
}

// Len returns the number of families.
func (s *Snapshot) Len() int {
	return len(s.names)
}

// Names returns the family names in sorted order.
func (s *Snapshot) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Family returns a copy of the named family.
func (s *Snapshot) Family(name string) (*Family, bool) {
	f, ok := s.families[name]
	if !ok {
		return nil, false
	}
	return f.Clone(), true
}

// Families returns copies of all families sorted by name.
func (s *Snapshot) Families() []*Family {
	out := make([]*Family, 0, len(s.names))
	for _, n := range s.names {
		out = append(out, s.families[n].Clone())
	}
	return out
}
