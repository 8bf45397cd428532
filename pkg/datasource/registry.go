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

package datasource

import (
	"fmt"
	"sync"

	"github.com/NVIDIA/kstat-exporter/pkg/errors"
	"github.com/NVIDIA/kstat-exporter/pkg/metric"
)

// Entry is a registered datasource. Err is set when registration was
// rejected; such a datasource is never polled and is reported as failed.
type Entry struct {
	Datasource Datasource
	Err        *errors.StructuredError
}

// Registry tracks datasources and the families each one owns.
type Registry struct {
	mu      sync.RWMutex
	entries []Entry
	names   map[string]struct{}
	owners  map[string]string
	descs   map[string]metric.Desc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		names:  make(map[string]struct{}),
		owners: make(map[string]string),
		descs:  make(map[string]metric.Desc),
	}
}

// Register adds ds. It is rejected when its name is taken, when one of its
// family descriptors is invalid, or when it declares a family owned by an
// earlier datasource. A rejected datasource is kept as a failed entry and
// the rejection error is returned.
func (r *Registry) Register(ds Datasource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := ds.Name()
	if _, dup := r.names[name]; dup {
		return r.reject(ds, errors.NewWithContext(errors.ErrCodeDuplicateFamily,
			fmt.Sprintf("datasource %s registered twice", name),
			map[string]any{"datasource": name}))
	}

	descs := ds.Families()
	seen := make(map[string]struct{}, len(descs))
	for _, d := range descs {
		if err := d.Validate(); err != nil {
			return r.reject(ds, errors.WrapWithContext(errors.ErrCodeInvalidData,
				fmt.Sprintf("datasource %s declares an invalid family", name), err,
				map[string]any{"datasource": name, "family": d.Name}))
		}
		owner, taken := r.owners[d.Name]
		if _, self := seen[d.Name]; taken || self {
			if !taken {
				owner = name
			}
			return r.reject(ds, errors.NewWithContext(errors.ErrCodeDuplicateFamily,
				fmt.Sprintf("family %s already registered by %s", d.Name, owner),
				map[string]any{"datasource": name, "family": d.Name, "owner": owner}))
		}
		seen[d.Name] = struct{}{}
	}

	for _, d := range descs {
		r.owners[d.Name] = name
		r.descs[d.Name] = d
	}
	r.names[name] = struct{}{}
	r.entries = append(r.entries, Entry{Datasource: ds})
	return nil
}

func (r *Registry) reject(ds Datasource, err *errors.StructuredError) error {
	r.entries = append(r.entries, Entry{Datasource: ds, Err: err})
	return err
}

// MustRegister registers every datasource, ignoring rejections, which are
// surfaced through Entries.
func (r *Registry) MustRegister(dss ...Datasource) *Registry {
	for _, ds := range dss {
		_ = r.Register(ds)
	}
	return r
}

// Entries returns the registered datasources in registration order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Names returns the registered datasource names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Datasource.Name())
	}
	return out
}

// Has reports whether a datasource with the given name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.names[name]
	return ok
}

// Desc returns the declaration of family and the datasource owning it.
func (r *Registry) Desc(family string) (metric.Desc, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descs[family]
	return d, r.owners[family], ok
}

// Families returns every declared family descriptor.
func (r *Registry) Families() []metric.Desc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]metric.Desc, 0, len(r.descs))
	for _, e := range r.entries {
		if e.Err != nil {
			continue
		}
		out = append(out, e.Datasource.Families()...)
	}
	return out
}
