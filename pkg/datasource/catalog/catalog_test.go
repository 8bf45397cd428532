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

package catalog

import (
	"testing"

	"github.com/NVIDIA/kstat-exporter/pkg/config"
)

func TestDatasourcesMatchConfigNames(t *testing.T) {
	dss := Datasources()
	if len(dss) != len(config.Datasources) {
		t.Fatalf("expected %d datasources, got %d", len(config.Datasources), len(dss))
	}
	for i, ds := range dss {
		if ds.Name() != config.Datasources[i] {
			t.Errorf("datasource %d: expected %q, got %q", i, config.Datasources[i], ds.Name())
		}
	}
}

func TestRegistryAcceptsEveryDatasource(t *testing.T) {
	reg := NewRegistry()
	for _, e := range reg.Entries() {
		if e.Err != nil {
			t.Errorf("datasource %s rejected: %v", e.Datasource.Name(), e.Err)
		}
	}

	seen := make(map[string]bool)
	for _, d := range reg.Families() {
		if seen[d.Name] {
			t.Errorf("family %s declared twice", d.Name)
		}
		seen[d.Name] = true
		if _, owner, ok := reg.Desc(d.Name); !ok || owner == "" {
			t.Errorf("family %s has no owner", d.Name)
		}
	}
}

func TestDatasourcesAreFresh(t *testing.T) {
	a, b := Datasources(), Datasources()
	for i := range a {
		if a[i] == b[i] {
			t.Errorf("datasource %s instance shared between calls", a[i].Name())
		}
	}
}
