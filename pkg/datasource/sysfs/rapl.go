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

package sysfs

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/NVIDIA/kstat-exporter/pkg/config"
	"github.com/NVIDIA/kstat-exporter/pkg/datasource"
	"github.com/NVIDIA/kstat-exporter/pkg/metric"
)

// RAPLName is the configuration key of the rapl datasource.
const RAPLName = "rapl"

var (
	raplEnergy    = metric.NewDesc("rapl_energy_joules", metric.Gauge, "RAPL zone energy counter in Joules.", "zone", "name")
	raplMaxEnergy = metric.NewDesc("rapl_max_energy_joules", metric.Gauge, "RAPL zone energy counter range in Joules.", "zone", "name")
)

// RAPL reports Running Average Power Limit energy counters from
// /sys/class/powercap.
type RAPL struct {
	datasource.Base
}

// NewRAPL returns the rapl datasource.
func NewRAPL() *RAPL {
	return &RAPL{Base: datasource.NewBase(RAPLName, raplEnergy, raplMaxEnergy)}
}

// isRAPLZone matches top-level zones such as intel-rapl:0 and amd-rapl:1.
func isRAPLZone(name string) bool {
	return (strings.HasPrefix(name, "intel-rapl:") || strings.HasPrefix(name, "amd-rapl:")) &&
		strings.Count(name, ":") == 1
}

// Poll reads the energy counter of each intel-rapl package zone and of
// the subzones below it.
func (r *RAPL) Poll(ctx context.Context, cfg *config.Config) datasource.Result {
	base := filepath.Join(cfg.SysfsPath, "class", "powercap")
	names, ok, err := listDir(base)
	if err != nil {
		return datasource.Failure(RAPLName, err)
	}
	if !ok {
		return datasource.Empty()
	}

	set := metric.NewSet()
	for _, zone := range names {
		if err := ctx.Err(); err != nil {
			return datasource.Failure(RAPLName, err)
		}
		if !isRAPLZone(zone) {
			continue
		}
		dir := filepath.Join(base, zone)
		addRAPLZone(set, dir, zone, readString(dir, "name", unknown))

		// Subzones (core, uncore, dram) live below their package zone.
		subs, _, err := listDir(dir)
		if err != nil {
			continue
		}
		for _, sub := range subs {
			subDir := filepath.Join(dir, sub)
			if !strings.Contains(sub, ":") || !isDir(subDir) {
				continue
			}
			name := readString(subDir, "name", "")
			if name == "" {
				continue
			}
			addRAPLZone(set, subDir, sub, name)
		}
	}
	return datasource.FromSet(RAPLName, set)
}

// addRAPLZone keeps the first occurrence because powercap also links
// subzones at the top level on some kernels.
func addRAPLZone(set *metric.Set, dir, zone, name string) {
	if uj, ok := readUint(dir, "energy_uj"); ok {
		set.AddFirst(raplEnergy, float64(uj)/1e6, zone, name)
	}
	if uj, ok := readUint(dir, "max_energy_range_uj"); ok {
		set.AddFirst(raplMaxEnergy, float64(uj)/1e6, zone, name)
	}
}
