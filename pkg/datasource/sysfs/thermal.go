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

// ThermalName is the configuration key of the thermal datasource.
const ThermalName = "thermal"

var (
	thermalZoneTemp     = metric.NewDesc("thermal_zone_temperature_celsius", metric.Gauge, "Thermal zone temperature in Celsius.", "zone", "type")
	thermalTripPoint    = metric.NewDesc("thermal_zone_trip_point_celsius", metric.Gauge, "Thermal zone trip point temperature in Celsius.", "zone", "type", "trip_point", "trip_type")
	thermalCoolingCur   = metric.NewDesc("thermal_cooling_device_cur_state", metric.Gauge, "Current cooling device state.", "device", "type")
	thermalCoolingMax   = metric.NewDesc("thermal_cooling_device_max_state", metric.Gauge, "Maximum cooling device state.", "device", "type")
	thermalZoneCount    = metric.NewDesc("thermal_zone_count", metric.Gauge, "Number of thermal zones.")
	thermalCoolingCount = metric.NewDesc("thermal_cooling_device_count", metric.Gauge, "Number of cooling devices.")
)

// Thermal reports thermal zones and cooling devices.
type Thermal struct {
	datasource.Base
}

// NewThermal returns the thermal datasource.
func NewThermal() *Thermal {
	return &Thermal{Base: datasource.NewBase(ThermalName,
		thermalZoneTemp, thermalTripPoint, thermalCoolingCur, thermalCoolingMax,
		thermalZoneCount, thermalCoolingCount)}
}

// Poll reports every thermal zone with its trip points and every cooling
// device, plus the zone and cooling device counts.
func (t *Thermal) Poll(ctx context.Context, cfg *config.Config) datasource.Result {
	base := filepath.Join(cfg.SysfsPath, "class", "thermal")
	names, ok, err := listDir(base)
	if err != nil {
		return datasource.Failure(ThermalName, err)
	}
	if !ok {
		return datasource.Empty()
	}

	set := metric.NewSet()
	var zones, cooling int
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return datasource.Failure(ThermalName, err)
		}
		dir := filepath.Join(base, name)
		switch {
		case strings.HasPrefix(name, "thermal_zone"):
			zones++
			zoneType := readString(dir, "type", unknown)
			if v, ok := readInt(dir, "temp"); ok {
				set.Add(thermalZoneTemp, float64(v)/1e3, name, zoneType)
			}
			t.tripPoints(set, dir, name, zoneType)
		case strings.HasPrefix(name, "cooling_device"):
			cooling++
			devType := readString(dir, "type", unknown)
			if v, ok := readInt(dir, "cur_state"); ok {
				set.Add(thermalCoolingCur, float64(v), name, devType)
			}
			if v, ok := readInt(dir, "max_state"); ok {
				set.Add(thermalCoolingMax, float64(v), name, devType)
			}
		}
	}
	set.Add(thermalZoneCount, float64(zones))
	set.Add(thermalCoolingCount, float64(cooling))
	return datasource.FromSet(ThermalName, set)
}

func (t *Thermal) tripPoints(set *metric.Set, dir, zone, zoneType string) {
	attrs, _, err := listDir(dir)
	if err != nil {
		return
	}
	for _, attr := range attrs {
		rest, ok := strings.CutPrefix(attr, "trip_point_")
		if !ok {
			continue
		}
		index, ok := strings.CutSuffix(rest, "_temp")
		if !ok || !indexed(index, "") {
			continue
		}
		v, ok := readInt(dir, attr)
		if !ok {
			continue
		}
		tripType := readString(dir, "trip_point_"+index+"_type", unknown)
		set.Add(thermalTripPoint, float64(v)/1e3, zone, zoneType, index, tripType)
	}
}
