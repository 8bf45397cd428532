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

// HwmonName is the configuration key of the hwmon datasource.
const HwmonName = "hwmon"

var (
	hwmonTemperature = metric.NewDesc("hwmon_temperature_celsius", metric.Gauge, "Hardware monitor temperature sensor reading in Celsius.", "chip", "sensor")
	hwmonFan         = metric.NewDesc("hwmon_fan_rpm", metric.Gauge, "Hardware monitor fan speed in RPM.", "chip", "sensor")
	hwmonVoltage     = metric.NewDesc("hwmon_voltage_volts", metric.Gauge, "Hardware monitor voltage reading in Volts.", "chip", "sensor")
	hwmonPower       = metric.NewDesc("hwmon_power_watts", metric.Gauge, "Hardware monitor power reading in Watts.", "chip", "sensor")
	hwmonCurrent     = metric.NewDesc("hwmon_current_amps", metric.Gauge, "Hardware monitor current reading in Amps.", "chip", "sensor")
)

// hwmonSensors maps the sysfs sensor type prefix to its family and the
// divisor that converts the raw reading to base units.
var hwmonSensors = []struct {
	prefix  string
	desc    metric.Desc
	divisor float64
}{
	{"temp", hwmonTemperature, 1e3},
	{"fan", hwmonFan, 1},
	{"in", hwmonVoltage, 1e3},
	{"power", hwmonPower, 1e6},
	{"curr", hwmonCurrent, 1e3},
}

// Hwmon reports sensor readings from /sys/class/hwmon.
type Hwmon struct {
	datasource.Base
}

// NewHwmon returns the hwmon datasource.
func NewHwmon() *Hwmon {
	return &Hwmon{Base: datasource.NewBase(HwmonName,
		hwmonTemperature, hwmonFan, hwmonVoltage, hwmonPower, hwmonCurrent)}
}

// Poll reads every *_input attribute of every chip that reports a name.
// Chips sharing a name, such as one nvme chip per drive, are told apart
// by their hwmon directory: "nvme/hwmon1".
func (h *Hwmon) Poll(ctx context.Context, cfg *config.Config) datasource.Result {
	base := filepath.Join(cfg.SysfsPath, "class", "hwmon")
	chips, ok, err := listDir(base)
	if err != nil {
		return datasource.Failure(HwmonName, err)
	}
	if !ok {
		return datasource.Empty()
	}

	names := make(map[string]string, len(chips))
	seen := make(map[string]int, len(chips))
	for _, c := range chips {
		if name := readString(filepath.Join(base, c), "name", ""); name != "" {
			names[c] = name
			seen[name]++
		}
	}

	set := metric.NewSet()
	for _, c := range chips {
		if err := ctx.Err(); err != nil {
			return datasource.Failure(HwmonName, err)
		}
		dir := filepath.Join(base, c)
		chip, ok := names[c]
		if !ok {
			continue
		}
		if seen[chip] > 1 {
			chip += "/" + c
		}
		attrs, _, err := listDir(dir)
		if err != nil {
			continue
		}
		for _, attr := range attrs {
			sensor, ok := strings.CutSuffix(attr, "_input")
			if !ok {
				continue
			}
			for _, s := range hwmonSensors {
				index, ok := strings.CutPrefix(sensor, s.prefix)
				if !ok || !indexed(index, "") {
					continue
				}
				v, ok := readInt(dir, attr)
				if !ok {
					break
				}
				label := readString(dir, sensor+"_label", s.prefix+"_"+index)
				set.AddFirst(s.desc, float64(v)/s.divisor, chip, label)
				break
			}
		}
	}
	return datasource.FromSet(HwmonName, set)
}
