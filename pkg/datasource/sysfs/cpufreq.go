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

	"github.com/NVIDIA/kstat-exporter/pkg/config"
	"github.com/NVIDIA/kstat-exporter/pkg/datasource"
	"github.com/NVIDIA/kstat-exporter/pkg/metric"
)

// CPUFreqName is the configuration key of the cpufreq datasource.
const CPUFreqName = "cpufreq"

var cpuFrequency = metric.NewDesc("cpu_frequency_hz", metric.Gauge, "Current CPU frequency per core.", "cpu", "source")

// CPUFreq reports the current frequency of each CPU.
type CPUFreq struct {
	datasource.Base
}

// NewCPUFreq returns the cpufreq datasource.
func NewCPUFreq() *CPUFreq {
	return &CPUFreq{Base: datasource.NewBase(CPUFreqName, cpuFrequency)}
}

// Poll prefers scaling_cur_freq and falls back to cpuinfo_cur_freq, which
// is only readable by root on most kernels.
func (c *CPUFreq) Poll(ctx context.Context, cfg *config.Config) datasource.Result {
	base := filepath.Join(cfg.SysfsPath, "devices", "system", "cpu")
	names, ok, err := listDir(base)
	if err != nil {
		return datasource.Failure(CPUFreqName, err)
	}
	if !ok {
		return datasource.Empty()
	}

	set := metric.NewSet()
	for _, cpu := range names {
		if err := ctx.Err(); err != nil {
			return datasource.Failure(CPUFreqName, err)
		}
		if !indexed(cpu, "cpu") {
			continue
		}
		dir := filepath.Join(base, cpu, "cpufreq")
		for _, source := range []string{"scaling_cur_freq", "cpuinfo_cur_freq"} {
			if khz, ok := readUint(dir, source); ok {
				set.Add(cpuFrequency, float64(khz)*1000, cpu, source)
				break
			}
		}
	}
	return datasource.FromSet(CPUFreqName, set)
}
