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

// EDACName is the configuration key of the edac datasource.
const EDACName = "edac"

var (
	edacMCInfo            = metric.NewDesc("edac_mc_info", metric.Gauge, "EDAC memory controller information.", "controller", "mc_name")
	edacMCCorrectable     = metric.NewDesc("edac_mc_correctable_errors_total", metric.Counter, "Correctable errors on this memory controller.", "controller")
	edacMCUncorrectable   = metric.NewDesc("edac_mc_uncorrectable_errors_total", metric.Counter, "Uncorrectable errors on this memory controller.", "controller")
	edacMCCorrectableNI   = metric.NewDesc("edac_mc_correctable_errors_noinfo_total", metric.Counter, "Correctable errors with no DIMM information.", "controller")
	edacMCUncorrectableNI = metric.NewDesc("edac_mc_uncorrectable_errors_noinfo_total", metric.Counter, "Uncorrectable errors with no DIMM information.", "controller")
	edacMCSize            = metric.NewDesc("edac_mc_size_mb", metric.Gauge, "Memory controller size in MB.", "controller")
	edacMCSinceReset      = metric.NewDesc("edac_mc_seconds_since_reset", metric.Gauge, "Seconds since the error counters were reset.", "controller")
	edacDIMMCorrectable   = metric.NewDesc("edac_dimm_correctable_errors_total", metric.Counter, "Correctable errors on this DIMM.", "controller", "dimm", "dimm_label")
	edacDIMMUncorrectable = metric.NewDesc("edac_dimm_uncorrectable_errors_total", metric.Counter, "Uncorrectable errors on this DIMM.", "controller", "dimm", "dimm_label")
	edacDIMMSize          = metric.NewDesc("edac_dimm_size_mb", metric.Gauge, "DIMM size in MB.", "controller", "dimm", "dimm_label")
)

// EDAC reports memory error counters from /sys/devices/system/edac/mc.
type EDAC struct {
	datasource.Base
}

// NewEDAC returns the edac datasource.
func NewEDAC() *EDAC {
	return &EDAC{Base: datasource.NewBase(EDACName,
		edacMCInfo, edacMCCorrectable, edacMCUncorrectable, edacMCCorrectableNI,
		edacMCUncorrectableNI, edacMCSize, edacMCSinceReset,
		edacDIMMCorrectable, edacDIMMUncorrectable, edacDIMMSize)}
}

// Poll reports the error counters and size of each memory controller and
// of its dimm or rank entries.
func (e *EDAC) Poll(ctx context.Context, cfg *config.Config) datasource.Result {
	base := filepath.Join(cfg.SysfsPath, "devices", "system", "edac", "mc")
	names, ok, err := listDir(base)
	if err != nil {
		return datasource.Failure(EDACName, err)
	}
	if !ok {
		return datasource.Empty()
	}

	set := metric.NewSet()
	for _, mc := range names {
		if err := ctx.Err(); err != nil {
			return datasource.Failure(EDACName, err)
		}
		if !indexed(mc, "mc") {
			continue
		}
		addController(set, filepath.Join(base, mc), mc)
	}
	return datasource.FromSet(EDACName, set)
}

func addController(set *metric.Set, dir, mc string) {
	set.Add(edacMCInfo, 1, mc, readString(dir, "mc_name", unknown))
	for _, a := range []struct {
		attr string
		desc metric.Desc
	}{
		{"ce_count", edacMCCorrectable},
		{"ue_count", edacMCUncorrectable},
		{"ce_noinfo_count", edacMCCorrectableNI},
		{"ue_noinfo_count", edacMCUncorrectableNI},
		{"size_mb", edacMCSize},
		{"seconds_since_reset", edacMCSinceReset},
	} {
		if v, ok := readUint(dir, a.attr); ok {
			set.Add(a.desc, float64(v), mc)
		}
	}

	// Newer kernels expose dimmN, older ones csrowN-derived rankN.
	entries, _, err := listDir(dir)
	if err != nil {
		return
	}
	for _, dimm := range entries {
		dimmDir := filepath.Join(dir, dimm)
		if !(strings.HasPrefix(dimm, "dimm") || strings.HasPrefix(dimm, "rank")) || !isDir(dimmDir) {
			continue
		}
		label := readString(dimmDir, "dimm_label", "")
		for _, a := range []struct {
			attr string
			desc metric.Desc
		}{
			{"dimm_ce_count", edacDIMMCorrectable},
			{"dimm_ue_count", edacDIMMUncorrectable},
			{"size", edacDIMMSize},
		} {
			if v, ok := readUint(dimmDir, a.attr); ok {
				set.Add(a.desc, float64(v), mc, dimm, label)
			}
		}
	}
}
