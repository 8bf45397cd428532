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

// NVMeName is the configuration key of the nvme datasource.
const NVMeName = "nvme"

var (
	nvmeInfo  = metric.NewDesc("nvme_info", metric.Gauge, "NVMe controller identity.", "device", "model", "serial", "firmware_rev")
	nvmeState = metric.NewDesc("nvme_state", metric.Gauge, "NVMe controller state (1 for current state).", "device", "state")
)

var nvmeStates = []string{"live", "dead", "deleting", "connecting", "resetting"}

// NVMe reports controller identity and state from /sys/class/nvme.
type NVMe struct {
	datasource.Base
}

// NewNVMe returns the nvme datasource.
func NewNVMe() *NVMe {
	return &NVMe{Base: datasource.NewBase(NVMeName, nvmeInfo, nvmeState)}
}

// Poll reads the attributes directly rather than through procfs'
// NVMeClass, which fails the whole class when cntlid is missing.
func (n *NVMe) Poll(ctx context.Context, cfg *config.Config) datasource.Result {
	base := filepath.Join(cfg.SysfsPath, "class", "nvme")
	names, ok, err := listDir(base)
	if err != nil {
		return datasource.Failure(NVMeName, err)
	}
	if !ok {
		return datasource.Empty()
	}

	set := metric.NewSet()
	for _, dev := range names {
		if err := ctx.Err(); err != nil {
			return datasource.Failure(NVMeName, err)
		}
		dir := filepath.Join(base, dev)
		if !strings.HasPrefix(dev, "nvme") || !isDir(dir) {
			continue
		}
		set.Add(nvmeInfo, 1, dev,
			readString(dir, "model", ""),
			readString(dir, "serial", ""),
			readString(dir, "firmware_rev", ""))
		for _, s := range oneHot(readString(dir, "state", unknown), nvmeStates) {
			set.Add(nvmeState, s.value, dev, s.name)
		}
	}
	return datasource.FromSet(NVMeName, set)
}
