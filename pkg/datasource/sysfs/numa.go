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
	"strconv"
	"strings"

	"github.com/NVIDIA/kstat-exporter/pkg/config"
	"github.com/NVIDIA/kstat-exporter/pkg/datasource"
	"github.com/NVIDIA/kstat-exporter/pkg/datasource/file"
	"github.com/NVIDIA/kstat-exporter/pkg/metric"
)

// NUMAName is the configuration key of the numa datasource.
const NUMAName = "numa"

var (
	numaNodeCount  = metric.NewDesc("numa_node_count", metric.Gauge, "Number of NUMA nodes.")
	numaNodeMemory = metric.NewDesc("numa_node_memory_bytes", metric.Gauge, "NUMA node memory information in bytes.", "node", "type")
	numaNodeStat   = metric.NewDesc("numa_node_stat_pages", metric.Gauge, "NUMA node hit/miss statistics in pages.", "node", "type")
)

// NUMA reports per-node memory and allocation statistics.
type NUMA struct {
	datasource.Base
}

// NewNUMA returns the numa datasource.
func NewNUMA() *NUMA {
	return &NUMA{Base: datasource.NewBase(NUMAName, numaNodeCount, numaNodeMemory, numaNodeStat)}
}

// Poll reads meminfo and numastat of every NUMA node. A repeated meminfo
// key keeps its first value.
func (n *NUMA) Poll(ctx context.Context, cfg *config.Config) datasource.Result {
	base := filepath.Join(cfg.SysfsPath, "devices", "system", "node")
	names, ok, err := listDir(base)
	if err != nil {
		return datasource.Failure(NUMAName, err)
	}
	if !ok {
		return datasource.Empty()
	}

	set := metric.NewSet()
	parser := file.NewParser()
	nodes := 0
	for _, node := range names {
		if err := ctx.Err(); err != nil {
			return datasource.Failure(NUMAName, err)
		}
		if !indexed(node, "node") {
			continue
		}
		nodes++
		dir := filepath.Join(base, node)

		// "Node 0 MemTotal:       16384000 kB"
		if rows, err := parser.GetFields(filepath.Join(dir, "meminfo")); err == nil {
			for _, f := range rows {
				if len(f) < 4 {
					continue
				}
				v, err := strconv.ParseUint(f[3], 10, 64)
				if err != nil {
					continue
				}
				if len(f) > 4 && f[4] == "kB" {
					v *= 1024
				}
				set.AddFirst(numaNodeMemory, float64(v), node, strings.TrimSuffix(f[2], ":"))
			}
		}

		// "numa_hit 123456"
		if rows, err := parser.GetFields(filepath.Join(dir, "numastat")); err == nil {
			for _, f := range rows {
				if len(f) < 2 {
					continue
				}
				v, err := strconv.ParseUint(f[1], 10, 64)
				if err != nil {
					continue
				}
				set.AddFirst(numaNodeStat, float64(v), node, f[0])
			}
		}
	}
	set.Add(numaNodeCount, float64(nodes))
	return datasource.FromSet(NUMAName, set)
}
