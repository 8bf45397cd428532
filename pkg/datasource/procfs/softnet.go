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

package procfs

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/NVIDIA/kstat-exporter/pkg/config"
	"github.com/NVIDIA/kstat-exporter/pkg/datasource"
	"github.com/NVIDIA/kstat-exporter/pkg/datasource/file"
	"github.com/NVIDIA/kstat-exporter/pkg/metric"
)

// SoftnetName is the configuration key of the softnet datasource.
const SoftnetName = "softnet"

var softnet = metric.NewDesc("softnet", metric.Gauge, "Per-CPU counters from /proc/net/softnet_stat.", "cpu", "field")

// softnetColumns maps hexadecimal column positions to field labels.
// Columns 3 to 8 are unused by the kernel and 12 duplicates the row index.
var softnetColumns = []struct {
	index int
	field string
}{
	{0, "softnet_processed_counter"},
	{1, "softnet_dropped_counter"},
	{2, "softnet_time_squeeze_counter"},
	{9, "softnet_received_rps_counter"},
	{10, "softnet_flow_limit_count_counter"},
	{11, "softnet_backlog_len_total"},
	{13, "softnet_input_qlen"},
	{14, "softnet_process_qlen"},
}

// Softnet reports per-CPU packet processing counters.
type Softnet struct {
	datasource.Base
}

// NewSoftnet returns the softnet datasource.
func NewSoftnet() *Softnet {
	return &Softnet{Base: datasource.NewBase(SoftnetName, softnet)}
}

// Poll reads /proc/net/softnet_stat. Columns missing on older kernels are
// omitted for that row.
func (s *Softnet) Poll(ctx context.Context, cfg *config.Config) datasource.Result {
	path := filepath.Join(cfg.ProcfsPath, "net", "softnet_stat")
	rows, err := file.NewParser().GetFields(path)
	if err != nil {
		if datasource.IsAbsent(err) {
			return datasource.Empty()
		}
		return datasource.Failure(SoftnetName, err)
	}
	if err := ctx.Err(); err != nil {
		return datasource.Failure(SoftnetName, err)
	}

	set := metric.NewSet()
	for row, cols := range rows {
		cpu := strconv.Itoa(row)
		for _, c := range softnetColumns {
			if c.index >= len(cols) {
				continue
			}
			v, err := strconv.ParseUint(cols[c.index], 16, 64)
			if err != nil {
				return datasource.Failure(SoftnetName,
					fmt.Errorf("failed to parse %s for cpu %s from %s: %w", c.field, cpu, path, err))
			}
			set.Add(softnet, float64(v), cpu, c.field)
		}
		set.Add(softnet, float64(row), cpu, "softnet_cpu_index")
	}
	return datasource.FromSet(SoftnetName, set)
}
