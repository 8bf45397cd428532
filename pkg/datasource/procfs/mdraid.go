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
	"path/filepath"
	"strconv"
	"strings"

	"github.com/NVIDIA/kstat-exporter/pkg/config"
	"github.com/NVIDIA/kstat-exporter/pkg/datasource"
	"github.com/NVIDIA/kstat-exporter/pkg/datasource/file"
	"github.com/NVIDIA/kstat-exporter/pkg/metric"
)

// MdraidName is the configuration key of the mdraid datasource.
const MdraidName = "mdraid"

var (
	mdArrayState        = metric.NewDesc("mdraid_array_state", metric.Gauge, "MD RAID array state (1 for current state label).", "array", "state", "level")
	mdArrayDisks        = metric.NewDesc("mdraid_array_disks", metric.Gauge, "MD RAID array disk counts by role.", "array", "role")
	mdArrayDegraded     = metric.NewDesc("mdraid_array_degraded", metric.Gauge, "MD RAID array degraded state (1 if degraded).", "array")
	mdArraySyncProgress = metric.NewDesc("mdraid_array_sync_progress", metric.Gauge, "MD RAID array sync action progress (0-1).", "array", "action")
)

// Mdraid reports software RAID arrays from /proc/mdstat.
type Mdraid struct {
	datasource.Base
}

// NewMdraid returns the mdraid datasource.
func NewMdraid() *Mdraid {
	return &Mdraid{Base: datasource.NewBase(MdraidName,
		mdArrayState, mdArrayDisks, mdArrayDegraded, mdArraySyncProgress)}
}

// mdArray is one parsed array block.
type mdArray struct {
	name, state, level string

	total, active, working int64 // -1 when not reported
	action                 string
	progress               float64
}

// Poll parses /proc/mdstat. A host without the md driver has no file and
// yields an empty result.
func (m *Mdraid) Poll(ctx context.Context, cfg *config.Config) datasource.Result {
	lines, err := file.NewParser().GetLines(filepath.Join(cfg.ProcfsPath, "mdstat"))
	if err != nil {
		if datasource.IsAbsent(err) {
			return datasource.Empty()
		}
		return datasource.Failure(MdraidName, err)
	}
	if err := ctx.Err(); err != nil {
		return datasource.Failure(MdraidName, err)
	}

	set := metric.NewSet()
	for _, a := range parseMdstat(lines) {
		set.Add(mdArrayState, 1, a.name, a.state, a.level)
		for _, role := range []struct {
			name string
			v    int64
		}{{"total", a.total}, {"active", a.active}, {"working", a.working}} {
			if role.v >= 0 {
				set.Add(mdArrayDisks, float64(role.v), a.name, role.name)
			}
		}

		degraded := 0.0
		up := a.active
		if up < 0 {
			up = a.working
		}
		if a.total >= 0 && up >= 0 && up < a.total {
			degraded = 1
		}
		set.Add(mdArrayDegraded, degraded, a.name)

		if a.action != "" {
			set.Add(mdArraySyncProgress, a.progress, a.name, a.action)
		}
	}
	return datasource.FromSet(MdraidName, set)
}

// parseMdstat groups detail lines under their "mdN : state level ..."
// header line.
func parseMdstat(lines []string) []*mdArray {
	var (
		arrays []*mdArray
		cur    *mdArray
	)
	for _, line := range lines {
		if strings.HasPrefix(line, "md") {
			f := strings.Fields(line)
			if len(f) >= 2 && f[1] == ":" {
				cur = &mdArray{name: f[0], state: "unknown", level: "unknown", total: -1, active: -1, working: -1}
				if len(f) > 2 {
					cur.state = f[2]
				}
				if len(f) > 3 {
					cur.level = mdLevel(f[3:])
				}
				arrays = append(arrays, cur)
				continue
			}
		}
		if cur == nil {
			continue
		}
		for _, tok := range strings.Fields(line) {
			if cur.active < 0 {
				if t, a, ok := mdCounts(tok); ok {
					cur.total, cur.active = t, a
					continue
				}
			}
			if cur.working < 0 {
				if t, w, ok := mdWorking(tok); ok {
					cur.working = w
					if cur.total < 0 {
						cur.total = t
					}
				}
			}
		}
		if cur.action == "" {
			cur.action, cur.progress = mdSync(line)
		}
	}
	return arrays
}

func mdLevel(tokens []string) string {
	for _, t := range tokens {
		switch {
		case strings.HasPrefix(t, "raid"), t == "linear", t == "multipath", t == "faulty":
			return t
		}
	}
	return "unknown"
}

// mdCounts parses "[total/active]".
func mdCounts(tok string) (int64, int64, bool) {
	inner, ok := bracketed(tok)
	if !ok {
		return 0, 0, false
	}
	l, r, ok := strings.Cut(inner, "/")
	if !ok {
		return 0, 0, false
	}
	total, err1 := strconv.ParseInt(l, 10, 64)
	active, err2 := strconv.ParseInt(r, 10, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return total, active, true
}

// mdWorking parses member status such as "[UU_]".
func mdWorking(tok string) (int64, int64, bool) {
	inner, ok := bracketed(tok)
	if !ok || inner == "" || strings.Trim(inner, "U_") != "" {
		return 0, 0, false
	}
	return int64(len(inner)), int64(strings.Count(inner, "U")), true
}

func bracketed(tok string) (string, bool) {
	if len(tok) < 2 || tok[0] != '[' || tok[len(tok)-1] != ']' {
		return "", false
	}
	return tok[1 : len(tok)-1], true
}

var mdActions = []string{"resync", "recovery", "reshape", "check"}

// mdSync extracts the action and completed fraction from a line such as
// "[==>......]  recovery = 12.6% (...)".
func mdSync(line string) (string, float64) {
	action := ""
	for _, a := range mdActions {
		if strings.Contains(line, a) {
			action = a
			break
		}
	}
	if action == "" {
		return "", 0
	}
	for _, tok := range strings.Fields(line) {
		if p, ok := strings.CutSuffix(tok, "%"); ok {
			v, err := strconv.ParseFloat(p, 64)
			if err != nil {
				return "", 0
			}
			return action, v / 100
		}
	}
	return "", 0
}
