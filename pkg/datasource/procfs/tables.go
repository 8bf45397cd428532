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
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/NVIDIA/kstat-exporter/pkg/datasource"
	"github.com/NVIDIA/kstat-exporter/pkg/datasource/file"
	"github.com/NVIDIA/kstat-exporter/pkg/metric"
)

func (r *reader) uptime(set *metric.Set) error {
	rows, err := file.NewParser().GetFields(filepath.Join(r.proc, "uptime"))
	if err != nil {
		return err
	}
	if len(rows) == 0 || len(rows[0]) < 2 {
		return fmt.Errorf("unexpected uptime format")
	}
	up, err := strconv.ParseFloat(rows[0][0], 64)
	if err != nil {
		return fmt.Errorf("failed to parse uptime %q: %w", rows[0][0], err)
	}
	idle, err := strconv.ParseFloat(rows[0][1], 64)
	if err != nil {
		return fmt.Errorf("failed to parse idle time %q: %w", rows[0][1], err)
	}
	set.Add(uptimeSeconds, up).Add(uptimeIdleSeconds, idle)
	return set.Err()
}

// loadavg parses "0.52 0.58 0.59 2/1234 56789".
func (r *reader) loadavg(set *metric.Set) error {
	rows, err := file.NewParser().GetFields(filepath.Join(r.proc, "loadavg"))
	if err != nil {
		return err
	}
	if len(rows) == 0 || len(rows[0]) < 5 {
		return fmt.Errorf("unexpected loadavg format")
	}
	f := rows[0]

	for i, interval := range []string{"1", "5", "15"} {
		v, err := strconv.ParseFloat(f[i], 64)
		if err != nil {
			return fmt.Errorf("failed to parse %s minute load %q: %w", interval, f[i], err)
		}
		set.Add(loadAverage, v, interval)
	}

	running, total, ok := strings.Cut(f[3], "/")
	if !ok {
		return fmt.Errorf("unexpected loadavg entity field %q", f[3])
	}
	for _, kv := range [][2]string{{"running", running}, {"total", total}, {"latest_pid", f[4]}} {
		v, err := strconv.ParseUint(kv[1], 10, 64)
		if err != nil {
			return fmt.Errorf("failed to parse loadavg %s %q: %w", kv[0], kv[1], err)
		}
		set.Add(loadProcesses, float64(v), kv[0])
	}
	return set.Err()
}

// meminfoNames covers keys whose label differs from the generic snake case.
var meminfoNames = map[string]string{
	"HugePages_Total": "hugepages_total",
	"HugePages_Free":  "hugepages_free",
	"HugePages_Rsvd":  "hugepages_rsvd",
	"HugePages_Surp":  "hugepages_surp",
	"AnonHugePages":   "anon_hugepages",
	"ShmemHugePages":  "shmem_hugepages",
	"Percpu":          "per_cpu",
	"Zswap":           "z_swap",
	"Zswapped":        "z_swapped",
	"SecPageTables":   "secondary_page_tables",
}

// meminfoField returns the label value for a /proc/meminfo key.
func meminfoField(key string) string {
	if n, ok := meminfoNames[key]; ok {
		return n
	}
	return datasource.SnakeCase(key)
}

// meminfo converts kB values to bytes; values without a unit (huge page
// counts) are reported as-is.
func (r *reader) meminfo(set *metric.Set) error {
	lines, err := file.NewParser().GetLines(filepath.Join(r.proc, "meminfo"))
	if err != nil {
		return err
	}
	for _, line := range lines {
		key, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		v, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return fmt.Errorf("failed to parse meminfo %s %q: %w", key, fields[0], err)
		}
		value := float64(v)
		if len(fields) > 1 && fields[1] == "kB" {
			value *= 1024
		}
		set.Add(meminfo, value, meminfoField(strings.TrimSpace(key)))
	}
	return set.Err()
}

func (r *reader) vmstat(set *metric.Set) error {
	rows, err := file.NewParser().GetFields(filepath.Join(r.proc, "vmstat"))
	if err != nil {
		return err
	}
	for _, f := range rows {
		if len(f) != 2 {
			continue
		}
		v, err := strconv.ParseFloat(f[1], 64)
		if err != nil {
			return fmt.Errorf("failed to parse vmstat %s %q: %w", f[0], f[1], err)
		}
		set.Add(vmstat, v, f[0])
	}
	return set.Err()
}

// snmpProtocols maps /proc/net/snmp section names to label prefixes.
// IcmpMsg is omitted; its columns vary per host.
var snmpProtocols = map[string]string{
	"Ip":      "ip",
	"Icmp":    "icmp",
	"Tcp":     "tcp",
	"Udp":     "udp",
	"UdpLite": "udp_lite",
}

// snmp parses header/value line pairs such as
//
//	Tcp: RtoAlgorithm RtoMin ...
//	Tcp: 1 200 ...
func (r *reader) snmp(set *metric.Set) error {
	lines, err := file.NewParser().GetLines(filepath.Join(r.proc, "net", "snmp"))
	if err != nil {
		return err
	}
	for i := 0; i+1 < len(lines); i += 2 {
		hproto, header, ok1 := strings.Cut(lines[i], ":")
		vproto, values, ok2 := strings.Cut(lines[i+1], ":")
		if !ok1 || !ok2 || hproto != vproto {
			return fmt.Errorf("unpaired snmp section at line %d", i+1)
		}
		prefix, known := snmpProtocols[hproto]
		if !known {
			continue
		}
		names, vals := strings.Fields(header), strings.Fields(values)
		if len(names) != len(vals) {
			return fmt.Errorf("snmp section %s has %d names and %d values", hproto, len(names), len(vals))
		}
		for j, n := range names {
			v, err := strconv.ParseFloat(vals[j], 64)
			if err != nil {
				return fmt.Errorf("failed to parse snmp %s.%s %q: %w", hproto, n, vals[j], err)
			}
			set.Add(snmp, v, prefix+"_"+datasource.SnakeCase(n))
		}
	}
	return set.Err()
}
