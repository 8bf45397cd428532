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
	"log/slog"
	"os"
	"sort"
	"strconv"

	promfs "github.com/prometheus/procfs"
	"github.com/prometheus/procfs/blockdevice"

	"github.com/NVIDIA/kstat-exporter/pkg/config"
	"github.com/NVIDIA/kstat-exporter/pkg/datasource"
	"github.com/NVIDIA/kstat-exporter/pkg/errors"
	"github.com/NVIDIA/kstat-exporter/pkg/metric"
)

// Name is the configuration key of the general procfs datasource.
const Name = "procfs"

var (
	uptimeSeconds     = metric.NewDesc("uptime_seconds", metric.Gauge, "System uptime in seconds.")
	uptimeIdleSeconds = metric.NewDesc("uptime_idle_seconds", metric.Gauge, "Sum of idle time across all CPUs in seconds.")
	loadAverage       = metric.NewDesc("load_average", metric.Gauge, "System load averages.", "interval")
	loadProcesses     = metric.NewDesc("load_processes", metric.Gauge, "Runnable and total scheduling entities from /proc/loadavg.", "kind")
	cpuSeconds        = metric.NewDesc("cpu_seconds_total", metric.Counter, "CPU time spent in seconds.", "cpu", "mode")
	contextSwitches   = metric.NewDesc("cpu_context_switches_total", metric.Counter, "Number of context switches since boot.")
	bootTime          = metric.NewDesc("cpu_boot_time_seconds", metric.Gauge, "Boot time, in seconds since the epoch.")
	processesForked   = metric.NewDesc("processes_forked_total", metric.Counter, "Number of forks since boot.")
	processesRunning  = metric.NewDesc("processes_running", metric.Gauge, "Number of processes currently runnable.")
	processesBlocked  = metric.NewDesc("processes_blocked", metric.Gauge, "Number of processes blocked waiting for I/O.")
	meminfo           = metric.NewDesc("meminfo", metric.Gauge, "Values from /proc/meminfo (bytes unless a count).", "field")
	vmstat            = metric.NewDesc("vmstat", metric.Gauge, "Raw values from /proc/vmstat.", "field")
	diskstats         = metric.NewDesc("diskstats", metric.Gauge, "Raw disk statistics from /proc/diskstats.", "device", "field")
	netdev            = metric.NewDesc("netdev", metric.Gauge, "Raw network device stats from /proc/net/dev.", "interface", "field")
	tcpSockets        = metric.NewDesc("tcp_sockets", metric.Gauge, "TCP socket counts by state from /proc/net/tcp.", "state")
	udpSockets        = metric.NewDesc("udp_sockets", metric.Gauge, "UDP socket counts by state from /proc/net/udp.", "state")
	arpEntries        = metric.NewDesc("arp_entries", metric.Gauge, "ARP table entries by device from /proc/net/arp.", "device")
	snmp              = metric.NewDesc("snmp", metric.Gauge, "SNMP counters from /proc/net/snmp.", "field")
)

// Procfs reports the general /proc tables.
type Procfs struct {
	datasource.Base
}

// New returns the procfs datasource.
func New() *Procfs {
	return &Procfs{Base: datasource.NewBase(Name,
		uptimeSeconds, uptimeIdleSeconds, loadAverage, loadProcesses,
		cpuSeconds, contextSwitches, bootTime, processesForked,
		processesRunning, processesBlocked, meminfo, vmstat, diskstats,
		netdev, tcpSockets, udpSockets, arpEntries, snmp,
	)}
}

type table struct {
	name    string
	collect func(*metric.Set) error
}

// Poll reads every table independently. A table missing on this kernel is
// skipped; any other error fails the datasource.
func (p *Procfs) Poll(ctx context.Context, cfg *config.Config) datasource.Result {
	if _, err := os.Stat(cfg.ProcfsPath); err != nil {
		if datasource.IsAbsent(err) {
			return datasource.Empty()
		}
		return datasource.Failure(Name, err)
	}

	fs, err := promfs.NewFS(cfg.ProcfsPath)
	if err != nil {
		return datasource.Failure(Name, fmt.Errorf("failed to open procfs at %s: %w", cfg.ProcfsPath, err))
	}
	r := &reader{proc: cfg.ProcfsPath, sys: cfg.SysfsPath, fs: fs, filter: datasource.NewFilter(cfg)}

	set := metric.NewSet()
	tables := []table{
		{"uptime", r.uptime},
		{"loadavg", r.loadavg},
		{"stat", r.stat},
		{"meminfo", r.meminfo},
		{"vmstat", r.vmstat},
		{"diskstats", r.diskstats},
		{"net/dev", r.netdev},
		{"net/tcp", r.tcp},
		{"net/udp", r.udp},
		{"net/arp", r.arp},
		{"net/snmp", r.snmp},
	}
	for _, t := range tables {
		if err := ctx.Err(); err != nil {
			return datasource.Failure(Name, errors.Wrap(errors.ErrCodeTimeout, "procfs poll interrupted", err))
		}
		if err := t.collect(set); err != nil {
			if datasource.IsAbsent(err) {
				slog.Debug("procfs table not present, skipping", "table", t.name)
				continue
			}
			return datasource.Failure(Name, fmt.Errorf("failed to read %s from %s: %w", t.name, cfg.ProcfsPath, err))
		}
	}
	return datasource.FromSet(Name, set)
}

type reader struct {
	proc   string
	sys    string
	fs     promfs.FS
	filter datasource.Filter
}

func (r *reader) stat(set *metric.Set) error {
	st, err := r.fs.Stat()
	if err != nil {
		return err
	}

	addCPU(set, "total", st.CPUTotal)
	ids := make([]int64, 0, len(st.CPU))
	for id := range st.CPU {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		addCPU(set, "cpu"+strconv.FormatInt(id, 10), st.CPU[id])
	}

	set.Add(contextSwitches, float64(st.ContextSwitches))
	set.Add(bootTime, float64(st.BootTime))
	set.Add(processesForked, float64(st.ProcessCreated))
	set.Add(processesRunning, float64(st.ProcessesRunning))
	set.Add(processesBlocked, float64(st.ProcessesBlocked))
	return set.Err()
}

func addCPU(set *metric.Set, cpu string, s promfs.CPUStat) {
	set.Add(cpuSeconds, s.User, cpu, "user").
		Add(cpuSeconds, s.Nice, cpu, "nice").
		Add(cpuSeconds, s.System, cpu, "system").
		Add(cpuSeconds, s.Idle, cpu, "idle").
		Add(cpuSeconds, s.Iowait, cpu, "iowait").
		Add(cpuSeconds, s.IRQ, cpu, "irq").
		Add(cpuSeconds, s.SoftIRQ, cpu, "softirq").
		Add(cpuSeconds, s.Steal, cpu, "steal").
		Add(cpuSeconds, s.Guest, cpu, "guest").
		Add(cpuSeconds, s.GuestNice, cpu, "guest_nice")
}

func (r *reader) diskstats(set *metric.Set) error {
	bfs, err := blockdevice.NewFS(r.proc, r.sys)
	if err != nil {
		return err
	}
	stats, err := bfs.ProcDiskstats()
	if err != nil {
		return err
	}

	for _, d := range stats {
		dev := d.DeviceName
		if r.filter.SkipDevice(dev) {
			continue
		}
		set.Add(diskstats, float64(d.ReadIOs), dev, "reads").
			Add(diskstats, float64(d.ReadMerges), dev, "reads_merged").
			Add(diskstats, float64(d.ReadSectors), dev, "sectors_read").
			Add(diskstats, float64(d.ReadTicks), dev, "time_reading_ms").
			Add(diskstats, float64(d.WriteIOs), dev, "writes").
			Add(diskstats, float64(d.WriteMerges), dev, "writes_merged").
			Add(diskstats, float64(d.WriteSectors), dev, "sectors_written").
			Add(diskstats, float64(d.WriteTicks), dev, "time_writing_ms").
			Add(diskstats, float64(d.IOsInProgress), dev, "in_progress").
			Add(diskstats, float64(d.IOsTotalTicks), dev, "time_in_progress_ms").
			Add(diskstats, float64(d.WeightedIOTicks), dev, "weighted_time_in_progress_ms")

		// IoStatsCount includes major, minor and device name.
		if d.IoStatsCount >= 18 {
			set.Add(diskstats, float64(d.DiscardIOs), dev, "discards").
				Add(diskstats, float64(d.DiscardMerges), dev, "discards_merged").
				Add(diskstats, float64(d.DiscardSectors), dev, "sectors_discarded").
				Add(diskstats, float64(d.DiscardTicks), dev, "time_discarding_ms")
		}
		if d.IoStatsCount >= 20 {
			set.Add(diskstats, float64(d.FlushRequestsCompleted), dev, "flushes").
				Add(diskstats, float64(d.TimeSpentFlushing), dev, "time_flushing_ms")
		}
	}
	return set.Err()
}

func (r *reader) netdev(set *metric.Set) error {
	devs, err := r.fs.NetDev()
	if err != nil {
		return err
	}

	names := make([]string, 0, len(devs))
	for name := range devs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if r.filter.SkipInterface(name) {
			continue
		}
		d := devs[name]
		set.Add(netdev, float64(d.RxBytes), name, "recv_bytes").
			Add(netdev, float64(d.RxPackets), name, "recv_packets").
			Add(netdev, float64(d.RxErrors), name, "recv_errs").
			Add(netdev, float64(d.RxDropped), name, "recv_drop").
			Add(netdev, float64(d.RxFIFO), name, "recv_fifo").
			Add(netdev, float64(d.RxFrame), name, "recv_frame").
			Add(netdev, float64(d.RxCompressed), name, "recv_compressed").
			Add(netdev, float64(d.RxMulticast), name, "recv_multicast").
			Add(netdev, float64(d.TxBytes), name, "sent_bytes").
			Add(netdev, float64(d.TxPackets), name, "sent_packets").
			Add(netdev, float64(d.TxErrors), name, "sent_errs").
			Add(netdev, float64(d.TxDropped), name, "sent_drop").
			Add(netdev, float64(d.TxFIFO), name, "sent_fifo").
			Add(netdev, float64(d.TxCollisions), name, "sent_colls").
			Add(netdev, float64(d.TxCarrier), name, "sent_carrier").
			Add(netdev, float64(d.TxCompressed), name, "sent_compressed")
	}
	return set.Err()
}

type socketState struct {
	code  uint64
	label string
}

// tcpStates maps kernel TCP state codes to label values.
var tcpStates = []socketState{
	{0x01, "established"},
	{0x02, "syn_sent"},
	{0x03, "syn_recv"},
	{0x04, "fin_wait_1"},
	{0x05, "fin_wait_2"},
	{0x06, "time_wait"},
	{0x07, "close"},
	{0x08, "close_wait"},
	{0x09, "last_ack"},
	{0x0A, "listen"},
	{0x0B, "closing"},
	{0x0C, "new_syn_recv"},
}

var udpStates = []socketState{
	{0x01, "established"},
	{0x07, "close"},
}

// countStates emits one sample per known state, zero when unused.
func countStates(set *metric.Set, d metric.Desc, states []socketState, codes []uint64) {
	counts := make(map[uint64]int, len(states))
	for _, c := range codes {
		counts[c]++
	}
	for _, s := range states {
		set.Add(d, float64(counts[s.code]), s.label)
	}
}

func (r *reader) tcp(set *metric.Set) error {
	lines, err := r.fs.NetTCP()
	if err != nil {
		return err
	}
	codes := make([]uint64, 0, len(lines))
	for _, l := range lines {
		codes = append(codes, l.St)
	}
	countStates(set, tcpSockets, tcpStates, codes)
	return set.Err()
}

func (r *reader) udp(set *metric.Set) error {
	lines, err := r.fs.NetUDP()
	if err != nil {
		return err
	}
	codes := make([]uint64, 0, len(lines))
	for _, l := range lines {
		codes = append(codes, l.St)
	}
	countStates(set, udpSockets, udpStates, codes)
	return set.Err()
}

func (r *reader) arp(set *metric.Set) error {
	entries, err := r.fs.GatherARPEntries()
	if err != nil {
		return err
	}
	counts := make(map[string]int)
	for _, e := range entries {
		counts[e.Device]++
	}
	devices := make([]string, 0, len(counts))
	for d := range counts {
		devices = append(devices, d)
	}
	sort.Strings(devices)
	for _, d := range devices {
		set.Add(arpEntries, float64(counts[d]), d)
	}
	return set.Err()
}
