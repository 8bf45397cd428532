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
	"slices"
	"strings"

	promsys "github.com/prometheus/procfs/sysfs"

	"github.com/NVIDIA/kstat-exporter/pkg/config"
	"github.com/NVIDIA/kstat-exporter/pkg/datasource"
	"github.com/NVIDIA/kstat-exporter/pkg/metric"
)

// NetdevName is the configuration key of the netdev_sysfs datasource.
const NetdevName = "netdev_sysfs"

var (
	netdevOperstate      = metric.NewDesc("netdev_operstate", metric.Gauge, "Network interface operational state (1 for current state).", "interface", "state")
	netdevCarrier        = metric.NewDesc("netdev_carrier", metric.Gauge, "Network interface carrier status (1 = link detected).", "interface")
	netdevCarrierChanges = metric.NewDesc("netdev_carrier_changes", metric.Gauge, "Network interface carrier change count.", "interface")
	netdevDormant        = metric.NewDesc("netdev_dormant", metric.Gauge, "Network interface dormant flag (1 = dormant).", "interface")
	netdevSpeed          = metric.NewDesc("netdev_speed_mbps", metric.Gauge, "Network interface speed in Mbps.", "interface")
	netdevDuplex         = metric.NewDesc("netdev_duplex", metric.Gauge, "Network interface duplex (1 for current duplex).", "interface", "duplex")
	netdevAutoneg        = metric.NewDesc("netdev_autoneg", metric.Gauge, "Network interface autonegotiation (1 for current state).", "interface", "state")
)

var (
	operStates   = []string{"unknown", "notpresent", "down", "lowerlayerdown", "testing", "dormant", "up"}
	duplexStates = []string{"unknown", "half", "full"}
	autonegState = []string{"unknown", "off", "on"}
)

// Netdev reports link state from /sys/class/net.
type Netdev struct {
	datasource.Base
}

// NewNetdev returns the netdev_sysfs datasource.
func NewNetdev() *Netdev {
	return &Netdev{Base: datasource.NewBase(NetdevName,
		netdevOperstate, netdevCarrier, netdevCarrierChanges, netdevDormant,
		netdevSpeed, netdevDuplex, netdevAutoneg)}
}

// Poll reads the sysfs attributes of every interface the filter keeps.
// Interfaces that vanish mid-scrape are skipped.
func (n *Netdev) Poll(ctx context.Context, cfg *config.Config) datasource.Result {
	fs, err := promsys.NewFS(cfg.SysfsPath)
	if err != nil {
		if datasource.IsAbsent(err) {
			return datasource.Empty()
		}
		return datasource.Failure(NetdevName, err)
	}
	ifaces, err := fs.NetClassDevices()
	if err != nil {
		if datasource.IsAbsent(err) {
			return datasource.Empty()
		}
		return datasource.Failure(NetdevName, err)
	}
	slices.Sort(ifaces)
	filter := datasource.NewFilter(cfg)

	set := metric.NewSet()
	for _, name := range ifaces {
		if err := ctx.Err(); err != nil {
			return datasource.Failure(NetdevName, err)
		}
		if filter.SkipInterface(name) {
			continue
		}
		iface, err := fs.NetClassByIface(name)
		if err != nil {
			// The interface can disappear between listing and reading.
			if datasource.IsAbsent(err) {
				continue
			}
			return datasource.Failure(NetdevName, err)
		}
		addNetdev(set, iface, filepath.Join(cfg.SysfsPath, "class", "net", name))
	}
	return datasource.FromSet(NetdevName, set)
}

func addNetdev(set *metric.Set, iface *promsys.NetClassIface, dir string) {
	name := iface.Name
	if iface.OperState != "" {
		for _, s := range oneHot(normalized(iface.OperState, operStates), operStates) {
			set.Add(netdevOperstate, s.value, name, s.name)
		}
	}
	for _, v := range []struct {
		desc  metric.Desc
		value *int64
	}{
		{netdevCarrier, iface.Carrier},
		{netdevCarrierChanges, iface.CarrierChanges},
		{netdevDormant, iface.Dormant},
		{netdevSpeed, iface.Speed},
	} {
		// Speed reads -1 when the link is down.
		if v.value != nil && *v.value >= 0 {
			set.Add(v.desc, float64(*v.value), name)
		}
	}
	if iface.Duplex != "" {
		for _, s := range oneHot(normalized(iface.Duplex, duplexStates), duplexStates) {
			set.Add(netdevDuplex, s.value, name, s.name)
		}
	}
	if autoneg := readString(dir, "autoneg", ""); autoneg != "" {
		for _, s := range oneHot(normalized(autoneg, autonegState), autonegState) {
			set.Add(netdevAutoneg, s.value, name, s.name)
		}
	}
}

// normalized lowercases value and maps anything outside known to unknown.
func normalized(value string, known []string) string {
	value = strings.ToLower(value)
	if slices.Contains(known, value) {
		return value
	}
	return unknown
}
