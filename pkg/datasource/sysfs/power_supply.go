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
	"maps"
	"slices"

	promsys "github.com/prometheus/procfs/sysfs"

	"github.com/NVIDIA/kstat-exporter/pkg/config"
	"github.com/NVIDIA/kstat-exporter/pkg/datasource"
	"github.com/NVIDIA/kstat-exporter/pkg/metric"
)

// PowerSupplyName is the configuration key of the power_supply datasource.
const PowerSupplyName = "power_supply"

var (
	psInfo        = metric.NewDesc("power_supply_info", metric.Gauge, "Power supply information.", "name", "type")
	psOnline      = metric.NewDesc("power_supply_online", metric.Gauge, "Power supply online status (1 = online, 0 = offline).", "name", "type")
	psStatus      = metric.NewDesc("power_supply_status", metric.Gauge, "Battery status (1 = active for given state).", "name", "status")
	psCapacity    = metric.NewDesc("power_supply_capacity_percent", metric.Gauge, "Battery capacity in percent.", "name")
	psVoltage     = metric.NewDesc("power_supply_voltage_volts", metric.Gauge, "Power supply voltage in Volts.", "name", "type")
	psCurrent     = metric.NewDesc("power_supply_current_amps", metric.Gauge, "Power supply current in Amps.", "name", "type")
	psPower       = metric.NewDesc("power_supply_power_watts", metric.Gauge, "Power supply power in Watts.", "name")
	psEnergy      = metric.NewDesc("power_supply_energy_wh", metric.Gauge, "Battery energy in Watt-hours.", "name", "type")
	psCharge      = metric.NewDesc("power_supply_charge_ah", metric.Gauge, "Battery charge in Amp-hours.", "name", "type")
	psTemperature = metric.NewDesc("power_supply_temperature_celsius", metric.Gauge, "Power supply temperature in Celsius.", "name")
)

var psStatuses = []string{"Charging", "Discharging", "Not charging", "Full", "Unknown"}

// PowerSupply reports batteries and AC adapters from
// /sys/class/power_supply.
type PowerSupply struct {
	datasource.Base
}

// NewPowerSupply returns the power_supply datasource.
func NewPowerSupply() *PowerSupply {
	return &PowerSupply{Base: datasource.NewBase(PowerSupplyName,
		psInfo, psOnline, psStatus, psCapacity, psVoltage, psCurrent,
		psPower, psEnergy, psCharge, psTemperature)}
}

// Poll reports every supply under /sys/class/power_supply in name order.
func (p *PowerSupply) Poll(ctx context.Context, cfg *config.Config) datasource.Result {
	fs, err := promsys.NewFS(cfg.SysfsPath)
	if err != nil {
		if datasource.IsAbsent(err) {
			return datasource.Empty()
		}
		return datasource.Failure(PowerSupplyName, err)
	}
	class, err := fs.PowerSupplyClass()
	if err != nil {
		if datasource.IsAbsent(err) {
			return datasource.Empty()
		}
		return datasource.Failure(PowerSupplyName, err)
	}
	if err := ctx.Err(); err != nil {
		return datasource.Failure(PowerSupplyName, err)
	}

	set := metric.NewSet()
	for _, name := range slices.Sorted(maps.Keys(class)) {
		addPowerSupply(set, class[name])
	}
	return datasource.FromSet(PowerSupplyName, set)
}

func addPowerSupply(set *metric.Set, ps promsys.PowerSupply) {
	name := ps.Name
	psType := ps.Type
	if psType == "" {
		psType = "Unknown"
	}
	set.Add(psInfo, 1, name, psType)

	if ps.Online != nil {
		set.Add(psOnline, float64(*ps.Online), name, psType)
	}
	if ps.Status != "" {
		for _, s := range psStatuses {
			v := 0.0
			if s == ps.Status {
				v = 1
			}
			set.Add(psStatus, v, name, s)
		}
	}
	if ps.Capacity != nil {
		set.Add(psCapacity, float64(*ps.Capacity), name)
	}

	// Voltages, currents, power, energy and charge are reported in micro
	// units; temperature in tenths of a degree.
	scaled := []struct {
		desc  metric.Desc
		value *int64
		kind  string
	}{
		{psVoltage, ps.VoltageNow, "now"},
		{psVoltage, ps.VoltageMinDesign, "min_design"},
		{psCurrent, ps.CurrentNow, "now"},
		{psEnergy, ps.EnergyNow, "now"},
		{psEnergy, ps.EnergyFull, "full"},
		{psEnergy, ps.EnergyFullDesign, "full_design"},
		{psCharge, ps.ChargeNow, "now"},
		{psCharge, ps.ChargeFull, "full"},
		{psCharge, ps.ChargeFullDesign, "full_design"},
	}
	for _, s := range scaled {
		if s.value != nil {
			set.Add(s.desc, float64(*s.value)/1e6, name, s.kind)
		}
	}
	if ps.PowerNow != nil {
		set.Add(psPower, float64(*ps.PowerNow)/1e6, name)
	}
	if ps.Temp != nil {
		set.Add(psTemperature, float64(*ps.Temp)/10, name)
	}
}
