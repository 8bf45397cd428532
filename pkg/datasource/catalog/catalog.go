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

// Package catalog builds the closed set of kstat datasources.
package catalog

import (
	"github.com/NVIDIA/kstat-exporter/pkg/datasource"
	"github.com/NVIDIA/kstat-exporter/pkg/datasource/ipmi"
	"github.com/NVIDIA/kstat-exporter/pkg/datasource/netlink"
	"github.com/NVIDIA/kstat-exporter/pkg/datasource/procfs"
	"github.com/NVIDIA/kstat-exporter/pkg/datasource/sysfs"
)

// Datasources returns a new instance of every datasource in collection
// order, which matches config.Datasources.
func Datasources() []datasource.Datasource {
	return []datasource.Datasource{
		procfs.New(),
		sysfs.NewCPUFreq(),
		procfs.NewSoftnet(),
		netlink.NewConntrack(),
		procfs.NewFilesystems(),
		sysfs.NewHwmon(),
		sysfs.NewThermal(),
		sysfs.NewRAPL(),
		sysfs.NewPowerSupply(),
		sysfs.NewNVMe(),
		sysfs.NewEDAC(),
		sysfs.NewNUMA(),
		ipmi.New(),
		procfs.NewMdraid(),
		sysfs.NewNetdev(),
		netlink.NewEthtool(),
	}
}

// NewRegistry returns a registry holding every datasource. Rejected
// registrations stay in the registry as failed entries.
func NewRegistry() *datasource.Registry {
	return datasource.NewRegistry().MustRegister(Datasources()...)
}
