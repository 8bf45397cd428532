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

// Package sysfs implements the datasources backed by attribute files under
// /sys: cpufreq, hwmon, thermal, rapl, power_supply, nvme, edac, numa and
// netdev_sysfs.
//
// Each datasource walks one class directory. A missing class directory
// means the hardware or driver is absent and yields an empty result.
// Individual attributes that are missing or unreadable are skipped, since
// drivers expose different subsets of the documented files.
//
// Scaled units are converted to base units: millidegrees to degrees,
// microjoules to joules, kHz to Hz and so on.
package sysfs
