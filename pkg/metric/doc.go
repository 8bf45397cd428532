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

// Package metric defines the in-memory model shared by datasources, the
// snapshot orchestrator and the exposition encoders.
//
// A Family is a named series of Samples of one Kind. Every sample in a
// family carries the same set of label names and a unique combination of
// label values; AddSample enforces both. Datasources declare their families
// up front with Desc values and fill them through a Set during each poll.
//
// A Snapshot is the immutable union of the families produced by one
// collection cycle:
//
//	set := metric.NewSet()
//	set.Add(thermalZoneTemp, 45.0, "thermal_zone0", "x86_pkg_temp")
//	families, err := set.Families()
//	if err != nil {
//	    return err
//	}
//	snap, err := metric.NewSnapshot(families...)
package metric
