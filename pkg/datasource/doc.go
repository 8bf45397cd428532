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

// Package datasource defines the contract between kernel state readers and
// the snapshot orchestrator.
//
// A Datasource owns a fixed set of metric families, declared up front
// through Families. On every scrape the orchestrator calls Poll on each
// enabled datasource; Poll returns either the families it produced or a
// typed failure. Optional kernel interfaces that do not exist on the host
// produce an empty success, never a failure.
//
// Datasources are registered in a Registry, which rejects a datasource
// that declares a family already owned by another one. A rejected
// datasource is reported as failed at every collection instead of
// stopping the process.
//
// Implementations live in the procfs, sysfs, netlink and ipmi
// subpackages; the catalog subpackage builds the full set in collection
// order.
package datasource
