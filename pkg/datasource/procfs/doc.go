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

// Package procfs implements the datasources backed by /proc: the general
// procfs tables (CPU, memory, load, disks, network), softnet, mdraid and
// mounted filesystems.
//
// Where github.com/prometheus/procfs already parses a table it is used
// directly; the remaining tables are parsed here with the bounded readers
// from the file package. The procfs root comes from procfs_path, so tests
// point it at a fixture tree.
package procfs
