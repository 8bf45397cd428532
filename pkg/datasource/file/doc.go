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

// Package file provides bounded readers for procfs and sysfs files.
//
// Every read is capped so a misbehaving kernel interface cannot make a
// datasource allocate without limit, and content is checked for valid
// UTF-8 before parsing.
//
// # Usage
//
// Read a table as trimmed, non-empty lines:
//
//	lines, err := file.NewParser().GetLines("/proc/mdstat")
//
// Read a colon-separated table into a map:
//
//	m, err := file.NewParser(file.WithKVDelimiter(":")).GetMap("/proc/meminfo")
//
// Read a single sysfs attribute:
//
//	v, err := file.ReadUint("/sys/class/thermal/thermal_zone0/temp")
//
// # Error Handling
//
// Errors wrap the underlying cause with %w, so callers can distinguish an
// absent interface from a real failure:
//
//	if errors.Is(err, fs.ErrNotExist) {
//	    // source absent: empty result
//	}
//
// # Thread Safety
//
// Parsers hold only immutable options and are safe for concurrent use.
package file
