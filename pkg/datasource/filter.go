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

package datasource

import (
	"strings"

	"github.com/NVIDIA/kstat-exporter/pkg/config"
)

// Filter excludes block devices and network interfaces by name.
// Patterns support '*' wildcards:
//   - "prefix*" matches names starting with "prefix"
//   - "*suffix" matches names ending with "suffix"
//   - "*contains*" matches names containing "contains"
//   - "exact" matches names exactly
type Filter struct {
	Devices    []string
	Interfaces []string
}

// NewFilter builds the exclusion patterns selected by cfg.
func NewFilter(cfg *config.Config) Filter {
	var f Filter
	if cfg.IgnoreLoopDevices {
		f.Devices = append(f.Devices, "loop*")
	}
	if cfg.IgnorePPPInterfaces {
		f.Interfaces = append(f.Interfaces, "ppp*")
	}
	if cfg.IgnoreVethInterfaces {
		f.Interfaces = append(f.Interfaces, "veth*", "br-*")
	}
	return f
}

// SkipDevice reports whether a block device (or a mount source naming
// one) is excluded.
func (f Filter) SkipDevice(name string) bool {
	name = strings.TrimPrefix(name, "/dev/")
	return matchesAny(name, f.Devices)
}

// SkipInterface reports whether a network interface is excluded.
func (f Filter) SkipInterface(name string) bool {
	return matchesAny(name, f.Interfaces)
}

func matchesAny(key string, patterns []string) bool {
	for _, p := range patterns {
		if matchesPattern(key, p) {
			return true
		}
	}
	return false
}

// matchesPattern checks if a key matches a wildcard pattern.
// Supports multiple wildcard segments, e.g., "a*b*c" matches "aXbYc".
func matchesPattern(key, pattern string) bool {
	if !strings.Contains(pattern, "*") {
		return key == pattern
	}

	segments := strings.Split(pattern, "*")
	pos := 0
	for i, segment := range segments {
		if segment == "" {
			continue
		}

		// First segment anchors at the start unless the pattern starts with '*'.
		if i == 0 {
			if !strings.HasPrefix(key, segment) {
				return false
			}
			pos = len(segment)
			continue
		}

		// Last segment anchors at the end unless the pattern ends with '*'.
		if i == len(segments)-1 {
			return len(key)-pos >= len(segment) && strings.HasSuffix(key[pos:], segment)
		}

		idx := strings.Index(key[pos:], segment)
		if idx == -1 {
			return false
		}
		pos += idx + len(segment)
	}
	return true
}
