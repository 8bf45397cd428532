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
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/NVIDIA/kstat-exporter/pkg/datasource"
	"github.com/NVIDIA/kstat-exporter/pkg/datasource/file"
)

const unknown = "unknown"

// listDir returns the sorted entry names of dir. ok is false when the
// directory does not exist.
func listDir(dir string) (names []string, ok bool, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if datasource.IsAbsent(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	names = make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, true, nil
}

// isDir follows symlinks, which is how most class entries are exposed.
func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// indexed reports whether name is prefix followed by one or more digits.
func indexed(name, prefix string) bool {
	rest, ok := strings.CutPrefix(name, prefix)
	if !ok || rest == "" {
		return false
	}
	for _, c := range rest {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func readString(dir, attr, def string) string {
	s, err := file.ReadString(filepath.Join(dir, attr))
	if err != nil || s == "" {
		return def
	}
	return s
}

func readInt(dir, attr string) (int64, bool) {
	v, err := file.ReadInt(filepath.Join(dir, attr))
	return v, err == nil
}

func readUint(dir, attr string) (uint64, bool) {
	v, err := file.ReadUint(filepath.Join(dir, attr))
	return v, err == nil
}

type state struct {
	name  string
	value float64
}

// oneHot returns 1 for the entry of known equal to value and 0 for the
// rest. A value outside known is appended as its own entry.
func oneHot(value string, known []string) []state {
	out := make([]state, 0, len(known)+1)
	found := false
	for _, k := range known {
		v := 0.0
		if k == value {
			v, found = 1, true
		}
		out = append(out, state{k, v})
	}
	if !found {
		out = append(out, state{value, 1})
	}
	return out
}
