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

// Package version parses and compares Linux kernel release strings such as
// "6.8.0-45-generic" or "5.14.0-427.13.1.el9_4.x86_64".
//
// Datasources that depend on a kernel interface introduced in a specific
// release gate on it with AtLeast:
//
//	if !version.MustParse(release).AtLeast(version.New(5, 13, 0)) {
//		return datasource.Empty()
//	}
package version

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

var (
	ErrEmptyVersion      = errors.New("version string is empty")
	ErrNonNumeric        = errors.New("version component is not numeric")
	ErrNegativeComponent = errors.New("version component cannot be negative")
)

// Version is a kernel release reduced to its numeric components.
type Version struct {
	Major int `json:"major" yaml:"major"`
	Minor int `json:"minor" yaml:"minor"`
	Patch int `json:"patch" yaml:"patch"`

	// Precision indicates how many components were present (1, 2, or 3).
	Precision int `json:"precision,omitempty" yaml:"precision,omitempty"`

	// Extras holds the distribution suffix, e.g. "-45-generic".
	Extras string `json:"extras,omitempty" yaml:"extras,omitempty"`
}

// New returns a fully specified version.
func New(major, minor, patch int) Version {
	return Version{Major: major, Minor: minor, Patch: patch, Precision: 3}
}

func (v Version) String() string {
	switch v.Precision {
	case 1:
		return fmt.Sprintf("%d", v.Major)
	case 2:
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	default:
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	}
}

// Parse reads the leading major[.minor[.patch]] of a kernel release. The
// rest, starting at the first character that is neither a digit nor a
// dot, is kept in Extras. A fourth numeric component (as in
// "4.19.0.1-foo") is treated as part of Extras.
func Parse(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, ErrEmptyVersion
	}

	end := strings.IndexFunc(s, func(r rune) bool {
		return (r < '0' || r > '9') && r != '.'
	})
	if end == 0 {
		if s[0] == '-' {
			return Version{}, fmt.Errorf("%w: %q", ErrNegativeComponent, s)
		}
		return Version{}, fmt.Errorf("%w: %q", ErrNonNumeric, s)
	}
	head, extras := s, ""
	if end > 0 {
		head, extras = s[:end], s[end:]
	}

	parts := strings.Split(head, ".")
	if len(parts) > 3 {
		extras = "." + strings.Join(parts[3:], ".") + extras
		parts = parts[:3]
	}

	var v Version
	for i, part := range parts {
		if part == "" {
			return Version{}, fmt.Errorf("%w: empty component in %q", ErrNonNumeric, s)
		}
		num, err := strconv.Atoi(part)
		if err != nil {
			return Version{}, fmt.Errorf("%w: %q", ErrNonNumeric, part)
		}
		switch i {
		case 0:
			v.Major = num
		case 1:
			v.Minor = num
		case 2:
			v.Patch = num
		}
	}
	v.Precision = len(parts)
	v.Extras = extras
	return v, nil
}

// MustParse is like Parse but panics on error. Intended for constants.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("MustParse: %v", err))
	}
	return v
}

// Compare returns -1, 0 or 1. Components beyond the lower precision of
// the two versions are ignored, so "6.1" compares equal to "6.1.90".
func (v Version) Compare(other Version) int {
	precision := min(v.Precision, other.Precision)
	pairs := [][2]int{{v.Major, other.Major}, {v.Minor, other.Minor}, {v.Patch, other.Patch}}
	for i := 0; i < precision && i < len(pairs); i++ {
		switch {
		case pairs[i][0] < pairs[i][1]:
			return -1
		case pairs[i][0] > pairs[i][1]:
			return 1
		}
	}
	return 0
}

// AtLeast reports whether v is the same as or newer than other.
func (v Version) AtLeast(other Version) bool {
	return v.Compare(other) >= 0
}

// IsValid reports whether v could have come from Parse.
func (v Version) IsValid() bool {
	if v.Major < 0 || v.Minor < 0 || v.Patch < 0 {
		return false
	}
	return v.Precision >= 1 && v.Precision <= 3
}

// Kernel returns the release of the running kernel as reported by uname(2).
func Kernel() (Version, error) {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return Version{}, fmt.Errorf("uname failed: %w", err)
	}
	return Parse(unix.ByteSliceToString(u.Release[:]))
}
