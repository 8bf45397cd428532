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

package version

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Version
		wantErr error
	}{
		{"6.8.0-45-generic", Version{6, 8, 0, 3, "-45-generic"}, nil},
		{"5.15.0-1028-aws", Version{5, 15, 0, 3, "-1028-aws"}, nil},
		{"5.14.0-427.13.1.el9_4.x86_64", Version{5, 14, 0, 3, "-427.13.1.el9_4.x86_64"}, nil},
		{"4.19.0.1-foo", Version{4, 19, 0, 3, ".1-foo"}, nil},
		{"6.1", Version{6, 1, 0, 2, ""}, nil},
		{"6.1.0+\n", Version{6, 1, 0, 3, "+"}, nil},
		{"", Version{}, ErrEmptyVersion},
		{"-1", Version{}, ErrNegativeComponent},
		{"a.b.c", Version{}, ErrNonNumeric},
		{"1..2", Version{}, ErrNonNumeric},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Parse(%q) error = %v, want %v", tt.in, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestAtLeast(t *testing.T) {
	gate := New(5, 13, 0)
	tests := []struct {
		release string
		want    bool
	}{
		{"5.13.0-19-generic", true},
		{"6.8.0", true},
		{"5.12.19", false},
		{"4.19.0", false},
		{"5.13", true},
	}
	for _, tt := range tests {
		if got := MustParse(tt.release).AtLeast(gate); got != tt.want {
			t.Errorf("%s.AtLeast(%v) = %v, want %v", tt.release, gate, got, tt.want)
		}
	}
}

func TestString(t *testing.T) {
	if got := MustParse("6.8.0-45-generic").String(); got != "6.8.0" {
		t.Errorf("String() = %q, want 6.8.0", got)
	}
	if got := MustParse("6.1").String(); got != "6.1" {
		t.Errorf("String() = %q, want 6.1", got)
	}
}

func TestMustParsePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustParse did not panic on invalid input")
		}
	}()
	MustParse("not-a-version")
}

func TestKernel(t *testing.T) {
	v, err := Kernel()
	if err != nil {
		t.Skipf("uname unavailable: %v", err)
	}
	if !v.IsValid() {
		t.Errorf("Kernel() returned invalid version %+v", v)
	}
}
