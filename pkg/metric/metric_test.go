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

package metric

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/kstat-exporter/pkg/errors"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "counter", Counter.String())
	assert.Equal(t, "gauge", Gauge.String())
	assert.Equal(t, "kind(7)", Kind(7).String())
}

func TestFamilyAddSample(t *testing.T) {
	f := NewFamily("cpu_frequency_hz", Gauge, "Current CPU frequency.")
	require.NoError(t, f.AddSample(Labels{"cpu": "cpu0", "source": "scaling"}, 2.4e9))
	require.NoError(t, f.AddSample(Labels{"cpu": "cpu1", "source": "scaling"}, 1.2e9))

	assert.Equal(t, []string{"cpu", "source"}, f.LabelNames())
	assert.Equal(t, 2, f.Len())
}

func TestFamilyDuplicateLabelSet(t *testing.T) {
	f := NewFamily("tcp_sockets", Gauge, "TCP sockets by state.")
	require.NoError(t, f.AddSample(Labels{"state": "listen"}, 4))

	err := f.AddSample(Labels{"state": "listen"}, 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateLabelSet)
	assert.Equal(t, errors.ErrCodeDuplicateLabels, errors.CodeOf(err))
	assert.Equal(t, 1, f.Len(), "rejected sample must not be stored")
}

func TestFamilyLabelSetMismatch(t *testing.T) {
	tests := []struct {
		name   string
		labels Labels
	}{
		{"extra label", Labels{"state": "close", "proto": "tcp"}},
		{"missing label", Labels{}},
		{"renamed label", Labels{"status": "close"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFamilyFromDesc(NewDesc("udp_sockets", Gauge, "", "state"))
			err := f.AddSample(tt.labels, 1)
			assert.ErrorIs(t, err, ErrLabelSetMismatch)
		})
	}
}

func TestFamilyAddPositional(t *testing.T) {
	f := NewFamilyFromDesc(NewDesc("netdev", Gauge, "", "interface", "field"))
	require.NoError(t, f.Add(10, "eth0", "recv_bytes"))

	s := f.Samples()
	require.Len(t, s, 1)
	assert.Equal(t, Labels{"interface": "eth0", "field": "recv_bytes"}, s[0].Labels)
	assert.Equal(t, []string{"interface", "field"}, f.LabelNames(), "declared order is kept")

	assert.ErrorIs(t, f.Add(1, "eth0"), ErrLabelSetMismatch)
}

func TestFamilyWithoutLabels(t *testing.T) {
	f := NewFamily("uptime_seconds", Gauge, "")
	require.NoError(t, f.AddSample(nil, 12.5))
	assert.ErrorIs(t, f.AddSample(Labels{}, 13), ErrDuplicateLabelSet)
}

func TestFamilySamplesAreCopies(t *testing.T) {
	f := NewFamily("meminfo", Gauge, "")
	require.NoError(t, f.AddSample(Labels{"field": "mem_total"}, 1024))

	s := f.Samples()
	s[0].Labels["field"] = "changed"
	s[0].Value = 0

	again := f.Samples()
	assert.Equal(t, "mem_total", again[0].Labels["field"])
	assert.InDelta(t, 1024, again[0].Value, 0)
}

func TestDescValidate(t *testing.T) {
	tests := []struct {
		name    string
		desc    Desc
		wantErr bool
	}{
		{"valid", NewDesc("load_average", Gauge, "", "interval"), false},
		{"bad family", NewDesc("load-average", Gauge, ""), true},
		{"bad label", NewDesc("load_average", Gauge, "", "inter val"), true},
		{"reserved label", NewDesc("load_average", Gauge, "", "__name__"), true},
		{"repeated label", NewDesc("load_average", Gauge, "", "a", "a"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.desc.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDescSameShape(t *testing.T) {
	a := NewDesc("x", Gauge, "", "a", "b")
	assert.True(t, a.SameShape(NewDesc("x", Gauge, "other help", "b", "a")))
	assert.False(t, a.SameShape(NewDesc("x", Counter, "", "a", "b")))
	assert.False(t, a.SameShape(NewDesc("x", Gauge, "", "a")))
}

func TestSet(t *testing.T) {
	zone := NewDesc("thermal_zone_temperature_celsius", Gauge, "", "zone", "type")
	count := NewDesc("thermal_zone_count", Gauge, "")
	unused := NewDesc("thermal_cooling_device_count", Gauge, "")

	s := NewSet()
	s.Add(zone, 45.0, "thermal_zone0", "x86_pkg_temp").
		Add(zone, 38.5, "thermal_zone1", "acpitz").
		Add(count, 2)
	s.Family(unused)

	fams, err := s.Families()
	require.NoError(t, err)
	require.Len(t, fams, 2, "empty families are dropped")
	assert.Equal(t, zone.Name, fams[0].Name)
	assert.Equal(t, count.Name, fams[1].Name)
}

func TestSetKeepsFirstError(t *testing.T) {
	d := NewDesc("arp_entries", Gauge, "", "device")
	s := NewSet()
	s.Add(d, 1, "eth0").Add(d, 2, "eth0").Add(d, 3)

	_, err := s.Families()
	assert.ErrorIs(t, err, ErrDuplicateLabelSet)
	assert.ErrorIs(t, s.Err(), ErrDuplicateLabelSet)
}

func TestSetAddFirst(t *testing.T) {
	d := NewDesc("hwmon_temperature_celsius", Gauge, "", "chip", "sensor")
	s := NewSet()
	assert.True(t, s.AddFirst(d, 40, "coretemp", "Core 0"))
	assert.False(t, s.AddFirst(d, 55, "coretemp", "Core 0"))

	fams, err := s.Families()
	require.NoError(t, err)
	require.Len(t, fams, 1)
	samples := fams[0].Samples()
	require.Len(t, samples, 1)
	assert.InDelta(t, 40.0, samples[0].Value, 0)
	assert.True(t, fams[0].Has("coretemp", "Core 0"))
	assert.False(t, fams[0].Has("coretemp"))
}

func TestSnapshot(t *testing.T) {
	b := NewFamily("b_family", Gauge, "")
	require.NoError(t, b.AddSample(nil, 1))
	a := NewFamily("a_family", Counter, "")
	require.NoError(t, a.AddSample(Labels{"x": "1"}, 2))

	snap, err := NewSnapshot(b, a, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Len())
	assert.Equal(t, []string{"a_family", "b_family"}, snap.Names())

	fams := snap.Families()
	assert.Equal(t, "a_family", fams[0].Name)

	// Mutating the source family after construction does not leak in.
	require.NoError(t, b.AddSample(Labels{"late": "yes"}, 3))
	got, ok := snap.Family("b_family")
	require.True(t, ok)
	assert.Equal(t, 1, got.Len())

	_, ok = snap.Family("missing")
	assert.False(t, ok)
}

func TestSnapshotDuplicateFamily(t *testing.T) {
	_, err := NewSnapshot(NewFamily("dup", Gauge, ""), NewFamily("dup", Gauge, ""))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDuplicateFamily, errors.CodeOf(err))
}
