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
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/kstat-exporter/pkg/config"
	"github.com/NVIDIA/kstat-exporter/pkg/errors"
	"github.com/NVIDIA/kstat-exporter/pkg/metric"
)

type fakeSource struct {
	Base
}

func (f fakeSource) Poll(context.Context, *config.Config) Result {
	return Empty()
}

func newFake(name string, families ...string) fakeSource {
	descs := make([]metric.Desc, 0, len(families))
	for _, fam := range families {
		descs = append(descs, metric.NewDesc(fam, metric.Gauge, ""))
	}
	return fakeSource{Base: NewBase(name, descs...)}
}

func TestBaseEnabled(t *testing.T) {
	cfg := config.New()
	cfg.DisabledDatasources = []string{"thermal"}
	require.NoError(t, cfg.Validate())

	assert.False(t, newFake("thermal").Enabled(cfg))
	assert.True(t, newFake("hwmon").Enabled(cfg))
}

func TestFailure(t *testing.T) {
	r := Failure("softnet", fmt.Errorf("failed to read: %w", fs.ErrPermission))
	require.True(t, r.Failed())
	assert.Equal(t, errors.ErrCodeSourceFailure, r.Err.Code)
	assert.Equal(t, "softnet", r.Err.Context["datasource"])
	assert.ErrorIs(t, r.Err, fs.ErrPermission)

	dup := metric.NewFamily("x", metric.Gauge, "")
	require.NoError(t, dup.AddSample(nil, 1))
	err := dup.AddSample(nil, 2)
	r = Failure("procfs", err)
	assert.Equal(t, errors.ErrCodeDuplicateLabels, r.Err.Code)
	assert.Equal(t, "x", r.Err.Context["family"])
	assert.ErrorIs(t, r.Err, metric.ErrDuplicateLabelSet)
}

func TestFromSet(t *testing.T) {
	d := metric.NewDesc("arp_entries", metric.Gauge, "", "device")

	ok := FromSet("procfs", metric.NewSet().Add(d, 2, "eth0"))
	require.False(t, ok.Failed())
	require.Len(t, ok.Families, 1)

	bad := FromSet("procfs", metric.NewSet().Add(d, 2, "eth0").Add(d, 3, "eth0"))
	require.True(t, bad.Failed())
}

func TestIsAbsent(t *testing.T) {
	assert.True(t, IsAbsent(fmt.Errorf("wrap: %w", fs.ErrNotExist)))
	assert.False(t, IsAbsent(stderrors.New("other")))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newFake("thermal", "thermal_zone_count")))

	err := r.Register(newFake("hwmon", "hwmon_fan_rpm", "thermal_zone_count"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeDuplicateFamily, errors.CodeOf(err))

	require.Error(t, r.Register(newFake("thermal", "other_family")), "duplicate name")
	require.Error(t, r.Register(newFake("bad", "bad-name")), "invalid family name")
	require.Error(t, r.Register(newFake("twice", "a_family", "a_family")), "family declared twice")

	entries := r.Entries()
	require.Len(t, entries, 5)
	assert.Nil(t, entries[0].Err)
	assert.NotNil(t, entries[1].Err)
	assert.Equal(t, "hwmon", entries[1].Datasource.Name())

	d, owner, ok := r.Desc("thermal_zone_count")
	require.True(t, ok)
	assert.Equal(t, "thermal", owner)
	assert.Equal(t, "thermal_zone_count", d.Name)

	_, _, ok = r.Desc("hwmon_fan_rpm")
	assert.False(t, ok, "families of a rejected datasource are not owned")

	assert.Len(t, r.Families(), 1)

	assert.Equal(t, []string{"thermal", "hwmon", "thermal", "bad", "twice"}, r.Names())
	assert.True(t, r.Has("thermal"))
	assert.False(t, r.Has("hwmon"), "rejected datasources are not registered")
}

func TestFilter(t *testing.T) {
	cfg := config.New()
	cfg.IgnoreLoopDevices = true
	cfg.IgnorePPPInterfaces = true
	f := NewFilter(cfg)

	assert.True(t, f.SkipDevice("loop0"))
	assert.True(t, f.SkipDevice("/dev/loop12"))
	assert.False(t, f.SkipDevice("nvme0n1"))
	assert.True(t, f.SkipInterface("ppp0"))
	assert.False(t, f.SkipInterface("veth1a2b"))

	cfg.IgnoreVethInterfaces = true
	f = NewFilter(cfg)
	assert.True(t, f.SkipInterface("veth1a2b"))
	assert.True(t, f.SkipInterface("br-0f3c"))
	assert.False(t, f.SkipInterface("eth0"))

	none := NewFilter(config.New())
	assert.False(t, none.SkipDevice("loop0"))
	assert.False(t, none.SkipInterface("ppp0"))
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		key, pattern string
		want         bool
	}{
		{"eth0", "eth0", true},
		{"eth0", "eth1", false},
		{"loop7", "loop*", true},
		{"loop", "loop*", true},
		{"vloop", "loop*", false},
		{"docker0", "*0", true},
		{"br-abc", "*-*", true},
		{"a1b2c", "a*b*c", true},
		{"acb", "a*b*c", false},
		{"ab", "a*b*b", false},
		{"anything", "*", true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"/"+tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, matchesPattern(tt.key, tt.pattern))
		})
	}
}

func TestSnakeCase(t *testing.T) {
	tests := map[string]string{
		"MemTotal":        "mem_total",
		"Active(anon)":    "active_anon",
		"Inactive(file)":  "inactive_file",
		"SReclaimable":    "s_reclaimable",
		"SUnreclaim":      "s_unreclaim",
		"DirectMap4k":     "direct_map_4k",
		"DirectMap2M":     "direct_map_2m",
		"NFS_Unstable":    "nfs_unstable",
		"Committed_AS":    "committed_as",
		"KReclaimable":    "k_reclaimable",
		"InDiscards":      "in_discards",
		"ReasmOKs":        "reasm_oks",
		"FragOKs":         "frag_oks",
		"DefaultTTL":      "default_ttl",
		"InCsumErrors":    "in_csum_errors",
		"OutRsts":         "out_rsts",
		"Hugepagesize":    "hugepagesize",
		"already_snake":   "already_snake",
		"HardwareCorrupt": "hardware_corrupt",
	}

	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, SnakeCase(in))
		})
	}
}
