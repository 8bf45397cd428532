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

package procfs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/kstat-exporter/pkg/metric"
)

const mdstatFixture = `Personalities : [raid1] [raid6] [raid5] [raid4]
md1 : active raid5 sdd1[2] sdc1[1] sdb1[0]
      2097152 blocks super 1.2 level 5, 512k chunk, algorithm 2 [3/3] [UUU]

md0 : active raid1 sdf1[2] sde1[0]
      1048576 blocks super 1.2 [2/1] [U_]
      [=>...................]  recovery = 12.6% (132096/1048576) finish=0.5min speed=26419K/sec

md127 : inactive sdg1[0](S)
      1048576 blocks super 1.2

unused devices: <none>
`

func TestMdraidPoll(t *testing.T) {
	cfg := testConfig(t)
	writeTree(t, cfg.ProcfsPath, map[string]string{"mdstat": mdstatFixture})

	res := NewMdraid().Poll(context.Background(), cfg)
	require.False(t, res.Failed(), "unexpected failure: %v", res.Err)
	fams := res.Families

	tests := []struct {
		family string
		labels metric.Labels
		want   float64
	}{
		{"mdraid_array_state", metric.Labels{"array": "md1", "state": "active", "level": "raid5"}, 1},
		{"mdraid_array_state", metric.Labels{"array": "md0", "state": "active", "level": "raid1"}, 1},
		{"mdraid_array_state", metric.Labels{"array": "md127", "state": "inactive", "level": "unknown"}, 1},
		{"mdraid_array_disks", metric.Labels{"array": "md1", "role": "total"}, 3},
		{"mdraid_array_disks", metric.Labels{"array": "md1", "role": "working"}, 3},
		{"mdraid_array_disks", metric.Labels{"array": "md0", "role": "active"}, 1},
		{"mdraid_array_disks", metric.Labels{"array": "md0", "role": "working"}, 1},
		{"mdraid_array_degraded", metric.Labels{"array": "md1"}, 0},
		{"mdraid_array_degraded", metric.Labels{"array": "md0"}, 1},
		{"mdraid_array_degraded", metric.Labels{"array": "md127"}, 0},
		{"mdraid_array_sync_progress", metric.Labels{"array": "md0", "action": "recovery"}, 0.126},
	}
	for _, tt := range tests {
		got, ok := lookup(fams, tt.family, tt.labels)
		require.True(t, ok, "sample %s%v not found", tt.family, tt.labels)
		assert.InDelta(t, tt.want, got, 1e-9)
	}

	_, ok := lookup(fams, "mdraid_array_disks", metric.Labels{"array": "md127", "role": "total"})
	assert.False(t, ok)
}

func TestMdraidAbsent(t *testing.T) {
	res := NewMdraid().Poll(context.Background(), testConfig(t))
	assert.False(t, res.Failed())
	assert.Empty(t, res.Families)
}

func TestMdTokens(t *testing.T) {
	total, active, ok := mdCounts("[4/3]")
	assert.True(t, ok)
	assert.Equal(t, int64(4), total)
	assert.Equal(t, int64(3), active)

	_, _, ok = mdCounts("[UU_]")
	assert.False(t, ok)

	total, working, ok := mdWorking("[UU_U]")
	assert.True(t, ok)
	assert.Equal(t, int64(4), total)
	assert.Equal(t, int64(3), working)

	_, _, ok = mdWorking("[2/2]")
	assert.False(t, ok)

	assert.Equal(t, "raid10", mdLevel([]string{"raid10", "sda[0]"}))
	assert.Equal(t, "linear", mdLevel([]string{"linear"}))
	assert.Equal(t, "unknown", mdLevel([]string{"sdg1[0](S)"}))

	action, p := mdSync("[===>.....]  check = 30.0% (1/3) finish=1min")
	assert.Equal(t, "check", action)
	assert.InDelta(t, 0.3, p, 1e-9)
}
