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

package netlink

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/kstat-exporter/pkg/config"
	"github.com/NVIDIA/kstat-exporter/pkg/metric"
	"github.com/NVIDIA/kstat-exporter/pkg/version"
)

func header(dev string) func(*netlink.AttributeEncoder) error {
	return func(nae *netlink.AttributeEncoder) error {
		nae.Uint32(1, 2)
		nae.String(headerDevName, dev)
		return nil
	}
}

func strsetReply(t *testing.T, dev string, set uint32, names ...string) genetlink.Message {
	t.Helper()
	return genetlink.Message{Data: encode(t, func(ae *netlink.AttributeEncoder) {
		ae.Nested(strsetHeader, header(dev))
		ae.Nested(strsetStringsets, func(nae *netlink.AttributeEncoder) error {
			nae.Nested(stringsetsSet, func(sae *netlink.AttributeEncoder) error {
				sae.Uint32(stringsetID, set)
				sae.Uint32(2, uint32(len(names)))
				sae.Nested(stringsetStrings, func(strs *netlink.AttributeEncoder) error {
					for i, n := range names {
						strs.Nested(stringsString, func(s *netlink.AttributeEncoder) error {
							s.Uint32(stringIndex, uint32(i))
							s.String(stringValue, n)
							return nil
						})
					}
					return nil
				})
				return nil
			})
			return nil
		})
	})}
}

type group struct {
	id, set uint32
	stats   map[uint16]uint64
}

func statsReply(t *testing.T, dev string, groups ...group) genetlink.Message {
	t.Helper()
	return genetlink.Message{Data: encode(t, func(ae *netlink.AttributeEncoder) {
		ae.Nested(statsHeader, header(dev))
		for _, g := range groups {
			ae.Nested(statsGrp, func(gae *netlink.AttributeEncoder) error {
				gae.Uint32(grpID, g.id)
				gae.Uint32(grpSSID, g.set)
				for id := uint16(0); id < 32; id++ {
					v, ok := g.stats[id]
					if !ok {
						continue
					}
					gae.Nested(grpStat, func(sae *netlink.AttributeEncoder) error {
						sae.Uint64(id, v)
						return nil
					})
				}
				return nil
			})
		}
	})}
}

func ethtoolConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testConfig(t)
	writeTree(t, cfg.SysfsPath, map[string]string{
		"class/net/eth0/type":          "1\n",
		"class/net/eth0/device/vendor": "0x15b3\n",
		"class/net/eth1/type":          "1\n",
		"class/net/eth1/device/vendor": "0x8086\n",
		"class/net/br0/type":           "1\n",
		"class/net/lo/type":            "772\n",
		"class/net/ib0/type":           "32\n",
		"class/net/ib0/device/vendor":  "0x15b3\n",
	})
	return cfg
}

func newTestEthtool(c *fakeGenl, kernel string) *Ethtool {
	e := NewEthtool()
	e.dial = func() (genlConn, error) { return c, nil }
	e.kernel = func() (version.Version, error) { return version.Parse(kernel) }
	return e
}

func TestEthtoolPoll(t *testing.T) {
	cfg := ethtoolConfig(t)
	fc := &fakeGenl{
		family: genetlink.Family{ID: 21, Version: 1, Name: ethtoolFamily},
		replies: map[uint8][]genetlink.Message{
			ethtoolMsgStrsetGet: {
				strsetReply(t, "eth0", 18, "FramesTransmittedOK", "FramesReceivedOK"),
				strsetReply(t, "br0", 18, "FramesTransmittedOK"),
			},
			ethtoolMsgStatsGet: {
				statsReply(t, "eth0",
					group{id: 1, set: 18, stats: map[uint16]uint64{0: 100, 1: 200, 5: 7}},
					group{id: 4, set: 21, stats: map[uint16]uint64{0: 3}},
				),
				statsReply(t, "br0", group{id: 1, set: 18, stats: map[uint16]uint64{0: 1}}),
			},
		},
	}

	res := newTestEthtool(fc, "6.8.0-45-generic").Poll(context.Background(), cfg)
	require.False(t, res.Failed(), "unexpected failure: %v", res.Err)
	require.Len(t, res.Families, 1)
	assert.Equal(t, 4, res.Families[0].Len())

	for stat, want := range map[string]float64{
		"FramesTransmittedOK": 100,
		"FramesReceivedOK":    200,
		"stat_5":              7,
		"stat_0":              3,
	} {
		got, ok := lookup(res.Families, "ethtool_stats", metric.Labels{"interface": "eth0", "stat": stat})
		if assert.True(t, ok, "stat %s missing", stat) {
			assert.Equal(t, want, got, stat)
		}
	}
	_, ok := lookup(res.Families, "ethtool_stats", metric.Labels{"interface": "br0", "stat": "FramesTransmittedOK"})
	assert.False(t, ok, "bridge without a device must be skipped")

	require.Len(t, fc.requests, 2)
	assert.Equal(t, uint8(ethtoolMsgStrsetGet), fc.requests[0].Header.Command)
	assert.Equal(t, uint8(ethtoolMsgStatsGet), fc.requests[1].Header.Command)
	for i, r := range fc.requests {
		assert.Equal(t, uint8(ethtoolVersion), r.Header.Version)
		assert.Equal(t, netlink.Request|netlink.Dump, fc.flags[i])
	}
	assert.True(t, fc.closed)
}

func TestEthtoolOldKernel(t *testing.T) {
	cfg := ethtoolConfig(t)
	e := NewEthtool()
	e.kernel = func() (version.Version, error) { return version.Parse("5.10.0") }
	e.dial = func() (genlConn, error) {
		t.Fatal("dial must not be called before 5.13")
		return nil, nil
	}
	res := e.Poll(context.Background(), cfg)
	assert.False(t, res.Failed())
	assert.Empty(t, res.Families)
}

func TestEthtoolFamilyAbsent(t *testing.T) {
	cfg := ethtoolConfig(t)
	fc := &fakeGenl{familyErr: fmt.Errorf("genetlink: %w", os.ErrNotExist)}
	res := newTestEthtool(fc, "5.15.0").Poll(context.Background(), cfg)
	assert.False(t, res.Failed(), "unexpected failure: %v", res.Err)
	assert.Empty(t, res.Families)
	assert.Empty(t, fc.requests)
}

func TestEthtoolNoEthernetInterfaces(t *testing.T) {
	cfg := testConfig(t)
	e := newTestEthtool(&fakeGenl{}, "6.1")
	e.dial = func() (genlConn, error) {
		t.Fatal("dial must not be called without interfaces")
		return nil, nil
	}
	res := e.Poll(context.Background(), cfg)
	assert.False(t, res.Failed())
	assert.Empty(t, res.Families)
}

func TestEthernetInterfaces(t *testing.T) {
	cfg := ethtoolConfig(t)
	got, err := ethernetInterfaces(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"eth0", "eth1"}, got)
}

func TestStatsRequest(t *testing.T) {
	b, err := statsRequest()
	require.NoError(t, err)

	ad, err := netlink.NewAttributeDecoder(b)
	require.NoError(t, err)
	var (
		names  []string
		nomask bool
	)
	for ad.Next() {
		if ad.Type() != statsGroups {
			continue
		}
		ad.Nested(func(gad *netlink.AttributeDecoder) error {
			for gad.Next() {
				switch gad.Type() {
				case bitsetNomask:
					nomask = true
				case bitsetBits:
					gad.Nested(func(bad *netlink.AttributeDecoder) error {
						for bad.Next() {
							bad.Nested(func(nad *netlink.AttributeDecoder) error {
								for nad.Next() {
									if nad.Type() == bitsetBitName {
										names = append(names, nad.String())
									}
								}
								return nil
							})
						}
						return nil
					})
				}
			}
			return nil
		})
	}
	require.NoError(t, ad.Err())
	assert.True(t, nomask)
	assert.Equal(t, statsGroupNames, names)
}

func TestStringsetName(t *testing.T) {
	sets := stringsets{18: {"a", "", "c"}}
	assert.Equal(t, "a", sets.name(18, 0))
	assert.Equal(t, "stat_1", sets.name(18, 1))
	assert.Equal(t, "stat_9", sets.name(18, 9))
	assert.Equal(t, "stat_0", sets.name(99, 0))

	var none stringsets
	assert.Equal(t, "stat_2", none.name(18, 2))
}
