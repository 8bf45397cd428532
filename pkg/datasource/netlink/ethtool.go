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
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"

	"github.com/NVIDIA/kstat-exporter/pkg/config"
	"github.com/NVIDIA/kstat-exporter/pkg/datasource"
	"github.com/NVIDIA/kstat-exporter/pkg/datasource/file"
	"github.com/NVIDIA/kstat-exporter/pkg/errors"
	"github.com/NVIDIA/kstat-exporter/pkg/metric"
	"github.com/NVIDIA/kstat-exporter/pkg/version"
)

// EthtoolName is the configuration key of the ethtool datasource.
const EthtoolName = "ethtool"

// Generic netlink ethtool interface, linux/ethtool_netlink.h.
const (
	ethtoolFamily  = "ethtool"
	ethtoolVersion = 1

	ethtoolMsgStrsetGet = 1
	ethtoolMsgStatsGet  = 32

	headerDevName = 2

	strsetHeader     = 1
	strsetStringsets = 2
	stringsetsSet    = 1
	stringsetID      = 1
	stringsetStrings = 3
	stringsString    = 1
	stringIndex      = 1
	stringValue      = 2

	statsHeader = 2
	statsGroups = 3
	statsGrp    = 4
	grpID       = 2
	grpSSID     = 3
	grpStat     = 4

	bitsetNomask   = 1
	bitsetBits     = 3
	bitsetBit      = 1
	bitsetBitName  = 2
	bitsetBitValue = 3

	arphrdEther = 1
)

// Standard statistics string sets (ETH_SS_STATS_*), in kernel order.
var statsStringsets = []uint32{17, 18, 19, 20, 21}

// Standard statistics groups requested from ETHTOOL_MSG_STATS_GET.
var statsGroupNames = []string{"eth-phy", "eth-mac", "eth-ctrl", "rmon", "phy"}

// minEthtoolKernel is the first release with ETHTOOL_MSG_STATS_GET.
var minEthtoolKernel = version.New(5, 13, 0)

var ethtoolStats = metric.NewDesc("ethtool_stats", metric.Gauge, "Ethernet statistics via ethtool netlink.", "interface", "stat")

// Ethtool reports the standard ethtool statistics groups of Ethernet
// interfaces.
type Ethtool struct {
	datasource.Base
	dial   func() (genlConn, error)
	kernel func() (version.Version, error)
}

// NewEthtool returns the ethtool datasource.
func NewEthtool() *Ethtool {
	return &Ethtool{
		Base:   datasource.NewBase(EthtoolName, ethtoolStats),
		dial:   dialGeneric,
		kernel: version.Kernel,
	}
}

func dialGeneric() (genlConn, error) {
	c, err := genetlink.Dial(nil)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// stringsets holds, per string set ID, the names indexed by stat ID.
type stringsets map[uint32][]string

func (s stringsets) name(set, id uint32) string {
	if names, ok := s[set]; ok && int(id) < len(names) && names[id] != "" {
		return names[id]
	}
	return fmt.Sprintf("stat_%d", id)
}

type statsGroup struct {
	id    uint32
	set   uint32
	stats []stat
}

type stat struct {
	id    uint32
	value uint64
}

// Poll dumps the string sets and statistics of every device and reports
// those belonging to Ethernet interfaces backed by a device.
func (e *Ethtool) Poll(ctx context.Context, cfg *config.Config) datasource.Result {
	if !e.supported() {
		return datasource.Empty()
	}
	ifaces, err := ethernetInterfaces(cfg)
	if err != nil {
		return datasource.Failure(EthtoolName, err)
	}
	if len(ifaces) == 0 {
		return datasource.Empty()
	}
	if err := ctx.Err(); err != nil {
		return datasource.Failure(EthtoolName, errors.Wrap(errors.ErrCodeTimeout, "ethtool poll interrupted", err))
	}

	c, err := e.dial()
	if err != nil {
		return datasource.Failure(EthtoolName, classify("generic netlink dial", err))
	}
	defer func() {
		if cerr := c.Close(); cerr != nil {
			slog.Debug("failed to close generic netlink socket", "error", cerr)
		}
	}()
	if err := c.SetDeadline(deadline(ctx)); err != nil {
		return datasource.Failure(EthtoolName, classify("generic netlink deadline", err))
	}

	family, err := c.GetFamily(ethtoolFamily)
	if err != nil {
		if datasource.IsAbsent(err) {
			slog.Debug("ethtool generic netlink family not registered")
			return datasource.Empty()
		}
		return datasource.Failure(EthtoolName, classify("ethtool family lookup", err))
	}

	sets, err := dumpStringsets(c, family.ID)
	if err != nil {
		return datasource.Failure(EthtoolName, err)
	}
	groups, err := dumpStats(c, family.ID)
	if err != nil {
		return datasource.Failure(EthtoolName, err)
	}

	set := metric.NewSet()
	for _, iface := range ifaces {
		for _, g := range groups[iface] {
			for _, s := range g.stats {
				// The fallback stat_<id> name can repeat across groups.
				set.AddFirst(ethtoolStats, float64(s.value), iface, sets[iface].name(g.set, s.id))
			}
		}
	}
	return datasource.FromSet(EthtoolName, set)
}

func (e *Ethtool) supported() bool {
	v, err := e.kernel()
	if err != nil {
		slog.Debug("failed to determine kernel version", "error", err)
		return false
	}
	return v.AtLeast(minEthtoolKernel)
}

// ethernetInterfaces lists ARPHRD_ETHER interfaces that have a backing
// device, which excludes bridges, bonds and veth pairs.
func ethernetInterfaces(cfg *config.Config) ([]string, error) {
	base := filepath.Join(cfg.SysfsPath, "class", "net")
	entries, err := os.ReadDir(base)
	if err != nil {
		if datasource.IsAbsent(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", base, err)
	}

	filter := datasource.NewFilter(cfg)
	var out []string
	for _, entry := range entries {
		name := entry.Name()
		if filter.SkipInterface(name) {
			continue
		}
		dir := filepath.Join(base, name)
		typ, err := file.ReadUint(filepath.Join(dir, "type"))
		if err != nil || typ != arphrdEther {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, "device")); err != nil {
			continue
		}
		out = append(out, name)
	}
	return out, nil
}

func stringsetRequest() ([]byte, error) {
	ae := netlink.NewAttributeEncoder()
	ae.Nested(strsetHeader, func(*netlink.AttributeEncoder) error { return nil })
	ae.Nested(strsetStringsets, func(nae *netlink.AttributeEncoder) error {
		for _, id := range statsStringsets {
			nae.Nested(stringsetsSet, func(sae *netlink.AttributeEncoder) error {
				sae.Uint32(stringsetID, id)
				return nil
			})
		}
		return nil
	})
	return ae.Encode()
}

func statsRequest() ([]byte, error) {
	ae := netlink.NewAttributeEncoder()
	ae.Nested(statsHeader, func(*netlink.AttributeEncoder) error { return nil })
	ae.Nested(statsGroups, func(gae *netlink.AttributeEncoder) error {
		gae.Flag(bitsetNomask, true)
		gae.Nested(bitsetBits, func(bae *netlink.AttributeEncoder) error {
			for _, name := range statsGroupNames {
				bae.Nested(bitsetBit, func(nae *netlink.AttributeEncoder) error {
					nae.String(bitsetBitName, name)
					nae.Flag(bitsetBitValue, true)
					return nil
				})
			}
			return nil
		})
		return nil
	})
	return ae.Encode()
}

func execute(c genlConn, family uint16, cmd uint8, data []byte) ([]genetlink.Message, error) {
	msgs, err := c.Execute(genetlink.Message{
		Header: genetlink.Header{Command: cmd, Version: ethtoolVersion},
		Data:   data,
	}, family, netlink.Request|netlink.Dump)
	if err != nil {
		return nil, classify(fmt.Sprintf("ethtool command %d", cmd), err)
	}
	return msgs, nil
}

// dumpStringsets returns the standard statistics names of every device.
func dumpStringsets(c genlConn, family uint16) (map[string]stringsets, error) {
	req, err := stringsetRequest()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to encode ethtool string set request", err)
	}
	msgs, err := execute(c, family, ethtoolMsgStrsetGet, req)
	if err != nil {
		return nil, err
	}

	out := make(map[string]stringsets)
	for _, m := range msgs {
		dev, sets, err := parseStringsetReply(m.Data)
		if err != nil {
			return nil, err
		}
		if dev == "" {
			continue
		}
		if out[dev] == nil {
			out[dev] = make(stringsets)
		}
		for id, names := range sets {
			out[dev][id] = names
		}
	}
	return out, nil
}

func parseStringsetReply(b []byte) (string, stringsets, error) {
	ad, err := netlink.NewAttributeDecoder(b)
	if err != nil {
		return "", nil, invalid("string set reply", err)
	}

	var dev string
	sets := make(stringsets)
	for ad.Next() {
		switch ad.Type() {
		case strsetHeader:
			ad.Nested(func(nad *netlink.AttributeDecoder) error {
				dev = headerName(nad)
				return nil
			})
		case strsetStringsets:
			ad.Nested(func(nad *netlink.AttributeDecoder) error {
				for nad.Next() {
					if nad.Type() == stringsetsSet {
						nad.Nested(func(sad *netlink.AttributeDecoder) error {
							parseStringset(sad, sets)
							return nil
						})
					}
				}
				return nil
			})
		}
	}
	if err := ad.Err(); err != nil {
		return "", nil, invalid("string set reply", err)
	}
	return dev, sets, nil
}

func parseStringset(ad *netlink.AttributeDecoder, sets stringsets) {
	var (
		id    uint32
		hasID bool
		names []string
	)
	for ad.Next() {
		switch ad.Type() {
		case stringsetID:
			id, hasID = ad.Uint32(), true
		case stringsetStrings:
			ad.Nested(func(nad *netlink.AttributeDecoder) error {
				for nad.Next() {
					if nad.Type() != stringsString {
						continue
					}
					nad.Nested(func(sad *netlink.AttributeDecoder) error {
						var (
							idx    uint32
							value  string
							hasIdx bool
						)
						for sad.Next() {
							switch sad.Type() {
							case stringIndex:
								idx, hasIdx = sad.Uint32(), true
							case stringValue:
								value = sad.String()
							}
						}
						if hasIdx && value != "" {
							for uint32(len(names)) <= idx {
								names = append(names, "")
							}
							names[idx] = value
						}
						return nil
					})
				}
				return nil
			})
		}
	}
	if hasID {
		sets[id] = names
	}
}

// dumpStats returns the statistics groups of every device.
func dumpStats(c genlConn, family uint16) (map[string][]statsGroup, error) {
	req, err := statsRequest()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to encode ethtool stats request", err)
	}
	msgs, err := execute(c, family, ethtoolMsgStatsGet, req)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]statsGroup)
	for _, m := range msgs {
		dev, groups, err := parseStatsReply(m.Data)
		if err != nil {
			return nil, err
		}
		if dev != "" {
			out[dev] = append(out[dev], groups...)
		}
	}
	return out, nil
}

func parseStatsReply(b []byte) (string, []statsGroup, error) {
	ad, err := netlink.NewAttributeDecoder(b)
	if err != nil {
		return "", nil, invalid("stats reply", err)
	}

	var (
		dev    string
		groups []statsGroup
	)
	for ad.Next() {
		switch ad.Type() {
		case statsHeader:
			ad.Nested(func(nad *netlink.AttributeDecoder) error {
				dev = headerName(nad)
				return nil
			})
		case statsGrp:
			ad.Nested(func(nad *netlink.AttributeDecoder) error {
				if g, ok := parseStatsGroup(nad); ok {
					groups = append(groups, g)
				}
				return nil
			})
		}
	}
	if err := ad.Err(); err != nil {
		return "", nil, invalid("stats reply", err)
	}
	return dev, groups, nil
}

func parseStatsGroup(ad *netlink.AttributeDecoder) (statsGroup, bool) {
	var (
		g            statsGroup
		hasID, hasSS bool
	)
	for ad.Next() {
		switch ad.Type() {
		case grpID:
			g.id, hasID = ad.Uint32(), true
		case grpSSID:
			g.set, hasSS = ad.Uint32(), true
		case grpStat:
			// Each stat is nested under its own attribute, typed by stat ID.
			// Padding attributes are not 8 bytes long and are skipped.
			ad.Nested(func(nad *netlink.AttributeDecoder) error {
				for nad.Next() {
					if len(nad.Bytes()) != 8 {
						continue
					}
					g.stats = append(g.stats, stat{id: uint32(nad.Type()), value: nad.Uint64()})
				}
				return nil
			})
		}
	}
	return g, hasID && hasSS
}

func headerName(ad *netlink.AttributeDecoder) string {
	var name string
	for ad.Next() {
		if ad.Type() == headerDevName {
			name = strings.TrimRight(ad.String(), "\x00")
		}
	}
	return name
}

func invalid(what string, err error) error {
	return errors.Wrap(errors.ErrCodeInvalidData, "failed to decode ethtool "+what, err)
}
