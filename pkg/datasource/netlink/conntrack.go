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
	"encoding/binary"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mdlayher/netlink"
	promfs "github.com/prometheus/procfs"
	"golang.org/x/sys/unix"

	"github.com/NVIDIA/kstat-exporter/pkg/config"
	"github.com/NVIDIA/kstat-exporter/pkg/datasource"
	"github.com/NVIDIA/kstat-exporter/pkg/errors"
	"github.com/NVIDIA/kstat-exporter/pkg/metric"
)

// ConntrackName is the configuration key of the conntrack datasource.
const ConntrackName = "conntrack"

// ctnetlink constants from linux/netfilter/nfnetlink*.h.
const (
	nfnlSubsysCtnetlink    = 1
	ipctnlMsgCtGetStatsCPU = 4
	nfnetlinkV0            = 0
	nfgenmsgLen            = 4
)

// conntrackFields maps CTA_STATS_* attribute types to field labels.
var conntrackFields = map[uint16]string{
	2:  "found",
	4:  "invalid",
	8:  "insert",
	9:  "insert_failed",
	10: "drop",
	11: "early_drop",
	12: "error",
	13: "search_restart",
	14: "clash_resolve",
	15: "chain_toolong",
}

var conntrackStats = metric.NewDesc("conntrack", metric.Gauge, "Per-CPU conntrack counters via netlink.", "cpu", "field")

// Conntrack reports per-CPU connection tracking statistics.
type Conntrack struct {
	datasource.Base
	dial func() (conn, error)
}

// NewConntrack returns the conntrack datasource.
func NewConntrack() *Conntrack {
	return &Conntrack{
		Base: datasource.NewBase(ConntrackName, conntrackStats),
		dial: dialNetfilter,
	}
}

func dialNetfilter() (conn, error) {
	c, err := netlink.Dial(unix.NETLINK_NETFILTER, nil)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// conntrackLoaded reports whether nf_conntrack is present on this host.
func conntrackLoaded(cfg *config.Config) bool {
	for _, p := range []string{
		filepath.Join(cfg.ProcfsPath, "net", "stat", "nf_conntrack"),
		filepath.Join(cfg.SysfsPath, "module", "nf_conntrack"),
	} {
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}
	return false
}

// Poll dumps IPCTNL_MSG_CT_GET_STATS_CPU. Without CAP_NET_ADMIN the kernel
// refuses the dump, in which case the procfs table is read instead.
func (c *Conntrack) Poll(ctx context.Context, cfg *config.Config) datasource.Result {
	if !conntrackLoaded(cfg) {
		return datasource.Empty()
	}

	msgs, err := c.dump(ctx)
	if err != nil {
		if stderrors.Is(err, fs.ErrPermission) {
			slog.Debug("conntrack netlink dump refused, falling back to procfs", "error", err)
			return pollConntrackProcfs(cfg)
		}
		return datasource.Failure(ConntrackName, err)
	}

	set := metric.NewSet()
	for _, m := range msgs {
		if err := parseConntrackStats(set, m.Data); err != nil {
			return datasource.Failure(ConntrackName, err)
		}
	}
	return datasource.FromSet(ConntrackName, set)
}

func (c *Conntrack) dump(ctx context.Context) ([]netlink.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeTimeout, "conntrack poll interrupted", err)
	}

	nc, err := c.dial()
	if err != nil {
		return nil, classify("conntrack netlink dial", err)
	}
	defer func() {
		if cerr := nc.Close(); cerr != nil {
			slog.Debug("failed to close conntrack netlink socket", "error", cerr)
		}
	}()

	if err := nc.SetDeadline(deadline(ctx)); err != nil {
		return nil, classify("conntrack netlink deadline", err)
	}

	req := netlink.Message{
		Header: netlink.Header{
			Type:  netlink.HeaderType(nfnlSubsysCtnetlink<<8 | ipctnlMsgCtGetStatsCPU),
			Flags: netlink.Request | netlink.Dump,
		},
		Data: []byte{unix.AF_UNSPEC, nfnetlinkV0, 0, 0},
	}
	msgs, err := nc.Execute(req)
	if err != nil {
		return nil, classify("conntrack stats dump", err)
	}
	return msgs, nil
}

// parseConntrackStats decodes one per-CPU reply: an nfgenmsg whose res_id
// carries the CPU, followed by big-endian u32 attributes.
func parseConntrackStats(set *metric.Set, data []byte) error {
	if len(data) < nfgenmsgLen {
		return errors.New(errors.ErrCodeInvalidData, fmt.Sprintf("conntrack reply too short: %d bytes", len(data)))
	}
	cpu := strconv.Itoa(int(binary.BigEndian.Uint16(data[2:4])))

	ad, err := netlink.NewAttributeDecoder(data[nfgenmsgLen:])
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidData, "failed to decode conntrack attributes", err)
	}
	ad.ByteOrder = binary.BigEndian
	for ad.Next() {
		field, ok := conntrackFields[ad.Type()]
		if !ok {
			continue
		}
		// Short attributes are skipped; longer ones carry the counter in
		// their first four bytes.
		b := ad.Bytes()
		if len(b) < 4 {
			continue
		}
		set.Add(conntrackStats, float64(binary.BigEndian.Uint32(b[:4])), cpu, field)
	}
	if err := ad.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidData, "failed to decode conntrack attributes", err)
	}
	return nil
}

// pollConntrackProcfs reads /proc/net/stat/nf_conntrack. Rows are per CPU
// in order; fields the table does not carry are not reported.
func pollConntrackProcfs(cfg *config.Config) datasource.Result {
	pfs, err := promfs.NewFS(cfg.ProcfsPath)
	if err != nil {
		return datasource.Failure(ConntrackName, err)
	}
	rows, err := pfs.ConntrackStat()
	if err != nil {
		if datasource.IsAbsent(err) {
			return datasource.Empty()
		}
		return datasource.Failure(ConntrackName, errors.Wrap(errors.ErrCodeInvalidData, "failed to read nf_conntrack stats", err))
	}

	set := metric.NewSet()
	for i, row := range rows {
		cpu := strconv.Itoa(i)
		for _, f := range []struct {
			name  string
			value uint64
		}{
			{"found", row.Found},
			{"invalid", row.Invalid},
			{"insert", row.Insert},
			{"insert_failed", row.InsertFailed},
			{"drop", row.Drop},
			{"early_drop", row.EarlyDrop},
			{"search_restart", row.SearchRestart},
		} {
			set.Add(conntrackStats, float64(f.value), cpu, f.name)
		}
	}
	return datasource.FromSet(ConntrackName, set)
}
