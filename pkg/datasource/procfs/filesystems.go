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
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/NVIDIA/kstat-exporter/pkg/config"
	"github.com/NVIDIA/kstat-exporter/pkg/datasource"
	"github.com/NVIDIA/kstat-exporter/pkg/datasource/file"
	"github.com/NVIDIA/kstat-exporter/pkg/defaults"
	"github.com/NVIDIA/kstat-exporter/pkg/metric"
)

// FilesystemsName is the configuration key of the filesystems datasource.
const FilesystemsName = "filesystems"

var (
	fsSizeBytes  = metric.NewDesc("filesystem_size_bytes", metric.Gauge, "Total filesystem size in bytes.", "mountpoint", "device", "fstype")
	fsFreeBytes  = metric.NewDesc("filesystem_free_bytes", metric.Gauge, "Free filesystem space in bytes.", "mountpoint", "device", "fstype")
	fsAvailBytes = metric.NewDesc("filesystem_avail_bytes", metric.Gauge, "Available filesystem space in bytes.", "mountpoint", "device", "fstype")
	fsUsedBytes  = metric.NewDesc("filesystem_used_bytes", metric.Gauge, "Used filesystem space in bytes.", "mountpoint", "device", "fstype")
	fsFiles      = metric.NewDesc("filesystem_files", metric.Gauge, "Total inode count.", "mountpoint", "device", "fstype")
	fsFilesFree  = metric.NewDesc("filesystem_files_free", metric.Gauge, "Free inode count.", "mountpoint", "device", "fstype")
	fsFilesUsed  = metric.NewDesc("filesystem_files_used", metric.Gauge, "Used inode count.", "mountpoint", "device", "fstype")
)

var pseudoFilesystems = map[string]struct{}{
	"proc": {}, "sysfs": {}, "devtmpfs": {}, "devpts": {}, "tmpfs": {},
	"cgroup": {}, "cgroup2": {}, "pstore": {}, "securityfs": {}, "debugfs": {},
	"tracefs": {}, "configfs": {}, "fusectl": {}, "mqueue": {}, "hugetlbfs": {},
	"rpc_pipefs": {}, "bpf": {}, "efivarfs": {}, "overlay": {}, "autofs": {},
	"binfmt_misc": {}, "nsfs": {}, "fuse.portal": {}, "portal": {},
}

// StatfsFunc fills st for path. It is replaced in tests.
type StatfsFunc func(path string, st *unix.Statfs_t) error

// Filesystems reports capacity and inode usage of mounted filesystems.
type Filesystems struct {
	datasource.Base
	statfs   StatfsFunc
	timeout  time.Duration
	parallel int
}

// NewFilesystems returns the filesystems datasource.
func NewFilesystems() *Filesystems {
	return &Filesystems{
		Base: datasource.NewBase(FilesystemsName,
			fsSizeBytes, fsFreeBytes, fsAvailBytes, fsUsedBytes, fsFiles, fsFilesFree, fsFilesUsed),
		statfs:   unix.Statfs,
		timeout:  defaults.StatfsTimeout,
		parallel: defaults.StatfsConcurrency,
	}
}

type mount struct {
	device, mountpoint, fstype string
}

type fsUsage struct {
	size, free, avail, used      float64
	files, filesFree, filesUsed float64
}

// Poll lists /proc/mounts and calls statfs on every real filesystem, a
// bounded number at a time. A mount that cannot be queried is skipped.
func (f *Filesystems) Poll(ctx context.Context, cfg *config.Config) datasource.Result {
	path := filepath.Join(cfg.ProcfsPath, "mounts")
	rows, err := file.NewParser().GetFields(path)
	if err != nil {
		return datasource.Failure(FilesystemsName, fmt.Errorf("failed to read mount table from %s: %w", path, err))
	}
	filter := datasource.NewFilter(cfg)

	// The same mountpoint can appear more than once; the last mount wins.
	latest := make(map[string]int)
	var mounts []mount
	for _, r := range rows {
		if len(r) < 3 {
			continue
		}
		m := mount{device: unescapeMount(r[0]), mountpoint: unescapeMount(r[1]), fstype: r[2]}
		if _, pseudo := pseudoFilesystems[m.fstype]; pseudo {
			continue
		}
		if filter.SkipDevice(m.device) {
			continue
		}
		if i, seen := latest[m.mountpoint]; seen {
			mounts[i] = m
			continue
		}
		latest[m.mountpoint] = len(mounts)
		mounts = append(mounts, m)
	}

	usages := make([]*fsUsage, len(mounts))
	g := new(errgroup.Group)
	g.SetLimit(f.parallel)
	for i, m := range mounts {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			u, err := f.usage(ctx, m.mountpoint)
			if err != nil {
				slog.Debug("skipping filesystem", "mountpoint", m.mountpoint, "error", err)
				return nil
			}
			usages[i] = &u
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return datasource.Failure(FilesystemsName, err)
	}

	set := metric.NewSet()
	for i, m := range mounts {
		u := usages[i]
		if u == nil {
			continue
		}
		lv := []string{m.mountpoint, m.device, m.fstype}
		set.Add(fsSizeBytes, u.size, lv...).
			Add(fsFreeBytes, u.free, lv...).
			Add(fsAvailBytes, u.avail, lv...).
			Add(fsUsedBytes, u.used, lv...).
			Add(fsFiles, u.files, lv...).
			Add(fsFilesFree, u.filesFree, lv...).
			Add(fsFilesUsed, u.filesUsed, lv...)
	}
	return datasource.FromSet(FilesystemsName, set)
}

// usage runs statfs with a deadline. A call stuck on a dead network mount
// is abandoned; its goroutine exits when the kernel returns.
func (f *Filesystems) usage(ctx context.Context, mountpoint string) (fsUsage, error) {
	type result struct {
		st  unix.Statfs_t
		err error
	}
	ch := make(chan result, 1)
	go func() {
		var r result
		r.err = f.statfs(mountpoint, &r.st)
		ch <- r
	}()

	timer := time.NewTimer(f.timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		if r.err != nil {
			return fsUsage{}, r.err
		}
		return usageFromStatfs(&r.st), nil
	case <-timer.C:
		return fsUsage{}, fmt.Errorf("statfs timed out after %v", f.timeout)
	case <-ctx.Done():
		return fsUsage{}, ctx.Err()
	}
}

func usageFromStatfs(st *unix.Statfs_t) fsUsage {
	bs := uint64(st.Frsize)
	if bs == 0 {
		bs = uint64(st.Bsize)
	}
	size := st.Blocks * bs
	free := st.Bfree * bs
	return fsUsage{
		size:      float64(size),
		free:      float64(free),
		avail:     float64(st.Bavail * bs),
		used:      float64(saturatingSub(size, free)),
		files:     float64(st.Files),
		filesFree: float64(st.Ffree),
		filesUsed: float64(saturatingSub(st.Files, st.Ffree)),
	}
}

func saturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// unescapeMount decodes the octal escapes (\040 for space) used in
// /proc/mounts.
func unescapeMount(s string) string {
	if !strings.Contains(s, "\\") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+4 <= len(s) {
			if v, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(v))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
