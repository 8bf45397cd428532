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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"

	"github.com/NVIDIA/kstat-exporter/pkg/config"
	"github.com/NVIDIA/kstat-exporter/pkg/metric"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create dir for %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", rel, err)
		}
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.New()
	cfg.ProcfsPath = filepath.Join(root, "proc")
	cfg.SysfsPath = filepath.Join(root, "sys")
	return cfg
}

func lookup(fams []*metric.Family, name string, labels metric.Labels) (float64, bool) {
	for _, f := range fams {
		if f.Name != name {
			continue
		}
	samples:
		for _, s := range f.Samples() {
			if len(s.Labels) != len(labels) {
				continue
			}
			for k, v := range labels {
				if s.Labels[k] != v {
					continue samples
				}
			}
			return s.Value, true
		}
	}
	return 0, false
}

// encode builds an attribute payload, failing the test on error.
func encode(t *testing.T, fn func(ae *netlink.AttributeEncoder)) []byte {
	t.Helper()
	ae := netlink.NewAttributeEncoder()
	fn(ae)
	b, err := ae.Encode()
	if err != nil {
		t.Fatalf("failed to encode attributes: %v", err)
	}
	return b
}

type fakeConn struct {
	replies  []netlink.Message
	err      error
	request  netlink.Message
	deadline time.Time
	closed   bool
}

func (c *fakeConn) Execute(m netlink.Message) ([]netlink.Message, error) {
	c.request = m
	return c.replies, c.err
}

func (c *fakeConn) SetDeadline(t time.Time) error {
	c.deadline = t
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

type fakeGenl struct {
	family    genetlink.Family
	familyErr error
	replies   map[uint8][]genetlink.Message
	requests  []genetlink.Message
	flags     []netlink.HeaderFlags
	closed    bool
}

func (c *fakeGenl) GetFamily(name string) (genetlink.Family, error) {
	if c.familyErr != nil {
		return genetlink.Family{}, c.familyErr
	}
	return c.family, nil
}

func (c *fakeGenl) Execute(m genetlink.Message, family uint16, flags netlink.HeaderFlags) ([]genetlink.Message, error) {
	c.requests = append(c.requests, m)
	c.flags = append(c.flags, flags)
	return c.replies[m.Header.Command], nil
}

func (c *fakeGenl) SetDeadline(time.Time) error {
	return nil
}

func (c *fakeGenl) Close() error {
	c.closed = true
	return nil
}
