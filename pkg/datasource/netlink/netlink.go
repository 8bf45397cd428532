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
	stderrors "errors"
	"os"
	"time"

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"

	"github.com/NVIDIA/kstat-exporter/pkg/defaults"
	"github.com/NVIDIA/kstat-exporter/pkg/errors"
)

// conn is the subset of *netlink.Conn used by the datasources.
type conn interface {
	Execute(m netlink.Message) ([]netlink.Message, error)
	SetDeadline(t time.Time) error
	Close() error
}

// genlConn is the subset of *genetlink.Conn used by the datasources.
type genlConn interface {
	GetFamily(name string) (genetlink.Family, error)
	Execute(m genetlink.Message, family uint16, flags netlink.HeaderFlags) ([]genetlink.Message, error)
	SetDeadline(t time.Time) error
	Close() error
}

// deadline returns the earlier of the context deadline and the netlink
// round-trip timeout.
func deadline(ctx context.Context) time.Time {
	d := time.Now().Add(defaults.NetlinkTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(d) {
		return dl
	}
	return d
}

// classify maps socket errors onto structured codes.
func classify(op string, err error) error {
	if stderrors.Is(err, os.ErrDeadlineExceeded) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(errors.ErrCodeTimeout, op+" timed out", err)
	}
	return errors.Wrap(errors.ErrCodeSourceFailure, op+" failed", err)
}
