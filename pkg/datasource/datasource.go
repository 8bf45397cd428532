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
	"maps"

	"github.com/NVIDIA/kstat-exporter/pkg/config"
	"github.com/NVIDIA/kstat-exporter/pkg/errors"
	"github.com/NVIDIA/kstat-exporter/pkg/metric"
)

// Datasource reads one area of kernel state.
type Datasource interface {
	// Name matches the key used in disabled_datasources.
	Name() string
	// Families declares every family Poll may return.
	Families() []metric.Desc
	// Enabled reports whether the datasource should be polled.
	Enabled(cfg *config.Config) bool
	// Poll reads kernel state once. It must not retain state between calls.
	Poll(ctx context.Context, cfg *config.Config) Result
}

// Result is the outcome of one Poll: families on success, Err on failure.
type Result struct {
	Families []*metric.Family
	Err      *errors.StructuredError
}

// Failed reports whether the poll failed.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Success wraps produced families.
func Success(families []*metric.Family) Result {
	return Result{Families: families}
}

// Empty is the result for a source that is absent on this host.
func Empty() Result {
	return Result{}
}

// Failure attributes err to the named datasource. Structured errors keep
// their code; anything else is classified as SOURCE_FAILURE.
func Failure(name string, err error) Result {
	code := errors.ErrCodeSourceFailure
	ctx := map[string]any{}
	var se *errors.StructuredError
	if stderrors.As(err, &se) {
		code = se.Code
		maps.Copy(ctx, se.Context)
	}
	ctx["datasource"] = name
	return Result{Err: errors.WrapWithContext(code, fmt.Sprintf("datasource %s failed", name), err, ctx)}
}

// FromSet converts a populated metric.Set into a Result.
func FromSet(name string, set *metric.Set) Result {
	fams, err := set.Families()
	if err != nil {
		return Failure(name, err)
	}
	return Success(fams)
}

// IsAbsent reports whether err means the kernel interface does not exist.
func IsAbsent(err error) bool {
	return stderrors.Is(err, fs.ErrNotExist)
}

// Base implements the static parts of Datasource for embedding.
type Base struct {
	name  string
	descs []metric.Desc
}

// NewBase returns a Base for the named datasource and its families.
func NewBase(name string, descs ...metric.Desc) Base {
	return Base{name: name, descs: descs}
}

// Name implements Datasource.
func (b Base) Name() string {
	return b.name
}

// Families implements Datasource.
func (b Base) Families() []metric.Desc {
	out := make([]metric.Desc, len(b.descs))
	copy(out, b.descs)
	return out
}

// Enabled implements Datasource by consulting disabled_datasources.
func (b Base) Enabled(cfg *config.Config) bool {
	return cfg.DatasourceEnabled(b.name)
}
