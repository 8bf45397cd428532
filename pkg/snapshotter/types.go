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

package snapshotter

import (
	"context"

	"github.com/NVIDIA/kstat-exporter/pkg/errors"
	"github.com/NVIDIA/kstat-exporter/pkg/metric"
)

// Collector produces one snapshot per call. It is implemented by
// Snapshotter and consumed by the HTTP server and the CLI.
type Collector interface {
	Collect(ctx context.Context) (*metric.Snapshot, []Failure)
}

// Failure records a datasource that contributed nothing to a snapshot.
type Failure struct {
	// Datasource is the configuration key of the failed datasource.
	Datasource string `json:"datasource" yaml:"datasource"`

	// Err is the structured cause. Its code is TIMEOUT for datasources
	// still running at the scrape deadline.
	Err *errors.StructuredError `json:"error" yaml:"error"`
}

// Code returns the error code of the failure.
func (f Failure) Code() errors.ErrorCode {
	if f.Err == nil {
		return errors.ErrCodeInternal
	}
	return f.Err.Code
}
