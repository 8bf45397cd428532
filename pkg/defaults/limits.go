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

package defaults

// Read limits for kernel-provided files.
const (
	// MaxTableFileSize caps reads of multi-line procfs tables.
	MaxTableFileSize int64 = 1 << 20

	// MaxScalarFileSize caps reads of single-value sysfs attributes.
	MaxScalarFileSize int64 = 4 << 10

	// StatfsConcurrency bounds parallel statfs calls, so hung network
	// mounts time out together instead of one after another.
	StatfsConcurrency = 8
)

// Listener defaults.
const (
	// BindAddress is the listen address used when config.toml omits bind.
	BindAddress = "0.0.0.0:9100"

	// ProcPath and SysPath are the default kernel filesystem mount points.
	ProcPath = "/proc"
	SysPath  = "/sys"

	// ConfigPath is where kstatd looks for config.toml.
	ConfigPath = "/etc/kstatd/config.toml"
)
