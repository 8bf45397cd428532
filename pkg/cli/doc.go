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

// Package cli implements the kstatd command line.
//
// # Commands
//
// serve (default) - run the HTTP exporter:
//
//	kstatd [--config FILE] serve [--bind ADDR]
//
// snapshot - collect once and print:
//
//	kstatd snapshot [--format text|json|yaml] [--output FILE] [--strict]
//
// # Global Flags
//
//	--config, -c    config.toml path (default /etc/kstatd/config.toml)
//	--debug, -d     debug logging with source locations
//	--log-level     debug, info, warn, error
//	--procfs-path   override procfs_path
//	--sysfs-path    override sysfs_path
//
// # Environment Variables
//
//	KSTAT_CONFIG  config.toml path
//	KSTAT_BIND    listen address for serve
//	LOG_LEVEL     log level
//
// Command-line values take precedence over config.toml, and the merged
// configuration is validated before anything starts.
package cli
