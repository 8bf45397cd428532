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

// Package config loads and validates config.toml.
//
// All keys are optional. Absent keys keep the defaults returned by New:
// no device filtering, every datasource enabled, no address restriction,
// no authentication and plaintext HTTP on 0.0.0.0:9100. Validation
// failures are returned as INVALID_CONFIG errors and are fatal at startup.
//
//	cfg, err := config.Load("/etc/kstatd/config.toml")
//	if err != nil {
//	    return err
//	}
//	if cfg.DatasourceEnabled("ipmi") {
//	    // ...
//	}
package config
