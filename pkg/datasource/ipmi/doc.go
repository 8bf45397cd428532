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

// Package ipmi implements the ipmi datasource: BMC sensor readings
// obtained through the Linux IPMI device driver (/dev/ipmi0).
//
// The datasource walks the Sensor Data Record repository, keeps the full
// sensor records owned by the BMC, and converts each raw reading to base
// units with the record's linear conversion factors. Hosts without an
// IPMI device produce an empty result.
package ipmi
