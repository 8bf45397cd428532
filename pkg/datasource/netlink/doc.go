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

// Package netlink implements the datasources that query the kernel over
// netlink sockets: conntrack (NETLINK_NETFILTER) and ethtool (generic
// netlink).
//
// Every request/response round-trip carries a socket deadline bounded by
// the scrape context and defaults.NetlinkTimeout. Connections are opened
// per poll and closed before Poll returns.
package netlink
