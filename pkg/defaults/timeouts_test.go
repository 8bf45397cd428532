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

import (
	"testing"
	"time"
)

func TestTimeoutConstants(t *testing.T) {
	tests := []struct {
		name     string
		timeout  time.Duration
		minValue time.Duration
		maxValue time.Duration
	}{
		// Datasource timeouts
		{"ScrapeTimeout", ScrapeTimeout, 1 * time.Second, 30 * time.Second},
		{"NetlinkTimeout", NetlinkTimeout, 500 * time.Millisecond, 10 * time.Second},
		{"IPMITimeout", IPMITimeout, 500 * time.Millisecond, 10 * time.Second},
		{"StatfsTimeout", StatfsTimeout, 100 * time.Millisecond, 5 * time.Second},

		// Server timeouts
		{"ServerReadTimeout", ServerReadTimeout, 5 * time.Second, 30 * time.Second},
		{"ServerWriteTimeout", ServerWriteTimeout, 15 * time.Second, 60 * time.Second},
		{"ServerIdleTimeout", ServerIdleTimeout, 30 * time.Second, 300 * time.Second},
		{"ServerShutdownTimeout", ServerShutdownTimeout, 10 * time.Second, 60 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.timeout < tt.minValue {
				t.Errorf("%s (%v) is below minimum expected value (%v)", tt.name, tt.timeout, tt.minValue)
			}
			if tt.timeout > tt.maxValue {
				t.Errorf("%s (%v) is above maximum expected value (%v)", tt.name, tt.timeout, tt.maxValue)
			}
		})
	}
}

func TestServerTimeoutRelationships(t *testing.T) {
	if ServerReadTimeout > ServerWriteTimeout {
		t.Errorf("ServerReadTimeout (%v) should not exceed ServerWriteTimeout (%v)",
			ServerReadTimeout, ServerWriteTimeout)
	}

	if ServerIdleTimeout < ServerWriteTimeout {
		t.Errorf("ServerIdleTimeout (%v) should be at least ServerWriteTimeout (%v)",
			ServerIdleTimeout, ServerWriteTimeout)
	}
}

func TestScrapeTimeoutFitsWriteTimeout(t *testing.T) {
	// A timed-out scrape must still leave room to write the partial snapshot.
	if ScrapeTimeout >= ServerWriteTimeout {
		t.Errorf("ScrapeTimeout (%v) should be less than ServerWriteTimeout (%v)",
			ScrapeTimeout, ServerWriteTimeout)
	}
}

func TestRoundTripTimeoutsFitScrape(t *testing.T) {
	for name, d := range map[string]time.Duration{
		"NetlinkTimeout": NetlinkTimeout,
		"IPMITimeout":    IPMITimeout,
		"StatfsTimeout":  StatfsTimeout,
	} {
		if d >= ScrapeTimeout {
			t.Errorf("%s (%v) should be less than ScrapeTimeout (%v)", name, d, ScrapeTimeout)
		}
	}
}

func TestReadLimits(t *testing.T) {
	if MaxScalarFileSize >= MaxTableFileSize {
		t.Errorf("MaxScalarFileSize (%d) should be smaller than MaxTableFileSize (%d)",
			MaxScalarFileSize, MaxTableFileSize)
	}
}
