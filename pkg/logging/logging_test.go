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

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLogLevel(tt.in); got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewLoggerAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "kstatd", "v1.2.3", slog.LevelInfo)
	l.Info("server started", "bind", "0.0.0.0:9100")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["module"] != "kstatd" {
		t.Errorf("module = %v", rec["module"])
	}
	if rec["version"] != "v1.2.3" {
		t.Errorf("version = %v", rec["version"])
	}
	if _, ok := rec["source"]; ok {
		t.Error("source should only be added at debug level")
	}
}

func TestNewLoggerDebugSource(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "kstatd", "dev", slog.LevelDebug)
	l.Debug("datasource polled")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if _, ok := rec["source"]; !ok {
		t.Error("expected source location at debug level")
	}
}

func TestNewLoggerFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(&buf, "kstatd", "dev", slog.LevelWarn)
	l.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("expected info to be filtered, got %q", buf.String())
	}
}

func TestSetDefaultStructuredLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	SetDefaultStructuredLogger("kstatd", "dev", "error")
	if slog.Default().Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn should be disabled at error level")
	}
	if !slog.Default().Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled at error level")
	}
}

func TestNewLogLoggerUsesDefaultHandler(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	slog.SetDefault(newLogger(&buf, "kstatd", "dev", slog.LevelInfo))
	NewLogLogger(slog.LevelWarn).Print("http: TLS handshake error")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if rec["level"] != "WARN" {
		t.Errorf("level = %v, want WARN", rec["level"])
	}
	if rec["msg"] != "http: TLS handshake error" {
		t.Errorf("msg = %v", rec["msg"])
	}
}
