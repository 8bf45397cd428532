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

package serializer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/NVIDIA/kstat-exporter/pkg/metric"
)

// Format represents the output format type
type Format string

const (
	// FormatText outputs the Prometheus text exposition format 0.0.4
	FormatText Format = "text"
	// FormatJSON outputs a flat JSON array of samples
	FormatJSON Format = "json"
	// FormatYAML outputs the JSON sample list as YAML
	FormatYAML Format = "yaml"
)

const jsonContentType = "application/json"

// IsUnknown reports whether f is not one of the supported formats.
func (f Format) IsUnknown() bool {
	switch f {
	case FormatText, FormatJSON, FormatYAML:
		return false
	default:
		return true
	}
}

// ContentType returns the HTTP content type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return jsonContentType
	case FormatYAML:
		return "application/yaml"
	default:
		return string(expfmt.NewFormat(expfmt.TypeTextPlain))
	}
}

// SupportedFormats returns the list of supported format names.
func SupportedFormats() []string {
	return []string{
		string(FormatText),
		string(FormatJSON),
		string(FormatYAML),
	}
}

// Writer serializes snapshots to an io.Writer.
type Writer struct {
	format   Format
	output   io.Writer
	closer   io.Closer
	gatherer prometheus.Gatherer
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithGatherer appends the families gathered from g after the snapshot
// in text output. Other formats ignore it.
func WithGatherer(g prometheus.Gatherer) WriterOption {
	return func(w *Writer) {
		w.gatherer = g
	}
}

// NewWriter creates a Writer for format. A nil output means stdout and an
// unknown format falls back to text.
func NewWriter(format Format, output io.Writer, opts ...WriterOption) *Writer {
	if output == nil {
		output = os.Stdout
	}
	if format.IsUnknown() {
		slog.Warn("unknown format, defaulting to text", "format", format)
		format = FormatText
	}
	w := &Writer{
		format: format,
		output: output,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// NewStdoutWriter creates a Writer on stdout.
func NewStdoutWriter(format Format, opts ...WriterOption) *Writer {
	return NewWriter(format, os.Stdout, opts...)
}

// NewFileWriterOrStdout writes to path, or to stdout when path is empty or
// cannot be created.
func NewFileWriterOrStdout(format Format, path string, opts ...WriterOption) *Writer {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return NewStdoutWriter(format, opts...)
	}

	file, err := os.Create(trimmed)
	if err != nil {
		slog.Error("failed to create output file", "error", err, "path", trimmed)
		return NewStdoutWriter(format, opts...)
	}

	w := NewWriter(format, file, opts...)
	w.closer = file
	return w
}

// Format returns the writer's effective format.
func (w *Writer) Format() Format {
	return w.format
}

// Close releases the output when the writer owns it.
func (w *Writer) Close() error {
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// Serialize renders snap in the writer's format.
func (w *Writer) Serialize(ctx context.Context, snap *metric.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch w.format {
	case FormatText:
		if err := EncodeText(w.output, snap); err != nil {
			return err
		}
		if w.gatherer != nil {
			return EncodeGathered(w.output, w.gatherer)
		}
		return nil
	case FormatJSON:
		return EncodeJSON(w.output, snap)
	case FormatYAML:
		return EncodeYAML(w.output, snap)
	default:
		return fmt.Errorf("unsupported format: %s", w.format)
	}
}
