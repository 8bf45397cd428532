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

package file

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/NVIDIA/kstat-exporter/pkg/defaults"
)

// Option configures a Parser.
type Option func(*Parser)

// Parser reads kernel tables with customizable settings.
type Parser struct {
	delimiter       string
	maxSize         int64
	skipComments    bool
	kvDelimiter     string
	vTrimSuffix     string
	skipEmptyValues bool
}

// WithDelimiter sets the delimiter used to split entries in the file.
// Default is newline ("\n").
func WithDelimiter(delim string) Option {
	return func(p *Parser) {
		p.delimiter = delim
	}
}

// WithMaxSize sets the maximum size (in bytes) of the file to be parsed.
// Default is defaults.MaxTableFileSize.
func WithMaxSize(size int64) Option {
	return func(p *Parser) {
		p.maxSize = size
	}
}

// WithSkipComments sets whether to skip lines starting with '#'.
// Default is true.
func WithSkipComments(skip bool) Option {
	return func(p *Parser) {
		p.skipComments = skip
	}
}

// WithKVDelimiter sets the key-value delimiter used in GetMap.
// Default is "=".
func WithKVDelimiter(kvDelim string) Option {
	return func(p *Parser) {
		p.kvDelimiter = kvDelim
	}
}

// WithVTrimSuffix sets a unit suffix (such as " kB") removed from values
// in GetMap. Default is none.
func WithVTrimSuffix(suffix string) Option {
	return func(p *Parser) {
		p.vTrimSuffix = suffix
	}
}

// WithSkipEmptyValues sets whether GetMap drops keys without a value.
// Default is false.
func WithSkipEmptyValues(skip bool) Option {
	return func(p *Parser) {
		p.skipEmptyValues = skip
	}
}

// NewParser creates a new parser with the provided options.
func NewParser(opts ...Option) *Parser {
	p := &Parser{
		delimiter:    "\n",
		maxSize:      defaults.MaxTableFileSize,
		skipComments: true,
		kvDelimiter:  "=",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetMap reads the file at path and splits every line into a key and a
// value at the first key-value delimiter. Lines without the delimiter map
// to an empty value.
func (p *Parser) GetMap(path string) (map[string]string, error) {
	lines, err := p.GetLines(path)
	if err != nil {
		return nil, err
	}

	result := make(map[string]string, len(lines))
	for _, line := range lines {
		key, value, _ := strings.Cut(line, p.kvDelimiter)
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if p.vTrimSuffix != "" {
			value = strings.TrimSpace(strings.TrimSuffix(value, p.vTrimSuffix))
		}
		if p.skipEmptyValues && value == "" {
			slog.Debug("skipping entry with empty value", "key", key, "path", path)
			continue
		}
		result[key] = value
	}
	return result, nil
}

// GetLines reads the file at path and returns its trimmed, non-empty
// entries split by the configured delimiter.
func (p *Parser) GetLines(path string) ([]string, error) {
	b, err := p.read(path)
	if err != nil {
		return nil, err
	}

	parts := strings.Split(string(b), p.delimiter)
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		if p.skipComments && strings.HasPrefix(clean, "#") {
			continue
		}
		result = append(result, clean)
	}
	return result, nil
}

// GetFields reads the file at path and returns the whitespace-separated
// fields of each non-empty line.
func (p *Parser) GetFields(path string) ([][]string, error) {
	lines, err := p.GetLines(path)
	if err != nil {
		return nil, err
	}
	out := make([][]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, strings.Fields(l))
	}
	return out, nil
}

func (p *Parser) read(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %q: %w", path, err)
	}
	defer f.Close()

	// procfs and sysfs report a size of 0 or 4096 regardless of content,
	// so the cap is enforced on the bytes actually read.
	b, err := io.ReadAll(io.LimitReader(f, p.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file %q: %w", path, err)
	}
	if int64(len(b)) > p.maxSize {
		return nil, fmt.Errorf("file %q exceeds maximum size of %d bytes", path, p.maxSize)
	}
	if !utf8.Valid(b) {
		return nil, fmt.Errorf("content of file %q is not valid UTF-8", path)
	}
	return b, nil
}

var scalar = NewParser(WithMaxSize(defaults.MaxScalarFileSize), WithSkipComments(false))

// ReadString returns the trimmed content of a single-value attribute file.
func ReadString(path string) (string, error) {
	b, err := scalar.read(path)
	if err != nil {
		return "", err
	}
	return string(bytes.TrimSpace(b)), nil
}

// ReadUint parses a single-value attribute file as an unsigned integer.
func ReadUint(path string) (uint64, error) {
	s, err := ReadString(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %q from %s: %w", s, path, err)
	}
	return v, nil
}

// ReadInt parses a single-value attribute file as a signed integer.
func ReadInt(path string) (int64, error) {
	s, err := ReadString(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %q from %s: %w", s, path, err)
	}
	return v, nil
}

// ReadFloat parses a single-value attribute file as a float.
func ReadFloat(path string) (float64, error) {
	s, err := ReadString(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %q from %s: %w", s, path, err)
	}
	return v, nil
}
