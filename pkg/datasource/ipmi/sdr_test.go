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

package ipmi

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NVIDIA/kstat-exporter/pkg/errors"
)

func TestParseFullSensorRecord(t *testing.T) {
	rec := fullRecord(0x0102, sensorSpec{
		owner: 0x20, number: 0x31, sensorType: 0x01, units1: 0x80, baseUnit: 1,
		m: -2, b: -300, rExp: -2, bExp: 1, name: "Exhaust Temp",
	})
	rec[offOwnerLUN] = 0x02

	s, ok, err := parseFullSensorRecord(rec)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint8(0x20), s.owner)
	assert.Equal(t, uint8(2), s.lun)
	assert.Equal(t, uint8(0x31), s.number)
	assert.Equal(t, uint8(formatTwosComplement), s.format)
	assert.Equal(t, -2, s.m)
	assert.Equal(t, -300, s.b)
	assert.Equal(t, -2, s.rExp)
	assert.Equal(t, 1, s.bExp)
	assert.Equal(t, "Exhaust Temp", s.name)
	assert.Equal(t, "temperature", s.typeName())
	assert.Equal(t, "celsius", s.unit())
}

func TestParseOtherRecordTypes(t *testing.T) {
	_, ok, err := parseFullSensorRecord(compactRecord(3))
	assert.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = parseFullSensorRecord([]byte{1, 0})
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestParseTruncatedRecord(t *testing.T) {
	rec := fullRecord(1, sensorSpec{owner: 0x20, name: "X"})
	_, _, err := parseFullSensorRecord(rec[:30])
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidData, errors.CodeOf(err))
}

func TestParseIDFallbacks(t *testing.T) {
	rec := fullRecord(1, sensorSpec{owner: 0x20, number: 12, name: ""})
	s, ok, err := parseFullSensorRecord(rec)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sensor_12", s.name)

	// Length byte claims more than the record holds.
	rec = fullRecord(1, sensorSpec{owner: 0x20, name: "Fan\x00\x00"})
	rec[offIDTypeLength] = 0xc0 | 0x10
	s, _, err = parseFullSensorRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, "Fan", s.name)

	// Latin-1 bytes are transcoded to UTF-8.
	rec = fullRecord(1, sensorSpec{owner: 0x20, name: "Temp \xb0C"})
	s, _, err = parseFullSensorRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, "Temp °C", s.name)
}

func TestSignExtend(t *testing.T) {
	assert.Equal(t, 511, signExtend(0x1ff, 10))
	assert.Equal(t, -1, signExtend(0x3ff, 10))
	assert.Equal(t, -512, signExtend(0x200, 10))
	assert.Equal(t, 7, signExtend(0x7, 4))
	assert.Equal(t, -8, signExtend(0x8, 4))
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name   string
		record sensorRecord
		raw    uint8
		want   float64
		ok     bool
	}{
		{"unsigned linear", sensorRecord{format: formatUnsigned, m: 1}, 200, 200, true},
		{"offset and exponents", sensorRecord{format: formatUnsigned, m: 2, b: 5, bExp: 1, rExp: -1}, 10, 7, true},
		{"negative M", sensorRecord{format: formatUnsigned, m: -1, b: 100}, 30, 70, true},
		{"twos complement", sensorRecord{format: formatTwosComplement, m: 1}, 0x80, -128, true},
		{"ones complement negative", sensorRecord{format: formatOnesComplement, m: 1}, 0xfe, -1, true},
		{"ones complement negative zero", sensorRecord{format: formatOnesComplement, m: 1}, 0xff, 0, true},
		{"ones complement positive", sensorRecord{format: formatOnesComplement, m: 1}, 0x05, 5, true},
		{"no analog reading", sensorRecord{format: formatNoAnalog, m: 1}, 1, 0, false},
		{"square", sensorRecord{format: formatUnsigned, m: 1, linearization: 0x08}, 12, 144, true},
		{"reciprocal", sensorRecord{format: formatUnsigned, m: 1, linearization: 0x07}, 4, 0.25, true},
		{"reciprocal of zero", sensorRecord{format: formatUnsigned, m: 1, linearization: 0x07}, 0, 0, false},
		{"log of zero", sensorRecord{format: formatUnsigned, m: 1, linearization: 0x01}, 0, 0, false},
		{"non-linear", sensorRecord{format: formatUnsigned, m: 1, linearization: 0x70}, 1, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.record.convert(tt.raw)
			if ok != tt.ok {
				t.Fatalf("convert(%d) ok = %v, want %v", tt.raw, ok, tt.ok)
			}
			if ok && math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("convert(%d) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNames(t *testing.T) {
	assert.Equal(t, "fan", sensorRecord{sensorType: 0x04}.typeName())
	assert.Equal(t, "oem_0xc1", sensorRecord{sensorType: 0xc1}.typeName())
	assert.Equal(t, "type_0x7f", sensorRecord{sensorType: 0x7f}.typeName())

	assert.Equal(t, "watts", sensorRecord{baseUnit: 6}.unit())
	assert.Equal(t, "rpm", sensorRecord{baseUnit: 18}.unit())
	assert.Equal(t, "grams", sensorRecord{baseUnit: 92}.unit())
	assert.Equal(t, "unit_200", sensorRecord{baseUnit: 200}.unit())
	assert.Equal(t, "percent", sensorRecord{baseUnit: 6, percentage: true}.unit())
}
