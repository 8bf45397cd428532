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
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/NVIDIA/kstat-exporter/pkg/errors"
)

// SDR record types and field offsets within a full sensor record,
// including the 5-byte record header (IPMI v2.0 section 43.1).
const (
	sdrHeaderLen     = 5
	sdrTypeFull      = 0x01
	bmcSlaveAddress  = 0x20
	offOwnerID       = 5
	offOwnerLUN      = 6
	offSensorNumber  = 7
	offSensorType    = 12
	offUnits1        = 20
	offBaseUnit      = 21
	offLinearization = 23
	offM             = 24
	offB             = 26
	offExponents     = 29
	offIDTypeLength  = 47
	offID            = 48
)

// Analog data formats from units1 bits 7:6.
const (
	formatUnsigned       = 0
	formatOnesComplement = 1
	formatTwosComplement = 2
	formatNoAnalog       = 3
)

// sensorRecord is the subset of a full sensor record needed to read and
// convert one sensor.
type sensorRecord struct {
	owner         uint8
	lun           uint8
	number        uint8
	sensorType    uint8
	format        uint8
	percentage    bool
	baseUnit      uint8
	linearization uint8
	m             int
	b             int
	bExp          int
	rExp          int
	name          string
}

// parseFullSensorRecord decodes a full sensor record. ok is false for
// any other record type.
func parseFullSensorRecord(rec []byte) (sensorRecord, bool, error) {
	if len(rec) < sdrHeaderLen || rec[3] != sdrTypeFull {
		return sensorRecord{}, false, nil
	}
	if len(rec) < offID {
		return sensorRecord{}, false, errors.New(errors.ErrCodeInvalidData,
			fmt.Sprintf("full sensor record too short: %d bytes", len(rec)))
	}

	s := sensorRecord{
		owner:         rec[offOwnerID],
		lun:           rec[offOwnerLUN] & 0x03,
		number:        rec[offSensorNumber],
		sensorType:    rec[offSensorType],
		format:        rec[offUnits1] >> 6,
		percentage:    rec[offUnits1]&0x01 != 0,
		baseUnit:      rec[offBaseUnit],
		linearization: rec[offLinearization] & 0x7f,
		m:             signExtend(int(rec[offM])|int(rec[offM+1]&0xc0)<<2, 10),
		b:             signExtend(int(rec[offB])|int(rec[offB+1]&0xc0)<<2, 10),
		rExp:          signExtend(int(rec[offExponents]>>4), 4),
		bExp:          signExtend(int(rec[offExponents]&0x0f), 4),
	}

	n := int(rec[offIDTypeLength] & 0x1f)
	if offID+n > len(rec) {
		n = len(rec) - offID
	}
	s.name = decodeID(rec[offIDTypeLength]>>6, rec[offID:offID+n])
	if s.name == "" {
		s.name = fmt.Sprintf("sensor_%d", s.number)
	}
	return s, true, nil
}

func signExtend(v, bits int) int {
	if v&(1<<(bits-1)) != 0 {
		return v - 1<<bits
	}
	return v
}

// decodeID decodes the ID string. Only 8-bit ASCII+Latin1 is used by
// BMCs in practice; other encodings are kept when printable.
func decodeID(kind uint8, b []byte) string {
	if kind == 3 {
		if s, err := charmap.ISO8859_1.NewDecoder().Bytes(b); err == nil {
			b = s
		}
	}
	return strings.TrimSpace(strings.TrimRight(strings.ToValidUTF8(string(b), ""), "\x00"))
}

// convert applies y = L[(M*x + B*10^Bexp) * 10^Rexp]. ok is false when
// the sensor has no analog reading or a non-linear formula that needs
// reading factors from the BMC.
func (s sensorRecord) convert(raw uint8) (float64, bool) {
	var x float64
	switch s.format {
	case formatUnsigned:
		x = float64(raw)
	case formatOnesComplement:
		v := int(int8(raw))
		if v < 0 {
			v++
		}
		x = float64(v)
	case formatTwosComplement:
		x = float64(int8(raw))
	default:
		return 0, false
	}

	y := (float64(s.m)*x + float64(s.b)*math.Pow10(s.bExp)) * math.Pow10(s.rExp)
	v, ok := linearize(s.linearization, y)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func linearize(l uint8, y float64) (float64, bool) {
	switch l {
	case 0x00:
		return y, true
	case 0x01:
		return math.Log(y), true
	case 0x02:
		return math.Log10(y), true
	case 0x03:
		return math.Log2(y), true
	case 0x04:
		return math.Exp(y), true
	case 0x05:
		return math.Pow(10, y), true
	case 0x06:
		return math.Exp2(y), true
	case 0x07:
		if y == 0 {
			return 0, false
		}
		return 1 / y, true
	case 0x08:
		return y * y, true
	case 0x09:
		return y * y * y, true
	case 0x0a:
		return math.Sqrt(y), true
	case 0x0b:
		return math.Cbrt(y), true
	default:
		return 0, false
	}
}

// sensorTypes names the generic sensor types (IPMI v2.0 table 42-3).
var sensorTypes = map[uint8]string{
	0x01: "temperature",
	0x02: "voltage",
	0x03: "current",
	0x04: "fan",
	0x05: "physical_security",
	0x06: "platform_security",
	0x07: "processor",
	0x08: "power_supply",
	0x09: "power_unit",
	0x0a: "cooling_device",
	0x0b: "other_units",
	0x0c: "memory",
	0x0d: "drive_slot",
	0x0e: "post_memory_resize",
	0x0f: "system_firmware_progress",
	0x10: "event_logging_disabled",
	0x11: "watchdog1",
	0x12: "system_event",
	0x13: "critical_interrupt",
	0x14: "button_switch",
	0x15: "module_board",
	0x16: "microcontroller",
	0x17: "add_in_card",
	0x18: "chassis",
	0x19: "chip_set",
	0x1a: "other_fru",
	0x1b: "cable_interconnect",
	0x1c: "terminator",
	0x1d: "system_boot_initiated",
	0x1e: "boot_error",
	0x1f: "os_boot",
	0x20: "os_critical_stop",
	0x21: "slot_connector",
	0x22: "system_acpi_power_state",
	0x23: "watchdog2",
	0x24: "platform_alert",
	0x25: "entity_presence",
	0x26: "monitor_asic",
	0x27: "lan",
	0x28: "management_subsystem_health",
	0x29: "battery",
	0x2a: "session_audit",
	0x2b: "version_change",
	0x2c: "fru_state",
}

func (s sensorRecord) typeName() string {
	if n, ok := sensorTypes[s.sensorType]; ok {
		return n
	}
	if s.sensorType >= 0xc0 {
		return fmt.Sprintf("oem_0x%02x", s.sensorType)
	}
	return fmt.Sprintf("type_0x%02x", s.sensorType)
}

// baseUnits names the sensor unit type codes (IPMI v2.0 table 43-15).
var baseUnits = []string{
	"unspecified", "celsius", "fahrenheit", "kelvin", "volts", "amperes",
	"watts", "joules", "coulombs", "volt_amperes", "nits", "lumens",
	"lux", "candela", "kilopascals", "psi", "newtons", "cfm", "rpm",
	"hertz", "microseconds", "milliseconds", "seconds", "minutes",
	"hours", "days", "weeks", "mils", "inches", "feet", "cubic_inches",
	"cubic_feet", "millimeters", "centimeters", "meters",
	"cubic_centimeters", "cubic_meters", "liters", "fluid_ounces",
	"radians", "steradians", "revolutions", "cycles", "gravities",
	"ounces", "pounds", "foot_pounds", "ounce_inches", "gauss",
	"gilberts", "henries", "millihenries", "farads", "microfarads",
	"ohms", "siemens", "moles", "becquerels", "ppm", "reserved",
	"decibels", "dba", "dbc", "grays", "sieverts", "color_temp_kelvin",
	"bits", "kilobits", "megabits", "gigabits", "bytes", "kilobytes",
	"megabytes", "gigabytes", "words", "dwords", "qwords", "lines",
	"hits", "misses", "retries", "resets", "overruns", "underruns",
	"collisions", "packets", "messages", "characters", "errors",
	"correctable_errors", "uncorrectable_errors", "fatal_errors", "grams",
}

func (s sensorRecord) unit() string {
	if s.percentage {
		return "percent"
	}
	if int(s.baseUnit) < len(baseUnits) {
		return baseUnits[s.baseUnit]
	}
	return fmt.Sprintf("unit_%d", s.baseUnit)
}
