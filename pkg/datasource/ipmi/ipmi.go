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
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/NVIDIA/kstat-exporter/pkg/config"
	"github.com/NVIDIA/kstat-exporter/pkg/datasource"
	"github.com/NVIDIA/kstat-exporter/pkg/errors"
	"github.com/NVIDIA/kstat-exporter/pkg/metric"
)

// Name is the configuration key of the ipmi datasource.
const Name = "ipmi"

// Network functions and commands used by the datasource.
const (
	netfnSensorEvent = 0x04
	netfnStorage     = 0x0a

	cmdGetSensorReading     = 0x2d
	cmdReserveSDRRepository = 0x22
	cmdGetSDR               = 0x23
)

// Completion codes handled specially.
const (
	ccReservationCanceled = 0xc5
)

const (
	lastRecordID      = 0xffff
	sdrChunkSize      = 16
	maxSDRRecords     = 4096
	maxReserveRetries = 3
)

// Reading flags from the Get Sensor Reading response.
const (
	readingUnavailable    = 0x20
	readingScanningEnable = 0x40
)

// devicePaths are the node names used by the ipmi_devintf driver across
// distributions.
var devicePaths = []string{"/dev/ipmi0", "/dev/ipmi/0", "/dev/ipmidev/0"}

var sensorReading = metric.NewDesc("ipmi_sensor_reading", metric.Gauge,
	"IPMI sensor reading (unit label indicates base units).", "sensor", "type", "unit")

// request is one IPMI command addressed to the BMC.
type request struct {
	lun   uint8
	netfn uint8
	cmd   uint8
	data  []byte
}

// transport sends one request and returns the response data following a
// successful completion code.
type transport interface {
	Do(ctx context.Context, r request) ([]byte, error)
	Close() error
}

// completionError is a non-zero IPMI completion code.
type completionError struct {
	netfn, cmd, code uint8
}

func (e *completionError) Error() string {
	return fmt.Sprintf("ipmi netfn 0x%02x cmd 0x%02x: completion code 0x%02x", e.netfn, e.cmd, e.code)
}

func completionCode(err error) (uint8, bool) {
	var ce *completionError
	if stderrors.As(err, &ce) {
		return ce.code, true
	}
	return 0, false
}

// IPMI reports BMC sensor readings.
type IPMI struct {
	datasource.Base
	paths []string
	open  func(path string) (transport, error)
}

// New returns the ipmi datasource.
func New() *IPMI {
	return &IPMI{
		Base:  datasource.NewBase(Name, sensorReading),
		paths: devicePaths,
		open:  openDevice,
	}
}

// Poll walks the SDR repository and reads every analog BMC sensor.
// Sensors whose reading fails or is unavailable are skipped.
func (i *IPMI) Poll(ctx context.Context, _ *config.Config) datasource.Result {
	t, err := i.openFirst()
	if err != nil {
		return datasource.Failure(Name, err)
	}
	if t == nil {
		return datasource.Empty()
	}
	defer func() {
		if cerr := t.Close(); cerr != nil {
			slog.Debug("failed to close ipmi device", "error", cerr)
		}
	}()

	records, err := readSDRRepository(ctx, t)
	if err != nil {
		return datasource.Failure(Name, err)
	}

	set := metric.NewSet()
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return datasource.Failure(Name, errors.Wrap(errors.ErrCodeTimeout, "ipmi poll interrupted", err))
		}
		value, ok, err := readSensor(ctx, t, rec)
		if err != nil {
			slog.Debug("failed to read ipmi sensor", "sensor", rec.name, "error", err)
			continue
		}
		if !ok {
			continue
		}
		// Duplicate sensor names keep the first record.
		set.AddFirst(sensorReading, value, rec.name, rec.typeName(), rec.unit())
	}
	return datasource.FromSet(Name, set)
}

// openFirst opens the first device node that exists. It returns a nil
// transport when none does.
func (i *IPMI) openFirst() (transport, error) {
	for _, p := range i.paths {
		t, err := i.open(p)
		if err == nil {
			return t, nil
		}
		if !datasource.IsAbsent(err) {
			return nil, fmt.Errorf("failed to open %s: %w", p, err)
		}
	}
	return nil, nil
}

// readSDRRepository returns the analog full sensor records owned by the BMC.
func readSDRRepository(ctx context.Context, t transport) ([]sensorRecord, error) {
	reservation, err := reserveSDR(ctx, t)
	if err != nil {
		return nil, err
	}

	var (
		out  []sensorRecord
		id   uint16
		seen = make(map[uint16]bool)
	)
	for n := 0; n < maxSDRRecords; n++ {
		if seen[id] {
			return nil, errors.New(errors.ErrCodeInvalidData, fmt.Sprintf("sdr repository loops at record 0x%04x", id))
		}
		seen[id] = true

		rec, next, err := getSDRRecord(ctx, t, &reservation, id)
		if err != nil {
			return nil, err
		}
		s, ok, err := parseFullSensorRecord(rec)
		if err != nil {
			slog.Debug("skipping malformed sdr record", "record", id, "error", err)
		} else if ok && s.owner == bmcSlaveAddress && s.format != formatNoAnalog {
			out = append(out, s)
		}

		if next == lastRecordID {
			return out, nil
		}
		id = next
	}
	return out, nil
}

func reserveSDR(ctx context.Context, t transport) (uint16, error) {
	resp, err := t.Do(ctx, request{netfn: netfnStorage, cmd: cmdReserveSDRRepository})
	if err != nil {
		return 0, err
	}
	if len(resp) < 2 {
		return 0, errors.New(errors.ErrCodeInvalidData, "short reserve sdr repository response")
	}
	return uint16(resp[0]) | uint16(resp[1])<<8, nil
}

// getSDRRecord reads one record in chunks, renewing the reservation when
// the BMC cancels it mid-read.
func getSDRRecord(ctx context.Context, t transport, reservation *uint16, id uint16) ([]byte, uint16, error) {
	for attempt := 0; ; attempt++ {
		rec, next, err := readRecord(ctx, t, *reservation, id)
		if code, ok := completionCode(err); ok && code == ccReservationCanceled && attempt < maxReserveRetries {
			if *reservation, err = reserveSDR(ctx, t); err != nil {
				return nil, 0, err
			}
			continue
		}
		return rec, next, err
	}
}

func readRecord(ctx context.Context, t transport, reservation, id uint16) ([]byte, uint16, error) {
	head, next, err := getSDR(ctx, t, reservation, id, 0, sdrHeaderLen)
	if err != nil {
		return nil, 0, err
	}
	if len(head) < sdrHeaderLen {
		return nil, 0, errors.New(errors.ErrCodeInvalidData, fmt.Sprintf("short sdr header for record 0x%04x", id))
	}

	total := sdrHeaderLen + int(head[4])
	rec := make([]byte, 0, total)
	rec = append(rec, head[:sdrHeaderLen]...)
	for len(rec) < total {
		n := min(sdrChunkSize, total-len(rec))
		chunk, _, err := getSDR(ctx, t, reservation, id, uint8(len(rec)), uint8(n))
		if err != nil {
			return nil, 0, err
		}
		if len(chunk) == 0 {
			return nil, 0, errors.New(errors.ErrCodeInvalidData, fmt.Sprintf("empty sdr chunk for record 0x%04x", id))
		}
		rec = append(rec, chunk[:min(len(chunk), n)]...)
	}
	return rec, next, nil
}

// getSDR issues Get SDR and returns the record bytes and the next record ID.
func getSDR(ctx context.Context, t transport, reservation, id uint16, offset, count uint8) ([]byte, uint16, error) {
	resp, err := t.Do(ctx, request{
		netfn: netfnStorage,
		cmd:   cmdGetSDR,
		data: []byte{
			byte(reservation), byte(reservation >> 8),
			byte(id), byte(id >> 8),
			offset, count,
		},
	})
	if err != nil {
		return nil, 0, err
	}
	if len(resp) < 2 {
		return nil, 0, errors.New(errors.ErrCodeInvalidData, "short get sdr response")
	}
	return resp[2:], uint16(resp[0]) | uint16(resp[1])<<8, nil
}

// readSensor issues Get Sensor Reading. ok is false when the BMC reports
// the reading unavailable or scanning disabled.
func readSensor(ctx context.Context, t transport, s sensorRecord) (float64, bool, error) {
	resp, err := t.Do(ctx, request{
		lun:   s.lun,
		netfn: netfnSensorEvent,
		cmd:   cmdGetSensorReading,
		data:  []byte{s.number},
	})
	if err != nil {
		return 0, false, err
	}
	if len(resp) < 2 {
		return 0, false, errors.New(errors.ErrCodeInvalidData, "short get sensor reading response")
	}
	if resp[1]&readingUnavailable != 0 || resp[1]&readingScanningEnable == 0 {
		return 0, false, nil
	}
	v, ok := s.convert(resp[0])
	return v, ok, nil
}
