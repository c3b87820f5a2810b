/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package telemetry decodes remote-unit radio frames and tracks the units
// that are currently reporting.
package telemetry

import (
	"bytes"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/carverauto/camradar/pkg/models"
)

// DefaultMaxFrameSize bounds a single text frame. It is larger than one radio
// packet because gateways may reassemble frames from several packets.
const DefaultMaxFrameSize = 64

const fieldSeparator = ":"

// MessageKind is the leading tag of a frame.
type MessageKind string

const (
	KindTelemetry MessageKind = "TELEM"
	KindInfo      MessageKind = "INFO"
	KindAlert     MessageKind = "ALERT"
)

// InfoEvent is a unit announcing its firmware version.
type InfoEvent struct {
	DeviceID models.DeviceID
	Version  string
}

// AlertEvent is a unit raising an alert condition. ALERT frames carry no device id.
type AlertEvent struct {
	Code      AlertCode
	Timestamp time.Time
}

// Message is the result of decoding one frame. Exactly one of the pointers
// matching Kind is set.
type Message struct {
	Kind      MessageKind
	Telemetry *models.TelemetryRecord
	Info      *InfoEvent
	Alert     *AlertEvent
}

//nolint:gochecknoglobals // compiled once
var (
	decimalPattern  = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)
	integerPattern  = regexp.MustCompile(`^-?[0-9]+$`)
	unsignedPattern = regexp.MustCompile(`^[0-9]+$`)

	defaultDecoder = NewDecoder(DefaultMaxFrameSize, DefaultBatteryScale)
)

// Decoder turns raw frames into messages. It holds no mutable state and is
// safe for concurrent use.
type Decoder struct {
	maxFrameSize int
	scale        BatteryScale
}

// NewDecoder returns a decoder rejecting frames above maxFrameSize bytes.
// scale fills in the battery percent when a unit reports one outside [0,100].
func NewDecoder(maxFrameSize int, scale BatteryScale) *Decoder {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}

	if scale.Validate() != nil {
		scale = DefaultBatteryScale
	}

	return &Decoder{maxFrameSize: maxFrameSize, scale: scale}
}

// Decode parses a frame with the default decoder.
func Decode(raw []byte) (Message, error) {
	return defaultDecoder.Decode(raw)
}

// Decode parses one frame. Trailing NUL padding and line endings are ignored;
// anything else that is not printable ASCII makes the frame malformed.
func (d *Decoder) Decode(raw []byte) (Message, error) {
	if len(raw) > d.maxFrameSize {
		return Message{}, malformedSize(len(raw), d.maxFrameSize)
	}

	text := bytes.TrimRight(raw, "\x00\r\n")
	if len(text) == 0 {
		return Message{}, malformed("empty frame")
	}

	for _, b := range text {
		if b < 0x20 || b > 0x7e {
			return Message{}, malformed("non-printable byte 0x%02x", b)
		}
	}

	fields := strings.Split(string(text), fieldSeparator)

	switch MessageKind(fields[0]) {
	case KindTelemetry:
		return d.decodeTelemetry(fields)
	case KindInfo:
		return decodeInfo(fields)
	case KindAlert:
		return decodeAlert(fields)
	default:
		return Message{}, unknownKind(fields[0])
	}
}

// TELEM:<id>:<voltage>:<percent>:<temperature>:<uptime>
func (d *Decoder) decodeTelemetry(fields []string) (Message, error) {
	if len(fields) != 6 {
		return Message{}, malformed("TELEM needs 6 fields, got %d", len(fields))
	}

	if fields[1] == "" {
		return Message{}, malformed("TELEM device id is empty")
	}

	voltage, err := parseDecimal(fields[2], 2)
	if err != nil || voltage < 0 {
		return Message{}, malformed("bad voltage %q", fields[2])
	}

	if !integerPattern.MatchString(fields[3]) {
		return Message{}, malformed("bad battery percent %q", fields[3])
	}

	percent, err := strconv.Atoi(fields[3])
	if err != nil {
		return Message{}, malformed("bad battery percent %q", fields[3])
	}

	if percent < 0 || percent > 100 {
		percent = d.scale.Percent(voltage)
	}

	temperature, err := parseDecimal(fields[4], 1)
	if err != nil {
		return Message{}, malformed("bad temperature %q", fields[4])
	}

	uptime, err := parseDecimal(fields[5], 0)
	if err != nil || uptime < 0 {
		return Message{}, malformed("bad uptime %q", fields[5])
	}

	return Message{
		Kind: KindTelemetry,
		Telemetry: &models.TelemetryRecord{
			DeviceID:           models.DeviceID(fields[1]),
			BatteryVoltage:     voltage,
			BatteryPercent:     percent,
			TemperatureCelsius: temperature,
			UptimeSeconds:      uptime,
		},
	}, nil
}

// INFO:<id>:<version>
func decodeInfo(fields []string) (Message, error) {
	if len(fields) != 3 {
		return Message{}, malformed("INFO needs 3 fields, got %d", len(fields))
	}

	if fields[1] == "" || fields[2] == "" {
		return Message{}, malformed("INFO fields must not be empty")
	}

	return Message{
		Kind: KindInfo,
		Info: &InfoEvent{DeviceID: models.DeviceID(fields[1]), Version: fields[2]},
	}, nil
}

// ALERT:<code>:<unix seconds>
func decodeAlert(fields []string) (Message, error) {
	if len(fields) != 3 {
		return Message{}, malformed("ALERT needs 3 fields, got %d", len(fields))
	}

	if !unsignedPattern.MatchString(fields[1]) {
		return Message{}, malformed("bad alert code %q", fields[1])
	}

	code, err := strconv.ParseUint(fields[1], 10, 8)
	if err != nil {
		return Message{}, malformed("bad alert code %q", fields[1])
	}

	if !unsignedPattern.MatchString(fields[2]) {
		return Message{}, malformed("bad alert timestamp %q", fields[2])
	}

	ts, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return Message{}, malformed("bad alert timestamp %q", fields[2])
	}

	return Message{
		Kind:  KindAlert,
		Alert: &AlertEvent{Code: AlertCode(code), Timestamp: time.Unix(ts, 0).UTC()},
	}, nil
}

// parseDecimal parses a plain decimal and rounds it to the given number of
// decimal places, matching the precision the units transmit.
func parseDecimal(s string, places int) (float64, error) {
	if !decimalPattern.MatchString(s) {
		return 0, ErrMalformedTelemetry
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, ErrMalformedTelemetry
	}

	scale := math.Pow10(places)

	return math.Round(v*scale) / scale, nil
}
