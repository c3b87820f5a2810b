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

package telemetry

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/camradar/pkg/models"
)

func TestDecode_Telemetry(t *testing.T) {
	t.Parallel()

	msg, err := Decode([]byte("TELEM:HELMET_01:11.45:76:42.3:1234"))
	require.NoError(t, err)
	require.Equal(t, KindTelemetry, msg.Kind)
	require.NotNil(t, msg.Telemetry)

	rec := msg.Telemetry
	assert.Equal(t, models.DeviceID("HELMET_01"), rec.DeviceID)
	assert.InDelta(t, 11.45, rec.BatteryVoltage, 1e-9)
	assert.Equal(t, 76, rec.BatteryPercent)
	assert.InDelta(t, 42.3, rec.TemperatureCelsius, 1e-9)
	assert.InDelta(t, 1234.0, rec.UptimeSeconds, 1e-9)
	assert.Nil(t, msg.Info)
	assert.Nil(t, msg.Alert)
}

func TestDecode_RoundsToWirePrecision(t *testing.T) {
	t.Parallel()

	msg, err := Decode([]byte("TELEM:U1:11.456:50:-3.25:99.6"))
	require.NoError(t, err)
	assert.InDelta(t, 11.46, msg.Telemetry.BatteryVoltage, 1e-9)
	assert.InDelta(t, -3.3, msg.Telemetry.TemperatureCelsius, 1e-9)
	assert.InDelta(t, 100.0, msg.Telemetry.UptimeSeconds, 1e-9)
}

func TestDecode_StripsPaddingAndLineEndings(t *testing.T) {
	t.Parallel()

	raw := append([]byte("INFO:HLM01:1.2.0\r\n"), make([]byte, 8)...)

	msg, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, KindInfo, msg.Kind)
	assert.Equal(t, models.DeviceID("HLM01"), msg.Info.DeviceID)
	assert.Equal(t, "1.2.0", msg.Info.Version)
}

func TestDecode_Alert(t *testing.T) {
	t.Parallel()

	msg, err := Decode([]byte("ALERT:12:1700000000"))
	require.NoError(t, err)
	require.Equal(t, KindAlert, msg.Kind)
	assert.Equal(t, AlertHighTemperature, msg.Alert.Code)
	assert.Equal(t, "high_temperature", msg.Alert.Code.String())
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), msg.Alert.Timestamp)
}

func TestDecode_PercentOutOfRangeUsesBatteryScale(t *testing.T) {
	t.Parallel()

	msg, err := Decode([]byte("TELEM:U1:12.60:255:20.0:1"))
	require.NoError(t, err)
	assert.Equal(t, 100, msg.Telemetry.BatteryPercent)

	msg, err = Decode([]byte("TELEM:U1:9.50:-1:20.0:1"))
	require.NoError(t, err)
	assert.Equal(t, 0, msg.Telemetry.BatteryPercent)
}

func TestDecode_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"only padding", []byte{0, 0, 0}},
		{"missing fields", []byte("TELEM:HELMET_01:11.45:76")},
		{"extra field", []byte("TELEM:HELMET_01:11.45:76:42.3:1234:9")},
		{"empty id", []byte("TELEM::11.45:76:42.3:1234")},
		{"voltage not a number", []byte("TELEM:U1:abc:76:42.3:1234")},
		{"negative voltage", []byte("TELEM:U1:-1.0:76:42.3:1234")},
		{"percent fractional", []byte("TELEM:U1:11.45:7.6:42.3:1234")},
		{"temperature nan", []byte("TELEM:U1:11.45:76:NaN:1234")},
		{"uptime exponent", []byte("TELEM:U1:11.45:76:42.3:1e3")},
		{"negative uptime", []byte("TELEM:U1:11.45:76:42.3:-5")},
		{"binary garbage", []byte{'T', 'E', 'L', 0xff, 0x01}},
		{"embedded NUL", []byte("INFO:U1\x00:1.0")},
		{"info missing version", []byte("INFO:U1")},
		{"info empty version", []byte("INFO:U1:")},
		{"alert code text", []byte("ALERT:low:1700000000")},
		{"alert code overflow", []byte("ALERT:300:1700000000")},
		{"alert negative ts", []byte("ALERT:10:-1")},
		{"alert extra field", []byte("ALERT:10:1:2")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			require.NotPanics(t, func() {
				_, err := Decode(tt.raw)
				require.ErrorIs(t, err, ErrMalformedTelemetry)
			})
		})
	}
}

func TestDecode_UnknownType(t *testing.T) {
	t.Parallel()

	_, err := Decode([]byte("PING:U1"))
	require.ErrorIs(t, err, ErrUnknownMessageType)
	require.NotErrorIs(t, err, ErrMalformedTelemetry)

	_, err = Decode([]byte("telem:U1:11.45:76:42.3:1234"))
	require.ErrorIs(t, err, ErrUnknownMessageType)
}

func TestDecode_FrameTooLarge(t *testing.T) {
	t.Parallel()

	d := NewDecoder(32, DefaultBatteryScale)

	_, err := d.Decode([]byte("TELEM:HELMET_01:11.45:76:42.3:1234"))
	require.ErrorIs(t, err, ErrFrameTooLarge)
	require.ErrorIs(t, err, ErrMalformedTelemetry)

	_, err = Decode(bytes.Repeat([]byte("A"), DefaultMaxFrameSize+1))
	require.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestEncode_MatchesWireFormat(t *testing.T) {
	t.Parallel()

	rec := models.TelemetryRecord{
		DeviceID:           "HELMET_01",
		BatteryVoltage:     11.45,
		BatteryPercent:     76,
		TemperatureCelsius: 42.3,
		UptimeSeconds:      1234,
	}

	raw := EncodeTelemetry(rec)
	assert.Equal(t, "TELEM:HELMET_01:11.45:76:42.3:1234", string(raw))

	msg, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, rec, *msg.Telemetry)

	assert.Equal(t, "INFO:HELMET_01:1.0.3", string(EncodeInfo("HELMET_01", "1.0.3")))
	assert.Equal(t, "ALERT:11:1700000000", string(EncodeAlert(AlertBatteryCritical, time.Unix(1700000000, 0))))
}

func TestChecksum(t *testing.T) {
	t.Parallel()

	assert.Equal(t, byte(0), Checksum(nil))
	assert.Equal(t, byte('A'^'B'), Checksum([]byte("AB")))
}

func TestBatteryScale(t *testing.T) {
	t.Parallel()

	s := DefaultBatteryScale
	require.NoError(t, s.Validate())

	assert.Equal(t, 0, s.Percent(9.9))
	assert.Equal(t, 100, s.Percent(12.6))
	assert.Equal(t, 50, s.Percent(11.25))
	assert.Equal(t, 0, s.Percent(3.0))
	assert.Equal(t, 100, s.Percent(14.0))
	assert.InDelta(t, 11.25, s.Voltage(50), 1e-9)

	require.ErrorIs(t, BatteryScale{MinVoltage: 5, MaxVoltage: 5}.Validate(), ErrInvalidBatteryScale)
	assert.Equal(t, 0, BatteryScale{}.Percent(10))
}
