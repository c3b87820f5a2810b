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
	"fmt"
	"time"

	"github.com/carverauto/camradar/pkg/models"
)

// AlertCode identifies an alert condition raised by a remote unit.
type AlertCode uint8

const (
	AlertBatteryLow      AlertCode = 10
	AlertBatteryCritical AlertCode = 11
	AlertHighTemperature AlertCode = 12
	AlertSignalWeak      AlertCode = 13
)

func (c AlertCode) String() string {
	switch c {
	case AlertBatteryLow:
		return "battery_low"
	case AlertBatteryCritical:
		return "battery_critical"
	case AlertHighTemperature:
		return "high_temperature"
	case AlertSignalWeak:
		return "signal_weak"
	default:
		return fmt.Sprintf("alert_%d", uint8(c))
	}
}

// EncodeTelemetry renders a record in the TELEM wire format.
func EncodeTelemetry(rec models.TelemetryRecord) []byte {
	return []byte(fmt.Sprintf("%s:%s:%.2f:%d:%.1f:%.0f",
		KindTelemetry, rec.DeviceID, rec.BatteryVoltage, rec.BatteryPercent,
		rec.TemperatureCelsius, rec.UptimeSeconds))
}

// EncodeInfo renders an INFO frame.
func EncodeInfo(id models.DeviceID, version string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%s", KindInfo, id, version))
}

// EncodeAlert renders an ALERT frame stamped with at.
func EncodeAlert(code AlertCode, at time.Time) []byte {
	return []byte(fmt.Sprintf("%s:%d:%d", KindAlert, uint8(code), at.Unix()))
}

// Checksum is the XOR of all bytes. Units may append it; the decoder does not
// require it.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum ^= b
	}

	return sum
}
