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

package models

import "time"

// TelemetryRecord is one decoded status report from a remote unit.
type TelemetryRecord struct {
	DeviceID           DeviceID  `json:"device_id"`
	BatteryVoltage     float64   `json:"battery_voltage"`
	BatteryPercent     int       `json:"battery_percent"`
	TemperatureCelsius float64   `json:"temperature"`
	UptimeSeconds      float64   `json:"uptime"`
	Channel            int       `json:"channel,omitempty"`
	SignalStrengthDBm  int       `json:"signal_strength,omitempty"`
	ReceivedAt         time.Time `json:"received_at"`
}

// DeviceEntry is the registry view of a remote unit.
type DeviceEntry struct {
	Telemetry TelemetryRecord `json:"telemetry"`
	LastSeen  time.Time       `json:"last_seen"`
}

// ChannelAssignment binds a device to a wireless channel.
type ChannelAssignment struct {
	DeviceID DeviceID `json:"device_id"`
	Channel  int      `json:"channel"`
}

// DeviceSummary merges capture, telemetry, channel and recording state for one
// device, for the dashboard device list.
type DeviceSummary struct {
	DeviceID     DeviceID         `json:"device_id"`
	Capture      *CaptureHealth   `json:"capture,omitempty"`
	Telemetry    *TelemetryRecord `json:"telemetry,omitempty"`
	LastSeen     *time.Time       `json:"last_seen,omitempty"`
	Channel      int              `json:"channel,omitempty"`
	FrequencyMHz int              `json:"frequency_mhz,omitempty"`
	Recording    bool             `json:"recording"`
}
