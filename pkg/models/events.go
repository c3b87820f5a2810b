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

// CloudEvent represents a CloudEvents v1.0 compliant event.
type CloudEvent struct {
	SpecVersion     string      `json:"specversion"`
	ID              string      `json:"id"`
	Source          string      `json:"source"`
	Type            string      `json:"type"`
	DataContentType string      `json:"datacontenttype"`
	Subject         string      `json:"subject,omitempty"`
	Time            *time.Time  `json:"time,omitempty"`
	Data            interface{} `json:"data,omitempty"`
}

// EventType names a station event pushed to the dashboard.
type EventType string

const (
	EventTelemetryUpdate     EventType = "telemetry_update"
	EventCameraDisconnected  EventType = "camera_disconnected"
	EventCaptureStateChanged EventType = "capture_state_changed"
	EventRecordingStarted    EventType = "recording_started"
	EventRecordingStopped    EventType = "recording_stopped"
	EventChannelSwitched     EventType = "channel_switched"
	EventDeviceAlert         EventType = "device_alert"
	EventDeviceInfo          EventType = "device_info"
)

// CameraDisconnectedData is sent when a remote unit stops reporting.
type CameraDisconnectedData struct {
	DeviceID DeviceID  `json:"device_id"`
	LastSeen time.Time `json:"last_seen"`
}

// CaptureStateData is sent on every capture worker state transition.
type CaptureStateData struct {
	DeviceID DeviceID     `json:"device_id"`
	From     CaptureState `json:"from"`
	To       CaptureState `json:"to"`
	Reason   string       `json:"reason,omitempty"`
}

// ChannelSwitchedData is sent when a scan moves devices to a better channel.
type ChannelSwitchedData struct {
	Channel      int        `json:"channel"`
	FrequencyMHz int        `json:"frequency_mhz,omitempty"`
	QualityDBm   int        `json:"quality_dbm"`
	Devices      []DeviceID `json:"devices,omitempty"`
}

// DeviceAlertData carries an ALERT frame.
type DeviceAlertData struct {
	Code      int       `json:"code"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
}

// DeviceInfoData carries an INFO frame.
type DeviceInfoData struct {
	DeviceID DeviceID `json:"device_id"`
	Version  string   `json:"version"`
}

// RecordingStoppedData is sent when a recording session ends.
type RecordingStoppedData struct {
	DeviceID DeviceID `json:"device_id"`
}
