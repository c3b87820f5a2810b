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

// RecordingSession is an active recording. At most one exists per device.
type RecordingSession struct {
	ID         string    `json:"id"`
	DeviceID   DeviceID  `json:"device_id"`
	Path       string    `json:"path"`
	StartedAt  time.Time `json:"started_at"`
	FrameCount uint64    `json:"frame_count"`
}

// RecordingInfo describes a finished or in-progress recording file on disk.
type RecordingInfo struct {
	Filename   string    `json:"filename"`
	Path       string    `json:"path"`
	DeviceID   DeviceID  `json:"device_id"`
	SizeBytes  int64     `json:"size"`
	CreatedAt  time.Time `json:"created"`
	ModifiedAt time.Time `json:"modified"`
}

// RecordingAudit is written once per stopped session.
type RecordingAudit struct {
	SessionID  string        `json:"session_id"`
	DeviceID   DeviceID      `json:"device_id"`
	Path       string        `json:"path"`
	StartedAt  time.Time     `json:"started_at"`
	StoppedAt  time.Time     `json:"stopped_at"`
	Duration   time.Duration `json:"duration_ns"`
	FrameCount uint64        `json:"frame_count"`
	SizeBytes  int64         `json:"size_bytes"`
}

// DiskUsage reports capacity of the volume holding recordings.
type DiskUsage struct {
	Path        string  `json:"path"`
	TotalBytes  uint64  `json:"total_bytes"`
	UsedBytes   uint64  `json:"used_bytes"`
	FreeBytes   uint64  `json:"free_bytes"`
	UsedPercent float64 `json:"percent_used"`
}

// HostSample is one CPU/RAM reading of the station host.
type HostSample struct {
	Timestamp  time.Time `json:"timestamp"`
	CPUPercent float64   `json:"cpu_percent"`
	RAMPercent float64   `json:"ram_percent"`
}

// StationStatus is the dashboard status summary.
type StationStatus struct {
	StationID       string        `json:"station_id"`
	StartedAt       time.Time     `json:"started_at"`
	Uptime          time.Duration `json:"uptime_ns"`
	ActiveCameras   int           `json:"active_cameras"`
	DegradedCameras int           `json:"degraded_cameras"`
	KnownDevices    int           `json:"known_devices"`
	Recordings      int           `json:"recordings"`
	RadioAvailable  bool          `json:"radio_available"`
	AutoSwitch      bool          `json:"auto_switch"`
	BestChannel     int           `json:"best_channel,omitempty"`
	Platform        string        `json:"platform"`
	Host            *HostSample   `json:"host,omitempty"`
	Disk            *DiskUsage    `json:"disk,omitempty"`
}
