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

// Package models holds the data types shared across the station.
package models

import (
	"fmt"
	"strconv"
	"time"
)

// DeviceID identifies a capture device or remote unit. It is the join key
// between capture, telemetry, channel and recording state.
type DeviceID string

func (d DeviceID) String() string {
	return string(d)
}

// CameraDeviceID returns the id used for a capture device configured by index.
func CameraDeviceID(index int) DeviceID {
	return DeviceID(fmt.Sprintf("camera_%d", index))
}

// CaptureSource names the hardware a capture worker opens: a local device
// index or a stream URL. URL wins when both are set.
type CaptureSource struct {
	Index int    `json:"index" yaml:"index"`
	URL   string `json:"url,omitempty" yaml:"url,omitempty"`
}

func (s CaptureSource) String() string {
	if s.URL != "" {
		return s.URL
	}

	return strconv.Itoa(s.Index)
}

// Frame is one captured image. Data holds packed BGR24 pixels, row major.
// A published frame is never modified.
type Frame struct {
	DeviceID   DeviceID  `json:"device_id"`
	Seq        uint64    `json:"seq"`
	CapturedAt time.Time `json:"captured_at"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Data       []byte    `json:"-"`
}

// BytesPerPixel is the pixel stride of Frame.Data.
const BytesPerPixel = 3

// Valid reports whether Data is large enough for the declared dimensions.
func (f *Frame) Valid() bool {
	return f.Width > 0 && f.Height > 0 && len(f.Data) >= f.Width*f.Height*BytesPerPixel
}

// CaptureState is the lifecycle state of a capture worker.
type CaptureState string

const (
	CaptureStopped    CaptureState = "STOPPED"
	CaptureOpening    CaptureState = "OPENING"
	CaptureRunning    CaptureState = "RUNNING"
	CaptureDegraded   CaptureState = "DEGRADED"
	CaptureRestarting CaptureState = "RESTARTING"
)

// CaptureHealth is a point-in-time copy of a worker's health.
type CaptureHealth struct {
	DeviceID          DeviceID      `json:"device_id"`
	Source            string        `json:"source"`
	State             CaptureState  `json:"state"`
	Running           bool          `json:"running"`
	ConsecutiveErrors int           `json:"consecutive_errors"`
	LastSuccessAt     time.Time     `json:"last_success_at"`
	RestartCount      int           `json:"restart_count"`
	FramesCaptured    uint64        `json:"frames_captured"`
	DroppedFrames     uint64        `json:"dropped_frames"`
	FPS               float64       `json:"fps"`
	ReadLatency       time.Duration `json:"read_latency_ns"`
	LastError         string        `json:"last_error,omitempty"`
}
