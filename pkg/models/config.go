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

import (
	"errors"
	"fmt"
	"time"

	"github.com/carverauto/camradar/pkg/logger"
)

// ErrInvalidConfig wraps every station configuration validation failure.
var ErrInvalidConfig = errors.New("invalid station configuration")

const (
	TransportNone     = "none"
	TransportLoopback = "loopback"
	TransportNATS     = "nats"

	OracleSynthetic = "synthetic"
	OracleStatic    = "static"

	FormatMP4   = "mp4"
	FormatMJPEG = "mjpeg"
)

// StationConfig is the top-level configuration of the ingestion station.
type StationConfig struct {
	StationID   string            `json:"station_id" yaml:"station_id"`
	Simulate    bool              `json:"simulate" yaml:"simulate"`
	Capture     CaptureConfig     `json:"capture" yaml:"capture"`
	Telemetry   TelemetryConfig   `json:"telemetry" yaml:"telemetry"`
	Registry    RegistryConfig    `json:"registry" yaml:"registry"`
	Channels    ChannelConfig     `json:"channels" yaml:"channels"`
	Recording   RecordingConfig   `json:"recording" yaml:"recording"`
	Events      EventsConfig      `json:"events" yaml:"events"`
	Audit       AuditConfig       `json:"audit" yaml:"audit"`
	HostMonitor HostMonitorConfig `json:"host_monitor" yaml:"host_monitor"`
	Logging     *logger.Config    `json:"logging,omitempty" yaml:"logging,omitempty"`
}

// CaptureDeviceConfig declares one capture device. ID defaults to camera_<index>.
type CaptureDeviceConfig struct {
	ID    DeviceID `json:"id,omitempty" yaml:"id,omitempty"`
	Index int      `json:"index" yaml:"index"`
	URL   string   `json:"url,omitempty" yaml:"url,omitempty"`
}

func (c CaptureDeviceConfig) DeviceID() DeviceID {
	if c.ID != "" {
		return c.ID
	}

	return CameraDeviceID(c.Index)
}

func (c CaptureDeviceConfig) Source() CaptureSource {
	return CaptureSource{Index: c.Index, URL: c.URL}
}

type CaptureConfig struct {
	Devices          []CaptureDeviceConfig `json:"devices" yaml:"devices"`
	DiscoverMaxIndex int                   `json:"discover_max_index" yaml:"discover_max_index"`
	Width            int                   `json:"width" yaml:"width"`
	Height           int                   `json:"height" yaml:"height"`
	FPS              float64               `json:"fps" yaml:"fps"`
	BufferSize       int                   `json:"buffer_size" yaml:"buffer_size"`
	MaxErrors        int                   `json:"max_errors" yaml:"max_errors"`
	StuckThreshold   Duration              `json:"stuck_threshold" yaml:"stuck_threshold"`
	ReadRetryDelay   Duration              `json:"read_retry_delay" yaml:"read_retry_delay"`
	SettleDelay      Duration              `json:"settle_delay" yaml:"settle_delay"`
	RestartBackoff   Duration              `json:"restart_backoff" yaml:"restart_backoff"`
}

type TelemetryConfig struct {
	Enabled           bool           `json:"enabled" yaml:"enabled"`
	Transport         string         `json:"transport" yaml:"transport"`
	RadioChannel      int            `json:"radio_channel" yaml:"radio_channel"`
	Address           string         `json:"address" yaml:"address"`
	PollInterval      Duration       `json:"poll_interval" yaml:"poll_interval"`
	MaxFrameSize      int            `json:"max_frame_size" yaml:"max_frame_size"`
	BatteryMinV       float64        `json:"battery_min_voltage" yaml:"battery_min_voltage"`
	BatteryMaxV       float64        `json:"battery_max_voltage" yaml:"battery_max_voltage"`
	NATSURL           string         `json:"nats_url,omitempty" yaml:"nats_url,omitempty"`
	NATSTLS           *NATSTLSConfig `json:"nats_tls,omitempty" yaml:"nats_tls,omitempty"`
	SubjectPrefix     string         `json:"subject_prefix" yaml:"subject_prefix"`
	SimulatedUnits    []DeviceID     `json:"simulated_units" yaml:"simulated_units"`
	SimulatedInterval Duration       `json:"simulated_interval" yaml:"simulated_interval"`
}

type RegistryConfig struct {
	StaleTimeout  Duration `json:"stale_timeout" yaml:"stale_timeout"`
	CheckInterval Duration `json:"check_interval" yaml:"check_interval"`
}

type ChannelConfig struct {
	MaxChannel    int              `json:"max_channel" yaml:"max_channel"`
	// ScanChannels limits scans to these channels; empty scans 1..MaxChannel.
	ScanChannels  []int            `json:"scan_channels,omitempty" yaml:"scan_channels,omitempty"`
	AutoSwitch    bool             `json:"auto_switch" yaml:"auto_switch"`
	ScanInterval  Duration         `json:"scan_interval" yaml:"scan_interval"`
	Assignments   map[DeviceID]int `json:"assignments" yaml:"assignments"`
	AutoAssign    []DeviceID       `json:"auto_assign" yaml:"auto_assign"`
	Oracle        string           `json:"oracle" yaml:"oracle"`
	StaticQuality map[int]int      `json:"static_quality" yaml:"static_quality"`
}

type RecordingConfig struct {
	Dir             string   `json:"dir" yaml:"dir"`
	Format          string   `json:"format" yaml:"format"`
	FPS             float64  `json:"fps" yaml:"fps"`
	Width           int      `json:"width" yaml:"width"`
	Height          int      `json:"height" yaml:"height"`
	JPEGQuality     int      `json:"jpeg_quality" yaml:"jpeg_quality"`
	RetentionDays   int      `json:"retention_days" yaml:"retention_days"`
	CleanupInterval Duration `json:"cleanup_interval" yaml:"cleanup_interval"`
}

type EventsConfig struct {
	Enabled       bool           `json:"enabled" yaml:"enabled"`
	NATSURL       string         `json:"nats_url" yaml:"nats_url"`
	TLS           *NATSTLSConfig `json:"tls,omitempty" yaml:"tls,omitempty"`
	StreamName    string         `json:"stream_name" yaml:"stream_name"`
	SubjectPrefix string         `json:"subject_prefix" yaml:"subject_prefix"`
}

// NATSTLSConfig enables mTLS to a NATS server. Relative paths resolve
// against CertDir.
type NATSTLSConfig struct {
	CertDir    string `json:"cert_dir,omitempty" yaml:"cert_dir,omitempty"`
	CertFile   string `json:"cert_file" yaml:"cert_file"`
	KeyFile    string `json:"key_file" yaml:"key_file"`
	CAFile     string `json:"ca_file" yaml:"ca_file"`
	ServerName string `json:"server_name,omitempty" yaml:"server_name,omitempty"`
}

type AuditConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	DSN     string `json:"dsn" yaml:"dsn"`
}

type HostMonitorConfig struct {
	Enabled     bool     `json:"enabled" yaml:"enabled"`
	Interval    Duration `json:"interval" yaml:"interval"`
	HistorySize int      `json:"history_size" yaml:"history_size"`
}

// DefaultStationConfig returns the configuration a station runs with when a
// file leaves a field out.
func DefaultStationConfig() StationConfig {
	return StationConfig{
		StationID: "camradar",
		Capture: CaptureConfig{
			Width:          640,
			Height:         480,
			FPS:            30,
			BufferSize:     1,
			MaxErrors:      5,
			StuckThreshold: Duration(5 * time.Second),
			ReadRetryDelay: Duration(100 * time.Millisecond),
			SettleDelay:    Duration(500 * time.Millisecond),
			RestartBackoff: Duration(2 * time.Second),
		},
		Telemetry: TelemetryConfig{
			Enabled:           true,
			Transport:         TransportLoopback,
			RadioChannel:      76,
			Address:           "HLMT1",
			PollInterval:      Duration(100 * time.Millisecond),
			MaxFrameSize:      64,
			BatteryMinV:       9.9,
			BatteryMaxV:       12.6,
			SubjectPrefix:     "camradar.radio",
			SimulatedInterval: Duration(time.Second),
		},
		Registry: RegistryConfig{
			StaleTimeout:  Duration(10 * time.Second),
			CheckInterval: Duration(5 * time.Second),
		},
		Channels: ChannelConfig{
			MaxChannel:   8,
			AutoSwitch:   false,
			ScanInterval: Duration(time.Second),
			Oracle:       OracleSynthetic,
		},
		Recording: RecordingConfig{
			Dir:             "recordings",
			Format:          FormatMP4,
			FPS:             30,
			Width:           640,
			Height:          480,
			JPEGQuality:     80,
			RetentionDays:   7,
			CleanupInterval: Duration(time.Hour),
		},
		Events: EventsConfig{
			StreamName:    "CAMRADAR_EVENTS",
			SubjectPrefix: "camradar.events",
		},
		HostMonitor: HostMonitorConfig{
			Enabled:     true,
			Interval:    Duration(time.Second),
			HistorySize: 100,
		},
	}
}

// Validate implements config.Validator.
func (c *StationConfig) Validate() error {
	validators := []func() error{
		c.Capture.validate,
		c.Telemetry.validate,
		c.Registry.validate,
		c.Channels.validate,
		c.Recording.validate,
		c.Events.validate,
		c.Audit.validate,
		c.HostMonitor.validate,
	}

	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}

	return nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func (c *CaptureConfig) validate() error {
	switch {
	case c.MaxErrors < 1:
		return invalid("capture.max_errors must be at least 1")
	case c.StuckThreshold <= 0:
		return invalid("capture.stuck_threshold must be positive")
	case c.ReadRetryDelay < 0, c.SettleDelay < 0, c.RestartBackoff < 0:
		return invalid("capture delays must not be negative")
	case c.FPS <= 0:
		return invalid("capture.fps must be positive")
	case c.Width <= 0 || c.Height <= 0:
		return invalid("capture.width and capture.height must be positive")
	}

	seen := make(map[DeviceID]struct{}, len(c.Devices))

	for _, d := range c.Devices {
		id := d.DeviceID()
		if _, dup := seen[id]; dup {
			return invalid("duplicate capture device %q", id)
		}

		if d.URL == "" && d.Index < 0 {
			return invalid("capture device %q needs an index or url", id)
		}

		seen[id] = struct{}{}
	}

	return nil
}

func (c *TelemetryConfig) validate() error {
	if !c.Enabled {
		return nil
	}

	switch c.Transport {
	case TransportNone, TransportLoopback:
	case TransportNATS:
		if c.NATSURL == "" {
			return invalid("telemetry.nats_url is required for the nats transport")
		}
	default:
		return invalid("unknown telemetry.transport %q", c.Transport)
	}

	switch {
	case c.RadioChannel < 0 || c.RadioChannel > 125:
		return invalid("telemetry.radio_channel must be within [0,125]")
	case c.PollInterval <= 0:
		return invalid("telemetry.poll_interval must be positive")
	case c.MaxFrameSize <= 0:
		return invalid("telemetry.max_frame_size must be positive")
	case c.BatteryMinV >= c.BatteryMaxV:
		return invalid("telemetry battery voltage range is empty")
	}

	return nil
}

func (c *RegistryConfig) validate() error {
	if c.StaleTimeout <= 0 || c.CheckInterval <= 0 {
		return invalid("registry intervals must be positive")
	}

	return nil
}

func (c *ChannelConfig) validate() error {
	if c.MaxChannel < 1 {
		return invalid("channels.max_channel must be at least 1")
	}

	if c.ScanInterval <= 0 {
		return invalid("channels.scan_interval must be positive")
	}

	for id, ch := range c.Assignments {
		if ch < 1 || ch > c.MaxChannel {
			return invalid("channel %d for %q outside [1,%d]", ch, id, c.MaxChannel)
		}
	}

	seen := make(map[int]bool, len(c.ScanChannels))

	for _, ch := range c.ScanChannels {
		if ch < 1 || ch > c.MaxChannel {
			return invalid("channels.scan_channels entry %d outside [1,%d]", ch, c.MaxChannel)
		}

		if seen[ch] {
			return invalid("channels.scan_channels lists %d twice", ch)
		}

		seen[ch] = true
	}

	switch c.Oracle {
	case OracleSynthetic:
	case OracleStatic:
		if len(c.StaticQuality) == 0 {
			return invalid("channels.static_quality is required for the static oracle")
		}
	default:
		return invalid("unknown channels.oracle %q", c.Oracle)
	}

	return nil
}

func (c *RecordingConfig) validate() error {
	switch {
	case c.Dir == "":
		return invalid("recording.dir is required")
	case c.Format != FormatMP4 && c.Format != FormatMJPEG:
		return invalid("unknown recording.format %q", c.Format)
	case c.FPS <= 0:
		return invalid("recording.fps must be positive")
	case c.Width <= 0 || c.Height <= 0:
		return invalid("recording.width and recording.height must be positive")
	case c.JPEGQuality < 1 || c.JPEGQuality > 100:
		return invalid("recording.jpeg_quality must be within [1,100]")
	case c.RetentionDays < 0:
		return invalid("recording.retention_days must not be negative")
	case c.CleanupInterval < 0:
		return invalid("recording.cleanup_interval must not be negative")
	}

	return nil
}

func (c *EventsConfig) validate() error {
	if !c.Enabled {
		return nil
	}

	if c.NATSURL == "" || c.StreamName == "" || c.SubjectPrefix == "" {
		return invalid("events require nats_url, stream_name and subject_prefix")
	}

	return nil
}

func (c *AuditConfig) validate() error {
	if c.Enabled && c.DSN == "" {
		return invalid("audit.dsn is required when audit is enabled")
	}

	return nil
}

func (c *HostMonitorConfig) validate() error {
	if !c.Enabled {
		return nil
	}

	if c.Interval <= 0 || c.HistorySize < 1 {
		return invalid("host_monitor needs a positive interval and history size")
	}

	return nil
}
