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

package station

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"

	"github.com/carverauto/camradar/pkg/capture"
	"github.com/carverauto/camradar/pkg/channel"
	"github.com/carverauto/camradar/pkg/models"
	"github.com/carverauto/camradar/pkg/recording"
)

func (s *Station) captureSupervisor() *capture.Supervisor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.supervisor
}

// Devices lists every known device: capture workers and remote units, with
// their channel and recording state, sorted by id.
func (s *Station) Devices() []models.DeviceSummary {
	byID := make(map[models.DeviceID]*models.DeviceSummary)

	get := func(id models.DeviceID) *models.DeviceSummary {
		d, ok := byID[id]
		if !ok {
			d = &models.DeviceSummary{DeviceID: id}
			byID[id] = d
		}

		return d
	}

	if sup := s.captureSupervisor(); sup != nil {
		for _, h := range sup.Health() {
			health := h
			get(h.DeviceID).Capture = &health
		}
	}

	for _, e := range s.registry.Snapshot() {
		entry := e
		d := get(e.Telemetry.DeviceID)
		d.Telemetry = &entry.Telemetry
		d.LastSeen = &entry.LastSeen
	}

	for _, a := range s.channels.Assignments() {
		d := get(a.DeviceID)
		d.Channel = a.Channel
		d.FrequencyMHz = channel.FrequencyMHz(a.Channel)
	}

	for _, r := range s.recordings.Sessions() {
		get(r.DeviceID).Recording = true
	}

	out := make([]models.DeviceSummary, 0, len(byID))
	for _, d := range byID {
		out = append(out, *d)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })

	return out
}

// Telemetry returns the registry entry of a remote unit.
func (s *Station) Telemetry(id models.DeviceID) (models.DeviceEntry, error) {
	entry, ok := s.registry.Get(id)
	if !ok {
		return models.DeviceEntry{}, fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}

	return entry, nil
}

// StartRecording starts recording a capture device. Starting a device that
// is already recording returns its session.
func (s *Station) StartRecording(id models.DeviceID) (models.RecordingSession, error) {
	sup := s.captureSupervisor()
	if sup == nil {
		return models.RecordingSession{}, fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}

	if _, ok := sup.Worker(id); !ok {
		return models.RecordingSession{}, fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}

	wasRecording := s.recordings.IsRecording(id)

	session, err := s.recordings.Start(id)
	if err != nil {
		return models.RecordingSession{}, err
	}

	if !wasRecording {
		s.emit(models.EventRecordingStarted, session)
	}

	return session, nil
}

// StopRecording stops recording id. It reports false when id was not recording.
func (s *Station) StopRecording(ctx context.Context, id models.DeviceID) (bool, error) {
	stopped, err := s.recordings.Stop(ctx, id)
	if stopped {
		s.emit(models.EventRecordingStopped, models.RecordingStoppedData{DeviceID: id})
	}

	return stopped, err
}

// StopAllRecordings stops every active recording.
func (s *Station) StopAllRecordings(ctx context.Context) error {
	var errs []error

	for _, session := range s.recordings.Sessions() {
		if _, err := s.StopRecording(ctx, session.DeviceID); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// SetChannel assigns a wireless channel to a device.
func (s *Station) SetChannel(id models.DeviceID, ch int) error {
	return s.channels.SetChannel(id, ch)
}

// ScanChannels runs one channel scan and returns the best channel.
func (s *Station) ScanChannels(ctx context.Context) (int, error) {
	return s.channels.ScanAndSwitch(ctx)
}

// Channels returns the measured quality of every channel from the last scan.
func (s *Station) Channels() []channel.Measurement {
	return channel.Measurements(s.channels.Quality())
}

// Recordings lists recording files, newest first.
func (s *Station) Recordings() ([]models.RecordingInfo, error) {
	return s.recordings.ListRecordings()
}

// LatestFrame returns the most recent frame of a capture device.
func (s *Station) LatestFrame(id models.DeviceID) (models.Frame, error) {
	sup := s.captureSupervisor()
	if sup == nil {
		return models.Frame{}, fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}

	frame, err := sup.LatestFrame(id)
	if errors.Is(err, capture.ErrUnknownDevice) {
		return models.Frame{}, fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}

	return frame, err
}

// Snapshot returns the latest frame of id as a JPEG image.
func (s *Station) Snapshot(id models.DeviceID) ([]byte, error) {
	frame, err := s.LatestFrame(id)
	if err != nil {
		return nil, err
	}

	return recording.EncodeJPEG(&frame, s.cfg.Recording.JPEGQuality)
}

// Status summarizes the station for the dashboard header.
func (s *Station) Status(ctx context.Context) models.StationStatus {
	s.mu.RLock()
	startedAt := s.startedAt
	s.mu.RUnlock()

	status := models.StationStatus{
		StationID:      s.cfg.StationID,
		StartedAt:      startedAt,
		KnownDevices:   s.registry.Len(),
		Recordings:     len(s.recordings.Sessions()),
		RadioAvailable: s.receiver.Available(),
		AutoSwitch:     s.channels.AutoSwitch(),
		Platform:       runtime.GOOS + "/" + runtime.GOARCH,
	}

	if !startedAt.IsZero() {
		status.Uptime = s.clock.Now().Sub(startedAt)
	}

	if sup := s.captureSupervisor(); sup != nil {
		for _, h := range sup.Health() {
			switch h.State {
			case models.CaptureRunning:
				status.ActiveCameras++
			case models.CaptureDegraded, models.CaptureRestarting:
				status.DegradedCameras++
			case models.CaptureOpening, models.CaptureStopped:
			}
		}
	}

	if best, ok := s.channels.Best(); ok {
		status.BestChannel = best
	}

	if s.hostmon != nil {
		if sample, ok := s.hostmon.Latest(); ok {
			status.Host = &sample
		}
	}

	if usage, err := s.recordings.DiskUsage(ctx); err == nil {
		status.Disk = &usage
	} else {
		s.log.Debug().Err(err).Msg("Disk usage unavailable")
	}

	return status
}
