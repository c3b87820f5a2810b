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

// Package station runs the ingestion station: capture workers, the telemetry
// receiver and registry, channel management, recording and host monitoring,
// plus the operations the dashboard calls.
package station

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/carverauto/camradar/pkg/capture"
	"github.com/carverauto/camradar/pkg/channel"
	"github.com/carverauto/camradar/pkg/clock"
	"github.com/carverauto/camradar/pkg/hostmon"
	"github.com/carverauto/camradar/pkg/logger"
	"github.com/carverauto/camradar/pkg/models"
	"github.com/carverauto/camradar/pkg/radio"
	"github.com/carverauto/camradar/pkg/recording"
	"github.com/carverauto/camradar/pkg/telemetry"
)

// Dependencies are the hardware and infrastructure a station runs on. Radio,
// Oracle, Events, Audit and HostMonitor are optional.
type Dependencies struct {
	CaptureBackend capture.Backend
	SinkFactory    recording.SinkFactory
	Radio          radio.Radio
	Oracle         channel.Oracle
	Events         EventEmitter
	Audit          recording.AuditStore
	HostMonitor    *hostmon.Monitor
	Clock          clock.Clock
}

// Station owns every component and the background loops between them.
type Station struct {
	cfg   models.StationConfig
	deps  Dependencies
	log   logger.Logger
	clock clock.Clock

	events     EventEmitter
	registry   *telemetry.Registry
	receiver   *telemetry.Receiver
	channels   *channel.Manager
	recordings *recording.Manager
	hostmon    *hostmon.Monitor

	started   atomic.Bool
	startedAt time.Time

	mu         sync.RWMutex
	supervisor *capture.Supervisor
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// New wires a station from cfg. It does not touch hardware; Start does.
func New(cfg models.StationConfig, deps Dependencies, log logger.Logger) (*Station, error) {
	if deps.CaptureBackend == nil {
		return nil, fmt.Errorf("%w: capture backend", ErrMissingDependency)
	}

	if deps.SinkFactory == nil {
		return nil, fmt.Errorf("%w: recording sink factory", ErrMissingDependency)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}

	s := &Station{
		cfg:     cfg,
		deps:    deps,
		log:     log,
		clock:   clk,
		events:  deps.Events,
		hostmon: deps.HostMonitor,
	}

	s.registry = telemetry.NewRegistry(time.Duration(cfg.Registry.StaleTimeout), clk)

	channels, err := channel.NewManager(deps.Oracle, &s.cfg.Channels, log,
		channel.WithClock(clk),
		channel.WithSwitchHandler(s.onChannelSwitched),
	)
	if err != nil {
		return nil, err
	}

	s.channels = channels

	recOpts := []recording.Option{recording.WithClock(clk)}
	if deps.Audit != nil {
		recOpts = append(recOpts, recording.WithAuditStore(deps.Audit))
	}

	s.recordings = recording.NewManager(cfg.Recording, deps.SinkFactory, log, recOpts...)

	var r radio.Radio
	if cfg.Telemetry.Enabled {
		r = deps.Radio
	}

	s.receiver = telemetry.NewReceiver(r, telemetry.ReceiverConfig{
		Channel:      cfg.Telemetry.RadioChannel,
		Address:      cfg.Telemetry.Address,
		MaxFrameSize: cfg.Telemetry.MaxFrameSize,
		Scale:        s.batteryScale(),
	}, log,
		telemetry.WithReceiverClock(clk),
		telemetry.WithInfoHandler(s.onDeviceInfo),
		telemetry.WithAlertHandler(s.onDeviceAlert),
	)

	return s, nil
}

func (s *Station) batteryScale() telemetry.BatteryScale {
	return telemetry.BatteryScale{MinVoltage: s.cfg.Telemetry.BatteryMinV, MaxVoltage: s.cfg.Telemetry.BatteryMaxV}
}

// Start opens the capture devices and the radio and launches the background
// loops. A device or radio that fails to open is logged and skipped.
func (s *Station) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)

	workerOpts := []capture.WorkerOption{
		capture.WithWorkerClock(s.clock),
		capture.WithStateHook(s.onCaptureState),
		capture.WithFrameTap(s.onFrame),
	}

	s.mu.Lock()
	s.cancel = cancel
	s.startedAt = s.clock.Now()
	s.supervisor = capture.NewSupervisor(runCtx, s.deps.CaptureBackend, s.log, workerOpts...)
	s.mu.Unlock()

	s.startCapture(runCtx)

	if s.receiver.Initialize(runCtx) {
		s.startSimulatedUnits(runCtx)
	}

	s.goLoop(func() { s.pollTelemetry(runCtx) })
	s.goLoop(func() {
		s.registry.Monitor(runCtx, time.Duration(s.cfg.Registry.CheckInterval), s.onDeviceStale)
	})
	s.goLoop(func() { s.channels.Run(runCtx) })
	s.goLoop(func() {
		s.recordings.RunRetention(runCtx, time.Duration(s.cfg.Recording.CleanupInterval), s.cfg.Recording.RetentionDays)
	})

	if s.hostmon != nil {
		s.goLoop(func() { s.hostmon.Run(runCtx) })
	}

	s.log.Info().
		Str("station_id", s.cfg.StationID).
		Int("cameras", len(s.supervisor.DeviceIDs())).
		Bool("radio", s.receiver.Available()).
		Bool("simulate", s.cfg.Simulate).
		Msg("Station started")

	return nil
}

func (s *Station) goLoop(fn func()) {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *Station) startCapture(ctx context.Context) {
	devices := s.cfg.Capture.Devices

	if len(devices) == 0 {
		for _, idx := range s.supervisor.Discover(ctx, s.cfg.Capture.DiscoverMaxIndex) {
			devices = append(devices, models.CaptureDeviceConfig{Index: idx})
		}
	}

	for _, dev := range devices {
		if _, err := s.supervisor.Add(capture.NewWorkerConfig(&s.cfg.Capture, dev)); err != nil {
			s.log.Warn().Err(err).
				Str("device_id", string(dev.DeviceID())).
				Str("source", dev.Source().String()).
				Msg("Capture device unavailable")
		}
	}
}

func (s *Station) startSimulatedUnits(ctx context.Context) {
	if !s.cfg.Simulate {
		return
	}

	for _, id := range s.cfg.Telemetry.SimulatedUnits {
		unit, err := telemetry.NewUnit(s.deps.Radio, telemetry.UnitConfig{
			DeviceID: id,
			Interval: time.Duration(s.cfg.Telemetry.SimulatedInterval),
			Scale:    s.batteryScale(),
		}, s.log, s.clock)
		if err != nil {
			s.log.Warn().Err(err).Str("device_id", string(id)).Msg("Simulated unit rejected")

			continue
		}

		s.goLoop(func() { unit.Run(ctx) })
	}
}

// Stop ends every recording, stops the capture workers and the loops, then
// closes the radio. It returns once everything stopped or ctx is done.
func (s *Station) Stop(ctx context.Context) error {
	if !s.started.Load() {
		return nil
	}

	s.mu.RLock()
	cancel, supervisor := s.cancel, s.supervisor
	s.mu.RUnlock()

	var errs []error

	if err := s.StopAllRecordings(ctx); err != nil {
		errs = append(errs, err)
	}

	cancel()

	if err := supervisor.StopAll(ctx); err != nil {
		errs = append(errs, err)
	}

	done := make(chan struct{})

	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for station loops: %w", ctx.Err()))
	}

	// The poll loop and simulated units use the radio until they return.
	if err := s.receiver.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close radio: %w", err))
	}

	s.log.Info().Str("station_id", s.cfg.StationID).Msg("Station stopped")

	return errors.Join(errs...)
}

func (s *Station) pollTelemetry(ctx context.Context) {
	ticker := s.clock.Ticker(time.Duration(s.cfg.Telemetry.PollInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			for _, rec := range s.receiver.Receive() {
				s.ingest(rec)
			}
		}
	}
}

// ingest fills the channel the device is assigned to and updates the registry.
func (s *Station) ingest(rec models.TelemetryRecord) {
	if rec.Channel == 0 {
		if ch, ok := s.channels.Channel(rec.DeviceID); ok {
			rec.Channel = ch
		}
	}

	if s.registry.Update(rec) {
		s.log.Info().Str("device_id", string(rec.DeviceID)).Msg("Remote unit connected")
	}

	s.emit(models.EventTelemetryUpdate, rec)
}

func (s *Station) onDeviceStale(entry models.DeviceEntry) {
	s.log.Warn().
		Str("device_id", string(entry.Telemetry.DeviceID)).
		Time("last_seen", entry.LastSeen).
		Msg("Remote unit timed out")

	s.emit(models.EventCameraDisconnected, models.CameraDisconnectedData{
		DeviceID: entry.Telemetry.DeviceID,
		LastSeen: entry.LastSeen,
	})
}

func (s *Station) onCaptureState(data models.CaptureStateData) {
	s.emit(models.EventCaptureStateChanged, data)
}

func (s *Station) onFrame(frame models.Frame) {
	if err := s.recordings.WriteFrame(frame.DeviceID, &frame); err != nil {
		s.log.Warn().Err(err).Str("device_id", string(frame.DeviceID)).Uint64("seq", frame.Seq).Msg("Failed to record frame")
	}
}

func (s *Station) onChannelSwitched(data models.ChannelSwitchedData) {
	s.emit(models.EventChannelSwitched, data)
}

func (s *Station) onDeviceInfo(e telemetry.InfoEvent) {
	s.emit(models.EventDeviceInfo, models.DeviceInfoData{DeviceID: e.DeviceID, Version: e.Version})
}

func (s *Station) onDeviceAlert(e telemetry.AlertEvent) {
	s.emit(models.EventDeviceAlert, models.DeviceAlertData{
		Code:      int(e.Code),
		Name:      e.Code.String(),
		Timestamp: e.Timestamp,
	})
}
