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

package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/carverauto/camradar/pkg/clock"
	"github.com/carverauto/camradar/pkg/logger"
	"github.com/carverauto/camradar/pkg/models"
)

const (
	defaultMaxErrors      = 5
	defaultStuckThreshold = 5 * time.Second
	defaultReadRetryDelay = 100 * time.Millisecond
	defaultSettleDelay    = 500 * time.Millisecond
	defaultRestartBackoff = 2 * time.Second

	fpsWindow = time.Second
)

// WorkerConfig tunes one capture worker.
type WorkerConfig struct {
	DeviceID       models.DeviceID
	Source         models.CaptureSource
	Settings       Settings
	MaxErrors      int
	StuckThreshold time.Duration
	ReadRetryDelay time.Duration
	SettleDelay    time.Duration
	RestartBackoff time.Duration
}

// NewWorkerConfig derives a worker config for dev from the capture section.
func NewWorkerConfig(cfg *models.CaptureConfig, dev models.CaptureDeviceConfig) WorkerConfig {
	return WorkerConfig{
		DeviceID: dev.DeviceID(),
		Source:   dev.Source(),
		Settings: Settings{
			Width:      cfg.Width,
			Height:     cfg.Height,
			FPS:        cfg.FPS,
			BufferSize: cfg.BufferSize,
		},
		MaxErrors:      cfg.MaxErrors,
		StuckThreshold: cfg.StuckThreshold.Std(),
		ReadRetryDelay: cfg.ReadRetryDelay.Std(),
		SettleDelay:    cfg.SettleDelay.Std(),
		RestartBackoff: cfg.RestartBackoff.Std(),
	}
}

func (c *WorkerConfig) applyDefaults() {
	if c.MaxErrors <= 0 {
		c.MaxErrors = defaultMaxErrors
	}

	if c.StuckThreshold <= 0 {
		c.StuckThreshold = defaultStuckThreshold
	}

	if c.ReadRetryDelay <= 0 {
		c.ReadRetryDelay = defaultReadRetryDelay
	}

	if c.SettleDelay <= 0 {
		c.SettleDelay = defaultSettleDelay
	}

	if c.RestartBackoff <= 0 {
		c.RestartBackoff = defaultRestartBackoff
	}

	if c.DeviceID == "" {
		c.DeviceID = models.CameraDeviceID(c.Source.Index)
	}
}

// FrameTap receives every frame a worker publishes, on the worker goroutine.
type FrameTap func(models.Frame)

// StateHook is told about every worker state transition.
type StateHook func(models.CaptureStateData)

// WorkerOption customizes a Worker.
type WorkerOption func(*Worker)

// WithWorkerClock overrides the clock used for stuck detection and timestamps.
func WithWorkerClock(c clock.Clock) WorkerOption {
	return func(w *Worker) { w.clock = c }
}

// WithFrameTap adds a frame consumer.
func WithFrameTap(tap FrameTap) WorkerOption {
	return func(w *Worker) { w.taps = append(w.taps, tap) }
}

// WithStateHook sets the state transition callback.
func WithStateHook(hook StateHook) WorkerOption {
	return func(w *Worker) { w.onState = hook }
}

// Worker owns one capture device. It runs
//
//	STOPPED -> OPENING -> RUNNING <-> DEGRADED -> RESTARTING -> RUNNING | STOPPED
//
// and publishes the newest frame and a health snapshot for concurrent readers.
type Worker struct {
	backend Backend
	cfg     WorkerConfig
	log     logger.Logger
	clock   clock.Clock
	taps    []FrameTap
	onState StateHook

	// handle is only touched by Start and then by the loop goroutine.
	handle Handle

	mu     sync.RWMutex
	health models.CaptureHealth
	latest *models.Frame
	seq    uint64

	fpsStart  time.Time
	fpsFrames int

	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
	done      chan struct{}
	stopped   chan struct{}
}

// NewWorker creates a stopped worker for cfg.
func NewWorker(backend Backend, cfg WorkerConfig, log logger.Logger, opts ...WorkerOption) *Worker {
	cfg.applyDefaults()

	w := &Worker{
		backend: backend,
		cfg:     cfg,
		log:     log,
		clock:   clock.Real(),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(w)
	}

	w.health = models.CaptureHealth{
		DeviceID: cfg.DeviceID,
		Source:   cfg.Source.String(),
		State:    models.CaptureStopped,
	}

	return w
}

// DeviceID returns the id of the device this worker owns.
func (w *Worker) DeviceID() models.DeviceID {
	return w.cfg.DeviceID
}

// Start opens the device and launches the read loop. The device is primed
// with one read before it is configured. If the open or the priming read
// fails the worker stays STOPPED and ErrDeviceOpenFailed is returned.
// The loop runs until Stop is called or ctx is done.
func (w *Worker) Start(ctx context.Context) error {
	err := ErrWorkerStarted

	w.startOnce.Do(func() {
		err = w.start(ctx)
	})

	return err
}

func (w *Worker) start(ctx context.Context) error {
	w.setState(models.CaptureOpening, "start")

	handle, frame, err := w.open(ctx)
	if err != nil {
		w.setState(models.CaptureStopped, err.Error())
		close(w.stopped)

		return err
	}

	w.handle = handle
	w.publish(frame, 0)
	w.setState(models.CaptureRunning, "opened")

	w.mu.Lock()
	w.started = true
	w.mu.Unlock()

	w.log.Info().
		Str("device_id", string(w.cfg.DeviceID)).
		Str("source", w.cfg.Source.String()).
		Msg("Capture device opened")

	go w.loop(ctx)

	return nil
}

// open runs the OPENING sequence: open, priming read, configure.
func (w *Worker) open(ctx context.Context) (Handle, *models.Frame, error) {
	handle, err := w.backend.Open(ctx, w.cfg.Source)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %w", ErrDeviceOpenFailed, w.cfg.Source, err)
	}

	frame, err := readFrame(handle)
	if err != nil {
		w.release(handle)

		return nil, nil, fmt.Errorf("%w: %s: priming read: %w", ErrDeviceOpenFailed, w.cfg.Source, err)
	}

	if err := handle.Configure(w.cfg.Settings); err != nil {
		w.log.Debug().Err(err).Str("device_id", string(w.cfg.DeviceID)).Msg("Device ignored capture settings")
	}

	return handle, frame, nil
}

func readFrame(h Handle) (*models.Frame, error) {
	frame, err := h.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadFailed, err)
	}

	if frame == nil || !frame.Valid() {
		return nil, fmt.Errorf("%w: %w", ErrReadFailed, errInvalidFrame)
	}

	return frame, nil
}

func (w *Worker) release(h Handle) {
	if h == nil {
		return
	}

	if err := h.Release(); err != nil {
		w.log.Warn().Err(err).Str("device_id", string(w.cfg.DeviceID)).Msg("Failed to release capture device")
	}
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.stopped)

	defer func() {
		w.release(w.handle)
		w.handle = nil
		w.setState(models.CaptureStopped, "stop requested")
	}()

	for {
		select {
		case <-w.done:
			return
		case <-ctx.Done():
			return
		default:
		}

		switch w.State() {
		case models.CaptureRunning:
			w.readOnce(ctx)
		case models.CaptureDegraded:
			w.restart(ctx)
		default:
			return
		}
	}
}

// readOnce performs one read in RUNNING and moves to DEGRADED after max_errors
// consecutive failures or when the device has not produced a frame for too long.
func (w *Worker) readOnce(ctx context.Context) {
	if idle := w.clock.Now().Sub(w.lastSuccess()); idle > w.cfg.StuckThreshold {
		w.degrade(fmt.Errorf("%w: no frame for %s", ErrDeviceStuck, idle.Round(time.Millisecond)))

		return
	}

	begin := w.clock.Now()
	frame, err := readFrame(w.handle)
	latency := w.clock.Now().Sub(begin)

	if err == nil {
		w.publish(frame, latency)

		return
	}

	errCount := w.recordFailure(err)

	w.log.Debug().
		Err(err).
		Str("device_id", string(w.cfg.DeviceID)).
		Int("consecutive_errors", errCount).
		Msg("Capture read failed")

	if errCount >= w.cfg.MaxErrors {
		w.degrade(fmt.Errorf("%w: %d consecutive read failures", ErrDeviceStuck, errCount))

		return
	}

	w.wait(ctx, w.cfg.ReadRetryDelay)
}

func (w *Worker) degrade(reason error) {
	w.log.Warn().Err(reason).Str("device_id", string(w.cfg.DeviceID)).Msg("Capture device degraded")

	w.mu.Lock()
	w.health.LastError = reason.Error()
	w.mu.Unlock()

	w.setState(models.CaptureDegraded, reason.Error())
}

// restart runs one RESTARTING cycle. On failure the worker returns to
// DEGRADED and backs off before the next cycle.
func (w *Worker) restart(ctx context.Context) {
	w.setState(models.CaptureRestarting, "restart")

	w.release(w.handle)
	w.handle = nil

	if !w.wait(ctx, w.cfg.SettleDelay) {
		return
	}

	handle, frame, err := w.open(ctx)
	if err != nil {
		w.log.Warn().Err(err).Str("device_id", string(w.cfg.DeviceID)).Msg("Capture restart failed")

		w.mu.Lock()
		w.health.LastError = err.Error()
		w.mu.Unlock()

		w.setState(models.CaptureDegraded, err.Error())
		w.wait(ctx, w.cfg.RestartBackoff)

		return
	}

	w.handle = handle

	w.mu.Lock()
	w.health.RestartCount++
	w.health.ConsecutiveErrors = 0
	restarts := w.health.RestartCount
	w.mu.Unlock()

	captureMetricsData.restarts.Add(1)

	w.publish(frame, 0)
	w.setState(models.CaptureRunning, "restarted")

	w.log.Info().
		Str("device_id", string(w.cfg.DeviceID)).
		Int("restart_count", restarts).
		Msg("Capture device restarted")
}

// wait sleeps for d and reports false if the worker was stopped meanwhile.
func (w *Worker) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-w.done:
		return false
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (w *Worker) publish(frame *models.Frame, latency time.Duration) {
	now := w.clock.Now()

	w.mu.Lock()
	w.seq++

	published := *frame
	published.DeviceID = w.cfg.DeviceID
	published.Seq = w.seq
	published.CapturedAt = now
	w.latest = &published

	w.health.ConsecutiveErrors = 0
	w.health.LastSuccessAt = now
	w.health.FramesCaptured++
	w.health.ReadLatency = latency

	if w.fpsStart.IsZero() {
		w.fpsStart = now
	}

	w.fpsFrames++
	if elapsed := now.Sub(w.fpsStart); elapsed >= fpsWindow {
		w.health.FPS = float64(w.fpsFrames) / elapsed.Seconds()
		w.fpsStart = now
		w.fpsFrames = 0
	}
	w.mu.Unlock()

	captureMetricsData.framesCaptured.Add(1)

	for _, tap := range w.taps {
		tap(published)
	}
}

func (w *Worker) recordFailure(err error) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.health.ConsecutiveErrors++
	w.health.DroppedFrames++
	w.health.LastError = err.Error()

	return w.health.ConsecutiveErrors
}

func (w *Worker) lastSuccess() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.health.LastSuccessAt
}

func (w *Worker) setState(to models.CaptureState, reason string) {
	w.mu.Lock()
	from := w.health.State
	w.health.State = to
	w.health.Running = to == models.CaptureRunning
	w.mu.Unlock()

	if from == to {
		return
	}

	recordStateChange(from, to)

	if w.onState != nil {
		w.onState(models.CaptureStateData{DeviceID: w.cfg.DeviceID, From: from, To: to, Reason: reason})
	}
}

// State returns the current lifecycle state.
func (w *Worker) State() models.CaptureState {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.health.State
}

// Health returns a snapshot of the worker's health.
func (w *Worker) Health() models.CaptureHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return w.health
}

// LatestFrame returns the most recently published frame. Its Data is shared
// and must not be modified.
func (w *Worker) LatestFrame() (models.Frame, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.latest == nil {
		return models.Frame{}, false
	}

	return *w.latest, true
}

// Stop asks the loop to exit and waits until it has released the device.
// The loop notices the request at the end of its current iteration, so a
// read that is in flight finishes first. If ctx ends before that, Stop
// returns ctx.Err() and the loop still exits on its own.
func (w *Worker) Stop(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.done) })

	w.startOnce.Do(func() { close(w.stopped) })

	select {
	case <-w.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stopped is closed once the worker has fully stopped.
func (w *Worker) Stopped() <-chan struct{} {
	return w.stopped
}

// Running reports whether the read loop is alive.
func (w *Worker) Running() bool {
	w.mu.RLock()
	started := w.started
	w.mu.RUnlock()

	if !started {
		return false
	}

	select {
	case <-w.stopped:
		return false
	default:
		return true
	}
}
