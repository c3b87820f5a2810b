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
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/carverauto/camradar/pkg/clock"
	"github.com/carverauto/camradar/pkg/logger"
	"github.com/carverauto/camradar/pkg/models"
	"github.com/carverauto/camradar/pkg/radio"
)

// maxFramesPerReceive bounds one drain so a chatty radio cannot starve the
// poll loop.
const maxFramesPerReceive = 64

// ReceiverConfig selects the radio endpoint and frame limits.
type ReceiverConfig struct {
	Channel      int
	Address      string
	MaxFrameSize int
	Scale        BatteryScale
}

// ReceiverStats counts frames seen by the receiver.
type ReceiverStats struct {
	Received  uint64 `json:"received"`
	Decoded   uint64 `json:"decoded"`
	Malformed uint64 `json:"malformed"`
	Unknown   uint64 `json:"unknown"`
	Info      uint64 `json:"info"`
	Alerts    uint64 `json:"alerts"`
}

// ReceiverOption customizes a Receiver.
type ReceiverOption func(*Receiver)

// WithInfoHandler registers a callback for INFO frames.
func WithInfoHandler(fn func(InfoEvent)) ReceiverOption {
	return func(r *Receiver) { r.onInfo = fn }
}

// WithAlertHandler registers a callback for ALERT frames.
func WithAlertHandler(fn func(AlertEvent)) ReceiverOption {
	return func(r *Receiver) { r.onAlert = fn }
}

// WithReceiverClock overrides the clock used to stamp records.
func WithReceiverClock(c clock.Clock) ReceiverOption {
	return func(r *Receiver) { r.clock = c }
}

// Receiver owns the radio receive path. A receiver whose radio failed to open
// stays usable: Receive just returns nothing.
type Receiver struct {
	radio   radio.Radio
	cfg     ReceiverConfig
	decoder *Decoder
	log     logger.Logger
	clock   clock.Clock

	onInfo  func(InfoEvent)
	onAlert func(AlertEvent)

	available atomic.Bool

	mu   sync.RWMutex
	last map[models.DeviceID]models.TelemetryRecord

	received  atomic.Uint64
	decoded   atomic.Uint64
	malformed atomic.Uint64
	unknown   atomic.Uint64
	info      atomic.Uint64
	alerts    atomic.Uint64
}

// NewReceiver builds a receiver over r. r may be nil when no radio is fitted.
func NewReceiver(r radio.Radio, cfg ReceiverConfig, log logger.Logger, opts ...ReceiverOption) *Receiver {
	if cfg.Address == "" {
		cfg.Address = radio.DefaultAddress
	}

	rc := &Receiver{
		radio:   r,
		cfg:     cfg,
		decoder: NewDecoder(cfg.MaxFrameSize, cfg.Scale),
		log:     log,
		clock:   clock.Real(),
		last:    make(map[models.DeviceID]models.TelemetryRecord),
	}

	for _, opt := range opts {
		opt(rc)
	}

	return rc
}

// Initialize opens the radio. It reports false instead of failing so the
// station can keep running video-only.
func (r *Receiver) Initialize(ctx context.Context) bool {
	if err := ctx.Err(); err != nil {
		return false
	}

	if r.radio == nil {
		r.log.Warn().Err(ErrRadioUnavailable).Msg("No radio configured, running video-only")

		return false
	}

	if err := radio.ValidateEndpoint(r.cfg.Channel, r.cfg.Address); err != nil {
		r.log.Warn().Err(errors.Join(ErrRadioUnavailable, err)).Msg("Radio endpoint rejected, running video-only")

		return false
	}

	if err := r.radio.Open(r.cfg.Channel, r.cfg.Address); err != nil {
		r.log.Warn().Err(errors.Join(ErrRadioUnavailable, err)).
			Int("channel", r.cfg.Channel).
			Str("address", r.cfg.Address).
			Msg("Radio failed to open, running video-only")

		return false
	}

	r.available.Store(true)

	r.log.Info().
		Int("channel", r.cfg.Channel).
		Str("address", r.cfg.Address).
		Msg("Telemetry radio listening")

	return true
}

// Available reports whether the radio opened successfully.
func (r *Receiver) Available() bool {
	return r.available.Load()
}

// Receive drains the frames the radio has buffered and returns the decoded
// telemetry records in receipt order. It never blocks and returns nil when
// there is nothing to read.
func (r *Receiver) Receive() []models.TelemetryRecord {
	if !r.available.Load() {
		return nil
	}

	var records []models.TelemetryRecord

	for i := 0; i < maxFramesPerReceive; i++ {
		raw, ok := r.radio.Poll()
		if !ok {
			break
		}

		r.received.Add(1)

		if rec, ok := r.handle(raw); ok {
			records = append(records, rec)
		}
	}

	recordReceiverMetrics(r.Stats())

	if len(records) == 0 {
		return nil
	}

	r.mu.Lock()
	for i := range records {
		r.last[records[i].DeviceID] = records[i]
	}
	r.mu.Unlock()

	return records
}

func (r *Receiver) handle(raw []byte) (models.TelemetryRecord, bool) {
	msg, err := r.decoder.Decode(raw)

	switch {
	case errors.Is(err, ErrUnknownMessageType):
		r.unknown.Add(1)
		r.log.Debug().Err(err).Msg("Discarding frame with unknown type")

		return models.TelemetryRecord{}, false
	case err != nil:
		r.malformed.Add(1)
		r.log.Debug().Err(err).Int("size", len(raw)).Msg("Discarding malformed frame")

		return models.TelemetryRecord{}, false
	}

	switch msg.Kind {
	case KindInfo:
		r.info.Add(1)
		r.log.Info().
			Str("device_id", string(msg.Info.DeviceID)).
			Str("version", msg.Info.Version).
			Msg("Remote unit info")

		if r.onInfo != nil {
			r.onInfo(*msg.Info)
		}

		return models.TelemetryRecord{}, false
	case KindAlert:
		r.alerts.Add(1)
		r.log.Warn().
			Uint8("code", uint8(msg.Alert.Code)).
			Str("alert", msg.Alert.Code.String()).
			Time("unit_time", msg.Alert.Timestamp).
			Msg("Remote unit alert")

		if r.onAlert != nil {
			r.onAlert(*msg.Alert)
		}

		return models.TelemetryRecord{}, false
	case KindTelemetry:
	}

	r.decoded.Add(1)

	rec := *msg.Telemetry
	rec.ReceivedAt = r.clock.Now()

	if sr, ok := r.radio.(radio.SignalReporter); ok {
		if rssi, ok := sr.RSSI(); ok {
			rec.SignalStrengthDBm = rssi
		}
	}

	return rec, true
}

// Last returns the most recent record received from id.
func (r *Receiver) Last(id models.DeviceID) (models.TelemetryRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.last[id]

	return rec, ok
}

// Stats returns the frame counters.
func (r *Receiver) Stats() ReceiverStats {
	return ReceiverStats{
		Received:  r.received.Load(),
		Decoded:   r.decoded.Load(),
		Malformed: r.malformed.Load(),
		Unknown:   r.unknown.Load(),
		Info:      r.info.Load(),
		Alerts:    r.alerts.Load(),
	}
}

// Close releases the radio.
func (r *Receiver) Close() error {
	if !r.available.Swap(false) {
		return nil
	}

	return r.radio.Close()
}
