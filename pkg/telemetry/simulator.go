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
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/carverauto/camradar/pkg/clock"
	"github.com/carverauto/camradar/pkg/logger"
	"github.com/carverauto/camradar/pkg/models"
	"github.com/carverauto/camradar/pkg/radio"
)

const (
	defaultUnitVersion  = "1.0.0"
	defaultUnitInterval = time.Second
	defaultDrainPerTick = 0.002

	// Units whose uptime saturates within a day are worth a warning.
	uptimeWarnBelow = 24 * 60 * 60

	lowBatteryPercent      = 20
	criticalBatteryPercent = 10
)

// UnitConfig describes a simulated remote unit.
type UnitConfig struct {
	DeviceID     models.DeviceID
	Version      string
	Interval     time.Duration
	Scale        BatteryScale
	StartVoltage float64
	// DrainPerTick is the voltage lost per telemetry frame.
	DrainPerTick float64
	Temperature  float64
}

// UnitStats are the transmit counters of a simulated unit.
type UnitStats struct {
	PacketsSent   uint64  `json:"packets_sent"`
	PacketsFailed uint64  `json:"packets_failed"`
	SuccessRate   float64 `json:"success_rate"`
}

// Unit plays the remote-unit side of the link: it announces itself with an
// INFO frame, then sends TELEM frames on an interval and ALERT frames when the
// battery crosses the low and critical marks.
type Unit struct {
	radio radio.Radio
	cfg   UnitConfig
	log   logger.Logger
	clock clock.Clock

	// maxUptime is the largest uptime whose TELEM frame still fits one
	// packet.
	maxUptime float64

	mu      sync.Mutex
	voltage float64
	started time.Time
	alerted map[AlertCode]bool
	sent    uint64
	failed  uint64
}

// NewUnit creates a simulated unit transmitting on r. The radio must already
// be open for transmit.
func NewUnit(r radio.Radio, cfg UnitConfig, log logger.Logger, clk clock.Clock) (*Unit, error) {
	if cfg.DeviceID == "" {
		return nil, fmt.Errorf("%w: unit device id is empty", ErrMalformedTelemetry)
	}

	if cfg.Version == "" {
		cfg.Version = defaultUnitVersion
	}

	if cfg.Interval <= 0 {
		cfg.Interval = defaultUnitInterval
	}

	if cfg.Scale.Validate() != nil {
		cfg.Scale = DefaultBatteryScale
	}

	if cfg.StartVoltage <= 0 {
		cfg.StartVoltage = cfg.Scale.MaxVoltage
	}

	if cfg.DrainPerTick < 0 {
		cfg.DrainPerTick = 0
	} else if cfg.DrainPerTick == 0 {
		cfg.DrainPerTick = defaultDrainPerTick
	}

	if clk == nil {
		clk = clock.Real()
	}

	maxUptime, err := uptimeCeiling(cfg)
	if err != nil {
		return nil, err
	}

	if maxUptime < uptimeWarnBelow {
		log.Warn().
			Str("device_id", string(cfg.DeviceID)).
			Float64("max_uptime_s", maxUptime).
			Msg("Device id leaves little room in the packet, reported uptime saturates")
	}

	return &Unit{
		radio:     r,
		cfg:       cfg,
		log:       log,
		clock:     clk,
		maxUptime: maxUptime,
		voltage:   cfg.StartVoltage,
		started:   clk.Now(),
		alerted:   make(map[AlertCode]bool),
	}, nil
}

// uptimeCeiling sizes the uptime field against the widest frame the unit can
// send: full percent and the longer of its start and floor voltages. Units
// whose frames fit with a 32-bit uptime report it unbounded; others saturate
// at the largest value that fits.
func uptimeCeiling(cfg UnitConfig) (float64, error) {
	widest := 0

	for _, v := range []float64{cfg.StartVoltage, cfg.Scale.MinVoltage} {
		frame := EncodeTelemetry(models.TelemetryRecord{
			DeviceID:           cfg.DeviceID,
			BatteryVoltage:     v,
			BatteryPercent:     100,
			TemperatureCelsius: cfg.Temperature,
		})
		// Drop the single "0" uptime digit.
		widest = max(widest, len(frame)-1)
	}

	full := widest + len(strconv.FormatUint(math.MaxUint32, 10))
	if full <= radio.MaxPayloadSize {
		return math.MaxUint32, nil
	}

	digits := radio.MaxPayloadSize - widest
	if digits < 1 {
		return 0, fmt.Errorf("device id %q too long for one packet: %w: %d > %d bytes",
			cfg.DeviceID, radio.ErrPayloadTooLarge, widest+1, radio.MaxPayloadSize)
	}

	return math.Pow10(digits) - 1, nil
}

// DeviceID returns the unit's id.
func (u *Unit) DeviceID() models.DeviceID {
	return u.cfg.DeviceID
}

// SendInfo transmits the unit's INFO frame.
func (u *Unit) SendInfo() error {
	return u.transmit(EncodeInfo(u.cfg.DeviceID, u.cfg.Version))
}

// SendAlert transmits an ALERT frame stamped with the current time.
func (u *Unit) SendAlert(code AlertCode) error {
	return u.transmit(EncodeAlert(code, u.clock.Now()))
}

// SendTelemetry transmits one TELEM frame and drains the simulated battery.
func (u *Unit) SendTelemetry() error {
	now := u.clock.Now()

	u.mu.Lock()
	rec := models.TelemetryRecord{
		DeviceID:           u.cfg.DeviceID,
		BatteryVoltage:     u.voltage,
		BatteryPercent:     u.cfg.Scale.Percent(u.voltage),
		TemperatureCelsius: u.cfg.Temperature,
		UptimeSeconds:      math.Min(math.Floor(now.Sub(u.started).Seconds()), u.maxUptime),
	}

	u.voltage -= u.cfg.DrainPerTick
	if u.voltage < u.cfg.Scale.MinVoltage {
		u.voltage = u.cfg.Scale.MinVoltage
	}
	u.mu.Unlock()

	if err := u.transmit(EncodeTelemetry(rec)); err != nil {
		return err
	}

	switch {
	case rec.BatteryPercent <= criticalBatteryPercent:
		return u.alertOnce(AlertBatteryCritical)
	case rec.BatteryPercent <= lowBatteryPercent:
		return u.alertOnce(AlertBatteryLow)
	}

	return nil
}

func (u *Unit) alertOnce(code AlertCode) error {
	u.mu.Lock()
	if u.alerted[code] {
		u.mu.Unlock()

		return nil
	}

	u.alerted[code] = true
	u.mu.Unlock()

	return u.SendAlert(code)
}

func (u *Unit) transmit(payload []byte) error {
	err := u.radio.Transmit(payload)

	u.mu.Lock()
	defer u.mu.Unlock()

	if err != nil {
		u.failed++

		return err
	}

	u.sent++

	return nil
}

// Stats returns the transmit counters.
func (u *Unit) Stats() UnitStats {
	u.mu.Lock()
	defer u.mu.Unlock()

	s := UnitStats{PacketsSent: u.sent, PacketsFailed: u.failed}
	if total := u.sent + u.failed; total > 0 {
		s.SuccessRate = float64(u.sent) / float64(total) * 100
	}

	return s
}

// Run sends INFO once and TELEM every interval until ctx is done. Transmit
// failures are counted and logged; they never stop the unit.
func (u *Unit) Run(ctx context.Context) {
	if err := u.SendInfo(); err != nil {
		u.log.Warn().Err(err).Str("device_id", string(u.cfg.DeviceID)).Msg("INFO transmit failed")
	}

	ticker := u.clock.Ticker(u.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s := u.Stats()
			u.log.Info().
				Str("device_id", string(u.cfg.DeviceID)).
				Uint64("packets_sent", s.PacketsSent).
				Uint64("packets_failed", s.PacketsFailed).
				Float64("success_rate", s.SuccessRate).
				Msg("Simulated unit stopped")

			return
		case <-ticker.Chan():
			if err := u.SendTelemetry(); err != nil {
				u.log.Debug().Err(err).Str("device_id", string(u.cfg.DeviceID)).Msg("Telemetry transmit failed")
			}
		}
	}
}
