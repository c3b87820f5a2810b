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

package channel

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/carverauto/camradar/pkg/clock"
	"github.com/carverauto/camradar/pkg/logger"
	"github.com/carverauto/camradar/pkg/models"
)

const defaultScanInterval = time.Second

// SwitchHandler is told when a scan moves auto-assigned devices to a new channel.
type SwitchHandler func(models.ChannelSwitchedData)

// Option customizes a Manager.
type Option func(*Manager)

// WithClock overrides the clock driving the scan loop.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithSwitchHandler registers a callback for channel switches.
func WithSwitchHandler(fn SwitchHandler) Option {
	return func(m *Manager) { m.onSwitch = fn }
}

// Manager owns the device to channel assignments and the latest quality scan.
type Manager struct {
	oracle       Oracle
	maxChannel   int
	scanChannels []int
	scanInterval time.Duration
	log          logger.Logger
	clock        clock.Clock
	onSwitch     SwitchHandler

	mu          sync.RWMutex
	assignments map[models.DeviceID]int
	autoAssign  map[models.DeviceID]bool
	autoSwitch  bool

	qualityMu sync.RWMutex
	quality   map[int]int
	best      int
}

// NewManager builds a manager from cfg. Configured assignments are validated
// like SetChannel calls.
func NewManager(oracle Oracle, cfg *models.ChannelConfig, log logger.Logger, opts ...Option) (*Manager, error) {
	if oracle == nil {
		oracle = SyntheticOracle{}
	}

	m := &Manager{
		oracle:       oracle,
		maxChannel:   cfg.MaxChannel,
		scanInterval: cfg.ScanInterval.Std(),
		log:          log,
		clock:        clock.Real(),
		assignments:  make(map[models.DeviceID]int),
		autoAssign:   make(map[models.DeviceID]bool),
		autoSwitch:   cfg.AutoSwitch,
		quality:      make(map[int]int),
	}

	if m.maxChannel <= 0 {
		m.maxChannel = DefaultMaxChannel
	}

	if m.scanInterval <= 0 {
		m.scanInterval = defaultScanInterval
	}

	m.scanChannels = scanList(cfg.ScanChannels, m.maxChannel)
	if len(m.scanChannels) == 0 {
		return nil, fmt.Errorf("%w: no scan channel within [1,%d]", ErrInvalidChannel, m.maxChannel)
	}

	for _, opt := range opts {
		opt(m)
	}

	for id, ch := range cfg.Assignments {
		if err := m.SetChannel(id, ch); err != nil {
			return nil, fmt.Errorf("assignment for %s: %w", id, err)
		}
	}

	for _, id := range cfg.AutoAssign {
		m.SetAutoAssign(id, true)
	}

	return m, nil
}

// scanList returns the configured channels in ascending order without
// duplicates or out-of-range entries, or every channel when none are set.
func scanList(configured []int, maxChannel int) []int {
	if len(configured) == 0 {
		all := make([]int, maxChannel)
		for i := range all {
			all[i] = i + 1
		}

		return all
	}

	seen := make(map[int]bool, len(configured))
	out := make([]int, 0, len(configured))

	for _, ch := range configured {
		if ch < 1 || ch > maxChannel || seen[ch] {
			continue
		}

		seen[ch] = true
		out = append(out, ch)
	}

	sort.Ints(out)

	return out
}

// ScanChannels returns the channels a scan measures.
func (m *Manager) ScanChannels() []int {
	return append([]int(nil), m.scanChannels...)
}

// MaxChannel returns the highest legal channel.
func (m *Manager) MaxChannel() int {
	return m.maxChannel
}

// SetChannel assigns ch to id, replacing any previous assignment.
func (m *Manager) SetChannel(id models.DeviceID, ch int) error {
	if ch < 1 || ch > m.maxChannel {
		return fmt.Errorf("%w: %d not in [1,%d]", ErrInvalidChannel, ch, m.maxChannel)
	}

	m.mu.Lock()
	prev, had := m.assignments[id]
	m.assignments[id] = ch
	m.mu.Unlock()

	if !had || prev != ch {
		m.log.Info().Str("device_id", string(id)).Int("channel", ch).Msg("Assigned channel")
	}

	return nil
}

// Channel returns the channel assigned to id.
func (m *Manager) Channel(id models.DeviceID) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ch, ok := m.assignments[id]

	return ch, ok
}

// Assignments returns a copy of all assignments ordered by device id.
func (m *Manager) Assignments() []models.ChannelAssignment {
	m.mu.RLock()
	out := make([]models.ChannelAssignment, 0, len(m.assignments))

	for id, ch := range m.assignments {
		out = append(out, models.ChannelAssignment{DeviceID: id, Channel: ch})
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })

	return out
}

// SetAutoAssign opts id in or out of following the best channel.
func (m *Manager) SetAutoAssign(id models.DeviceID, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if enabled {
		m.autoAssign[id] = true

		return
	}

	delete(m.autoAssign, id)
}

// SetAutoSwitch turns the periodic scan on or off.
func (m *Manager) SetAutoSwitch(enabled bool) {
	m.mu.Lock()
	m.autoSwitch = enabled
	m.mu.Unlock()

	m.log.Info().Bool("auto_switch", enabled).Msg("Channel auto-switch updated")
}

// AutoSwitch reports whether the periodic scan is enabled.
func (m *Manager) AutoSwitch() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.autoSwitch
}

// ScanAndSwitch measures every scan channel, replaces the quality snapshot and
// returns the best channel. Ties go to the lowest channel. Channels the
// oracle cannot measure are left out of the snapshot. Auto-assigned devices
// are moved to the best channel.
func (m *Manager) ScanAndSwitch(ctx context.Context) (int, error) {
	quality := make(map[int]int, len(m.scanChannels))

	for _, ch := range m.scanChannels {
		q, err := m.oracle.Measure(ctx, ch)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return 0, ctxErr
			}

			m.log.Debug().Err(err).Int("channel", ch).Msg("Channel measurement failed")

			continue
		}

		quality[ch] = q
	}

	best, bestQ, ok := pickBest(quality)

	m.qualityMu.Lock()
	m.quality = quality
	m.best = best
	m.qualityMu.Unlock()

	if !ok {
		return 0, ErrNoMeasurements
	}

	m.log.Debug().Int("channel", best).Int("quality_dbm", bestQ).Msg("Channel scan complete")

	if moved := m.moveAutoAssigned(best); len(moved) > 0 {
		m.log.Info().
			Int("channel", best).
			Int("quality_dbm", bestQ).
			Int("devices", len(moved)).
			Msg("Switched devices to best channel")

		if m.onSwitch != nil {
			m.onSwitch(models.ChannelSwitchedData{
				Channel:      best,
				FrequencyMHz: FrequencyMHz(best),
				QualityDBm:   bestQ,
				Devices:      moved,
			})
		}
	}

	return best, nil
}

func pickBest(quality map[int]int) (ch, q int, ok bool) {
	for c, v := range quality {
		if !ok || v > q || (v == q && c < ch) {
			ch, q, ok = c, v, true
		}
	}

	return ch, q, ok
}

func (m *Manager) moveAutoAssigned(best int) []models.DeviceID {
	m.mu.Lock()
	defer m.mu.Unlock()

	var moved []models.DeviceID

	for id := range m.autoAssign {
		if m.assignments[id] != best {
			m.assignments[id] = best
			moved = append(moved, id)
		}
	}

	sort.Slice(moved, func(i, j int) bool { return moved[i] < moved[j] })

	return moved
}

// Quality returns a copy of the latest channel to quality snapshot.
func (m *Manager) Quality() map[int]int {
	m.qualityMu.RLock()
	defer m.qualityMu.RUnlock()

	out := make(map[int]int, len(m.quality))
	for ch, q := range m.quality {
		out[ch] = q
	}

	return out
}

// Best returns the best channel of the latest scan.
func (m *Manager) Best() (int, bool) {
	m.qualityMu.RLock()
	defer m.qualityMu.RUnlock()

	return m.best, m.best != 0
}

// Run scans every scan interval while auto-switch is enabled, until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := m.clock.Ticker(m.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if !m.AutoSwitch() {
				continue
			}

			if _, err := m.ScanAndSwitch(ctx); err != nil && ctx.Err() == nil {
				m.log.Warn().Err(err).Msg("Channel scan failed")
			}
		}
	}
}
