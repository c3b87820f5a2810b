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

// Package hostmon samples CPU and memory usage of the station host.
package hostmon

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/carverauto/camradar/pkg/clock"
	"github.com/carverauto/camradar/pkg/logger"
	"github.com/carverauto/camradar/pkg/models"
)

const (
	DefaultInterval    = 5 * time.Second
	DefaultHistorySize = 100
)

var errNoCPUSample = errors.New("cpu usage returned no samples")

type cpuUsageFunc func(ctx context.Context, interval time.Duration, percpu bool) ([]float64, error)

type memUsageFunc func(ctx context.Context) (*mem.VirtualMemoryStat, error)

// Option customizes a Monitor.
type Option func(*Monitor)

func WithClock(c clock.Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

func withCollectors(cpuFn cpuUsageFunc, memFn memUsageFunc) Option {
	return func(m *Monitor) {
		m.cpuUsage = cpuFn
		m.memUsage = memFn
	}
}

// Monitor keeps a bounded history of host samples.
type Monitor struct {
	log         logger.Logger
	clock       clock.Clock
	interval    time.Duration
	historySize int
	cpuUsage    cpuUsageFunc
	memUsage    memUsageFunc

	mu      sync.RWMutex
	history []models.HostSample
}

func NewMonitor(cfg models.HostMonitorConfig, log logger.Logger, opts ...Option) *Monitor {
	m := &Monitor{
		log:         log,
		clock:       clock.Real(),
		interval:    time.Duration(cfg.Interval),
		historySize: cfg.HistorySize,
		cpuUsage:    cpu.PercentWithContext,
		memUsage:    mem.VirtualMemoryWithContext,
	}

	if m.interval <= 0 {
		m.interval = DefaultInterval
	}

	if m.historySize <= 0 {
		m.historySize = DefaultHistorySize
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Sample takes one reading and appends it to the history.
func (m *Monitor) Sample(ctx context.Context) (models.HostSample, error) {
	// A zero interval compares against the previous call instead of blocking.
	percent, err := m.cpuUsage(ctx, 0, false)
	if err != nil {
		return models.HostSample{}, err
	}

	if len(percent) == 0 {
		return models.HostSample{}, errNoCPUSample
	}

	vm, err := m.memUsage(ctx)
	if err != nil {
		return models.HostSample{}, err
	}

	sample := models.HostSample{
		Timestamp:  m.clock.Now(),
		CPUPercent: percent[0],
		RAMPercent: vm.UsedPercent,
	}

	m.mu.Lock()
	m.history = append(m.history, sample)

	if over := len(m.history) - m.historySize; over > 0 {
		m.history = append(m.history[:0:0], m.history[over:]...)
	}
	m.mu.Unlock()

	return sample, nil
}

// Latest returns the most recent sample.
func (m *Monitor) Latest() (models.HostSample, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.history) == 0 {
		return models.HostSample{}, false
	}

	return m.history[len(m.history)-1], true
}

// History returns the retained samples, oldest first.
func (m *Monitor) History() []models.HostSample {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.HostSample, len(m.history))
	copy(out, m.history)

	return out
}

// Run samples every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := m.clock.Ticker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			sample, err := m.Sample(ctx)
			if err != nil {
				m.log.Warn().Err(err).Msg("Host sample failed")

				continue
			}

			m.log.Debug().
				Float64("cpu_percent", sample.CPUPercent).
				Float64("ram_percent", sample.RAMPercent).
				Msg("Host sample")
		}
	}
}
