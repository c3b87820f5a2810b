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

package hostmon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/camradar/pkg/clock"
	"github.com/carverauto/camradar/pkg/logger"
	"github.com/carverauto/camradar/pkg/models"
)

func stubCollectors(cpuPct *float64) Option {
	return withCollectors(
		func(context.Context, time.Duration, bool) ([]float64, error) {
			*cpuPct++
			return []float64{*cpuPct}, nil
		},
		func(context.Context) (*mem.VirtualMemoryStat, error) {
			return &mem.VirtualMemoryStat{UsedPercent: 42.5}, nil
		},
	)
}

func TestMonitor_HistoryIsBounded(t *testing.T) {
	t.Parallel()

	var cpuPct float64

	clk := clock.NewFake(time.Unix(1700000000, 0))
	m := NewMonitor(models.HostMonitorConfig{HistorySize: 3}, logger.NewTestLogger(), WithClock(clk), stubCollectors(&cpuPct))

	_, ok := m.Latest()
	assert.False(t, ok)

	for i := 0; i < 5; i++ {
		_, err := m.Sample(context.Background())
		require.NoError(t, err)
		clk.Advance(time.Second)
	}

	history := m.History()
	require.Len(t, history, 3)
	assert.InDelta(t, 3.0, history[0].CPUPercent, 1e-9)
	assert.InDelta(t, 5.0, history[2].CPUPercent, 1e-9)
	assert.InDelta(t, 42.5, history[2].RAMPercent, 1e-9)
	assert.Equal(t, time.Unix(1700000004, 0), history[2].Timestamp)

	latest, ok := m.Latest()
	require.True(t, ok)
	assert.Equal(t, history[2], latest)
}

func TestMonitor_SampleErrors(t *testing.T) {
	t.Parallel()

	cpuErr := errors.New("proc unavailable")

	m := NewMonitor(models.HostMonitorConfig{}, logger.NewTestLogger(), withCollectors(
		func(context.Context, time.Duration, bool) ([]float64, error) { return nil, cpuErr },
		func(context.Context) (*mem.VirtualMemoryStat, error) { return &mem.VirtualMemoryStat{}, nil },
	))

	_, err := m.Sample(context.Background())
	require.ErrorIs(t, err, cpuErr)

	m = NewMonitor(models.HostMonitorConfig{}, logger.NewTestLogger(), withCollectors(
		func(context.Context, time.Duration, bool) ([]float64, error) { return nil, nil },
		func(context.Context) (*mem.VirtualMemoryStat, error) { return &mem.VirtualMemoryStat{}, nil },
	))

	_, err = m.Sample(context.Background())
	require.ErrorIs(t, err, errNoCPUSample)
	assert.Empty(t, m.History())
}

func TestMonitor_RunSamplesOnTick(t *testing.T) {
	t.Parallel()

	var cpuPct float64

	clk := clock.NewFake(time.Unix(0, 0))
	m := NewMonitor(models.HostMonitorConfig{Interval: models.Duration(time.Second)}, logger.NewTestLogger(),
		WithClock(clk), stubCollectors(&cpuPct))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		m.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		clk.Advance(time.Second)
		return len(m.History()) >= 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestMonitor_RealCollectors(t *testing.T) {
	t.Parallel()

	m := NewMonitor(models.HostMonitorConfig{}, logger.NewTestLogger())

	sample, err := m.Sample(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, sample.RAMPercent, 0.0)
}
