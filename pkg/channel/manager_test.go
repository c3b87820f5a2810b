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
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/camradar/pkg/logger"
	"github.com/carverauto/camradar/pkg/models"
)

func newTestManager(t *testing.T, oracle Oracle, cfg *models.ChannelConfig, opts ...Option) *Manager {
	t.Helper()

	if cfg == nil {
		cfg = &models.ChannelConfig{MaxChannel: 8}
	}

	m, err := NewManager(oracle, cfg, logger.NewTestLogger(), opts...)
	require.NoError(t, err)

	return m
}

func TestSetChannel_Range(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, nil, nil)

	tests := []struct {
		name    string
		channel int
		wantErr bool
	}{
		{"zero", 0, true},
		{"negative", -1, true},
		{"above max", 9, true},
		{"lowest", 1, false},
		{"highest", 8, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.SetChannel("camera_0", tt.channel)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidChannel)
				return
			}

			require.NoError(t, err)

			ch, ok := m.Channel("camera_0")
			require.True(t, ok)
			assert.Equal(t, tt.channel, ch)
		})
	}
}

func TestSetChannel_FailedCallKeepsAssignment(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, nil, nil)

	require.NoError(t, m.SetChannel("camera_0", 3))
	require.NoError(t, m.SetChannel("camera_0", 3))
	require.ErrorIs(t, m.SetChannel("camera_0", 9), ErrInvalidChannel)

	assert.Equal(t, []models.ChannelAssignment{{DeviceID: "camera_0", Channel: 3}}, m.Assignments())
}

func TestNewManager_RejectsBadConfiguredAssignment(t *testing.T) {
	t.Parallel()

	_, err := NewManager(nil, &models.ChannelConfig{
		MaxChannel:  4,
		Assignments: map[models.DeviceID]int{"camera_0": 5},
	}, logger.NewTestLogger())
	require.ErrorIs(t, err, ErrInvalidChannel)
}

func TestScanAndSwitch_TiesGoToLowestChannel(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, StaticOracle{1: -85, 2: -70, 3: -70}, &models.ChannelConfig{MaxChannel: 3})

	best, err := m.ScanAndSwitch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, best)

	assert.Equal(t, map[int]int{1: -85, 2: -70, 3: -70}, m.Quality())

	ch, ok := m.Best()
	assert.True(t, ok)
	assert.Equal(t, 2, ch)
}

func TestScanAndSwitch_SyntheticPrefersHighestChannel(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, SyntheticOracle{}, nil)

	best, err := m.ScanAndSwitch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, best)
	assert.Equal(t, -50, m.Quality()[8])
	assert.Len(t, m.Quality(), 8)
}

func TestScanAndSwitch_SkipsUnmeasurableChannels(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	oracle := NewMockOracle(ctrl)

	oracle.EXPECT().Measure(gomock.Any(), 1).Return(-60, nil)
	oracle.EXPECT().Measure(gomock.Any(), 2).Return(0, errors.New("tuner busy"))
	oracle.EXPECT().Measure(gomock.Any(), 3).Return(-80, nil)

	m := newTestManager(t, oracle, &models.ChannelConfig{MaxChannel: 3})

	best, err := m.ScanAndSwitch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, best)
	assert.Equal(t, map[int]int{1: -60, 3: -80}, m.Quality())
}

func TestScanAndSwitch_OnlyConfiguredChannels(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	oracle := NewMockOracle(ctrl)

	// Other channels must not be measured.
	oracle.EXPECT().Measure(gomock.Any(), 2).Return(-75, nil)
	oracle.EXPECT().Measure(gomock.Any(), 5).Return(-65, nil)
	oracle.EXPECT().Measure(gomock.Any(), 7).Return(-65, nil)

	m := newTestManager(t, oracle, &models.ChannelConfig{MaxChannel: 8, ScanChannels: []int{7, 2, 5, 2}})
	assert.Equal(t, []int{2, 5, 7}, m.ScanChannels())

	best, err := m.ScanAndSwitch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, best)
	assert.Equal(t, map[int]int{2: -75, 5: -65, 7: -65}, m.Quality())
}

func TestNewManager_DefaultsToEveryChannel(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, nil, &models.ChannelConfig{MaxChannel: 4})
	assert.Equal(t, []int{1, 2, 3, 4}, m.ScanChannels())

	_, err := NewManager(nil, &models.ChannelConfig{MaxChannel: 4, ScanChannels: []int{9}}, logger.NewTestLogger())
	require.ErrorIs(t, err, ErrInvalidChannel)
}

func TestScanAndSwitch_NoMeasurements(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, StaticOracle{}, &models.ChannelConfig{MaxChannel: 2})

	_, err := m.ScanAndSwitch(context.Background())
	require.ErrorIs(t, err, ErrNoMeasurements)

	_, ok := m.Best()
	assert.False(t, ok)
	assert.Empty(t, m.Quality())
}

func TestScanAndSwitch_ReplacesSnapshot(t *testing.T) {
	t.Parallel()

	oracle := StaticOracle{1: -70, 2: -60}
	m := newTestManager(t, oracle, &models.ChannelConfig{MaxChannel: 2})

	_, err := m.ScanAndSwitch(context.Background())
	require.NoError(t, err)

	delete(oracle, 2)

	best, err := m.ScanAndSwitch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, best)
	assert.Equal(t, map[int]int{1: -70}, m.Quality())
}

func TestScanAndSwitch_MovesAutoAssignedDevices(t *testing.T) {
	t.Parallel()

	var switches []models.ChannelSwitchedData

	m := newTestManager(t, StaticOracle{1: -80, 2: -65, 3: -75}, &models.ChannelConfig{
		MaxChannel:  3,
		Assignments: map[models.DeviceID]int{"camera_0": 1, "camera_1": 3},
		AutoAssign:  []models.DeviceID{"camera_0"},
	}, WithSwitchHandler(func(d models.ChannelSwitchedData) { switches = append(switches, d) }))

	_, err := m.ScanAndSwitch(context.Background())
	require.NoError(t, err)

	// A second scan with the same result moves nobody.
	_, err = m.ScanAndSwitch(context.Background())
	require.NoError(t, err)

	require.Len(t, switches, 1)
	assert.Equal(t, models.ChannelSwitchedData{
		Channel:      2,
		FrequencyMHz: 5685,
		QualityDBm:   -65,
		Devices:      []models.DeviceID{"camera_0"},
	}, switches[0])

	ch, _ := m.Channel("camera_0")
	assert.Equal(t, 2, ch)

	ch, _ = m.Channel("camera_1")
	assert.Equal(t, 3, ch)
}

func TestScanAndSwitch_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := newTestManager(t, SyntheticOracle{}, nil)

	_, err := m.ScanAndSwitch(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRun_OnlyScansWithAutoSwitch(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, SyntheticOracle{}, &models.ChannelConfig{
		MaxChannel:   8,
		ScanInterval: models.Duration(5 * time.Millisecond),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})

	go func() {
		defer close(done)
		m.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)

	_, ok := m.Best()
	assert.False(t, ok, "scan ran with auto-switch disabled")

	m.SetAutoSwitch(true)
	assert.True(t, m.AutoSwitch())

	require.Eventually(t, func() bool {
		_, ok := m.Best()
		return ok
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestMeasurements(t *testing.T) {
	t.Parallel()

	got := Measurements(map[int]int{5: -90, 1: -70})

	assert.Equal(t, []Measurement{
		{Channel: 1, FrequencyMHz: 5705, QualityDBm: -70, Active: true},
		{Channel: 5, FrequencyMHz: 5885, QualityDBm: -90, Active: false},
	}, got)

	assert.Equal(t, 0, FrequencyMHz(9))
}
