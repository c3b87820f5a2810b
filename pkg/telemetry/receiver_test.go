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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/camradar/pkg/clock"
	"github.com/carverauto/camradar/pkg/logger"
	"github.com/carverauto/camradar/pkg/models"
	"github.com/carverauto/camradar/pkg/radio"
)

func TestReceiver_InitializeFailureIsVideoOnly(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockRadio := radio.NewMockRadio(ctrl)
	mockRadio.EXPECT().Open(76, "HLMT1").Return(errors.New("spi: no such device"))

	r := NewReceiver(mockRadio, ReceiverConfig{Channel: 76}, logger.NewTestLogger())

	assert.False(t, r.Initialize(context.Background()))
	assert.False(t, r.Available())

	// Poll is never reached on an unavailable radio.
	assert.Nil(t, r.Receive())
	require.NoError(t, r.Close())
}

func TestReceiver_NilRadioIsVideoOnly(t *testing.T) {
	t.Parallel()

	r := NewReceiver(nil, ReceiverConfig{Channel: 76}, logger.NewTestLogger())

	assert.False(t, r.Initialize(context.Background()))
	assert.Nil(t, r.Receive())
}

func TestReceiver_InvalidEndpoint(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockRadio := radio.NewMockRadio(ctrl)

	r := NewReceiver(mockRadio, ReceiverConfig{Channel: 200}, logger.NewTestLogger())

	assert.False(t, r.Initialize(context.Background()))
}

func TestReceiver_DrainsAndDecodesInOrder(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	mockRadio := radio.NewMockRadio(ctrl)

	frames := [][]byte{
		[]byte("TELEM:HLM01:11.45:76:42.3:1234"),
		[]byte("garbage"),
		[]byte("INFO:HLM01:1.0.0"),
		[]byte("TELEM:HLM01:11.40:74:42.5:1235"),
		[]byte("ALERT:10:1700000000"),
		[]byte("TELEM:HLM02:12.00:78:30.0:10"),
		[]byte("TELEM:HLM02:bad:78:30.0:10"),
	}

	gomock.InOrder(
		mockRadio.EXPECT().Open(76, "HLMT1").Return(nil),
		mockRadio.EXPECT().Poll().Return(frames[0], true),
		mockRadio.EXPECT().Poll().Return(frames[1], true),
		mockRadio.EXPECT().Poll().Return(frames[2], true),
		mockRadio.EXPECT().Poll().Return(frames[3], true),
		mockRadio.EXPECT().Poll().Return(frames[4], true),
		mockRadio.EXPECT().Poll().Return(frames[5], true),
		mockRadio.EXPECT().Poll().Return(frames[6], true),
		mockRadio.EXPECT().Poll().Return(nil, false),
		mockRadio.EXPECT().Poll().Return(nil, false),
		mockRadio.EXPECT().Close().Return(nil),
	)

	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)

	var (
		infos  []InfoEvent
		alerts []AlertEvent
	)

	r := NewReceiver(mockRadio, ReceiverConfig{Channel: 76}, logger.NewTestLogger(),
		WithReceiverClock(clock.NewFake(now)),
		WithInfoHandler(func(e InfoEvent) { infos = append(infos, e) }),
		WithAlertHandler(func(e AlertEvent) { alerts = append(alerts, e) }),
	)

	require.True(t, r.Initialize(context.Background()))

	records := r.Receive()
	require.Len(t, records, 3)
	assert.Equal(t, models.DeviceID("HLM01"), records[0].DeviceID)
	assert.InDelta(t, 1234.0, records[0].UptimeSeconds, 1e-9)
	assert.Equal(t, models.DeviceID("HLM01"), records[1].DeviceID)
	assert.InDelta(t, 1235.0, records[1].UptimeSeconds, 1e-9)
	assert.Equal(t, models.DeviceID("HLM02"), records[2].DeviceID)
	assert.Equal(t, now, records[0].ReceivedAt)

	require.Len(t, infos, 1)
	assert.Equal(t, "1.0.0", infos[0].Version)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertBatteryLow, alerts[0].Code)

	last, ok := r.Last("HLM01")
	require.True(t, ok)
	assert.Equal(t, 74, last.BatteryPercent)

	assert.Nil(t, r.Receive())

	stats := r.Stats()
	assert.Equal(t, uint64(7), stats.Received)
	assert.Equal(t, uint64(3), stats.Decoded)
	assert.Equal(t, uint64(1), stats.Malformed)
	assert.Equal(t, uint64(1), stats.Unknown)
	assert.Equal(t, uint64(1), stats.Info)
	assert.Equal(t, uint64(1), stats.Alerts)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
}

func TestReceiver_FillsSignalStrengthFromRadio(t *testing.T) {
	t.Parallel()

	lb := radio.NewLoopback(8)
	lb.SetRSSI(-61)

	r := NewReceiver(lb, ReceiverConfig{Channel: 76, Address: "HLMT1"}, logger.NewTestLogger())
	require.True(t, r.Initialize(context.Background()))

	require.NoError(t, lb.Transmit([]byte("TELEM:HLM01:11.45:76:42.3:1234")))
	require.NoError(t, lb.Transmit([]byte("PING")))

	records := r.Receive()
	require.Len(t, records, 1)
	assert.Equal(t, -61, records[0].SignalStrengthDBm)
	assert.Equal(t, uint64(1), r.Stats().Unknown)
}

func TestReceiver_BoundedDrain(t *testing.T) {
	t.Parallel()

	lb := radio.NewLoopback(maxFramesPerReceive * 2)

	r := NewReceiver(lb, ReceiverConfig{Channel: 76}, logger.NewTestLogger())
	require.True(t, r.Initialize(context.Background()))

	for i := 0; i < maxFramesPerReceive+10; i++ {
		require.NoError(t, lb.Transmit([]byte("TELEM:HLM01:11.45:76:42.3:1")))
	}

	assert.Len(t, r.Receive(), maxFramesPerReceive)
	assert.Len(t, r.Receive(), 10)
	assert.Nil(t, r.Receive())
}
