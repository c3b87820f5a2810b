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

package radio

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopback_RoundTrip(t *testing.T) {
	t.Parallel()

	l := NewLoopback(0)
	require.ErrorIs(t, l.Transmit([]byte("x")), ErrNotOpen)

	require.NoError(t, l.Open(DefaultChannel, DefaultAddress))

	_, ok := l.Poll()
	assert.False(t, ok)

	require.NoError(t, l.Transmit([]byte("INFO:HLM01:1.0")))
	require.NoError(t, l.Transmit([]byte("ALERT:10:1700000000")))

	first, ok := l.Poll()
	require.True(t, ok)
	assert.Equal(t, "INFO:HLM01:1.0", string(first))

	second, ok := l.Poll()
	require.True(t, ok)
	assert.Equal(t, "ALERT:10:1700000000", string(second))

	_, ok = l.Poll()
	assert.False(t, ok)
}

func TestLoopback_RejectsOversizedPayload(t *testing.T) {
	t.Parallel()

	l := NewLoopback(4)
	require.NoError(t, l.Open(DefaultChannel, DefaultAddress))

	err := l.Transmit(bytes.Repeat([]byte("A"), MaxPayloadSize+1))
	require.ErrorIs(t, err, ErrPayloadTooLarge)

	require.NoError(t, l.Transmit(bytes.Repeat([]byte("A"), MaxPayloadSize)))
}

func TestLoopback_DropsOldestWhenFull(t *testing.T) {
	t.Parallel()

	l := NewLoopback(2)
	require.NoError(t, l.Open(DefaultChannel, DefaultAddress))

	for _, p := range []string{"a", "b", "c"} {
		require.NoError(t, l.Transmit([]byte(p)))
	}

	assert.Equal(t, uint64(1), l.Dropped())

	p, ok := l.Poll()
	require.True(t, ok)
	assert.Equal(t, "b", string(p))
}

func TestLoopback_TransmitCopiesPayload(t *testing.T) {
	t.Parallel()

	l := NewLoopback(0)
	require.NoError(t, l.Open(DefaultChannel, DefaultAddress))

	buf := []byte("abc")
	require.NoError(t, l.Transmit(buf))
	buf[0] = 'z'

	p, _ := l.Poll()
	assert.Equal(t, "abc", string(p))
}

func TestValidateEndpoint(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateEndpoint(0, "A"))
	require.ErrorIs(t, ValidateEndpoint(126, DefaultAddress), ErrInvalidChannel)
	require.ErrorIs(t, ValidateEndpoint(-1, DefaultAddress), ErrInvalidChannel)
	require.ErrorIs(t, ValidateEndpoint(76, ""), ErrInvalidAddress)
	require.ErrorIs(t, ValidateEndpoint(76, "TOOLONG"), ErrInvalidAddress)
}

func TestLoopback_RSSI(t *testing.T) {
	t.Parallel()

	l := NewLoopback(0)
	_, ok := l.RSSI()
	assert.False(t, ok)

	l.SetRSSI(-62)
	rssi, ok := l.RSSI()
	assert.True(t, ok)
	assert.Equal(t, -62, rssi)
}
