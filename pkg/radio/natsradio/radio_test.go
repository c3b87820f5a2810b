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

package natsradio

import (
	"bytes"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/camradar/pkg/logger"
	"github.com/carverauto/camradar/pkg/radio"
)

func runServer(t *testing.T) *nats.Conn {
	t.Helper()

	srv, err := server.NewServer(&server.Options{Host: "127.0.0.1", Port: -1})
	require.NoError(t, err)

	go srv.Start()

	if !srv.ReadyForConnections(10 * time.Second) {
		srv.Shutdown()
		t.Fatalf("embedded NATS server not ready for connections")
	}

	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)

	t.Cleanup(func() {
		nc.Close()
		srv.Shutdown()
	})

	return nc
}

func pollEventually(t *testing.T, r *Radio) []byte {
	t.Helper()

	var got []byte

	require.Eventually(t, func() bool {
		p, ok := r.Poll()
		if ok {
			got = p
		}

		return ok
	}, 5*time.Second, 10*time.Millisecond)

	return got
}

func TestRadio_UnitToStation(t *testing.T) {
	nc := runServer(t)

	station := New(nc, "camradar.radio", logger.NewTestLogger())
	unit := New(nc, "camradar.radio", logger.NewTestLogger(), WithRole(RoleRemoteUnit))

	require.NoError(t, station.Open(radio.DefaultChannel, radio.DefaultAddress))
	require.NoError(t, unit.Open(radio.DefaultChannel, radio.DefaultAddress))
	require.NoError(t, nc.Flush())

	require.NoError(t, unit.Transmit([]byte("TELEM:HLM01:11.45:76:42.3:1234")))
	assert.Equal(t, "TELEM:HLM01:11.45:76:42.3:1234", string(pollEventually(t, station)))

	require.NoError(t, station.Transmit([]byte("ACK")))
	assert.Equal(t, "ACK", string(pollEventually(t, unit)))

	_, ok := station.Poll()
	assert.False(t, ok)

	require.NoError(t, station.Close())
	require.NoError(t, unit.Close())
}

func TestRadio_RSSIHeader(t *testing.T) {
	nc := runServer(t)

	station := New(nc, "gw", logger.NewTestLogger())
	require.NoError(t, station.Open(10, "NODE1"))
	require.NoError(t, nc.Flush())

	_, ok := station.RSSI()
	assert.False(t, ok)

	msg := nats.NewMsg(Subject("gw", 10, "NODE1", "rx"))
	msg.Data = []byte("INFO:HLM01:2.1.0")
	msg.Header.Set(RSSIHeader, "-67")
	require.NoError(t, nc.PublishMsg(msg))

	assert.Equal(t, "INFO:HLM01:2.1.0", string(pollEventually(t, station)))

	rssi, ok := station.RSSI()
	assert.True(t, ok)
	assert.Equal(t, -67, rssi)
}

func TestRadio_TransmitChecks(t *testing.T) {
	nc := runServer(t)

	r := New(nc, "gw", logger.NewTestLogger())
	require.ErrorIs(t, r.Transmit([]byte("x")), radio.ErrNotOpen)

	require.NoError(t, r.Open(radio.DefaultChannel, radio.DefaultAddress))
	require.ErrorIs(t, r.Transmit(bytes.Repeat([]byte("x"), radio.MaxPayloadSize+1)), radio.ErrPayloadTooLarge)

	require.ErrorIs(t, r.Open(200, radio.DefaultAddress), radio.ErrInvalidChannel)
}

func TestRadio_DropsOldestWhenInboxFull(t *testing.T) {
	nc := runServer(t)

	station := New(nc, "gw", logger.NewTestLogger(), WithInboxSize(2))
	unit := New(nc, "gw", logger.NewTestLogger(), WithRole(RoleRemoteUnit))

	require.NoError(t, station.Open(1, "A"))
	require.NoError(t, unit.Open(1, "A"))
	require.NoError(t, nc.Flush())

	for _, p := range []string{"one", "two", "three"} {
		require.NoError(t, unit.Transmit([]byte(p)))
	}

	require.Eventually(t, func() bool { return station.Dropped() == 1 }, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, "two", string(pollEventually(t, station)))
	assert.Equal(t, "three", string(pollEventually(t, station)))
}

func TestRadio_PollBeforeOpen(t *testing.T) {
	r := New(nil, "gw", logger.NewTestLogger())
	_, ok := r.Poll()
	assert.False(t, ok)
	require.NoError(t, r.Close())
}
