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

// Package natsradio bridges radio packets over NATS subjects. A gateway next
// to the physical transceiver publishes every received packet to
// <prefix>.<channel>.<address>.rx and transmits whatever arrives on .tx.
package natsradio

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	"github.com/carverauto/camradar/pkg/logger"
	"github.com/carverauto/camradar/pkg/radio"
)

const (
	// RSSIHeader carries the gateway's signal reading for a packet, in dBm.
	RSSIHeader = "Camradar-Rssi"

	defaultInboxSize = 256
)

// Role selects which side of the link a Radio plays.
type Role int

const (
	// RoleStation listens on .rx and transmits on .tx.
	RoleStation Role = iota
	// RoleRemoteUnit listens on .tx and transmits on .rx; used by simulators.
	RoleRemoteUnit
)

type Option func(*Radio)

func WithRole(role Role) Option {
	return func(r *Radio) { r.role = role }
}

func WithInboxSize(n int) Option {
	return func(r *Radio) {
		if n > 0 {
			r.inboxSize = n
		}
	}
}

// WithPayloadLimit overrides radio.MaxPayloadSize for transmit.
func WithPayloadLimit(n int) Option {
	return func(r *Radio) { r.limit = n }
}

// Radio implements radio.Radio and radio.SignalReporter on top of a NATS connection.
type Radio struct {
	nc        *nats.Conn
	prefix    string
	role      Role
	inboxSize int
	limit     int
	logger    logger.Logger

	mu          sync.Mutex
	sub         *nats.Subscription
	sendSubject string
	inbox       chan []byte

	dropped atomic.Uint64
	rssi    atomic.Int64
	hasRSSI atomic.Bool
}

var (
	_ radio.Radio          = (*Radio)(nil)
	_ radio.SignalReporter = (*Radio)(nil)
)

func New(nc *nats.Conn, prefix string, log logger.Logger, opts ...Option) *Radio {
	r := &Radio{
		nc:        nc,
		prefix:    prefix,
		inboxSize: defaultInboxSize,
		limit:     radio.MaxPayloadSize,
		logger:    log,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Subject returns the subject for one direction of a channel/address pair.
func Subject(prefix string, channel int, address, direction string) string {
	return fmt.Sprintf("%s.%d.%s.%s", prefix, channel, address, direction)
}

func (r *Radio) Open(channel int, address string) error {
	if err := radio.ValidateEndpoint(channel, address); err != nil {
		return err
	}

	listen, send := Subject(r.prefix, channel, address, "rx"), Subject(r.prefix, channel, address, "tx")
	if r.role == RoleRemoteUnit {
		listen, send = send, listen
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sub != nil {
		if err := r.sub.Unsubscribe(); err != nil {
			r.logger.Warn().Err(err).Msg("Failed to drop previous radio subscription")
		}
	}

	inbox := make(chan []byte, r.inboxSize)

	sub, err := r.nc.Subscribe(listen, func(msg *nats.Msg) {
		r.deliver(inbox, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", listen, err)
	}

	r.sub = sub
	r.inbox = inbox
	r.sendSubject = send

	r.logger.Info().
		Str("listen", listen).
		Str("send", send).
		Msg("NATS radio bridge open")

	return nil
}

func (r *Radio) deliver(inbox chan []byte, msg *nats.Msg) {
	if v := msg.Header.Get(RSSIHeader); v != "" {
		if dbm, err := strconv.Atoi(v); err == nil {
			r.rssi.Store(int64(dbm))
			r.hasRSSI.Store(true)
		}
	}

	payload := append([]byte(nil), msg.Data...)

	for {
		select {
		case inbox <- payload:
			return
		default:
		}

		// Full: drop the oldest packet and retry.
		select {
		case <-inbox:
			r.dropped.Add(1)
		default:
		}
	}
}

func (r *Radio) Poll() ([]byte, bool) {
	r.mu.Lock()
	inbox := r.inbox
	r.mu.Unlock()

	if inbox == nil {
		return nil, false
	}

	select {
	case p := <-inbox:
		return p, true
	default:
		return nil, false
	}
}

func (r *Radio) Transmit(payload []byte) error {
	if err := radio.CheckPayload(payload, r.limit); err != nil {
		return err
	}

	r.mu.Lock()
	subject := r.sendSubject
	r.mu.Unlock()

	if subject == "" {
		return radio.ErrNotOpen
	}

	if err := r.nc.Publish(subject, payload); err != nil {
		return fmt.Errorf("failed to publish radio packet: %w", err)
	}

	return nil
}

func (r *Radio) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sendSubject = ""
	r.inbox = nil

	if r.sub == nil {
		return nil
	}

	err := r.sub.Unsubscribe()
	r.sub = nil

	return err
}

func (r *Radio) RSSI() (int, bool) {
	return int(r.rssi.Load()), r.hasRSSI.Load()
}

// Dropped counts packets discarded because Poll fell behind.
func (r *Radio) Dropped() uint64 {
	return r.dropped.Load()
}
