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

import "sync"

const defaultLoopbackCapacity = 256

// Loopback is an in-process radio: whatever is transmitted is polled back in
// order. The station uses it in simulate mode with in-process remote units.
// When the queue is full the oldest packet is dropped, like a radio FIFO.
type Loopback struct {
	mu       sync.Mutex
	open     bool
	channel  int
	address  string
	queue    [][]byte
	capacity int
	dropped  uint64
	rssi     int
	hasRSSI  bool
}

func NewLoopback(capacity int) *Loopback {
	if capacity <= 0 {
		capacity = defaultLoopbackCapacity
	}

	return &Loopback{capacity: capacity}
}

func (l *Loopback) Open(channel int, address string) error {
	if err := ValidateEndpoint(channel, address); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.open = true
	l.channel = channel
	l.address = address

	return nil
}

func (l *Loopback) Poll() ([]byte, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.open || len(l.queue) == 0 {
		return nil, false
	}

	payload := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]

	return payload, true
}

func (l *Loopback) Transmit(payload []byte) error {
	if err := CheckPayload(payload, MaxPayloadSize); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.open {
		return ErrNotOpen
	}

	if len(l.queue) >= l.capacity {
		l.queue = l.queue[1:]
		l.dropped++
	}

	l.queue = append(l.queue, append([]byte(nil), payload...))

	return nil
}

func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.open = false
	l.queue = nil

	return nil
}

// SetRSSI fixes the signal strength reported for received packets.
func (l *Loopback) SetRSSI(dbm int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rssi = dbm
	l.hasRSSI = true
}

func (l *Loopback) RSSI() (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.rssi, l.hasRSSI
}

// Dropped returns how many packets were discarded because the queue was full.
func (l *Loopback) Dropped() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.dropped
}
