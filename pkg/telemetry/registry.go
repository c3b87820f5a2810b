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
	"sort"
	"sync"
	"time"

	"github.com/carverauto/camradar/pkg/clock"
	"github.com/carverauto/camradar/pkg/models"
)

// DefaultStaleTimeout is how long a unit may stay silent before it is evicted.
const DefaultStaleTimeout = 10 * time.Second

// Registry is the table of units currently reporting telemetry. Entries live
// until they go stale; a later record recreates them.
type Registry struct {
	mu      sync.RWMutex
	entries map[models.DeviceID]models.DeviceEntry
	ttl     time.Duration
	clock   clock.Clock
}

// NewRegistry creates a registry evicting entries silent for longer than ttl.
func NewRegistry(ttl time.Duration, clk clock.Clock) *Registry {
	if ttl <= 0 {
		ttl = DefaultStaleTimeout
	}

	if clk == nil {
		clk = clock.Real()
	}

	return &Registry{
		entries: make(map[models.DeviceID]models.DeviceEntry),
		ttl:     ttl,
		clock:   clk,
	}
}

// Update stores rec as the latest snapshot for its device and reports whether
// the device was previously unknown.
func (r *Registry) Update(rec models.TelemetryRecord) bool {
	seen := rec.ReceivedAt
	if seen.IsZero() {
		seen = r.clock.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, known := r.entries[rec.DeviceID]
	r.entries[rec.DeviceID] = models.DeviceEntry{Telemetry: rec, LastSeen: seen}
	recordRegistrySize(len(r.entries))

	return !known
}

// Get returns the entry for id.
func (r *Registry) Get(id models.DeviceID) (models.DeviceEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]

	return e, ok
}

// Snapshot returns all entries ordered by device id.
func (r *Registry) Snapshot() []models.DeviceEntry {
	r.mu.RLock()
	out := make([]models.DeviceEntry, 0, len(r.entries))

	for _, e := range r.entries {
		out = append(out, e)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Telemetry.DeviceID < out[j].Telemetry.DeviceID
	})

	return out
}

// Len returns the number of tracked units.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

// EvictStale removes entries whose last record is older than the TTL and
// returns them ordered by device id.
func (r *Registry) EvictStale() []models.DeviceEntry {
	now := r.clock.Now()

	var evicted []models.DeviceEntry

	r.mu.Lock()
	for id, e := range r.entries {
		if now.Sub(e.LastSeen) > r.ttl {
			evicted = append(evicted, e)
			delete(r.entries, id)
		}
	}
	recordRegistrySize(len(r.entries))
	r.mu.Unlock()

	sort.Slice(evicted, func(i, j int) bool {
		return evicted[i].Telemetry.DeviceID < evicted[j].Telemetry.DeviceID
	})

	return evicted
}

// Monitor evicts stale entries every interval until ctx is done. onEvict is
// called outside the registry lock for each evicted entry.
func (r *Registry) Monitor(ctx context.Context, interval time.Duration, onEvict func(models.DeviceEntry)) {
	if interval <= 0 {
		interval = r.ttl / 2
	}

	ticker := r.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			for _, e := range r.EvictStale() {
				if onEvict != nil {
					onEvict(e)
				}
			}
		}
	}
}
