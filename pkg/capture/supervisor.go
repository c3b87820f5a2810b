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

package capture

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/carverauto/camradar/pkg/logger"
	"github.com/carverauto/camradar/pkg/models"
)

// DefaultDiscoverMaxIndex is the highest device index probed by Discover.
const DefaultDiscoverMaxIndex = 9

// Supervisor creates and stops capture workers and aggregates their health.
type Supervisor struct {
	backend Backend
	log     logger.Logger
	opts    []WorkerOption

	// ctx bounds the lifetime of every worker started by Add.
	ctx context.Context

	mu      sync.RWMutex
	workers map[models.DeviceID]*Worker
}

// NewSupervisor returns a supervisor whose workers live until ctx is done or
// they are removed. opts are applied to every worker it creates.
func NewSupervisor(ctx context.Context, backend Backend, log logger.Logger, opts ...WorkerOption) *Supervisor {
	return &Supervisor{
		backend: backend,
		log:     log,
		opts:    opts,
		ctx:     ctx,
		workers: make(map[models.DeviceID]*Worker),
	}
}

// Add starts a worker for cfg. The worker is only kept if its device opened.
func (s *Supervisor) Add(cfg WorkerConfig, opts ...WorkerOption) (*Worker, error) {
	cfg.applyDefaults()

	s.mu.Lock()
	if _, exists := s.workers[cfg.DeviceID]; exists {
		s.mu.Unlock()

		return nil, fmt.Errorf("%w: %s", ErrDuplicateDevice, cfg.DeviceID)
	}

	// Reserve the id so concurrent Adds for the same device fail fast.
	s.workers[cfg.DeviceID] = nil
	s.mu.Unlock()

	all := append(append([]WorkerOption(nil), s.opts...), opts...)
	w := NewWorker(s.backend, cfg, s.log, all...)

	if err := w.Start(s.ctx); err != nil {
		s.mu.Lock()
		delete(s.workers, cfg.DeviceID)
		s.mu.Unlock()

		return nil, err
	}

	s.mu.Lock()
	s.workers[cfg.DeviceID] = w
	s.mu.Unlock()

	return w, nil
}

// Remove stops and forgets the worker for id.
func (s *Supervisor) Remove(ctx context.Context, id models.DeviceID) error {
	s.mu.Lock()
	w, ok := s.workers[id]
	if ok && w != nil {
		delete(s.workers, id)
	}
	s.mu.Unlock()

	if !ok || w == nil {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}

	return w.Stop(ctx)
}

// Worker returns the worker for id.
func (s *Supervisor) Worker(id models.DeviceID) (*Worker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.workers[id]

	return w, ok && w != nil
}

func (s *Supervisor) snapshot() []*Worker {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Worker, 0, len(s.workers))

	for _, w := range s.workers {
		if w != nil {
			out = append(out, w)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID() < out[j].DeviceID() })

	return out
}

// DeviceIDs lists the supervised devices in order.
func (s *Supervisor) DeviceIDs() []models.DeviceID {
	workers := s.snapshot()
	ids := make([]models.DeviceID, len(workers))

	for i, w := range workers {
		ids[i] = w.DeviceID()
	}

	return ids
}

// Health returns a health snapshot of every worker, ordered by device id.
func (s *Supervisor) Health() []models.CaptureHealth {
	workers := s.snapshot()
	out := make([]models.CaptureHealth, len(workers))

	for i, w := range workers {
		out[i] = w.Health()
	}

	return out
}

// LatestFrame returns the newest frame of device id.
func (s *Supervisor) LatestFrame(id models.DeviceID) (models.Frame, error) {
	w, ok := s.Worker(id)
	if !ok {
		return models.Frame{}, fmt.Errorf("%w: %s", ErrUnknownDevice, id)
	}

	frame, ok := w.LatestFrame()
	if !ok {
		return models.Frame{}, fmt.Errorf("%w: %s has no frame yet", ErrReadFailed, id)
	}

	return frame, nil
}

// StopAll stops every worker and waits for them to release their devices.
func (s *Supervisor) StopAll(ctx context.Context) error {
	s.mu.Lock()
	workers := make([]*Worker, 0, len(s.workers))

	for id, w := range s.workers {
		if w != nil {
			workers = append(workers, w)
			delete(s.workers, id)
		}
	}
	s.mu.Unlock()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for _, w := range workers {
		wg.Add(1)

		go func(w *Worker) {
			defer wg.Done()

			if err := w.Stop(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("stop %s: %w", w.DeviceID(), err))
				mu.Unlock()
			}
		}(w)
	}

	wg.Wait()

	return errors.Join(errs...)
}

// Discover probes device indexes 0..maxIndex and returns those that open.
// Probed devices are released immediately; indexes already supervised are
// reported without being reopened.
func (s *Supervisor) Discover(ctx context.Context, maxIndex int) []int {
	if maxIndex < 0 {
		maxIndex = DefaultDiscoverMaxIndex
	}

	inUse := make(map[int]bool)

	for _, w := range s.snapshot() {
		if w.cfg.Source.URL == "" {
			inUse[w.cfg.Source.Index] = true
		}
	}

	var found []int

	for i := 0; i <= maxIndex; i++ {
		if ctx.Err() != nil {
			break
		}

		if inUse[i] {
			found = append(found, i)
			continue
		}

		h, err := s.backend.Open(ctx, models.CaptureSource{Index: i})
		if err != nil {
			continue
		}

		if err := h.Release(); err != nil {
			s.log.Debug().Err(err).Int("index", i).Msg("Failed to release probed device")
		}

		found = append(found, i)
	}

	s.log.Info().Ints("indexes", found).Msg("Capture device discovery finished")

	return found
}
