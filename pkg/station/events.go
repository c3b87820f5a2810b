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

package station

import (
	"context"
	"time"

	"github.com/carverauto/camradar/pkg/models"
)

const emitTimeout = 2 * time.Second

// EventEmitter pushes station events to the dashboard.
type EventEmitter interface {
	Emit(ctx context.Context, eventType models.EventType, data any) error
}

// emit never blocks a capture or telemetry loop for longer than emitTimeout.
// Without an emitter events are only logged.
func (s *Station) emit(eventType models.EventType, data any) {
	if s.events == nil {
		s.log.Debug().Str("event", string(eventType)).Interface("data", data).Msg("Station event")

		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
	defer cancel()

	if err := s.events.Emit(ctx, eventType, data); err != nil {
		s.log.Warn().Err(err).Str("event", string(eventType)).Msg("Failed to publish station event")
	}
}
