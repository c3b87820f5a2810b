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

//go:generate mockgen -destination=mock_sink.go -package=recording github.com/carverauto/camradar/pkg/recording Sink,SinkFactory,AuditStore

// Package recording persists captured frames to disk, one session per device.
package recording

import (
	"context"
	"errors"

	"github.com/carverauto/camradar/pkg/models"
)

var (
	ErrSinkOpenFailed = errors.New("recording sink open failed")
	ErrSinkClosed     = errors.New("recording sink closed")
	errFrameInvalid   = errors.New("frame data does not match its dimensions")
)

// SinkOptions are fixed for the lifetime of a sink.
type SinkOptions struct {
	FPS    float64
	Width  int
	Height int
}

// Sink is an open media file.
type Sink interface {
	Append(frame *models.Frame) error
	Close() error
}

// SinkFactory creates sinks of one container format.
type SinkFactory interface {
	Create(path string, opts SinkOptions) (Sink, error)
	// Extension is the file extension of created files, with the leading dot.
	Extension() string
}

// AuditStore persists one row per stopped session.
type AuditStore interface {
	RecordSession(ctx context.Context, audit models.RecordingAudit) error
}
