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

//go:generate mockgen -destination=mock_backend.go -package=capture github.com/carverauto/camradar/pkg/capture Backend,Handle

// Package capture keeps video devices open and publishing frames, restarting
// them when they stall.
package capture

import (
	"context"

	"github.com/carverauto/camradar/pkg/models"
)

// Settings are applied to a device after its priming read. Backends may
// ignore settings the hardware does not support.
type Settings struct {
	Width      int
	Height     int
	FPS        float64
	BufferSize int
}

// Backend opens capture devices.
type Backend interface {
	Open(ctx context.Context, src models.CaptureSource) (Handle, error)
}

// Handle is one open device. Read blocks until a frame is available or the
// read fails; the returned frame only needs Width, Height and Data set.
type Handle interface {
	Read() (*models.Frame, error)
	Configure(s Settings) error
	Release() error
}
