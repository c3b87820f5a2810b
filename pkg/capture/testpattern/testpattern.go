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

// Package testpattern is a capture backend that synthesizes moving colour
// bars. It backs simulated stations and tests.
package testpattern

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/carverauto/camradar/pkg/capture"
	"github.com/carverauto/camradar/pkg/models"
)

var (
	ErrNoDevice = errors.New("no test pattern device at index")
	ErrReleased = errors.New("test pattern handle released")
)

//nolint:gochecknoglobals // fixed palette, BGR order
var bars = [][3]byte{
	{255, 255, 255},
	{0, 255, 255},
	{255, 255, 0},
	{0, 255, 0},
	{255, 0, 255},
	{0, 0, 255},
	{255, 0, 0},
	{0, 0, 0},
}

// Backend opens synthetic devices. Indexes listed in Devices open; others
// fail like an absent camera. URLs always open.
type Backend struct {
	Devices []int
	Width   int
	Height  int
	// FPS paces Read; zero reads as fast as the caller asks.
	FPS float64
}

var _ capture.Backend = (*Backend)(nil)

// New returns a backend with devices 0..count-1.
func New(count, width, height int, fps float64) *Backend {
	devices := make([]int, count)
	for i := range devices {
		devices[i] = i
	}

	return &Backend{Devices: devices, Width: width, Height: height, FPS: fps}
}

func (b *Backend) Open(ctx context.Context, src models.CaptureSource) (capture.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if src.URL == "" && !b.has(src.Index) {
		return nil, fmt.Errorf("%w %d", ErrNoDevice, src.Index)
	}

	w, h := b.Width, b.Height
	if w <= 0 || h <= 0 {
		w, h = 640, 480
	}

	return &handle{width: w, height: h, fps: b.FPS, offset: src.Index}, nil
}

func (b *Backend) has(index int) bool {
	for _, d := range b.Devices {
		if d == index {
			return true
		}
	}

	return false
}

type handle struct {
	mu       sync.Mutex
	width    int
	height   int
	fps      float64
	offset   int
	tick     int
	last     time.Time
	released bool
}

func (h *handle) Read() (*models.Frame, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return nil, ErrReleased
	}

	if h.fps > 0 && !h.last.IsZero() {
		if wait := time.Duration(float64(time.Second)/h.fps) - time.Since(h.last); wait > 0 {
			time.Sleep(wait)
		}
	}

	h.last = time.Now()
	h.tick++

	return &models.Frame{Width: h.width, Height: h.height, Data: Render(h.width, h.height, h.tick+h.offset)}, nil
}

func (h *handle) Configure(s capture.Settings) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if s.Width > 0 && s.Height > 0 {
		h.width, h.height = s.Width, s.Height
	}

	if s.FPS > 0 {
		h.fps = s.FPS
	}

	return nil
}

func (h *handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.released = true

	return nil
}

// Render draws vertical colour bars shifted by phase columns into a BGR24 buffer.
func Render(width, height, phase int) []byte {
	data := make([]byte, width*height*models.BytesPerPixel)
	barWidth := width / len(bars)

	if barWidth == 0 {
		barWidth = 1
	}

	for x := 0; x < width; x++ {
		c := bars[((x+phase)/barWidth)%len(bars)]

		for y := 0; y < height; y++ {
			i := (y*width + x) * models.BytesPerPixel
			data[i], data[i+1], data[i+2] = c[0], c[1], c[2]
		}
	}

	return data
}
