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

// Package opencv is the capture backend for real cameras and streams, on top
// of gocv.
package opencv

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/carverauto/camradar/pkg/capture"
	"github.com/carverauto/camradar/pkg/models"
)

var (
	errNotOpened  = errors.New("video capture did not open")
	errEmptyFrame = errors.New("empty frame")
	errFrameType  = errors.New("frame is not 8-bit BGR")
	errReleased   = errors.New("video capture released")
)

// Backend opens devices by index with VideoCaptureDevice and URLs with
// VideoCaptureFile.
type Backend struct{}

var _ capture.Backend = Backend{}

func (Backend) Open(ctx context.Context, src models.CaptureSource) (capture.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		vc  *gocv.VideoCapture
		err error
	)

	if src.URL != "" {
		vc, err = gocv.VideoCaptureFile(src.URL)
	} else {
		vc, err = gocv.VideoCaptureDevice(src.Index)
	}

	if err != nil {
		return nil, err
	}

	if !vc.IsOpened() {
		_ = vc.Close()

		return nil, fmt.Errorf("%w: %s", errNotOpened, src)
	}

	return &handle{vc: vc, mat: gocv.NewMat()}, nil
}

type handle struct {
	mu  sync.Mutex
	vc  *gocv.VideoCapture
	mat gocv.Mat
}

func (h *handle) Read() (*models.Frame, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.vc == nil {
		return nil, errReleased
	}

	if ok := h.vc.Read(&h.mat); !ok || h.mat.Empty() {
		return nil, errEmptyFrame
	}

	if h.mat.Type() != gocv.MatTypeCV8UC3 || h.mat.Channels() != models.BytesPerPixel {
		return nil, errFrameType
	}

	// ToBytes copies out of the Mat, so the buffer can be reused by the next read.
	return &models.Frame{
		Width:  h.mat.Cols(),
		Height: h.mat.Rows(),
		Data:   h.mat.ToBytes(),
	}, nil
}

// Configure applies the settings. The capture buffer is kept small so reads
// return the freshest frame.
func (h *handle) Configure(s capture.Settings) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.vc == nil {
		return errReleased
	}

	if s.BufferSize > 0 {
		h.vc.Set(gocv.VideoCaptureBufferSize, float64(s.BufferSize))
	}

	if s.Width > 0 && s.Height > 0 {
		h.vc.Set(gocv.VideoCaptureFrameWidth, float64(s.Width))
		h.vc.Set(gocv.VideoCaptureFrameHeight, float64(s.Height))
	}

	if s.FPS > 0 {
		h.vc.Set(gocv.VideoCaptureFPS, s.FPS)
	}

	return nil
}

func (h *handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.vc == nil {
		return nil
	}

	err := h.vc.Close()
	h.vc = nil

	if cerr := h.mat.Close(); cerr != nil && err == nil {
		err = cerr
	}

	return err
}
