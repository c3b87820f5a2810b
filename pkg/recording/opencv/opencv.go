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

// Package opencv writes recordings as mp4v video through gocv.
package opencv

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/carverauto/camradar/pkg/models"
	"github.com/carverauto/camradar/pkg/recording"
)

const (
	codec     = "mp4v"
	extension = ".mp4"
)

var (
	errWriterNotOpened = errors.New("video writer did not open")
	errInvalidFrame    = errors.New("frame data does not match its dimensions")
)

// Factory creates mp4 sinks.
type Factory struct{}

var _ recording.SinkFactory = Factory{}

func (Factory) Extension() string { return extension }

func (Factory) Create(path string, opts recording.SinkOptions) (recording.Sink, error) {
	w, err := gocv.VideoWriterFile(path, codec, opts.FPS, opts.Width, opts.Height, true)
	if err != nil {
		return nil, err
	}

	if !w.IsOpened() {
		_ = w.Close()

		return nil, fmt.Errorf("%w: %s", errWriterNotOpened, path)
	}

	return &Sink{writer: w, size: image.Pt(opts.Width, opts.Height), scaled: gocv.NewMat()}, nil
}

// Sink is an open VideoWriter. Frames that do not match the configured size
// are resized before writing.
type Sink struct {
	mu     sync.Mutex
	writer *gocv.VideoWriter
	size   image.Point
	scaled gocv.Mat
	closed bool
}

func (s *Sink) Append(frame *models.Frame) error {
	if frame == nil || !frame.Valid() {
		return errInvalidFrame
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return recording.ErrSinkClosed
	}

	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3,
		frame.Data[:frame.Width*frame.Height*models.BytesPerPixel])
	if err != nil {
		return fmt.Errorf("wrap frame %d: %w", frame.Seq, err)
	}
	defer mat.Close()

	if frame.Width == s.size.X && frame.Height == s.size.Y {
		return s.writer.Write(mat)
	}

	gocv.Resize(mat, &s.scaled, s.size, 0, 0, gocv.InterpolationLinear)

	return s.writer.Write(s.scaled)
}

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	err := s.writer.Close()
	_ = s.scaled.Close()

	return err
}
