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

package recording

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"sync"

	"github.com/carverauto/camradar/pkg/models"
)

const (
	mjpegExtension     = ".mjpeg"
	defaultJPEGQuality = 80
	mjpegBufferSize    = 256 << 10
)

// MJPEGFactory creates sinks that write each frame as a baseline JPEG,
// concatenated into one file.
type MJPEGFactory struct {
	Quality int
}

// NewMJPEGFactory returns a factory encoding at quality, clamped to [1,100].
func NewMJPEGFactory(quality int) *MJPEGFactory {
	return &MJPEGFactory{Quality: quality}
}

func (*MJPEGFactory) Extension() string { return mjpegExtension }

// Create opens path exclusively. An existing file is never overwritten.
func (f *MJPEGFactory) Create(path string, opts SinkOptions) (Sink, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	return &MJPEGSink{
		file:    file,
		w:       bufio.NewWriterSize(file, mjpegBufferSize),
		quality: f.Quality,
		width:   opts.Width,
		height:  opts.Height,
	}, nil
}

// MJPEGSink is an open .mjpeg file.
type MJPEGSink struct {
	mu      sync.Mutex
	file    *os.File
	w       *bufio.Writer
	quality int
	width   int
	height  int
	closed  bool
}

// Append encodes frame and writes it. Frames are stored at their own size;
// the configured dimensions only apply to players that need a hint.
func (s *MJPEGSink) Append(frame *models.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSinkClosed
	}

	return writeJPEG(s.w, frame, s.quality)
}

func (s *MJPEGSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true

	flushErr := s.w.Flush()
	closeErr := s.file.Close()

	if flushErr != nil {
		return flushErr
	}

	return closeErr
}

// EncodeJPEG encodes a BGR frame as a JPEG image, used for dashboard snapshots.
func EncodeJPEG(frame *models.Frame, quality int) ([]byte, error) {
	var buf bytes.Buffer

	if err := writeJPEG(&buf, frame, quality); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func writeJPEG(w io.Writer, frame *models.Frame, quality int) error {
	if frame == nil || !frame.Valid() {
		return errFrameInvalid
	}

	if err := jpeg.Encode(w, toRGBA(frame), &jpeg.Options{Quality: clampQuality(quality)}); err != nil {
		return fmt.Errorf("encode frame %d: %w", frame.Seq, err)
	}

	return nil
}

func clampQuality(q int) int {
	switch {
	case q <= 0:
		return defaultJPEGQuality
	case q > 100:
		return 100
	default:
		return q
	}
}

// toRGBA converts packed BGR pixels.
func toRGBA(frame *models.Frame) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))

	for px, src := 0, 0; px < frame.Width*frame.Height; px, src = px+1, src+models.BytesPerPixel {
		dst := px * 4
		img.Pix[dst] = frame.Data[src+2]
		img.Pix[dst+1] = frame.Data[src+1]
		img.Pix[dst+2] = frame.Data[src]
		img.Pix[dst+3] = 0xff
	}

	return img
}
