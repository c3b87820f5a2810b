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
	"bytes"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/camradar/pkg/models"
)

func TestEncodeJPEG(t *testing.T) {
	t.Parallel()

	frame := &models.Frame{Width: 8, Height: 4, Data: make([]byte, 8*4*models.BytesPerPixel)}
	for i := 0; i < len(frame.Data); i += models.BytesPerPixel {
		frame.Data[i+2] = 0xff // red in BGR order
	}

	data, err := EncodeJPEG(frame, 90)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, 4, img.Bounds().Dy())

	r, g, b, _ := img.At(3, 2).RGBA()
	assert.Greater(t, r>>8, uint32(200))
	assert.Less(t, g>>8, uint32(60))
	assert.Less(t, b>>8, uint32(60))

	_, err = EncodeJPEG(&models.Frame{Width: 8, Height: 4, Data: make([]byte, 10)}, 90)
	require.ErrorIs(t, err, errFrameInvalid)
}

func TestMJPEGSink(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "camera_0_20250301_080000.mjpeg")
	factory := NewMJPEGFactory(0)

	assert.Equal(t, ".mjpeg", factory.Extension())

	sink, err := factory.Create(path, SinkOptions{FPS: 30, Width: 4, Height: 2})
	require.NoError(t, err)

	require.NoError(t, sink.Append(testFrame(1)))
	require.NoError(t, sink.Append(testFrame(2)))
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())

	require.ErrorIs(t, sink.Append(testFrame(3)), ErrSinkClosed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, bytes.Count(data, []byte{0xff, 0xd8, 0xff}))

	// Existing files are never overwritten.
	_, err = factory.Create(path, SinkOptions{})
	require.ErrorIs(t, err, os.ErrExist)
}
