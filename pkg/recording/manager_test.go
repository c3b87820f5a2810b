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
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/camradar/pkg/clock"
	"github.com/carverauto/camradar/pkg/logger"
	"github.com/carverauto/camradar/pkg/models"
)

func testConfig(dir string) models.RecordingConfig {
	return models.RecordingConfig{Dir: dir, Format: models.FormatMJPEG, FPS: 15, Width: 4, Height: 2, JPEGQuality: 75}
}

func testFrame(seq uint64) *models.Frame {
	return &models.Frame{Seq: seq, Width: 4, Height: 2, Data: make([]byte, 4*2*models.BytesPerPixel)}
}

func TestManager_StartIsIdempotent(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	factory := NewMockSinkFactory(ctrl)
	sink := NewMockSink(ctrl)

	dir := t.TempDir()

	factory.EXPECT().Extension().Return(".mp4").AnyTimes()
	factory.EXPECT().
		Create(gomock.Any(), SinkOptions{FPS: 15, Width: 4, Height: 2}).
		Return(sink, nil).
		Times(1)
	sink.EXPECT().Close().Return(nil).Times(1)

	m := NewManager(testConfig(dir), factory, logger.NewTestLogger())

	first, err := m.Start("camera_0")
	require.NoError(t, err)

	second, err := m.Start("camera_0")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Path, second.Path)
	assert.Len(t, m.Sessions(), 1)
	assert.True(t, m.IsRecording("camera_0"))

	stopped, err := m.Stop(context.Background(), "camera_0")
	require.NoError(t, err)
	assert.True(t, stopped)
	assert.False(t, m.IsRecording("camera_0"))
}

func TestManager_StopIdleDeviceDoesNoIO(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	factory := NewMockSinkFactory(ctrl)
	audit := NewMockAuditStore(ctrl)

	dir := filepath.Join(t.TempDir(), "never-created")

	m := NewManager(testConfig(dir), factory, logger.NewTestLogger(), WithAuditStore(audit))

	stopped, err := m.Stop(context.Background(), "camera_0")
	require.NoError(t, err)
	assert.False(t, stopped)

	_, err = os.Stat(dir)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestManager_CreateFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	factory := NewMockSinkFactory(ctrl)

	factory.EXPECT().Extension().Return(".mp4").AnyTimes()
	factory.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil, errors.New("codec unavailable"))

	m := NewManager(testConfig(t.TempDir()), factory, logger.NewTestLogger())

	_, err := m.Start("camera_0")
	require.ErrorIs(t, err, ErrSinkOpenFailed)
	assert.Contains(t, err.Error(), "codec unavailable")
	assert.False(t, m.IsRecording("camera_0"))
}

func TestManager_FilenameCollisions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	clk := clock.NewFake(time.Date(2025, 3, 1, 8, 0, 0, 0, time.Local))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "cam_1_20250301_080000.mjpeg"), []byte("x"), 0o600))

	m := NewManager(testConfig(dir), NewMJPEGFactory(75), logger.NewTestLogger(), WithClock(clk))

	a, err := m.Start("cam_1")
	require.NoError(t, err)
	assert.Equal(t, "cam_1_20250301_080000_1.mjpeg", filepath.Base(a.Path))

	// Sanitizes to the same prefix as the active session above.
	b, err := m.Start("cam:1")
	require.NoError(t, err)
	assert.Equal(t, "cam_1_20250301_080000_2.mjpeg", filepath.Base(b.Path))

	require.NoError(t, m.StopAll(context.Background()))
	assert.Empty(t, m.Sessions())
}

func TestManager_WriteFrame(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	factory := NewMockSinkFactory(ctrl)
	sink := NewMockSink(ctrl)

	factory.EXPECT().Extension().Return(".mp4").AnyTimes()
	factory.EXPECT().Create(gomock.Any(), gomock.Any()).Return(sink, nil)

	m := NewManager(testConfig(t.TempDir()), factory, logger.NewTestLogger())

	// Not recording yet.
	require.NoError(t, m.WriteFrame("camera_0", testFrame(1)))

	_, err := m.Start("camera_0")
	require.NoError(t, err)

	gomock.InOrder(
		sink.EXPECT().Append(gomock.Any()).Return(nil).Times(2),
		sink.EXPECT().Append(gomock.Any()).Return(errors.New("disk full")),
		sink.EXPECT().Close().Return(nil),
	)

	require.NoError(t, m.WriteFrame("camera_0", testFrame(2)))
	require.NoError(t, m.WriteFrame("camera_0", testFrame(3)))
	require.Error(t, m.WriteFrame("camera_0", testFrame(4)))

	sessions := m.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, uint64(2), sessions[0].FrameCount)

	_, err = m.Stop(context.Background(), "camera_0")
	require.NoError(t, err)

	// After stop, frames are dropped without touching the sink.
	require.NoError(t, m.WriteFrame("camera_0", testFrame(5)))
}

func TestManager_StopWritesAudit(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	audit := NewMockAuditStore(ctrl)

	start := time.Date(2025, 3, 1, 8, 0, 0, 0, time.Local)
	clk := clock.NewFake(start)

	m := NewManager(testConfig(t.TempDir()), NewMJPEGFactory(75), logger.NewTestLogger(),
		WithClock(clk), WithAuditStore(audit))

	session, err := m.Start("camera_0")
	require.NoError(t, err)

	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, m.WriteFrame("camera_0", testFrame(i)))
	}

	clk.Advance(5 * time.Second)

	var got models.RecordingAudit

	audit.EXPECT().RecordSession(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, a models.RecordingAudit) error {
			got = a

			return errors.New("database offline")
		})

	// Audit failures are logged, not returned.
	stopped, err := m.Stop(context.Background(), "camera_0")
	require.NoError(t, err)
	assert.True(t, stopped)

	assert.Equal(t, session.ID, got.SessionID)
	assert.Equal(t, models.DeviceID("camera_0"), got.DeviceID)
	assert.Equal(t, 5*time.Second, got.Duration)
	assert.Equal(t, uint64(3), got.FrameCount)
	assert.Positive(t, got.SizeBytes)

	st, err := os.Stat(session.Path)
	require.NoError(t, err)
	assert.Equal(t, st.Size(), got.SizeBytes)
}

func TestManager_ListRecordingsNewestFirst(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	for _, name := range []string{
		"camera_0_20250101_120000.mp4",
		"camera_0_20250301_070000.mp4",
		"camera_1_20250301_070000_2.mp4",
		"notes.txt",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("data"), 0o600))
	}

	require.NoError(t, os.Mkdir(filepath.Join(dir, "camera_9_20250301_070000.mp4"), 0o755))

	m := NewManager(testConfig(dir), NewMJPEGFactory(75), logger.NewTestLogger())

	recs, err := m.ListRecordings()
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, "camera_1_20250301_070000_2.mp4", recs[0].Filename)
	assert.Equal(t, models.DeviceID("camera_1"), recs[0].DeviceID)
	assert.Equal(t, "camera_0_20250301_070000.mp4", recs[1].Filename)
	assert.Equal(t, "camera_0_20250101_120000.mp4", recs[2].Filename)
	assert.Equal(t, time.Date(2025, 1, 1, 12, 0, 0, 0, time.Local), recs[2].CreatedAt)
	assert.Equal(t, int64(4), recs[2].SizeBytes)
}

func TestManager_ListMissingDirectory(t *testing.T) {
	t.Parallel()

	m := NewManager(testConfig(filepath.Join(t.TempDir(), "missing")), NewMJPEGFactory(75), logger.NewTestLogger())

	recs, err := m.ListRecordings()
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestManager_CleanupContinuesPastFailedDelete(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	clk := clock.NewFake(time.Date(2025, 3, 1, 8, 0, 0, 0, time.Local))

	names := []string{
		"camera_0_20250201_080000.mjpeg",
		"camera_1_20250202_080000.mjpeg",
		"camera_2_20250203_080000.mjpeg",
	}
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("old"), 0o600))
	}

	locked := filepath.Join(dir, names[1])

	var attempted []string

	remove := func(path string) error {
		attempted = append(attempted, filepath.Base(path))
		if path == locked {
			return &os.PathError{Op: "remove", Path: path, Err: os.ErrPermission}
		}

		return os.Remove(path)
	}

	m := NewManager(testConfig(dir), NewMJPEGFactory(75), logger.NewTestLogger(), WithClock(clk), WithRemover(remove))

	n, err := m.CleanupOldRecordings(7)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, names, attempted)

	recs, err := m.ListRecordings()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, names[1], recs[0].Filename)
}

func TestManager_CleanupSkipsActiveSessions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	clk := clock.NewFake(time.Date(2025, 3, 1, 8, 0, 0, 0, time.Local))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "camera_1_20250220_080000.mjpeg"), []byte("old"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "camera_1_20250310_080000.mjpeg"), []byte("new"), 0o600))

	m := NewManager(testConfig(dir), NewMJPEGFactory(75), logger.NewTestLogger(), WithClock(clk))

	active, err := m.Start("camera_0")
	require.NoError(t, err)

	clk.Advance(10 * 24 * time.Hour)

	n, err := m.CleanupOldRecordings(7)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = os.Stat(active.Path)
	require.NoError(t, err)

	_, err = m.Stop(context.Background(), "camera_0")
	require.NoError(t, err)

	n, err = m.CleanupOldRecordings(7)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	recs, err := m.ListRecordings()
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "camera_1_20250310_080000.mjpeg", recs[0].Filename)

	n, err = m.CleanupOldRecordings(0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestManager_ConcurrentWritesAndStop(t *testing.T) {
	t.Parallel()

	m := NewManager(testConfig(t.TempDir()), NewMJPEGFactory(50), logger.NewTestLogger())

	_, err := m.Start("camera_0")
	require.NoError(t, err)

	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := uint64(0); i < 50; i++ {
				_ = m.WriteFrame("camera_0", testFrame(i))
			}
		}()
	}

	stopped, err := m.Stop(context.Background(), "camera_0")
	require.NoError(t, err)
	assert.True(t, stopped)

	wg.Wait()
}

func TestManager_DiskUsage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m := NewManager(testConfig(dir), NewMJPEGFactory(75), logger.NewTestLogger())

	usage, err := m.DiskUsage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dir, usage.Path)
	assert.Positive(t, usage.TotalBytes)
}
