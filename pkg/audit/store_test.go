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

package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/camradar/pkg/logger"
	"github.com/carverauto/camradar/pkg/models"
)

type execCall struct {
	sql  string
	args []any
}

type fakeExecer struct {
	calls []execCall
	err   error
}

func (f *fakeExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})

	if f.err != nil {
		return pgconn.CommandTag{}, f.err
	}

	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestStore_EnsureSchema(t *testing.T) {
	t.Parallel()

	db := &fakeExecer{}
	s := newStore(db, logger.NewTestLogger())

	require.NoError(t, s.EnsureSchema(context.Background()))
	require.Len(t, db.calls, 2)
	assert.Contains(t, db.calls[0].sql, "CREATE TABLE IF NOT EXISTS recording_audit")
	assert.Contains(t, db.calls[1].sql, "CREATE INDEX IF NOT EXISTS")
}

func TestStore_RecordSession(t *testing.T) {
	t.Parallel()

	db := &fakeExecer{}
	s := newStore(db, logger.NewTestLogger())

	started := time.Date(2025, 3, 1, 8, 0, 0, 0, time.FixedZone("PST", -8*3600))

	err := s.RecordSession(context.Background(), models.RecordingAudit{
		SessionID:  "0d1f5a0e-8d0e-4c52-9d53-1b9a0e1f7c11",
		DeviceID:   "camera_0",
		Path:       "recordings/camera_0_20250301_080000.mp4",
		StartedAt:  started,
		StoppedAt:  started.Add(90 * time.Second),
		Duration:   90 * time.Second,
		FrameCount: 2700,
		SizeBytes:  4096,
	})
	require.NoError(t, err)

	require.Len(t, db.calls, 1)
	assert.Contains(t, db.calls[0].sql, "INSERT INTO recording_audit")

	args := db.calls[0].args
	require.Len(t, args, 8)
	assert.Equal(t, "camera_0", args[1])
	assert.Equal(t, time.UTC, args[3].(time.Time).Location())
	assert.Equal(t, int64(90000), args[5])
	assert.Equal(t, int64(2700), args[6])
	assert.Equal(t, int64(4096), args[7])
}

func TestStore_RecordSessionError(t *testing.T) {
	t.Parallel()

	db := &fakeExecer{err: errors.New("connection reset")}
	s := newStore(db, logger.NewTestLogger())

	err := s.RecordSession(context.Background(), models.RecordingAudit{SessionID: "abc"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "abc")
	assert.ErrorIs(t, err, db.err)

	require.Error(t, s.EnsureSchema(context.Background()))
	s.Close()
}

func TestConnect_Disabled(t *testing.T) {
	t.Parallel()

	_, err := Connect(context.Background(), models.AuditConfig{}, logger.NewTestLogger())
	require.ErrorIs(t, err, ErrAuditDisabled)

	_, err = Connect(context.Background(), models.AuditConfig{Enabled: true, DSN: "postgres://localhost:notaport/camradar"}, logger.NewTestLogger())
	require.Error(t, err)
}
