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

// Package audit persists recording session audit rows to Postgres.
package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carverauto/camradar/pkg/logger"
	"github.com/carverauto/camradar/pkg/models"
)

const applicationName = "camradar"

var ErrAuditDisabled = errors.New("recording audit is disabled")

const createRecordingAuditTable = `
CREATE TABLE IF NOT EXISTS recording_audit (
	session_id   UUID PRIMARY KEY,
	device_id    TEXT        NOT NULL,
	path         TEXT        NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	stopped_at   TIMESTAMPTZ NOT NULL,
	duration_ms  BIGINT      NOT NULL,
	frame_count  BIGINT      NOT NULL,
	size_bytes   BIGINT      NOT NULL
)`

const createRecordingAuditIndex = `
CREATE INDEX IF NOT EXISTS recording_audit_device_started_idx
	ON recording_audit (device_id, started_at DESC)`

const insertRecordingAudit = `
INSERT INTO recording_audit (
	session_id, device_id, path, started_at, stopped_at, duration_ms, frame_count, size_bytes
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (session_id) DO UPDATE SET
	stopped_at  = EXCLUDED.stopped_at,
	duration_ms = EXCLUDED.duration_ms,
	frame_count = EXCLUDED.frame_count,
	size_bytes  = EXCLUDED.size_bytes`

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store writes audit rows.
type Store struct {
	db    execer
	close func()
	log   logger.Logger
}

// Connect dials the configured database and ensures the audit schema exists.
func Connect(ctx context.Context, cfg models.AuditConfig, log logger.Logger) (*Store, error) {
	if !cfg.Enabled {
		return nil, ErrAuditDisabled
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to parse connection string: %w", err)
	}

	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = make(map[string]string)
	}

	if _, ok := poolConfig.ConnConfig.RuntimeParams["application_name"]; !ok {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to initialize pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("audit: ping failed: %w", err)
	}

	s := &Store{db: pool, close: pool.Close, log: log}

	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()

		return nil, err
	}

	log.Info().
		Str("host", poolConfig.ConnConfig.Host).
		Int32("max_conns", poolConfig.MaxConns).
		Msg("Connected to audit database")

	return s, nil
}

func newStore(db execer, log logger.Logger) *Store {
	return &Store{db: db, close: func() {}, log: log}
}

// EnsureSchema creates the audit table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{createRecordingAuditTable, createRecordingAuditIndex} {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("audit: ensure schema: %w", err)
		}
	}

	return nil
}

// RecordSession upserts one audit row keyed by session id.
func (s *Store) RecordSession(ctx context.Context, a models.RecordingAudit) error {
	tag, err := s.db.Exec(ctx, insertRecordingAudit,
		a.SessionID,
		string(a.DeviceID),
		a.Path,
		a.StartedAt.UTC(),
		a.StoppedAt.UTC(),
		a.Duration.Milliseconds(),
		int64(a.FrameCount), //nolint:gosec // frame counts never approach MaxInt64
		a.SizeBytes,
	)
	if err != nil {
		return fmt.Errorf("audit: record session %s: %w", a.SessionID, err)
	}

	s.log.Debug().
		Str("session_id", a.SessionID).
		Int64("rows", tag.RowsAffected()).
		Msg("Recording audit stored")

	return nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.close()
}
