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
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/carverauto/camradar/pkg/clock"
	"github.com/carverauto/camradar/pkg/logger"
	"github.com/carverauto/camradar/pkg/models"
)

const (
	timestampLayout = "20060102_150405"
	retentionDay    = 24 * time.Hour
	maxNameAttempts = 1000
)

//nolint:gochecknoglobals // compiled once
var recordingNameRe = regexp.MustCompile(`^(.+)_(\d{8}_\d{6})(?:_(\d+))?\.([A-Za-z0-9]+)$`)

// Option customizes a Manager.
type Option func(*Manager)

// WithClock overrides the clock used for filenames, durations and retention.
func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithAuditStore persists an audit row for every stopped session.
func WithAuditStore(s AuditStore) Option {
	return func(m *Manager) { m.audit = s }
}

// WithRemover replaces os.Remove for retention cleanup.
func WithRemover(remove func(path string) error) Option {
	return func(m *Manager) { m.remove = remove }
}

type session struct {
	mu     sync.Mutex
	info   models.RecordingSession
	sink   Sink
	closed bool
}

// Manager owns the active recording sessions. Start and Stop for one device
// are serialized; frames for different devices are written concurrently.
type Manager struct {
	cfg     models.RecordingConfig
	factory SinkFactory
	log     logger.Logger
	clock   clock.Clock
	audit   AuditStore
	remove  func(path string) error

	devMu    sync.Mutex
	devLocks map[models.DeviceID]*sync.Mutex

	mu       sync.RWMutex
	sessions map[models.DeviceID]*session
	reserved map[string]struct{}
}

// NewManager creates a manager writing into cfg.Dir through factory.
func NewManager(cfg models.RecordingConfig, factory SinkFactory, log logger.Logger, opts ...Option) *Manager {
	m := &Manager{
		cfg:      cfg,
		factory:  factory,
		log:      log,
		clock:    clock.Real(),
		remove:   os.Remove,
		devLocks: make(map[models.DeviceID]*sync.Mutex),
		sessions: make(map[models.DeviceID]*session),
		reserved: make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *Manager) deviceLock(id models.DeviceID) *sync.Mutex {
	m.devMu.Lock()
	defer m.devMu.Unlock()

	l, ok := m.devLocks[id]
	if !ok {
		l = &sync.Mutex{}
		m.devLocks[id] = l
	}

	return l
}

// Start begins recording id. Starting a device that is already recording
// returns the existing session.
func (m *Manager) Start(id models.DeviceID) (models.RecordingSession, error) {
	l := m.deviceLock(id)
	l.Lock()
	defer l.Unlock()

	m.mu.RLock()
	existing, ok := m.sessions[id]
	m.mu.RUnlock()

	if ok {
		return existing.snapshot(), nil
	}

	if err := os.MkdirAll(m.cfg.Dir, 0o755); err != nil {
		return models.RecordingSession{}, fmt.Errorf("%w: %w", ErrSinkOpenFailed, err)
	}

	now := m.clock.Now()

	path, err := m.reservePath(id, now)
	if err != nil {
		return models.RecordingSession{}, err
	}

	sink, err := m.factory.Create(path, SinkOptions{FPS: m.cfg.FPS, Width: m.cfg.Width, Height: m.cfg.Height})
	if err != nil {
		m.release(path)

		return models.RecordingSession{}, fmt.Errorf("%w: %s: %w", ErrSinkOpenFailed, path, err)
	}

	s := &session{
		info: models.RecordingSession{
			ID:        uuid.NewString(),
			DeviceID:  id,
			Path:      path,
			StartedAt: now,
		},
		sink: sink,
	}

	m.mu.Lock()
	m.sessions[id] = s
	delete(m.reserved, path)
	active := len(m.sessions)
	m.mu.Unlock()

	recordActiveRecordings(active)

	m.log.Info().
		Str("device_id", string(id)).
		Str("session_id", s.info.ID).
		Str("path", path).
		Msg("Recording started")

	return s.snapshot(), nil
}

// reservePath picks a filename that neither exists on disk nor belongs to an
// active session and holds it until the sink is created.
func (m *Manager) reservePath(id models.DeviceID, now time.Time) (string, error) {
	base := sanitize(string(id)) + "_" + now.Format(timestampLayout)
	ext := m.factory.Extension()

	m.mu.Lock()
	defer m.mu.Unlock()

	for n := 0; n < maxNameAttempts; n++ {
		name := base + ext
		if n > 0 {
			name = base + "_" + strconv.Itoa(n) + ext
		}

		path := filepath.Join(m.cfg.Dir, name)

		if m.pathActiveLocked(path) {
			continue
		}

		if _, err := os.Stat(path); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %w", ErrSinkOpenFailed, err)
		}

		m.reserved[path] = struct{}{}

		return path, nil
	}

	return "", fmt.Errorf("%w: no free filename for %s", ErrSinkOpenFailed, base)
}

func (m *Manager) release(path string) {
	m.mu.Lock()
	delete(m.reserved, path)
	m.mu.Unlock()
}

func (m *Manager) pathActiveLocked(path string) bool {
	if _, ok := m.reserved[path]; ok {
		return true
	}

	for _, s := range m.sessions {
		if s.info.Path == path {
			return true
		}
	}

	return false
}

// WriteFrame appends frame to id's session. It is a no-op when id is not
// recording or its session is closing.
func (m *Manager) WriteFrame(id models.DeviceID, frame *models.Frame) error {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	if err := s.sink.Append(frame); err != nil {
		return fmt.Errorf("append frame to %s: %w", s.info.Path, err)
	}

	s.info.FrameCount++

	return nil
}

// Stop ends id's session. It reports false without touching the disk when id
// is not recording.
func (m *Manager) Stop(ctx context.Context, id models.DeviceID) (bool, error) {
	l := m.deviceLock(id)
	l.Lock()
	defer l.Unlock()

	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		return false, nil
	}

	s.mu.Lock()
	s.closed = true
	closeErr := s.sink.Close()
	info := s.info
	s.mu.Unlock()

	m.mu.Lock()
	delete(m.sessions, id)
	active := len(m.sessions)
	m.mu.Unlock()

	recordActiveRecordings(active)

	stoppedAt := m.clock.Now()

	audit := models.RecordingAudit{
		SessionID:  info.ID,
		DeviceID:   id,
		Path:       info.Path,
		StartedAt:  info.StartedAt,
		StoppedAt:  stoppedAt,
		Duration:   stoppedAt.Sub(info.StartedAt),
		FrameCount: info.FrameCount,
	}

	if st, err := os.Stat(info.Path); err == nil {
		audit.SizeBytes = st.Size()
	}

	m.log.Info().
		Str("device_id", string(id)).
		Str("session_id", audit.SessionID).
		Str("path", audit.Path).
		Dur("duration", audit.Duration).
		Uint64("frames", audit.FrameCount).
		Int64("size_bytes", audit.SizeBytes).
		Msg("Recording stopped")

	if m.audit != nil {
		if err := m.audit.RecordSession(ctx, audit); err != nil {
			m.log.Warn().Err(err).Str("session_id", audit.SessionID).Msg("Failed to persist recording audit")
		}
	}

	if closeErr != nil {
		return true, fmt.Errorf("close %s: %w", info.Path, closeErr)
	}

	return true, nil
}

// StopAll stops every active session.
func (m *Manager) StopAll(ctx context.Context) error {
	var errs []error

	for _, s := range m.Sessions() {
		if _, err := m.Stop(ctx, s.DeviceID); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// IsRecording reports whether id has an active session.
func (m *Manager) IsRecording(id models.DeviceID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.sessions[id]

	return ok
}

// Sessions returns the active sessions sorted by device id.
func (m *Manager) Sessions() []models.RecordingSession {
	m.mu.RLock()
	active := make([]*session, 0, len(m.sessions))

	for _, s := range m.sessions {
		active = append(active, s)
	}
	m.mu.RUnlock()

	out := make([]models.RecordingSession, 0, len(active))
	for _, s := range active {
		out = append(out, s.snapshot())
	}

	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })

	return out
}

func (s *session) snapshot() models.RecordingSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.info
}

// ListRecordings returns the recording files in the recording directory,
// newest first. Files that do not follow the recording naming scheme are
// ignored.
func (m *Manager) ListRecordings() ([]models.RecordingInfo, error) {
	entries, err := os.ReadDir(m.cfg.Dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}

	out := make([]models.RecordingInfo, 0, len(entries))

	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}

		match := recordingNameRe.FindStringSubmatch(e.Name())
		if match == nil {
			continue
		}

		fi, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}

		created, err := time.ParseInLocation(timestampLayout, match[2], time.Local)
		if err != nil {
			created = fi.ModTime()
		}

		out = append(out, models.RecordingInfo{
			Filename:   e.Name(),
			Path:       filepath.Join(m.cfg.Dir, e.Name()),
			DeviceID:   models.DeviceID(match[1]),
			SizeBytes:  fi.Size(),
			CreatedAt:  created,
			ModifiedAt: fi.ModTime(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}

		return out[i].Filename > out[j].Filename
	})

	return out, nil
}

// CleanupOldRecordings deletes recordings created more than retentionDays
// ago and returns how many were removed. Files of active sessions are kept.
// A retention of zero or less disables cleanup.
func (m *Manager) CleanupOldRecordings(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	recordings, err := m.ListRecordings()
	if err != nil {
		return 0, err
	}

	cutoff := m.clock.Now().Add(-time.Duration(retentionDays) * retentionDay)

	m.mu.RLock()
	active := make(map[string]struct{}, len(m.sessions))
	for _, s := range m.sessions {
		active[s.info.Path] = struct{}{}
	}
	m.mu.RUnlock()

	deleted := 0

	for _, rec := range recordings {
		if !rec.CreatedAt.Before(cutoff) {
			continue
		}

		if _, ok := active[rec.Path]; ok {
			continue
		}

		if err := m.remove(rec.Path); err != nil {
			m.log.Warn().Err(err).Str("path", rec.Path).Msg("Failed to delete old recording")

			continue
		}

		deleted++

		m.log.Info().Str("path", rec.Path).Time("created", rec.CreatedAt).Msg("Deleted old recording")
	}

	return deleted, nil
}

// RunRetention runs CleanupOldRecordings every interval until ctx is done.
func (m *Manager) RunRetention(ctx context.Context, interval time.Duration, retentionDays int) {
	if interval <= 0 || retentionDays <= 0 {
		return
	}

	ticker := m.clock.Ticker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			n, err := m.CleanupOldRecordings(retentionDays)
			if err != nil {
				m.log.Warn().Err(err).Msg("Recording retention pass failed")

				continue
			}

			if n > 0 {
				m.log.Info().Int("deleted", n).Int("retention_days", retentionDays).Msg("Recording retention pass complete")
			}
		}
	}
}

// DiskUsage reports the capacity of the volume holding the recording directory.
func (m *Manager) DiskUsage(ctx context.Context) (models.DiskUsage, error) {
	usage, err := disk.UsageWithContext(ctx, m.cfg.Dir)
	if err != nil {
		return models.DiskUsage{}, fmt.Errorf("disk usage for %s: %w", m.cfg.Dir, err)
	}

	return models.DiskUsage{
		Path:        m.cfg.Dir,
		TotalBytes:  usage.Total,
		UsedBytes:   usage.Used,
		FreeBytes:   usage.Free,
		UsedPercent: usage.UsedPercent,
	}, nil
}

// sanitize keeps device ids usable as file name prefixes.
func sanitize(id string) string {
	if id == "" {
		return "device"
	}

	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, id)
}
