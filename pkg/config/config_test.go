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

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/camradar/pkg/logger"
)

var errNoDir = errors.New("dir is required")

type testRecording struct {
	Dir           string `json:"dir" yaml:"dir"`
	RetentionDays int    `json:"retention_days" yaml:"retention_days"`
}

type testConfig struct {
	StationID string         `json:"station_id" yaml:"station_id"`
	Simulate  bool           `json:"simulate" yaml:"simulate"`
	Timeout   time.Duration  `json:"timeout" yaml:"timeout"`
	Devices   []string       `json:"devices" yaml:"devices"`
	Oracle    map[int]int    `json:"oracle" yaml:"oracle"`
	Recording testRecording  `json:"recording" yaml:"recording"`
	Extra     *testRecording `json:"extra" yaml:"extra"`
}

func (c *testConfig) Validate() error {
	if c.Recording.Dir == "" {
		return errNoDir
	}

	return nil
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestLoadAndValidate_JSONFile(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "")

	path := writeFile(t, "station.json", `{
		"station_id": "base-1",
		"recording": {"dir": "/var/lib/camradar", "retention_days": 3}
	}`)

	cfg := testConfig{Simulate: true}
	require.NoError(t, NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), path, &cfg))

	assert.Equal(t, "base-1", cfg.StationID)
	assert.Equal(t, 3, cfg.Recording.RetentionDays)
	assert.True(t, cfg.Simulate, "fields missing from the file keep their defaults")
}

func TestLoadAndValidate_YAMLFile(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "file")

	path := writeFile(t, "receiver_config.yaml", `
station_id: field-unit
devices: [camera_0, camera_1]
oracle:
  1: -85
  2: -70
recording:
  dir: recordings
`)

	var cfg testConfig
	require.NoError(t, NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg))

	assert.Equal(t, "field-unit", cfg.StationID)
	assert.Equal(t, []string{"camera_0", "camera_1"}, cfg.Devices)
	assert.Equal(t, map[int]int{1: -85, 2: -70}, cfg.Oracle)
}

func TestLoadAndValidate_ValidationFailure(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "")

	path := writeFile(t, "station.json", `{"station_id": "x"}`)

	var cfg testConfig
	err := NewConfig(nil).LoadAndValidate(context.Background(), path, &cfg)
	require.ErrorIs(t, err, errNoDir)
}

func TestLoadAndValidate_BadSource(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "kv")

	var cfg testConfig
	err := NewConfig(nil).LoadAndValidate(context.Background(), "unused", &cfg)
	require.ErrorIs(t, err, errInvalidConfigSource)
}

func TestLoadAndValidate_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "")

	var cfg testConfig
	err := NewConfig(nil).LoadAndValidate(context.Background(), filepath.Join(t.TempDir(), "nope.json"), &cfg)
	require.Error(t, err)
}

func TestEnvConfigLoader(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "env")
	t.Setenv("CONFIG_ENV_PREFIX", "")
	t.Setenv("CAMRADAR_STATION_ID", "env-station")
	t.Setenv("CAMRADAR_SIMULATE", "true")
	t.Setenv("CAMRADAR_TIMEOUT", "750ms")
	t.Setenv("CAMRADAR_DEVICES", "camera_0, camera_2")
	t.Setenv("CAMRADAR_ORACLE", `{"3": -60}`)
	t.Setenv("CAMRADAR_RECORDING_DIR", "/data")
	t.Setenv("CAMRADAR_RECORDING_RETENTION_DAYS", "not-a-number")
	t.Setenv("CAMRADAR_EXTRA_DIR", "/extra")

	cfg := testConfig{Recording: testRecording{RetentionDays: 7}}
	require.NoError(t, NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), "", &cfg))

	assert.Equal(t, "env-station", cfg.StationID)
	assert.True(t, cfg.Simulate)
	assert.Equal(t, 750*time.Millisecond, cfg.Timeout)
	assert.Equal(t, []string{"camera_0", "camera_2"}, cfg.Devices)
	assert.Equal(t, map[int]int{3: -60}, cfg.Oracle)
	assert.Equal(t, "/data", cfg.Recording.Dir)
	assert.Equal(t, 7, cfg.Recording.RetentionDays, "invalid values are skipped")
	require.NotNil(t, cfg.Extra)
	assert.Equal(t, "/extra", cfg.Extra.Dir)
}

func TestEnvConfigLoader_ConfigJSON(t *testing.T) {
	t.Setenv("CAMRADAR_CONFIG_JSON", `{"station_id": "json", "recording": {"dir": "r"}}`)

	var cfg testConfig
	require.NoError(t, NewEnvConfigLoader(logger.NewTestLogger(), "CAMRADAR_").Load(context.Background(), "", &cfg))
	assert.Equal(t, "json", cfg.StationID)
	assert.Equal(t, "r", cfg.Recording.Dir)
}

func TestEnvConfigLoader_RejectsNonPointer(t *testing.T) {
	loader := NewEnvConfigLoader(logger.NewTestLogger(), "X_")

	require.ErrorIs(t, loader.Load(context.Background(), "", testConfig{}), ErrDstMustBeNonNilPointer)

	s := "str"
	require.ErrorIs(t, loader.Load(context.Background(), "", &s), ErrDstMustBePointerToStruct)
}
