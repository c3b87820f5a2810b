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

// Command camradar runs the capture-and-telemetry ingestion station.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/spf13/pflag"

	"github.com/carverauto/camradar/pkg/config"
	"github.com/carverauto/camradar/pkg/lifecycle"
	"github.com/carverauto/camradar/pkg/logger"
	"github.com/carverauto/camradar/pkg/models"
	"github.com/carverauto/camradar/pkg/station"
)

var errFailedToLoadConfig = errors.New("failed to load config")

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := pflag.StringP("config", "c", "", "Path to station config file (YAML or JSON)")
	simulate := pflag.Bool("simulate", false, "Run with test-pattern cameras and simulated remote units")
	debug := pflag.Bool("debug", false, "Enable debug logging")
	pflag.Parse()

	ctx := context.Background()

	cfg := models.DefaultStationConfig()

	if *simulate {
		applySimulation(&cfg)
	}

	if *configPath != "" {
		if err := config.NewConfig(nil).LoadAndValidate(ctx, *configPath, &cfg); err != nil {
			return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
		}
	} else if err := cfg.Validate(); err != nil {
		return err
	}

	// The flag wins over a file that turns simulation off.
	if *simulate {
		cfg.Simulate = true
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = logger.DefaultConfig()
	}

	if *debug {
		logConfig.Debug = true
		logConfig.Level = "debug"
	}

	if logConfig.OTel.ResourceAttributes == nil {
		logConfig.OTel.ResourceAttributes = make(map[string]string)
	}

	logConfig.OTel.ResourceAttributes["station.id"] = cfg.StationID

	stationLogger, err := lifecycle.CreateComponentLogger(ctx, "camradar", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	defer func() {
		if err := lifecycle.ShutdownLogger(); err != nil {
			log.Printf("Failed to shutdown logger: %v", err)
		}
	}()

	if _, err := logger.InitializeMetrics(ctx, logger.MetricsConfig{
		OTel: &logConfig.OTel,
	}); err != nil && !errors.Is(err, logger.ErrOTelMetricsDisabled) {
		stationLogger.Warn().Err(err).Msg("Metrics export unavailable")
	}

	deps, cleanup, err := buildDependencies(ctx, &cfg, stationLogger)
	if err != nil {
		return err
	}
	defer cleanup()

	st, err := station.New(cfg, deps, stationLogger)
	if err != nil {
		return err
	}

	return lifecycle.RunService(ctx, st, lifecycle.ServiceOptions{
		ServiceName: "camradar",
		Logger:      stationLogger,
	})
}

// applySimulation sets the defaults a simulated station starts from. A
// config file can still override them.
func applySimulation(cfg *models.StationConfig) {
	cfg.Simulate = true
	cfg.Telemetry.Transport = models.TransportLoopback
	cfg.Telemetry.SimulatedUnits = []models.DeviceID{"HLM01", "HLM02"}
	cfg.Capture.Devices = []models.CaptureDeviceConfig{{Index: 0}, {Index: 1}}
	cfg.Recording.Format = models.FormatMJPEG
	cfg.Channels.AutoSwitch = true
	cfg.Channels.AutoAssign = []models.DeviceID{"HLM01", "HLM02"}
}
