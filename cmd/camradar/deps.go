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

package main

import (
	"context"
	"fmt"

	"github.com/carverauto/camradar/pkg/audit"
	"github.com/carverauto/camradar/pkg/capture"
	"github.com/carverauto/camradar/pkg/capture/opencv"
	"github.com/carverauto/camradar/pkg/capture/testpattern"
	"github.com/carverauto/camradar/pkg/channel"
	"github.com/carverauto/camradar/pkg/hostmon"
	"github.com/carverauto/camradar/pkg/logger"
	"github.com/carverauto/camradar/pkg/models"
	"github.com/carverauto/camradar/pkg/natsutil"
	"github.com/carverauto/camradar/pkg/radio"
	"github.com/carverauto/camradar/pkg/radio/natsradio"
	"github.com/carverauto/camradar/pkg/recording"
	recopencv "github.com/carverauto/camradar/pkg/recording/opencv"
	"github.com/carverauto/camradar/pkg/station"
)

const simulatedFPS = 15

// buildDependencies connects the hardware and infrastructure selected by cfg.
// The returned cleanup closes whatever was opened.
func buildDependencies(ctx context.Context, cfg *models.StationConfig, log logger.Logger) (station.Dependencies, func(), error) {
	var closers []func()

	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := station.Dependencies{
		CaptureBackend: captureBackend(cfg),
		SinkFactory:    sinkFactory(cfg),
		Oracle:         oracle(cfg),
	}

	switch cfg.Telemetry.Transport {
	case models.TransportLoopback:
		deps.Radio = radio.NewLoopback(0)
	case models.TransportNATS:
		nc, err := natsutil.Connect(cfg.Telemetry.NATSURL, cfg.Telemetry.NATSTLS, cfg.StationID+"-radio", log)
		if err != nil {
			// The station runs video-only without its radio.
			log.Warn().Err(err).Msg("Radio bridge unavailable")

			break
		}

		closers = append(closers, nc.Close)
		deps.Radio = natsradio.New(nc, cfg.Telemetry.SubjectPrefix, log)
	}

	if cfg.Events.Enabled {
		publisher, nc, err := natsutil.ConnectWithEventPublisher(ctx, cfg.Events, "camradar/"+cfg.StationID, log)
		if err != nil {
			cleanup()

			return station.Dependencies{}, nil, fmt.Errorf("events: %w", err)
		}

		closers = append(closers, nc.Close)
		deps.Events = publisher
	}

	if cfg.Audit.Enabled {
		store, err := audit.Connect(ctx, cfg.Audit, log)
		if err != nil {
			cleanup()

			return station.Dependencies{}, nil, err
		}

		closers = append(closers, store.Close)
		deps.Audit = store
	}

	if cfg.HostMonitor.Enabled {
		deps.HostMonitor = hostmon.NewMonitor(cfg.HostMonitor, log)
	}

	return deps, cleanup, nil
}

func captureBackend(cfg *models.StationConfig) capture.Backend {
	if cfg.Simulate {
		count := 1
		for _, dev := range cfg.Capture.Devices {
			count = max(count, dev.Index+1)
		}

		return testpattern.New(count, cfg.Capture.Width, cfg.Capture.Height, simulatedFPS)
	}

	return opencv.Backend{}
}

func sinkFactory(cfg *models.StationConfig) recording.SinkFactory {
	if cfg.Recording.Format == models.FormatMJPEG {
		return recording.NewMJPEGFactory(cfg.Recording.JPEGQuality)
	}

	return recopencv.Factory{}
}

func oracle(cfg *models.StationConfig) channel.Oracle {
	if cfg.Channels.Oracle == models.OracleStatic {
		return channel.StaticOracle(cfg.Channels.StaticQuality)
	}

	return channel.SyntheticOracle{}
}
