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

// Command telemetry-sim plays one or more remote units, transmitting INFO,
// TELEM and ALERT frames over the NATS radio bridge.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/carverauto/camradar/pkg/clock"
	"github.com/carverauto/camradar/pkg/lifecycle"
	"github.com/carverauto/camradar/pkg/logger"
	"github.com/carverauto/camradar/pkg/models"
	"github.com/carverauto/camradar/pkg/natsutil"
	"github.com/carverauto/camradar/pkg/radio"
	"github.com/carverauto/camradar/pkg/radio/natsradio"
	"github.com/carverauto/camradar/pkg/telemetry"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	natsURL := pflag.String("nats-url", "nats://127.0.0.1:4222", "NATS server carrying the radio bridge")
	prefix := pflag.String("subject-prefix", "camradar.radio", "Radio bridge subject prefix")
	channelNum := pflag.Int("channel", radio.DefaultChannel, "Radio channel")
	address := pflag.String("address", radio.DefaultAddress, "Radio address (1-5 bytes)")
	ids := pflag.StringSlice("device-id", []string{"HLM01"}, "Remote unit ids to simulate")
	interval := pflag.Duration("interval", time.Second, "Telemetry interval")
	startVoltage := pflag.Float64("start-voltage", 0, "Initial battery voltage; full when zero")
	drain := pflag.Float64("drain", 0.002, "Battery voltage lost per telemetry frame")
	temperature := pflag.Float64("temperature", 40, "Reported temperature in Celsius")
	debug := pflag.Bool("debug", false, "Enable debug logging")
	pflag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logConfig := logger.DefaultConfig()
	if *debug {
		logConfig.Level = "debug"
	}

	simLogger, err := lifecycle.CreateComponentLogger(ctx, "telemetry-sim", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	nc, err := natsutil.Connect(*natsURL, nil, "camradar-telemetry-sim", simLogger)
	if err != nil {
		return err
	}
	defer nc.Close()

	r := natsradio.New(nc, *prefix, simLogger, natsradio.WithRole(natsradio.RoleRemoteUnit))
	if err := r.Open(*channelNum, *address); err != nil {
		return fmt.Errorf("failed to open radio: %w", err)
	}

	defer func() { _ = r.Close() }()

	units := make([]*telemetry.Unit, 0, len(*ids))

	for _, id := range *ids {
		unit, err := telemetry.NewUnit(r, telemetry.UnitConfig{
			DeviceID:     models.DeviceID(id),
			Interval:     *interval,
			StartVoltage: *startVoltage,
			DrainPerTick: *drain,
			Temperature:  *temperature,
		}, simLogger, clock.Real())
		if err != nil {
			return err
		}

		units = append(units, unit)
	}

	var wg sync.WaitGroup

	for _, unit := range units {
		wg.Add(1)

		go func() {
			defer wg.Done()
			unit.Run(ctx)
		}()
	}

	simLogger.Info().Strs("units", *ids).Str("nats_url", *natsURL).Msg("Simulating remote units")

	wg.Wait()

	for _, unit := range units {
		stats := unit.Stats()
		fmt.Printf("%s: sent=%d failed=%d success=%.1f%%\n",
			unit.DeviceID(), stats.PacketsSent, stats.PacketsFailed, stats.SuccessRate)
	}

	return nil
}
