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

// Command channel-scan measures every video channel once and prints a
// report with the best channel marked.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/carverauto/camradar/pkg/channel"
	"github.com/carverauto/camradar/pkg/lifecycle"
	"github.com/carverauto/camradar/pkg/logger"
	"github.com/carverauto/camradar/pkg/models"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	maxChannel := pflag.Int("max-channel", channel.DefaultMaxChannel, "Highest channel to scan")
	only := pflag.IntSlice("channels", nil, "Channels to scan; all up to --max-channel when empty")
	quality := pflag.StringToInt("quality", nil, "Static readings as channel=dBm pairs; synthetic readings when empty")
	timeout := pflag.Duration("timeout", 10*time.Second, "Scan timeout")
	asJSON := pflag.Bool("json", false, "Print the report as JSON")
	pflag.Parse()

	oracle, err := buildOracle(*quality)
	if err != nil {
		return err
	}

	cfg := &models.ChannelConfig{
		MaxChannel:   *maxChannel,
		ScanChannels: *only,
		ScanInterval: models.Duration(time.Second),
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	logConfig := logger.DefaultConfig()
	logConfig.Output = "stderr"

	scanLogger, err := lifecycle.CreateComponentLogger(ctx, "channel-scan", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	mgr, err := channel.NewManager(oracle, cfg, scanLogger)
	if err != nil {
		return err
	}

	best, err := mgr.ScanAndSwitch(ctx)
	if err != nil {
		return err
	}

	report := channel.Measurements(mgr.Quality())

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(struct {
			Best     int                   `json:"best"`
			Channels []channel.Measurement `json:"channels"`
		}{Best: best, Channels: report})
	}

	return printReport(os.Stdout, report, best)
}

func buildOracle(quality map[string]int) (channel.Oracle, error) {
	if len(quality) == 0 {
		return channel.SyntheticOracle{}, nil
	}

	static := make(channel.StaticOracle, len(quality))

	for k, v := range quality {
		ch, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("invalid channel %q in --quality: %w", k, err)
		}

		static[ch] = v
	}

	return static, nil
}

func printReport(w io.Writer, report []channel.Measurement, best int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "CHANNEL\tFREQ (MHz)\tQUALITY (dBm)\tSTATUS\t")

	for _, m := range report {
		status := "clear"
		if m.Active {
			status = "signal"
		}

		if m.Channel == best {
			status += " *best*"
		}

		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t\n", m.Channel, m.FrequencyMHz, m.QualityDBm, status)
	}

	return tw.Flush()
}
