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

//go:generate mockgen -destination=mock_oracle.go -package=channel github.com/carverauto/camradar/pkg/channel Oracle

// Package channel assigns video channels to devices and picks the channel with
// the best measured signal quality.
package channel

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

const (
	// DefaultMaxChannel is the number of channels in band E.
	DefaultMaxChannel = 8

	// SignalPresentDBm is the quality above which a channel is considered to
	// carry a transmitter.
	SignalPresentDBm = -85
)

var (
	ErrInvalidChannel = errors.New("channel out of range")
	ErrNoMeasurements = errors.New("no channel could be measured")
)

// bandE maps channel number to centre frequency in MHz.
//
//nolint:gochecknoglobals // fixed band plan
var bandE = map[int]int{
	1: 5705,
	2: 5685,
	3: 5665,
	4: 5645,
	5: 5885,
	6: 5905,
	7: 5925,
	8: 5945,
}

// FrequencyMHz returns the band E frequency of ch, or 0 when ch is not a band E channel.
func FrequencyMHz(ch int) int {
	return bandE[ch]
}

// Oracle measures the signal quality of one channel in dBm. Higher is better.
type Oracle interface {
	Measure(ctx context.Context, ch int) (int, error)
}

// SyntheticOracle reports a deterministic quality that rises with the channel
// number. It stands in for hardware during development.
type SyntheticOracle struct{}

func (SyntheticOracle) Measure(ctx context.Context, ch int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	return -90 + ch*5, nil
}

// StaticOracle reports fixed readings. Channels missing from the map fail to measure.
type StaticOracle map[int]int

var errNoReading = errors.New("no reading for channel")

func (o StaticOracle) Measure(ctx context.Context, ch int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	q, ok := o[ch]
	if !ok {
		return 0, fmt.Errorf("%w %d", errNoReading, ch)
	}

	return q, nil
}

// Measurement is one channel reading, for scan reports.
type Measurement struct {
	Channel      int  `json:"channel"`
	FrequencyMHz int  `json:"frequency_mhz"`
	QualityDBm   int  `json:"quality_dbm"`
	Active       bool `json:"active"`
}

// Measurements turns a quality map into a report ordered by channel.
func Measurements(quality map[int]int) []Measurement {
	out := make([]Measurement, 0, len(quality))

	for ch, q := range quality {
		out = append(out, Measurement{
			Channel:      ch,
			FrequencyMHz: FrequencyMHz(ch),
			QualityDBm:   q,
			Active:       q > SignalPresentDBm,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })

	return out
}
