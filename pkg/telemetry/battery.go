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

package telemetry

import "math"

// BatteryScale maps pack voltage to charge percent by straight-line
// interpolation between an empty and a full voltage.
type BatteryScale struct {
	MinVoltage float64
	MaxVoltage float64
}

// DefaultBatteryScale is a 3S lithium pack: 9.9V empty, 12.6V full.
var DefaultBatteryScale = BatteryScale{MinVoltage: 9.9, MaxVoltage: 12.6} //nolint:gochecknoglobals // read-only default

func (s BatteryScale) Validate() error {
	if !(s.MinVoltage < s.MaxVoltage) {
		return ErrInvalidBatteryScale
	}

	return nil
}

// Percent returns the charge for voltage v, clamped to [0,100].
func (s BatteryScale) Percent(v float64) int {
	if s.MaxVoltage <= s.MinVoltage {
		return 0
	}

	pct := (v - s.MinVoltage) / (s.MaxVoltage - s.MinVoltage) * 100

	return int(math.Round(math.Max(0, math.Min(100, pct))))
}

// Voltage is the inverse of Percent for pct in [0,100].
func (s BatteryScale) Voltage(pct int) float64 {
	p := math.Max(0, math.Min(100, float64(pct)))

	return s.MinVoltage + (s.MaxVoltage-s.MinVoltage)*p/100
}
