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
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	recordingMeterName         = "camradar.recording"
	metricActiveRecordingsName = "recording_sessions_active"
)

var (
	//nolint:gochecknoglobals // metric observers are shared singletons
	recordingMetricsOnce sync.Once
	//nolint:gochecknoglobals // metric observers are shared singletons
	activeRecordings atomic.Int64
	//nolint:gochecknoglobals // metric observers are shared singletons
	activeRecordingsGauge metric.Int64ObservableGauge
	recordingMetricsRegistration metric.Registration //nolint:unused,gochecknoglobals // reference retained to keep callback registered
)

func initRecordingMetrics() {
	meter := otel.Meter(recordingMeterName)

	var err error

	activeRecordingsGauge, err = meter.Int64ObservableGauge(
		metricActiveRecordingsName,
		metric.WithDescription("Recording sessions currently open"),
	)
	if err != nil {
		otel.Handle(err)
		return
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		observer.ObserveInt64(activeRecordingsGauge, activeRecordings.Load())
		return nil
	}, activeRecordingsGauge)
	if err != nil {
		otel.Handle(err)
		return
	}

	recordingMetricsRegistration = registration
}

// recordActiveRecordings publishes the session count of the most recently
// changed manager; the station runs one.
func recordActiveRecordings(n int) {
	recordingMetricsOnce.Do(initRecordingMetrics)
	activeRecordings.Store(int64(n))
}
