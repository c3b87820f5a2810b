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

import (
	"context"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	telemetryMeterName = "camradar.telemetry"

	metricFramesReceivedName  = "telemetry_frames_received"
	metricFramesDecodedName   = "telemetry_frames_decoded"
	metricFramesMalformedName = "telemetry_frames_malformed"
	metricFramesUnknownName   = "telemetry_frames_unknown"
	metricActiveDevicesName   = "telemetry_active_devices"
)

var (
	//nolint:gochecknoglobals // metric observers are shared singletons
	telemetryMetricsOnce sync.Once
	//nolint:gochecknoglobals // metric observers are shared singletons
	telemetryMetricsData = &telemetryObservatory{}
	//nolint:gochecknoglobals // metric observers are shared singletons
	telemetryGauges struct {
		received      metric.Int64ObservableGauge
		decoded       metric.Int64ObservableGauge
		malformed     metric.Int64ObservableGauge
		unknown       metric.Int64ObservableGauge
		activeDevices metric.Int64ObservableGauge
	}
	telemetryMetricsRegistration metric.Registration //nolint:unused,gochecknoglobals // reference retained to keep callback registered
)

type telemetryObservatory struct {
	received      atomic.Int64
	decoded       atomic.Int64
	malformed     atomic.Int64
	unknown       atomic.Int64
	activeDevices atomic.Int64
}

func initTelemetryMetrics() {
	meter := otel.Meter(telemetryMeterName)

	gauges := []struct {
		dst  *metric.Int64ObservableGauge
		name string
		desc string
	}{
		{&telemetryGauges.received, metricFramesReceivedName, "Radio frames polled by the telemetry receiver"},
		{&telemetryGauges.decoded, metricFramesDecodedName, "TELEM frames decoded into telemetry records"},
		{&telemetryGauges.malformed, metricFramesMalformedName, "Frames discarded as malformed"},
		{&telemetryGauges.unknown, metricFramesUnknownName, "Frames discarded for an unknown message type"},
		{&telemetryGauges.activeDevices, metricActiveDevicesName, "Remote units currently present in the device registry"},
	}

	for _, g := range gauges {
		gauge, err := meter.Int64ObservableGauge(g.name, metric.WithDescription(g.desc))
		if err != nil {
			otel.Handle(err)
			return
		}

		*g.dst = gauge
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		observer.ObserveInt64(telemetryGauges.received, telemetryMetricsData.received.Load())
		observer.ObserveInt64(telemetryGauges.decoded, telemetryMetricsData.decoded.Load())
		observer.ObserveInt64(telemetryGauges.malformed, telemetryMetricsData.malformed.Load())
		observer.ObserveInt64(telemetryGauges.unknown, telemetryMetricsData.unknown.Load())
		observer.ObserveInt64(telemetryGauges.activeDevices, telemetryMetricsData.activeDevices.Load())

		return nil
	},
		telemetryGauges.received,
		telemetryGauges.decoded,
		telemetryGauges.malformed,
		telemetryGauges.unknown,
		telemetryGauges.activeDevices,
	)
	if err != nil {
		otel.Handle(err)
		return
	}

	telemetryMetricsRegistration = registration
}

func recordReceiverMetrics(s ReceiverStats) {
	telemetryMetricsOnce.Do(initTelemetryMetrics)

	telemetryMetricsData.received.Store(int64(s.Received))
	telemetryMetricsData.decoded.Store(int64(s.Decoded))
	telemetryMetricsData.malformed.Store(int64(s.Malformed))
	telemetryMetricsData.unknown.Store(int64(s.Unknown))
}

func recordRegistrySize(n int) {
	telemetryMetricsOnce.Do(initTelemetryMetrics)

	telemetryMetricsData.activeDevices.Store(int64(n))
}
