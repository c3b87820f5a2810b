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

package capture

import (
	"context"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/carverauto/camradar/pkg/models"
)

const (
	captureMeterName = "camradar.capture"

	metricFramesCapturedName = "capture_frames_captured"
	metricRestartsName       = "capture_restarts"
	metricRunningWorkersName = "capture_workers_running"
	metricDegradedName       = "capture_workers_degraded"
)

var (
	//nolint:gochecknoglobals // metric observers are shared singletons
	captureMetricsOnce sync.Once
	//nolint:gochecknoglobals // metric observers are shared singletons
	captureMetricsData = &captureObservatory{}
	//nolint:gochecknoglobals // metric observers are shared singletons
	captureGauges struct {
		framesCaptured metric.Int64ObservableGauge
		restarts       metric.Int64ObservableGauge
		running        metric.Int64ObservableGauge
		degraded       metric.Int64ObservableGauge
	}
	captureMetricsRegistration metric.Registration //nolint:unused,gochecknoglobals // reference retained to keep callback registered
)

type captureObservatory struct {
	framesCaptured atomic.Int64
	restarts       atomic.Int64
	running        atomic.Int64
	degraded       atomic.Int64
}

func initCaptureMetrics() {
	meter := otel.Meter(captureMeterName)

	var err error

	captureGauges.framesCaptured, err = meter.Int64ObservableGauge(
		metricFramesCapturedName,
		metric.WithDescription("Frames published by all capture workers since start"),
	)
	if err != nil {
		otel.Handle(err)
		return
	}

	captureGauges.restarts, err = meter.Int64ObservableGauge(
		metricRestartsName,
		metric.WithDescription("Successful capture device restarts since start"),
	)
	if err != nil {
		otel.Handle(err)
		return
	}

	captureGauges.running, err = meter.Int64ObservableGauge(
		metricRunningWorkersName,
		metric.WithDescription("Capture workers currently in the RUNNING state"),
	)
	if err != nil {
		otel.Handle(err)
		return
	}

	captureGauges.degraded, err = meter.Int64ObservableGauge(
		metricDegradedName,
		metric.WithDescription("Capture workers currently degraded or restarting"),
	)
	if err != nil {
		otel.Handle(err)
		return
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		observer.ObserveInt64(captureGauges.framesCaptured, captureMetricsData.framesCaptured.Load())
		observer.ObserveInt64(captureGauges.restarts, captureMetricsData.restarts.Load())
		observer.ObserveInt64(captureGauges.running, captureMetricsData.running.Load())
		observer.ObserveInt64(captureGauges.degraded, captureMetricsData.degraded.Load())

		return nil
	},
		captureGauges.framesCaptured,
		captureGauges.restarts,
		captureGauges.running,
		captureGauges.degraded,
	)
	if err != nil {
		otel.Handle(err)
		return
	}

	captureMetricsRegistration = registration
}

func isDegraded(s models.CaptureState) bool {
	return s == models.CaptureDegraded || s == models.CaptureRestarting
}

func recordStateChange(from, to models.CaptureState) {
	captureMetricsOnce.Do(initCaptureMetrics)

	if from == models.CaptureRunning {
		captureMetricsData.running.Add(-1)
	}

	if to == models.CaptureRunning {
		captureMetricsData.running.Add(1)
	}

	if isDegraded(from) && !isDegraded(to) {
		captureMetricsData.degraded.Add(-1)
	}

	if !isDegraded(from) && isDegraded(to) {
		captureMetricsData.degraded.Add(1)
	}
}
