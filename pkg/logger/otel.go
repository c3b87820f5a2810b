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

package logger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

var (
	ErrOTelLoggingDisabled  = errors.New("OTel logging is disabled")
	ErrOTelEndpointRequired = errors.New("OTel endpoint is required when enabled")
)

const (
	maxAttributeValueLength = 4096
	defaultLoggerScope      = "camradar"
	defaultBatchTimeout     = 5 * time.Second
	shutdownTimeout         = 10 * time.Second
)

// OTelConfig selects what the station exports to an OTLP collector. Logs and
// metrics share the endpoint and credentials.
type OTelConfig struct {
	Enabled            bool              `json:"enabled" yaml:"enabled"`
	Metrics            bool              `json:"metrics" yaml:"metrics"`
	Endpoint           string            `json:"endpoint" yaml:"endpoint"`
	Headers            map[string]string `json:"headers" yaml:"headers"`
	ServiceName        string            `json:"service_name" yaml:"service_name"`
	ResourceAttributes map[string]string `json:"resource_attributes,omitempty" yaml:"resource_attributes,omitempty"`
	BatchTimeout       Duration          `json:"batch_timeout" yaml:"batch_timeout"`
	ExportInterval     Duration          `json:"export_interval" yaml:"export_interval"`
	Insecure           bool              `json:"insecure" yaml:"insecure"`
	TLS                *TLSConfig        `json:"tls,omitempty" yaml:"tls,omitempty"`
}

type TLSConfig struct {
	CertFile string `json:"cert_file" yaml:"cert_file"`
	KeyFile  string `json:"key_file" yaml:"key_file"`
	CAFile   string `json:"ca_file,omitempty" yaml:"ca_file,omitempty"`
}

// logProvider is kept for Shutdown.
//
//nolint:gochecknoglobals // needed for proper OTel shutdown handling
var (
	logProvider   *sdklog.LoggerProvider
	logProviderMu sync.Mutex
)

// OTelWriter is a zerolog output that re-emits each JSON line as an OTel log
// record. The "component" field selects the instrumentation scope so capture,
// telemetry and recording logs arrive as separate scopes.
type OTelWriter struct {
	ctx      context.Context
	provider *sdklog.LoggerProvider

	mu     sync.Mutex
	scopes map[string]otellog.Logger
}

func NewOTELWriter(ctx context.Context, config OTelConfig) (*OTelWriter, error) {
	if !config.Enabled {
		return nil, ErrOTelLoggingDisabled
	}

	if config.Endpoint == "" {
		return nil, ErrOTelEndpointRequired
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(config.Endpoint)}

	creds, err := transportCredentials(&config)
	if err != nil {
		return nil, fmt.Errorf("failed to setup TLS configuration: %w", err)
	}

	switch {
	case config.Insecure:
		opts = append(opts, otlploggrpc.WithInsecure())
	case creds != nil:
		opts = append(opts, otlploggrpc.WithTLSCredentials(creds))
	}

	if len(config.Headers) > 0 {
		opts = append(opts, otlploggrpc.WithHeaders(config.Headers))
	}

	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP log exporter: %w", err)
	}

	res, err := stationResource(ctx, &config, "")
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(config.BatchTimeout)
	if timeout <= 0 {
		timeout = defaultBatchTimeout
	}

	provider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter, sdklog.WithExportTimeout(timeout))),
	)

	logProviderMu.Lock()
	logProvider = provider
	logProviderMu.Unlock()

	global.SetLoggerProvider(provider)

	return &OTelWriter{
		ctx:      ctx,
		provider: provider,
		scopes:   make(map[string]otellog.Logger),
	}, nil
}

// Write never fails: a line that is not JSON is dropped rather than
// blocking the local log output.
func (w *OTelWriter) Write(p []byte) (int, error) {
	if w.provider == nil {
		return len(p), nil
	}

	fields := make(map[string]interface{})
	if err := json.Unmarshal(p, &fields); err != nil {
		return len(p), nil
	}

	record, scope := buildRecord(fields)

	w.scope(scope).Emit(w.ctx, record)

	return len(p), nil
}

func (w *OTelWriter) scope(name string) otellog.Logger {
	w.mu.Lock()
	defer w.mu.Unlock()

	l, ok := w.scopes[name]
	if !ok {
		l = w.provider.Logger(name)
		w.scopes[name] = l
	}

	return l
}

// buildRecord consumes the well-known zerolog fields and turns the rest into
// typed attributes.
func buildRecord(fields map[string]interface{}) (otellog.Record, string) {
	var record otellog.Record

	if ts, ok := fields["time"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			record.SetTimestamp(parsed)
			delete(fields, "time")
		}
	}

	if level, ok := fields["level"].(string); ok {
		record.SetSeverity(mapZerologLevelToOTEL(level))
		record.SetSeverityText(level)
		delete(fields, "level")
	}

	if msg, ok := fields["message"].(string); ok {
		record.SetBody(otellog.StringValue(msg))
		delete(fields, "message")
	}

	scope := defaultLoggerScope
	if component, ok := fields["component"].(string); ok && component != "" {
		scope = component

		delete(fields, "component")
	}

	for key, value := range fields {
		record.AddAttributes(otellog.KeyValue{Key: key, Value: attributeValue(value)})
	}

	return record, scope
}

// attributeValue keeps numbers and booleans typed so the collector can
// aggregate fields like battery_percent and frame_count.
func attributeValue(value interface{}) otellog.Value {
	switch v := value.(type) {
	case nil:
		return otellog.StringValue("null")
	case string:
		return otellog.StringValue(truncateString(v, maxAttributeValueLength))
	case bool:
		return otellog.BoolValue(v)
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return otellog.Int64Value(int64(v))
		}

		return otellog.Float64Value(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return otellog.StringValue(truncateString(fmt.Sprint(v), maxAttributeValueLength))
		}

		return otellog.StringValue(truncateString(string(b), maxAttributeValueLength))
	}
}

func truncateString(value string, limit int) string {
	if len(value) <= limit {
		return value
	}

	truncated := value[:limit-3]
	for !utf8.ValidString(truncated) && truncated != "" {
		truncated = truncated[:len(truncated)-1]
	}

	return truncated + "..."
}

func mapZerologLevelToOTEL(level string) otellog.Severity {
	switch strings.ToLower(level) {
	case "trace":
		return otellog.SeverityTrace
	case "debug":
		return otellog.SeverityDebug
	case "warn", "warning":
		return otellog.SeverityWarn
	case "error":
		return otellog.SeverityError
	case "fatal", "panic":
		return otellog.SeverityFatal
	default:
		return otellog.SeverityInfo
	}
}

// ShutdownOTEL flushes and stops the log and metric providers.
func ShutdownOTEL() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logProviderMu.Lock()
	provider := logProvider
	logProvider = nil
	logProviderMu.Unlock()

	var errs []error

	if provider != nil {
		if err := provider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("log provider: %w", err))
		}
	}

	if err := shutdownMeterProvider(ctx); err != nil {
		errs = append(errs, fmt.Errorf("meter provider: %w", err))
	}

	return errors.Join(errs...)
}
