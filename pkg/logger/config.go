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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var errInvalidDuration = errors.New("invalid duration")

// Duration is a time.Duration that reads either "5s" or nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	return d.set(v)
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Tag == "!!int" {
		n, err := strconv.ParseInt(node.Value, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %w", errInvalidDuration, err)
		}

		*d = Duration(n)

		return nil
	}

	return d.set(node.Value)
}

func (d *Duration) set(v interface{}) error {
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))

		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %w", errInvalidDuration, err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

// DefaultConfig reads the logging setup from LOG_* and OTEL_* variables.
func DefaultConfig() *Config {
	return &Config{
		Level:      envString("LOG_LEVEL", "info"),
		Debug:      envBool("DEBUG", false),
		Output:     envString("LOG_OUTPUT", "stdout"),
		TimeFormat: envString("LOG_TIME_FORMAT", ""),
		OTel:       DefaultOTelConfig(),
	}
}

// DefaultOTelConfig follows the standard OTEL_EXPORTER_OTLP_* variables. The
// signal-specific logs endpoint wins over the shared one.
func DefaultOTelConfig() OTelConfig {
	endpoint := envString("OTEL_EXPORTER_OTLP_LOGS_ENDPOINT", os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))

	headers := parsePairs(envString("OTEL_EXPORTER_OTLP_LOGS_HEADERS", os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")))

	return OTelConfig{
		Enabled:            envBool("OTEL_LOGS_ENABLED", false),
		Metrics:            envBool("OTEL_METRICS_ENABLED", false),
		Endpoint:           endpoint,
		Headers:            headers,
		ServiceName:        envString("OTEL_SERVICE_NAME", defaultServiceName),
		ResourceAttributes: parsePairs(os.Getenv("OTEL_RESOURCE_ATTRIBUTES")),
		BatchTimeout:       Duration(envDuration("OTEL_EXPORTER_OTLP_LOGS_TIMEOUT", defaultBatchTimeout)),
		ExportInterval:     Duration(envDuration("OTEL_METRIC_EXPORT_INTERVAL", defaultExportInterval)),
		Insecure:           envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
	}
}

// parsePairs reads "k1=v1,k2=v2". Malformed pairs are skipped.
func parsePairs(s string) map[string]string {
	out := make(map[string]string)

	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			continue
		}

		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	return out
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return fallback
}

func envBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

// envDuration accepts Go durations ("10s") or plain milliseconds, the unit
// the OTel variables are specified in.
func envDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}

	if d, err := time.ParseDuration(value); err == nil {
		return d
	}

	return fallback
}
