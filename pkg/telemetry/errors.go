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
	"errors"
	"fmt"
)

var (
	ErrMalformedTelemetry  = errors.New("malformed telemetry frame")
	ErrUnknownMessageType  = errors.New("unknown telemetry message type")
	ErrFrameTooLarge       = fmt.Errorf("%w: frame too large", ErrMalformedTelemetry)
	ErrRadioUnavailable    = errors.New("telemetry radio unavailable")
	ErrInvalidBatteryScale = errors.New("battery scale needs min voltage below max voltage")
)

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrMalformedTelemetry, fmt.Sprintf(format, args...))
}

func malformedSize(size, limit int) error {
	return fmt.Errorf("%w: %d bytes, limit %d", ErrFrameTooLarge, size, limit)
}

func unknownKind(tag string) error {
	return fmt.Errorf("%w: %q", ErrUnknownMessageType, tag)
}
