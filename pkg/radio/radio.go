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

//go:generate mockgen -destination=mock_radio.go -package=radio github.com/carverauto/camradar/pkg/radio Radio,SignalReporter

// Package radio defines the low-bandwidth packet radio used for remote-unit telemetry.
package radio

import (
	"errors"
	"fmt"
)

const (
	// MaxPayloadSize is the largest payload a single radio packet carries.
	MaxPayloadSize = 32

	DefaultChannel = 76
	DefaultAddress = "HLMT1"

	maxChannel = 125
)

var (
	ErrPayloadTooLarge = errors.New("payload exceeds radio packet size")
	ErrNotOpen         = errors.New("radio is not open")
	ErrInvalidChannel  = errors.New("radio channel out of range")
	ErrInvalidAddress  = errors.New("radio address must be 1-5 bytes")
)

// Radio is a half-duplex packet radio. Poll never blocks.
type Radio interface {
	Open(channel int, address string) error
	Poll() ([]byte, bool)
	Transmit(payload []byte) error
	Close() error
}

// SignalReporter is implemented by radios that know the RSSI of the last packet.
type SignalReporter interface {
	RSSI() (int, bool)
}

// ValidateEndpoint checks a channel/address pair the way the hardware would.
func ValidateEndpoint(channel int, address string) error {
	if channel < 0 || channel > maxChannel {
		return fmt.Errorf("%w: %d", ErrInvalidChannel, channel)
	}

	if address == "" || len(address) > 5 {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	return nil
}

// CheckPayload rejects payloads larger than limit; limit <= 0 means MaxPayloadSize.
func CheckPayload(payload []byte, limit int) error {
	if limit <= 0 {
		limit = MaxPayloadSize
	}

	if len(payload) > limit {
		return fmt.Errorf("%w: %d > %d bytes", ErrPayloadTooLarge, len(payload), limit)
	}

	return nil
}
