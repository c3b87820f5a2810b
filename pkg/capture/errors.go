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

import "errors"

var (
	ErrDeviceOpenFailed = errors.New("capture device open failed")
	ErrReadFailed       = errors.New("capture read failed")
	ErrDeviceStuck      = errors.New("capture device stuck")
	ErrWorkerStarted    = errors.New("capture worker already started")
	ErrUnknownDevice    = errors.New("unknown capture device")
	ErrDuplicateDevice  = errors.New("capture device already added")
	errInvalidFrame     = errors.New("frame data does not match its dimensions")
)
