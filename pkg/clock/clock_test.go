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

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFake_AdvanceFiresTicker(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewFake(start)
	tk := c.Ticker(5 * time.Second)

	c.Advance(4 * time.Second)
	select {
	case <-tk.Chan():
		t.Fatal("ticker fired early")
	default:
	}

	c.Advance(time.Second)
	select {
	case at := <-tk.Chan():
		assert.Equal(t, start.Add(5*time.Second), at)
	default:
		t.Fatal("ticker did not fire")
	}

	tk.Stop()
	c.Advance(time.Minute)
	select {
	case <-tk.Chan():
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestReal(t *testing.T) {
	t.Parallel()

	c := Real()
	before := time.Now()
	require.False(t, c.Now().Before(before))

	tk := c.Ticker(time.Millisecond)
	defer tk.Stop()

	select {
	case <-tk.Chan():
	case <-time.After(time.Second):
		t.Fatal("real ticker never fired")
	}
}
