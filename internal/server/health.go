// Copyright 2026 The WorldMirror Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrHealthTimeout is returned when the backend never reports healthy
// within the attempt budget.
var ErrHealthTimeout = errors.New("health check timeout")

const (
	// healthBaseDelay is the delay before the second attempt; it doubles
	// per attempt up to healthMaxShift.
	healthBaseDelay = 200 * time.Millisecond

	// healthMaxShift caps the backoff exponent, so delays plateau at
	// 200ms << 4 = 3.2s.
	healthMaxShift = 4
)

// healthResponse is the expected body of the backend's /health endpoint.
// Any other shape is treated as not ready.
type healthResponse struct {
	OK bool `json:"ok"`
}

// HealthChecker polls the backend's health endpoint with capped
// exponential backoff until it reports ready or attempts run out.
type HealthChecker struct {
	host   string
	client *http.Client

	// sleep is replaceable so tests can observe the backoff schedule
	// without waiting it out.
	sleep func(time.Duration)
}

// NewHealthChecker creates a health checker for a backend on the given host.
func NewHealthChecker(host string) *HealthChecker {
	return &HealthChecker{
		host: host,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		sleep: time.Sleep,
	}
}

// WithHTTPClient sets a custom HTTP client.
func (h *HealthChecker) WithHTTPClient(client *http.Client) *HealthChecker {
	h.client = client
	return h
}

// WithSleep replaces the delay function. Used in tests.
func (h *HealthChecker) WithSleep(sleep func(time.Duration)) *HealthChecker {
	h.sleep = sleep
	return h
}

// Check performs a single health probe against the given port.
// It returns true only for a 2xx response whose body decodes to
// {"ok": true}. Network failures, bad status codes, and undecodable
// bodies all mean "not ready yet", never an error.
func (h *HealthChecker) Check(ctx context.Context, port int) bool {
	url := fmt.Sprintf("http://%s:%d/health", h.host, port)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false
	}

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false
	}

	return health.OK
}

// WaitUntilHealthy polls until the backend reports ready or maxAttempts
// attempts are exhausted. Delays between attempts follow
// 200ms, 400ms, 800ms, 1600ms, 3200ms, 3200ms, ... with no delay after
// the final attempt. Returns ErrHealthTimeout on exhaustion and the
// context error if ctx is canceled mid-wait.
func (h *HealthChecker) WaitUntilHealthy(ctx context.Context, port, maxAttempts int) error {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if h.Check(ctx, port) {
			return nil
		}

		if attempt < maxAttempts-1 {
			h.sleep(backoffDelay(attempt))
		}
	}

	return fmt.Errorf("%w: server did not become healthy after %d attempts", ErrHealthTimeout, maxAttempts)
}

// backoffDelay returns the delay following the given zero-based attempt.
func backoffDelay(attempt int) time.Duration {
	shift := attempt
	if shift > healthMaxShift {
		shift = healthMaxShift
	}
	return healthBaseDelay << uint(shift)
}
