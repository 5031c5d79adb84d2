// Copyright 2024 Portfolio Assistant Project
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

package security

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMaxRequests is the maximum number of requests per window
	DefaultMaxRequests = 10
	// DefaultWindow is the sliding window duration
	DefaultWindow = time.Minute
)

// RateLimiter enforces a sliding-window request limit per user. The limiter is
// advisory: two interleaved turns for the same user can both pass the check
// before either timestamp is recorded.
type RateLimiter struct {
	mu          sync.Mutex
	requests    map[string][]time.Time
	maxRequests int
	window      time.Duration
	logger      *zap.Logger
	stop        chan struct{}
	stopOnce    sync.Once
	now         func() time.Time
}

// NewRateLimiter creates a rate limiter with the default window and starts the
// periodic map-wide sweep that bounds memory for idle users.
func NewRateLimiter(logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}

	rl := &RateLimiter{
		requests:    make(map[string][]time.Time),
		maxRequests: DefaultMaxRequests,
		window:      DefaultWindow,
		logger:      logger,
		stop:        make(chan struct{}),
		now:         time.Now,
	}

	go rl.sweepLoop()

	return rl
}

// CheckLimit records a request for userID and returns a rate-limit failure if
// the user exceeded the window budget. Stale entries are pruned lazily.
func (rl *RateLimiter) CheckLimit(userID string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	recent := pruneOld(rl.requests[userID], now, rl.window)

	if len(recent) >= rl.maxRequests {
		rl.requests[userID] = recent
		rl.logger.Warn("Rate limit exceeded",
			zap.String("user_id", userID),
			zap.Int("requests_in_window", len(recent)),
		)
		return NewSecurityError(CodeRateLimitExceeded)
	}

	rl.requests[userID] = append(recent, now)
	return nil
}

// Stop terminates the background sweep.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// sweepLoop prunes stale entries for every user once per window.
func (rl *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for userID, times := range rl.requests {
		valid := pruneOld(times, now, rl.window)
		if len(valid) == 0 {
			delete(rl.requests, userID)
		} else {
			rl.requests[userID] = valid
		}
	}
}

func pruneOld(times []time.Time, now time.Time, window time.Duration) []time.Time {
	valid := times[:0:len(times)]
	for _, t := range times {
		if now.Sub(t) < window {
			valid = append(valid, t)
		}
	}
	return valid
}
