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

// Package security implements the input gate for the portfolio assistant:
// validation and sanitization of user text, a sliding-window rate limiter and
// durable attempt logging with automatic banning on repeated failures.
//
// The gate operates on a client-assigned user identifier with no server-side
// enforcement; rate limiting and banning are advisory by design.
package security

import "go.uber.org/zap"

// Manager ties the validator, rate limiter and attempt logger into the single
// entry point the chat pipeline calls for every turn.
type Manager struct {
	validator   *Validator
	rateLimiter *RateLimiter
	attemptLog  *Logger
	logger      *zap.Logger
}

// NewManager creates a security manager from explicitly constructed parts.
func NewManager(validator *Validator, rateLimiter *RateLimiter, attemptLog *Logger, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		validator:   validator,
		rateLimiter: rateLimiter,
		attemptLog:  attemptLog,
		logger:      logger,
	}
}

// ProcessInput runs the full gate for one turn: ban check, rate check,
// validation, then attempt logging. It returns the sanitized input on success.
// Every failure is logged before being returned; a ban raised at log time
// supersedes the original failure.
func (m *Manager) ProcessInput(input, userID string) (string, error) {
	banned, err := m.attemptLog.IsBanned(userID)
	if err != nil {
		m.logger.Error("Ban lookup failed", zap.Error(err), zap.String("user_id", userID))
	}
	if banned {
		return "", NewSecurityError(CodeUserBanned)
	}

	if err := m.rateLimiter.CheckLimit(userID); err != nil {
		if banErr := m.attemptLog.LogAttempt(userID, input, StatusFailed, err); banErr != nil {
			return "", banErr
		}
		return "", err
	}

	validated, err := m.validator.Validate(input)
	if err != nil {
		if banErr := m.attemptLog.LogAttempt(userID, input, StatusFailed, err); banErr != nil {
			return "", banErr
		}
		return "", err
	}

	if err := m.attemptLog.LogAttempt(userID, input, StatusSuccess, nil); err != nil {
		return "", err
	}

	return validated, nil
}
