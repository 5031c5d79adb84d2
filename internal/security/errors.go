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

import "errors"

// ErrorCode identifies which security rule rejected an input.
type ErrorCode string

const (
	// CodeInvalidInputType is kept for log compatibility with clients that may
	// submit non-string payloads at the transport layer.
	CodeInvalidInputType ErrorCode = "INVALID_INPUT_TYPE"
	// CodeInputTooLong indicates the input exceeded the maximum allowed length
	CodeInputTooLong ErrorCode = "INPUT_TOO_LONG"
	// CodeSuspiciousPattern indicates a prompt-injection pattern matched
	CodeSuspiciousPattern ErrorCode = "SUSPICIOUS_PATTERN_DETECTED"
	// CodeDangerousCommand indicates a privileged command word matched
	CodeDangerousCommand ErrorCode = "DANGEROUS_COMMAND_DETECTED"
	// CodeRateLimitExceeded indicates too many requests in the sliding window
	CodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	// CodeUserBanned indicates the user is temporarily locked out
	CodeUserBanned ErrorCode = "USER_BANNED"
)

// userMessages maps error codes to the user-facing reason strings.
var userMessages = map[ErrorCode]string{
	CodeInvalidInputType:  "Type d'entrée invalide",
	CodeInputTooLong:      "Message trop long",
	CodeSuspiciousPattern: "Motif suspect détecté",
	CodeDangerousCommand:  "Commande dangereuse détectée",
	CodeRateLimitExceeded: "Trop de messages envoyés",
	CodeUserBanned:        "Accès temporairement bloqué",
}

// SecurityError is the typed failure raised by every gate check. It is never
// silently swallowed: callers surface it distinctly from generic failures.
type SecurityError struct {
	Code ErrorCode
}

// NewSecurityError creates a SecurityError for the given code.
func NewSecurityError(code ErrorCode) *SecurityError {
	return &SecurityError{Code: code}
}

// Error implements the error interface with the user-facing reason.
func (e *SecurityError) Error() string {
	if msg, ok := userMessages[e.Code]; ok {
		return msg
	}
	return "Erreur de sécurité inconnue"
}

// IsSecurityError reports whether err is (or wraps) a SecurityError and, if so,
// assigns it to target.
func IsSecurityError(err error, target **SecurityError) bool {
	return errors.As(err, target)
}
