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
	"regexp"
	"strings"
)

const (
	// MaxInputLength is the maximum accepted length for user input
	MaxInputLength = 500
)

// suspiciousPatterns covers instruction-override phrasing, role-escalation
// phrasing, template-injection characters and privileged command words.
var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore previous instructions`),
	regexp.MustCompile(`(?i)forget (your|all) (instructions|training)`),
	regexp.MustCompile(`(?i)new system prompt`),
	regexp.MustCompile(`(?i)you (are|will be|should be) now`),
	regexp.MustCompile(`[{}$\[\]<>]`),
	regexp.MustCompile(`(?i)(sudo|admin|root|system|prompt|override)`),
	regexp.MustCompile(`(?i)instructions?:|prompt:`),
	regexp.MustCompile(`(?i)you must now`),
	regexp.MustCompile(`(?i)disregard|bypass|hack`),
}

// dangerousCommands are rejected as exact words, case-insensitively.
var dangerousCommands = map[string]struct{}{
	"reset":      {},
	"override":   {},
	"sudo":       {},
	"admin":      {},
	"system":     {},
	"prompt":     {},
	"initialize": {},
	"configure":  {},
}

var (
	sanitizeBrackets   = regexp.MustCompile(`[<>{}\[\]]`)
	sanitizeBackslash  = regexp.MustCompile(`\\`)
	whitespaceSplitter = regexp.MustCompile(`\s+`)
)

// Validator performs pattern, length and command checks on user input before
// it reaches the model pipeline, then sanitizes the surviving text.
type Validator struct{}

// NewValidator creates a new input validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks the input against all security rules and returns the
// sanitized text. Any detection returns a typed SecurityError identifying the
// rule that fired.
func (v *Validator) Validate(input string) (string, error) {
	if len(input) > MaxInputLength {
		return "", NewSecurityError(CodeInputTooLong)
	}

	if v.containsSuspiciousPattern(input) {
		return "", NewSecurityError(CodeSuspiciousPattern)
	}

	if v.containsDangerousCommand(input) {
		return "", NewSecurityError(CodeDangerousCommand)
	}

	return sanitize(input), nil
}

func (v *Validator) containsSuspiciousPattern(input string) bool {
	for _, pattern := range suspiciousPatterns {
		if pattern.MatchString(input) {
			return true
		}
	}
	return false
}

func (v *Validator) containsDangerousCommand(input string) bool {
	words := whitespaceSplitter.Split(strings.ToLower(input), -1)
	for _, word := range words {
		if _, ok := dangerousCommands[word]; ok {
			return true
		}
	}
	return false
}

// sanitize strips angle, brace and bracket characters plus backslashes.
func sanitize(input string) string {
	cleaned := sanitizeBrackets.ReplaceAllString(input, "")
	cleaned = sanitizeBackslash.ReplaceAllString(cleaned, "")
	return strings.TrimSpace(cleaned)
}
