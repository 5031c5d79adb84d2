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

package prompt

import (
	"encoding/json"
	"strings"
)

// Apology is returned when no recognizable shape could be decoded from a
// generation response.
const Apology = "Je suis désolé, je n'ai pas pu générer une réponse appropriée."

// MinResponseLength is the shortest generation accepted as a real answer.
const MinResponseLength = 10

// leakageMarkers are literal instructional headers whose presence in a
// generation means the model parroted the prompt instead of answering.
var leakageMarkers = []string{
	"Instructions",
	"Répondez",
	"Utilisez",
	"###",
	"Contexte",
	"Question",
	"Format de Réponse",
	"Contraintes",
}

// generation mirrors one element of the primary model's array response shape.
type generation struct {
	GeneratedText string `json:"generated_text"`
}

// NormalizeGeneration decodes the heterogeneous generation response shapes
// (array of generations, object with a generated-text field, bare string)
// into plain text. Unrecognizable shapes yield the fixed apology string.
func NormalizeGeneration(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return Apology
	}

	switch trimmed[0] {
	case '[':
		var generations []generation
		if err := json.Unmarshal(raw, &generations); err == nil && len(generations) > 0 && generations[0].GeneratedText != "" {
			return generations[0].GeneratedText
		}
		// Array of bare strings is also seen in the wild.
		var texts []string
		if err := json.Unmarshal(raw, &texts); err == nil && len(texts) > 0 {
			return texts[0]
		}
	case '{':
		var single generation
		if err := json.Unmarshal(raw, &single); err == nil && single.GeneratedText != "" {
			return single.GeneratedText
		}
	case '"':
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			return text
		}
	}

	return Apology
}

// IsInvalidResponse reports whether a generation is unusable: empty, shorter
// than the minimum length, or echoing a prompt-leakage marker.
func IsInvalidResponse(response string) bool {
	if response == "" || len(response) < MinResponseLength {
		return true
	}
	for _, marker := range leakageMarkers {
		if strings.Contains(response, marker) {
			return true
		}
	}
	return false
}
