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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmbeddingPromptCarriesTextAndSection(t *testing.T) {
	p := EmbeddingPrompt("Go et développement backend", "skills")

	assert.Contains(t, p, "### Texte Original ###")
	assert.Contains(t, p, "Go et développement backend")
	assert.Contains(t, p, "Section: skills")
	assert.Contains(t, p, "### Objectif ###")
}

func TestResponsePromptUsesSectionInstructions(t *testing.T) {
	p := ResponsePrompt("Quelles compétences ?", "Mes compétences techniques: Go", "skills")

	assert.Contains(t, p, "Contexte: Mes compétences techniques: Go")
	assert.Contains(t, p, "Question: Quelles compétences ?")
	assert.Contains(t, p, "vocabulaire technique")
	assert.Contains(t, p, "Répondez de manière claire et concise en français.")
}

func TestResponsePromptFallsBackToGenericInstructions(t *testing.T) {
	p := ResponsePrompt("question", "contexte", "general")

	assert.Contains(t, p, "Adaptez le ton au contexte")
}

func TestSectionContextFallback(t *testing.T) {
	assert.Equal(t, "Section de présentation personnelle et professionnelle", SectionContext("about"))
	assert.Equal(t, "Section générale du portfolio", SectionContext("general"))
}

func TestSectionIntro(t *testing.T) {
	assert.Equal(t, "Mes compétences techniques:", SectionIntro("skills"))
	assert.Empty(t, SectionIntro("general"))
}
