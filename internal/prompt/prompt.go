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

// Package prompt builds the model-facing prompts and normalizes model output.
// Prompts carry section metadata so embeddings and generations stay biased
// toward the portfolio domain; output normalization detects prompt-leakage
// artifacts so the caller can retry against the fallback model.
package prompt

import "fmt"

// sectionContexts describe each page region for embedding-context prompts.
var sectionContexts = map[string]string{
	"about":    "Section de présentation personnelle et professionnelle",
	"skills":   "Section technique détaillant les compétences et expertises",
	"projects": "Section présentant les réalisations et projets significatifs",
	"contact":  "Section pour les informations de contact et réseaux",
}

// sectionInstructions give per-section tone and format guidance for the
// answer-generation prompt.
var sectionInstructions = map[string]string{
	"about":    "- Adoptez un ton professionnel mais personnel\n- Mettez en avant le parcours et les motivations",
	"skills":   "- Utilisez un vocabulaire technique précis\n- Quantifiez les compétences quand possible",
	"projects": "- Décrivez les projets de manière structurée\n- Soulignez les technologies utilisées",
	"contact":  "- Restez formel et direct\n- Précisez les moyens de contact disponibles",
}

const genericInstructions = "- Adaptez le ton au contexte\n- Restez professionnel et précis"

// sectionIntros open the retrieved context handed to the generation model.
var sectionIntros = map[string]string{
	"about":    "À propos de moi:",
	"skills":   "Mes compétences techniques:",
	"projects": "Concernant mes projets:",
	"contact":  "Informations de contact:",
}

// EmbeddingPrompt wraps raw text with section metadata to bias the embedding
// toward domain-relevant features.
func EmbeddingPrompt(text, section string) string {
	return fmt.Sprintf(`
### Texte Original ###
%s

### Contexte de Section ###
Section: %s

### Objectif ###
Extraction des concepts clés et du contexte sémantique pour une recherche pertinente.

### Points d'Attention ###
- Mots-clés essentiels
- Relations sémantiques
- Contexte professionnel
- Spécificités techniques si présentes`, text, section)
}

// ResponsePrompt combines retrieved context, the question and the section's
// instruction text into the generation prompt.
func ResponsePrompt(question, context, section string) string {
	return fmt.Sprintf(`Contexte: %s

Question: %s

Instructions: %s

Répondez de manière claire et concise en français.`, context, question, responseInstructions(section))
}

// SectionContext returns the descriptive context for a section, with a
// generic fallback for unrecognized sections.
func SectionContext(section string) string {
	if ctx, ok := sectionContexts[section]; ok {
		return ctx
	}
	return "Section générale du portfolio"
}

// SectionIntro returns the introductory phrase prepended to retrieved context.
func SectionIntro(section string) string {
	return sectionIntros[section]
}

func responseInstructions(section string) string {
	if instructions, ok := sectionInstructions[section]; ok {
		return instructions
	}
	return genericInstructions
}
