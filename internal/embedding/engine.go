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

// Package embedding ranks extracted content against a query by semantic
// similarity. Embeddings are memoized per process; per-candidate failures are
// isolated so one bad candidate never aborts a ranking call.
package embedding

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/your-org/portfolio-assistant/internal/huggingface"
	"github.com/your-org/portfolio-assistant/internal/prompt"
)

const (
	// SimilarityThreshold excludes candidates below this similarity before
	// top-K selection. A separately configured threshold exists at the config
	// level for the RAG policy; the two are deliberately distinct.
	SimilarityThreshold = 0.65
	// MaxResults is the top-K cap on ranked results
	MaxResults = 3
	// cacheKeyPrefixLen is how much leading text the cache fingerprint keeps
	cacheKeyPrefixLen = 100
)

// sectionWeights is the engine-local relevance multiplier table. A second,
// differently tuned table lives in static configuration for its own consumer.
var sectionWeights = map[string]float64{
	"skills":   1.2,
	"projects": 1.1,
	"about":    1.0,
	"contact":  0.9,
}

// Embedder obtains the numeric representation of a text.
type Embedder interface {
	Embed(ctx context.Context, text string) (huggingface.Embedding, error)
}

// Candidate is one retrievable content item offered for ranking.
type Candidate struct {
	Content string
	Kind    string
	Section string
}

// ScoredCandidate augments a candidate with its similarity and weighted
// score. It exists only transiently during ranking.
type ScoredCandidate struct {
	Candidate
	Similarity float64
	Score      float64
}

// Service is the relevance engine: it embeds query and candidates, scores
// them by weighted cosine similarity and returns a ranked top-K.
type Service struct {
	embedder Embedder
	logger   *zap.Logger

	mu    sync.Mutex
	cache map[string]huggingface.Embedding
}

// NewService creates a relevance engine over the given embedder.
func NewService(embedder Embedder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		embedder: embedder,
		logger:   logger,
		cache:    make(map[string]huggingface.Embedding),
	}
}

// Embed returns the embedding for text, memoizing results for the process
// lifetime. Blank text is rejected as an error.
func (s *Service) Embed(ctx context.Context, text string) (huggingface.Embedding, error) {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return huggingface.Embedding{}, huggingface.ErrEmptyText
	}

	key := cacheKey(clean)

	s.mu.Lock()
	if cached, ok := s.cache[key]; ok {
		s.mu.Unlock()
		s.logger.Debug("Embedding cache hit", zap.String("text_preview", preview(clean)))
		return cached, nil
	}
	s.mu.Unlock()

	embedding, err := s.embedder.Embed(ctx, clean)
	if err != nil {
		return huggingface.Embedding{}, fmt.Errorf("failed to embed text: %w", err)
	}

	s.mu.Lock()
	s.cache[key] = embedding
	s.mu.Unlock()

	return embedding, nil
}

// ResetCache drops every memoized embedding.
func (s *Service) ResetCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[string]huggingface.Embedding)
}

// FindRelevant ranks candidates against the query and returns at most
// MaxResults entries sorted by descending score, all at or above the
// similarity threshold. A total retrieval failure (including a failed query
// embedding) returns an empty result rather than an error, so the caller can
// degrade gracefully. Ties keep input order.
func (s *Service) FindRelevant(ctx context.Context, query string, candidates []Candidate) []ScoredCandidate {
	cleanQuery := strings.TrimSpace(query)
	if cleanQuery == "" || len(candidates) == 0 {
		return nil
	}

	queryEmbedding, err := s.Embed(ctx, cleanQuery)
	if err != nil {
		s.logger.Warn("Query embedding failed, returning no results", zap.Error(err))
		return nil
	}

	scored := make([]ScoredCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.Content == "" {
			continue
		}

		embeddingPrompt := prompt.EmbeddingPrompt(candidate.Content, candidate.Section)
		candidateEmbedding, err := s.Embed(ctx, embeddingPrompt)
		if err != nil {
			s.logger.Warn("Candidate embedding failed, dropping candidate",
				zap.String("section", candidate.Section),
				zap.Error(err),
			)
			continue
		}

		similarity := CosineSimilarity(queryEmbedding, candidateEmbedding)
		if similarity < SimilarityThreshold {
			continue
		}

		scored = append(scored, ScoredCandidate{
			Candidate:  candidate,
			Similarity: similarity,
			Score:      similarity * SectionWeight(candidate.Section),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > MaxResults {
		scored = scored[:MaxResults]
	}
	return scored
}

// SectionWeight returns the engine-local relevance multiplier for a section,
// 1.0 for unrecognized sections.
func SectionWeight(section string) float64 {
	if weight, ok := sectionWeights[section]; ok {
		return weight
	}
	return 1.0
}

// CosineSimilarity computes the similarity between two embeddings. When either
// side is in scalar mode the only available signal is the scalars themselves,
// so the result is the max of the two (defined behavior, not a bug). Vector
// pairs use standard cosine similarity; a zero-norm vector yields 0.
func CosineSimilarity(a, b huggingface.Embedding) float64 {
	if a.IsScalar() || b.IsScalar() {
		return math.Max(scalarOrZero(a), scalarOrZero(b))
	}

	if a.Vector == nil || b.Vector == nil || len(a.Vector) != len(b.Vector) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a.Vector {
		dot += a.Vector[i] * b.Vector[i]
		normA += a.Vector[i] * a.Vector[i]
		normB += b.Vector[i] * b.Vector[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func scalarOrZero(e huggingface.Embedding) float64 {
	if e.Scalar != nil {
		return *e.Scalar
	}
	return 0
}

// cacheKey fingerprints a text by its leading characters plus total length to
// avoid redundant remote calls for repeated or near-repeated text.
func cacheKey(text string) string {
	runes := []rune(text)
	if len(runes) > cacheKeyPrefixLen {
		runes = runes[:cacheKeyPrefixLen]
	}
	return fmt.Sprintf("%s_%d", string(runes), len(text))
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= 50 {
		return text
	}
	return string(runes[:50]) + "..."
}
