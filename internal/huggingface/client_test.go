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

package huggingface

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(Config{
		BaseURL:        server.URL,
		APIKey:         "test-key",
		EmbeddingModel: "embed-model",
		PrimaryModel:   "primary-model",
		FallbackModel:  "fallback-model",
		HTTPClient:     server.Client(),
	}, zap.NewNop())
}

func TestEmbedScalarResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed-model", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "texte source", req.Inputs.SourceSentence)
		assert.Equal(t, []string{"texte source"}, req.Inputs.Sentences)

		_, _ = w.Write([]byte(`[0.87, 0.12]`))
	})

	embedding, err := client.Embed(context.Background(), "texte source")
	require.NoError(t, err)
	require.True(t, embedding.IsScalar())
	assert.Equal(t, 0.87, *embedding.Scalar)
}

func TestEmbedVectorResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"model": "x", "embeddings": [0.1, 0.2, 0.3]}`))
	})

	embedding, err := client.Embed(context.Background(), "texte")
	require.NoError(t, err)
	require.False(t, embedding.IsScalar())
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, embedding.Vector)
}

func TestEmbedTakesFirstArrayFieldInDocumentOrder(t *testing.T) {
	// "meta" precedes "vector" but is not an array of numbers.
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"meta": {"k": 1}, "vector": [0.5, 0.6], "other": [9]}`))
	})

	embedding, err := client.Embed(context.Background(), "texte")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.6}, embedding.Vector)
}

func TestEmbedUnrecognizedFormat(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"message": "warming up"}`))
	})

	_, err := client.Embed(context.Background(), "texte")
	assert.ErrorIs(t, err, ErrEmbeddingFormat)
}

func TestEmbedEmptyText(t *testing.T) {
	client := newTestClient(t, func(_ http.ResponseWriter, _ *http.Request) {
		t.Fatal("no request expected for empty text")
	})

	_, err := client.Embed(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestEmbedAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": "model overloaded"}`))
	})

	_, err := client.Embed(context.Background(), "texte")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "embed-model", apiErr.Model)
	assert.Equal(t, "model overloaded", apiErr.Message)
}

func TestGenerateValidPrimaryResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/primary-model", r.URL.Path)

		var req generationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, req.Inputs, "Question: Quelles compétences ?")
		assert.Contains(t, req.Inputs, "Contexte: Mes compétences techniques: Go")
		assert.Equal(t, 500, req.Parameters.MaxLength)
		assert.True(t, req.Options.WaitForModel)

		_, _ = w.Write([]byte(`[{"generated_text": "Je maîtrise Go et les architectures distribuées."}]`))
	})

	answer, err := client.Generate(context.Background(), "Quelles compétences ?", "Mes compétences techniques: Go", "skills")
	require.NoError(t, err)
	assert.Equal(t, "Je maîtrise Go et les architectures distribuées.", answer)
}

func TestGenerateFallsBackOnLeakedPrompt(t *testing.T) {
	var fallbackCalled bool

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/primary-model":
			// The primary model parrots the prompt, which must trigger fallback.
			_, _ = w.Write([]byte(`[{"generated_text": "Instructions: répondez clairement à la question posée"}]`))
		case "/fallback-model":
			fallbackCalled = true

			var req fallbackRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.True(t, strings.Contains(req.Inputs.Question, "Quelles compétences ?"))
			assert.Equal(t, "Mes compétences techniques: Go", req.Inputs.Context)

			_, _ = w.Write([]byte(`{"answer": "Go"}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	answer, err := client.Generate(context.Background(), "Quelles compétences ?", "Mes compétences techniques: Go", "skills")
	require.NoError(t, err)
	assert.True(t, fallbackCalled)
	assert.Equal(t, "Go", answer)
}

func TestGenerateFallsBackOnShortResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/primary-model":
			_, _ = w.Write([]byte(`[{"generated_text": "oui"}]`))
		case "/fallback-model":
			_, _ = w.Write([]byte(`{"answer": "Une réponse complète du modèle secondaire."}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	answer, err := client.Generate(context.Background(), "Question valide ?", "Un contexte valide.", "about")
	require.NoError(t, err)
	assert.Equal(t, "Une réponse complète du modèle secondaire.", answer)
}

func TestGenerateRequiresQuestionAndContext(t *testing.T) {
	client := newTestClient(t, func(_ http.ResponseWriter, _ *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := client.Generate(context.Background(), "", "contexte", "about")
	assert.Error(t, err)

	_, err = client.Generate(context.Background(), "question", "", "about")
	assert.Error(t, err)
}

func TestGeneratePrimaryAPIErrorIsReturned(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": "rate limited"}`))
	})

	_, err := client.Generate(context.Background(), "question", "contexte", "about")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, "primary-model", apiErr.Model)
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(Config{}, nil)

	assert.Equal(t, DefaultBaseURL, client.baseURL)
	assert.Equal(t, DefaultEmbeddingModel, client.embeddingModel)
	assert.Equal(t, DefaultPrimaryModel, client.primaryModel)
	assert.Equal(t, DefaultFallbackModel, client.fallbackModel)
}
