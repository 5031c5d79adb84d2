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

// Package huggingface is the client for the Hugging Face Inference API. Each
// endpoint's heterogeneous response shape is decoded by exactly one function
// at the network boundary.
package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/your-org/portfolio-assistant/internal/prompt"
)

const (
	// DefaultBaseURL is the public inference endpoint
	DefaultBaseURL = "https://api-inference.huggingface.co/models"
	// DefaultEmbeddingModel computes sentence similarity for retrieval
	DefaultEmbeddingModel = "sentence-transformers/paraphrase-multilingual-mpnet-base-v2"
	// DefaultPrimaryModel generates answers from the combined prompt
	DefaultPrimaryModel = "google/flan-t5-small"
	// DefaultFallbackModel answers from a question/context pair when the
	// primary response is unusable.
	DefaultFallbackModel = "nadav/camembert-base-squad-fr"
)

var (
	// ErrEmptyText is returned when text for embedding is empty or blank
	ErrEmptyText = errors.New("text for embedding must be a non-empty string")
	// ErrEmbeddingFormat is returned when no usable vector or scalar could be
	// extracted from an embedding response.
	ErrEmbeddingFormat = errors.New("unrecognized embedding response format")
)

// APIError reports a non-success status from a remote endpoint.
type APIError struct {
	StatusCode int
	Model      string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("huggingface API error (model %s, status %d): %s", e.Model, e.StatusCode, e.Message)
}

// Embedding is the tagged union an embedding call produces: either a dense
// vector or a single precomputed similarity scalar, depending on the backend
// configuration.
type Embedding struct {
	Scalar *float64
	Vector []float64
}

// IsScalar reports whether the embedding carries a precomputed similarity.
func (e Embedding) IsScalar() bool {
	return e.Scalar != nil
}

// Config holds the client settings.
type Config struct {
	BaseURL        string
	APIKey         string
	EmbeddingModel string
	PrimaryModel   string
	FallbackModel  string
	// HTTPClient may carry a transport-level timeout; none is enforced here.
	HTTPClient *http.Client
}

// Client calls the Hugging Face inference endpoints for embeddings and text
// generation, with automatic fallback to the secondary QA model when the
// primary response is invalid.
type Client struct {
	baseURL        string
	apiKey         string
	embeddingModel string
	primaryModel   string
	fallbackModel  string
	httpClient     *http.Client
	logger         *zap.Logger
}

// NewClient creates a Hugging Face API client. Zero-value config fields fall
// back to the package defaults.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = DefaultEmbeddingModel
	}
	if cfg.PrimaryModel == "" {
		cfg.PrimaryModel = DefaultPrimaryModel
	}
	if cfg.FallbackModel == "" {
		cfg.FallbackModel = DefaultFallbackModel
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}

	return &Client{
		baseURL:        cfg.BaseURL,
		apiKey:         cfg.APIKey,
		embeddingModel: cfg.EmbeddingModel,
		primaryModel:   cfg.PrimaryModel,
		fallbackModel:  cfg.FallbackModel,
		httpClient:     cfg.HTTPClient,
		logger:         logger,
	}
}

// embeddingRequest is the sentence-similarity request shape.
type embeddingRequest struct {
	Inputs embeddingInputs `json:"inputs"`
}

type embeddingInputs struct {
	SourceSentence string   `json:"source_sentence"`
	Sentences      []string `json:"sentences"`
}

// Embed obtains the embedding for text. The backend either returns a numeric
// array of similarity scores (scalar mode) or an object carrying a vector
// under some field name.
func (c *Client) Embed(ctx context.Context, text string) (Embedding, error) {
	if text == "" {
		return Embedding{}, ErrEmptyText
	}

	body, err := c.post(ctx, c.embeddingModel, embeddingRequest{
		Inputs: embeddingInputs{SourceSentence: text, Sentences: []string{text}},
	})
	if err != nil {
		return Embedding{}, err
	}

	return decodeEmbedding(body)
}

// decodeEmbedding is the single decode function for the embedding endpoint.
// A numeric array yields its first element as a scalar similarity; an object
// yields its first array-valued field as the vector.
func decodeEmbedding(raw []byte) (Embedding, error) {
	var scores []float64
	if err := json.Unmarshal(raw, &scores); err == nil {
		if len(scores) == 0 {
			return Embedding{}, ErrEmbeddingFormat
		}
		return Embedding{Scalar: &scores[0]}, nil
	}

	vector, err := firstArrayField(raw)
	if err != nil {
		return Embedding{}, err
	}
	return Embedding{Vector: vector}, nil
}

// firstArrayField scans a JSON object's fields in document order and returns
// the first array-of-numbers value.
func firstArrayField(raw []byte) ([]float64, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, ErrEmbeddingFormat
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, ErrEmbeddingFormat
	}

	for dec.More() {
		if _, err := dec.Token(); err != nil { // field name
			return nil, ErrEmbeddingFormat
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, ErrEmbeddingFormat
		}
		var vector []float64
		if err := json.Unmarshal(value, &vector); err == nil && vector != nil {
			return vector, nil
		}
	}

	return nil, ErrEmbeddingFormat
}

// generationRequest is the primary text-generation request shape.
type generationRequest struct {
	Inputs     string               `json:"inputs"`
	Parameters generationParameters `json:"parameters"`
	Options    generationOptions    `json:"options"`
}

type generationParameters struct {
	MaxLength         int     `json:"max_length"`
	MinLength         int     `json:"min_length"`
	TopP              float64 `json:"top_p"`
	Temperature       float64 `json:"temperature"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
}

type generationOptions struct {
	UseCache     bool `json:"use_cache"`
	WaitForModel bool `json:"wait_for_model"`
}

// fallbackRequest is the question/context request shape of the secondary
// model.
type fallbackRequest struct {
	Inputs fallbackInputs `json:"inputs"`
}

type fallbackInputs struct {
	Question string `json:"question"`
	Context  string `json:"context"`
}

type fallbackResponse struct {
	Answer string `json:"answer"`
}

// Generate produces an answer from the question and retrieved context. An
// invalid primary response (empty, too short, or leaking prompt markers)
// automatically retries against the fallback model with the same context.
func (c *Client) Generate(ctx context.Context, question, contextText, section string) (string, error) {
	if question == "" || contextText == "" {
		return "", errors.New("question and context must not be empty")
	}

	formattedPrompt := prompt.ResponsePrompt(question, contextText, section)

	body, err := c.post(ctx, c.primaryModel, generationRequest{
		Inputs: formattedPrompt,
		Parameters: generationParameters{
			MaxLength:         500,
			MinLength:         30,
			TopP:              0.95,
			Temperature:       0.4,
			RepetitionPenalty: 6,
		},
		Options: generationOptions{UseCache: true, WaitForModel: true},
	})
	if err != nil {
		return "", err
	}

	response := prompt.NormalizeGeneration(body)
	if prompt.IsInvalidResponse(response) {
		c.logger.Warn("Invalid primary response, retrying with fallback model",
			zap.String("model", c.fallbackModel),
			zap.Int("response_length", len(response)),
		)
		return c.generateWithFallback(ctx, formattedPrompt, contextText)
	}

	return response, nil
}

// generateWithFallback queries the secondary QA model.
func (c *Client) generateWithFallback(ctx context.Context, question, contextText string) (string, error) {
	body, err := c.post(ctx, c.fallbackModel, fallbackRequest{
		Inputs: fallbackInputs{Question: question, Context: contextText},
	})
	if err != nil {
		return "", err
	}

	var decoded fallbackResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("failed to decode fallback response: %w", err)
	}
	return decoded.Answer, nil
}

// post sends a JSON request to a model endpoint and returns the raw body.
func (c *Client) post(ctx context.Context, model string, payload interface{}) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+model, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", model, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", model, err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Model: model, Message: errorMessage(body)}
		c.logger.Error("Model endpoint returned non-success status",
			zap.String("model", model),
			zap.Int("status_code", resp.StatusCode),
		)
		return nil, apiErr
	}

	return body, nil
}

// errorMessage extracts the error field HF returns on failures.
func errorMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return "unknown error"
}
