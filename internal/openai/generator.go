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

// Package openai provides an alternative generation backend on the OpenAI
// chat completion API, selected with the "openai" model provider. Retrieval
// embeddings stay on the Hugging Face backend either way.
package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/your-org/portfolio-assistant/internal/prompt"
)

const (
	// DefaultModel is used when no model is configured
	DefaultModel = "gpt-4o-mini"
	// maxTokens bounds the generated answer length
	maxTokens = 500
	// temperature keeps answers close to the retrieved context
	temperature = 0.4
)

// Generator produces answers through the OpenAI chat completion API using the
// same section-aware prompts as the primary backend.
type Generator struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewGenerator creates an OpenAI-backed generator.
func NewGenerator(apiKey, model string, logger *zap.Logger) (*Generator, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Generator{
		client: openai.NewClient(apiKey),
		model:  model,
		logger: logger,
	}, nil
}

// Generate answers the question from the retrieved context. The prompt is the
// same section-instructed prompt the Hugging Face backend uses, carried as
// the user message under a thin system directive.
func (g *Generator) Generate(ctx context.Context, question, contextText, section string) (string, error) {
	if question == "" || contextText == "" {
		return "", errors.New("question and context must not be empty")
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "Assistant du portfolio. " + prompt.SectionContext(section),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt.ResponsePrompt(question, contextText, section),
			},
		},
	})
	if err != nil {
		g.logger.Error("Chat completion failed", zap.String("model", g.model), zap.Error(err))
		return "", fmt.Errorf("openai generation failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no choices returned from OpenAI")
	}

	return resp.Choices[0].Message.Content, nil
}
