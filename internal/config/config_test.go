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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadDefaults(t *testing.T) *Config {
	t.Helper()
	t.Setenv("CONFIG_PATH", "")

	cfg, err := Load("")
	require.NoError(t, err)
	return cfg
}

func TestLoadDefaults(t *testing.T) {
	cfg := loadDefaults(t)

	assert.Equal(t, "huggingface", cfg.Models.Provider)
	assert.Equal(t, "https://api-inference.huggingface.co/models", cfg.Models.BaseURL)
	assert.Equal(t, "google/flan-t5-small", cfg.Models.PrimaryModel)
	assert.Equal(t, "nadav/camembert-base-squad-fr", cfg.Models.FallbackModel)

	assert.Equal(t, 1000, cfg.RAG.MaxContextLength)
	assert.Equal(t, 0.7, cfg.RAG.SimilarityThreshold)
	assert.Equal(t, 3, cfg.RAG.TopK)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "./security.db", cfg.Security.DBPath)
}

func TestLoadDefaultSections(t *testing.T) {
	cfg := loadDefaults(t)

	require.Len(t, cfg.Sections, 4)
	assert.Equal(t, "À propos", cfg.Sections["about"].Title)
	assert.Equal(t, 1.2, cfg.Sections["about"].Weight)
	assert.Equal(t, 1.1, cfg.Sections["skills"].Weight)
	assert.Equal(t, 1.0, cfg.Sections["projects"].Weight)
	assert.Equal(t, 0.8, cfg.Sections["contact"].Weight)
}

func TestLoadFromConfigFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")

	configYAML := `
models:
  provider: huggingface
  primary_model: custom/model
rag:
  top_k: 5
logging:
  level: debug
`
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(configYAML), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "custom/model", cfg.Models.PrimaryModel)
	assert.Equal(t, 5, cfg.RAG.TopK)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched keys keep their defaults.
	assert.Equal(t, 0.7, cfg.RAG.SimilarityThreshold)
}

func TestLoadMissingConfigFileFails(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")

	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("HUGGINGFACE_API_KEY", "hf-secret")
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("SECURITY_DB_PATH", "/tmp/sec.db")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "hf-secret", cfg.Models.APIKey)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "/tmp/sec.db", cfg.Security.DBPath)
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")

	configYAML := "models:\n  provider: anthropic\n"
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(configYAML), 0o644))

	_, err := Load(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "models.provider")
}

func TestValidateOpenAIProviderRequiresKey(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("OPENAI_API_KEY", "")

	configYAML := "models:\n  provider: openai\n"
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(configYAML), 0o644))

	_, err := Load(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai_apikey")
}

func TestValidateRejectsBadRAGValues(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")

	configYAML := "rag:\n  similarity_threshold: 1.5\n  top_k: 0\n"
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(configYAML), 0o644))

	_, err := Load(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "similarity_threshold")
	assert.Contains(t, err.Error(), "top_k")
}

func TestValidateRejectsBadLogging(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")

	configYAML := "logging:\n  level: verbose\n  format: xml\n"
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(configYAML), 0o644))

	_, err := Load(configPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")
	assert.Contains(t, err.Error(), "logging.format")
}

func TestMaskSensitiveValues(t *testing.T) {
	cfg := &Config{
		Models: ModelsConfig{
			APIKey:       "hf_1234567890abcdef",
			OpenAIAPIKey: "short",
		},
	}

	masked := cfg.MaskSensitiveValues()
	assert.Equal(t, "hf_12345***********", masked.Models.APIKey)
	assert.Equal(t, "*****", masked.Models.OpenAIAPIKey)

	// The original is untouched.
	assert.Equal(t, "hf_1234567890abcdef", cfg.Models.APIKey)
}
