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
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration
type Config struct {
	Models   ModelsConfig             `mapstructure:"models"`
	Sections map[string]SectionConfig `mapstructure:"sections"`
	RAG      RAGConfig                `mapstructure:"rag"`
	Security SecurityConfig           `mapstructure:"security"`
	Logging  LoggingConfig            `mapstructure:"logging"`
}

// ModelsConfig selects and configures the remote inference backends
type ModelsConfig struct {
	// Provider selects the generation backend: "huggingface" or "openai"
	Provider       string `mapstructure:"provider"`
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"apikey"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	PrimaryModel   string `mapstructure:"primary_model"`
	FallbackModel  string `mapstructure:"fallback_model"`
	OpenAIAPIKey   string `mapstructure:"openai_apikey"`
	OpenAIModel    string `mapstructure:"openai_model"`
}

// SectionConfig is the static per-section metadata: display title, relevance
// weight, and the extraction result populated once per page lifetime.
type SectionConfig struct {
	Title   string  `mapstructure:"title"`
	Content string  `mapstructure:"content"`
	Weight  float64 `mapstructure:"weight"`
}

// RAGConfig is the config-level retrieval policy. Its similarity threshold is
// scoped to this policy and deliberately distinct from the engine-local one.
type RAGConfig struct {
	MaxContextLength    int     `mapstructure:"max_context_length"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	TopK                int     `mapstructure:"top_k"`
	MinRelevanceScore   float64 `mapstructure:"min_relevance_score"`
}

// SecurityConfig contains security gate storage configuration
type SecurityConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed for field '%s': %s", e.Field, e.Message)
}

// LoadOptions contains options for configuration loading
type LoadOptions struct {
	ConfigPath       string
	ValidateRequired bool
}

// Load loads configuration from file and environment variables.
// Environment variables take precedence over config file values.
func Load(configPath string) (*Config, error) {
	return LoadWithOptions(LoadOptions{ConfigPath: configPath, ValidateRequired: true})
}

// LoadWithOptions loads configuration with additional options
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if err := setConfigFile(v, opts.ConfigPath); err != nil {
		return nil, fmt.Errorf("failed to set config file: %w", err)
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("PORTFOLIO_ASSISTANT")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error if env vars are set
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	setEnvironmentMappings(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if opts.ValidateRequired {
		if err := validateConfig(&config); err != nil {
			return nil, fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Model defaults
	v.SetDefault("models.provider", "huggingface")
	v.SetDefault("models.base_url", "https://api-inference.huggingface.co/models")
	v.SetDefault("models.embedding_model", "sentence-transformers/paraphrase-multilingual-mpnet-base-v2")
	v.SetDefault("models.primary_model", "google/flan-t5-small")
	v.SetDefault("models.fallback_model", "nadav/camembert-base-squad-fr")
	v.SetDefault("models.openai_model", "gpt-4o-mini")

	// Section defaults: the page regions and their config-level weights
	v.SetDefault("sections.about.title", "À propos")
	v.SetDefault("sections.about.weight", 1.2)
	v.SetDefault("sections.skills.title", "Compétences")
	v.SetDefault("sections.skills.weight", 1.1)
	v.SetDefault("sections.projects.title", "Projets")
	v.SetDefault("sections.projects.weight", 1.0)
	v.SetDefault("sections.contact.title", "Contact")
	v.SetDefault("sections.contact.weight", 0.8)

	// RAG policy defaults
	v.SetDefault("rag.max_context_length", 1000)
	v.SetDefault("rag.similarity_threshold", 0.7)
	v.SetDefault("rag.top_k", 3)
	v.SetDefault("rag.min_relevance_score", 0.5)

	// Security defaults
	v.SetDefault("security.db_path", "./security.db")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
}

// setConfigFile sets the configuration file path with fallback logic
func setConfigFile(v *viper.Viper, configPath string) error {
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		if _, err := os.Stat(envPath); err != nil {
			return fmt.Errorf("config file specified by CONFIG_PATH does not exist: %s", envPath)
		}
		v.SetConfigFile(envPath)
		return nil
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err != nil {
			return fmt.Errorf("config file does not exist: %s", configPath)
		}
		v.SetConfigFile(configPath)
		return nil
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	return nil
}

// setEnvironmentMappings sets explicit environment variable mappings
func setEnvironmentMappings(v *viper.Viper) {
	envMappings := map[string]string{
		"HUGGINGFACE_API_KEY": "models.apikey",
		"HUGGINGFACE_API_URL": "models.base_url",
		"OPENAI_API_KEY":      "models.openai_apikey",
		"SECURITY_DB_PATH":    "security.db_path",
		"LOG_LEVEL":           "logging.level",
		"LOG_FORMAT":          "logging.format",
		"LOG_OUTPUT":          "logging.output",
	}

	for envVar, configKey := range envMappings {
		if value := os.Getenv(envVar); value != "" {
			v.Set(configKey, value)
		}
	}
}

// validateConfig validates the configuration for required fields and valid values
func validateConfig(config *Config) error {
	var errors []ValidationError

	validProviders := []string{"huggingface", "openai"}
	if !contains(validProviders, config.Models.Provider) {
		errors = append(errors, ValidationError{
			Field:   "models.provider",
			Message: fmt.Sprintf("provider must be one of: %s", strings.Join(validProviders, ", ")),
		})
	}

	if config.Models.Provider == "openai" && config.Models.OpenAIAPIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "models.openai_apikey",
			Message: "OpenAI API key is required for the openai provider. Set via config file or OPENAI_API_KEY environment variable",
		})
	}

	if config.RAG.SimilarityThreshold < 0 || config.RAG.SimilarityThreshold > 1 {
		errors = append(errors, ValidationError{
			Field:   "rag.similarity_threshold",
			Message: "similarity_threshold must be between 0 and 1",
		})
	}

	if config.RAG.TopK <= 0 {
		errors = append(errors, ValidationError{
			Field:   "rag.top_k",
			Message: "top_k must be greater than 0",
		})
	}

	if config.RAG.MaxContextLength <= 0 {
		errors = append(errors, ValidationError{
			Field:   "rag.max_context_length",
			Message: "max_context_length must be greater than 0",
		})
	}

	for id, section := range config.Sections {
		if section.Weight <= 0 {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("sections.%s.weight", id),
				Message: "weight must be greater than 0",
			})
		}
	}

	if config.Security.DBPath == "" {
		errors = append(errors, ValidationError{
			Field:   "security.db_path",
			Message: "security database path is required",
		})
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, config.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("log level must be one of: %s", strings.Join(validLogLevels, ", ")),
		})
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, config.Logging.Format) {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("log format must be one of: %s", strings.Join(validLogFormats, ", ")),
		})
	}

	if len(errors) > 0 {
		var errorMessages []string
		for _, err := range errors {
			errorMessages = append(errorMessages, err.Error())
		}
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errorMessages, "\n"))
	}

	return nil
}

// MaskSensitiveValues returns a copy of the config with sensitive values masked
func (c *Config) MaskSensitiveValues() *Config {
	masked := *c

	if masked.Models.APIKey != "" {
		masked.Models.APIKey = maskValue(masked.Models.APIKey)
	}
	if masked.Models.OpenAIAPIKey != "" {
		masked.Models.OpenAIAPIKey = maskValue(masked.Models.OpenAIAPIKey)
	}

	return &masked
}

// maskValue masks sensitive values, showing only the first 8 characters
func maskValue(value string) string {
	if len(value) <= 8 {
		return strings.Repeat("*", len(value))
	}
	return value[:8] + strings.Repeat("*", len(value)-8)
}

// contains checks if a slice contains a specific string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// WatchConfig enables configuration hot-reloading for development
func WatchConfig(configPath string, callback func(*Config)) error {
	v := viper.New()

	if err := setConfigFile(v, configPath); err != nil {
		return err
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		config, err := LoadWithOptions(LoadOptions{ConfigPath: configPath, ValidateRequired: true})
		if err != nil {
			fmt.Printf("Failed to reload config %s: %v\n", e.Name, err)
			return
		}
		callback(config)
	})

	return nil
}
