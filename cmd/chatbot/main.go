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

// Package main provides the portfolio assistant CLI. It loads a portfolio
// page, extracts its content and answers questions about it, either one-shot
// from the command line or in an interactive loop.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/your-org/portfolio-assistant/internal/chatbot"
	"github.com/your-org/portfolio-assistant/internal/config"
	"github.com/your-org/portfolio-assistant/internal/content"
	"github.com/your-org/portfolio-assistant/internal/embedding"
	"github.com/your-org/portfolio-assistant/internal/huggingface"
	"github.com/your-org/portfolio-assistant/internal/openai"
	"github.com/your-org/portfolio-assistant/internal/security"
)

const (
	// PageFetchTimeout bounds downloading a portfolio page by URL
	PageFetchTimeout = 15 * time.Second
	// RequestTimeout bounds one full question/answer turn
	RequestTimeout = 60 * time.Second
)

var (
	configPath string
	pagePath   string
	section    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chatbot [question]",
		Short: "Portfolio Assistant Chatbot",
		Long: "Answers questions about a portfolio page using retrieval-augmented " +
			"generation. With a question argument it answers once and exits; " +
			"without one it starts an interactive session.",
		Args: cobra.MaximumNArgs(1),
		RunE: run,
	}

	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")
	rootCmd.Flags().StringVarP(&pagePath, "page", "p", "", "Portfolio page: HTML file path or http(s) URL")
	rootCmd.Flags().StringVarP(&section, "section", "s", "", "Target page section (about, skills, projects, contact)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := initializeLogger(cfg, "chatbot")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	masked := cfg.MaskSensitiveValues()
	logger.Info("Configuration loaded successfully",
		zap.String("service", "chatbot"),
		zap.String("provider", masked.Models.Provider),
		zap.String("base_url", masked.Models.BaseURL),
		zap.String("api_key", masked.Models.APIKey),
		zap.String("embedding_model", masked.Models.EmbeddingModel),
		zap.String("primary_model", masked.Models.PrimaryModel),
		zap.String("security_db_path", masked.Security.DBPath),
	)

	if pagePath == "" {
		return fmt.Errorf("a portfolio page is required: use --page with a file path or URL")
	}

	page, err := loadPage(pagePath)
	if err != nil {
		return fmt.Errorf("failed to load portfolio page: %w", err)
	}

	service, cleanup, err := initializeService(cfg, page, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize chatbot: %w", err)
	}
	defer cleanup()

	if len(args) == 1 {
		return answerOnce(cmd.Context(), service, args[0], section)
	}
	return interactiveLoop(cmd.Context(), service, section)
}

// staticPage serves one parsed page tree for the process lifetime.
type staticPage struct {
	root *content.Node
}

func (p *staticPage) Page() (*content.Node, error) {
	return p.root, nil
}

// loadPage reads and parses a portfolio page from a local file or a URL.
func loadPage(path string) (*content.Node, error) {
	var reader io.ReadCloser

	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		client := &http.Client{Timeout: PageFetchTimeout}
		resp, err := client.Get(path)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch page: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("failed to fetch page: status %d", resp.StatusCode)
		}
		reader = resp.Body
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open page file: %w", err)
		}
		reader = f
	}
	defer func() { _ = reader.Close() }()

	return content.Parse(reader)
}

// initializeService wires the full pipeline: security gate, extraction,
// relevance engine and the configured generation backend.
func initializeService(cfg *config.Config, page *content.Node, logger *zap.Logger) (*chatbot.Service, func(), error) {
	store, err := security.NewStore(cfg.Security.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open security store: %w", err)
	}

	userID, err := store.UserID(uuid.NewString)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to resolve user id: %w", err)
	}

	rateLimiter := security.NewRateLimiter(logger)
	manager := security.NewManager(
		security.NewValidator(),
		rateLimiter,
		security.NewLogger(store, "cli", logger),
		logger,
	)

	hfClient := huggingface.NewClient(huggingface.Config{
		BaseURL:        cfg.Models.BaseURL,
		APIKey:         cfg.Models.APIKey,
		EmbeddingModel: cfg.Models.EmbeddingModel,
		PrimaryModel:   cfg.Models.PrimaryModel,
		FallbackModel:  cfg.Models.FallbackModel,
	}, logger)

	generator, err := selectGenerator(cfg, hfClient, logger)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	engine := embedding.NewService(hfClient, logger)
	extractor := content.NewExtractor(logger)
	sections := config.NewSectionTable(cfg.Sections)

	initializer := content.NewInitializer(extractor, sections, logger)
	if !initializer.PopulateConfig(page) {
		logger.Warn("Not every configured section was found on the page; cached retrieval is disabled")
	}

	service := chatbot.NewService(chatbot.Deps{
		Security:  manager,
		Engine:    engine,
		Generator: generator,
		Extractor: extractor,
		Page:      &staticPage{root: page},
		Sections:  sections,
		UserID:    userID,
		Logger:    logger,
	})

	cleanup := func() {
		rateLimiter.Stop()
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close security store", zap.Error(err))
		}
	}
	return service, cleanup, nil
}

// selectGenerator picks the generation backend by configured provider.
func selectGenerator(cfg *config.Config, hfClient *huggingface.Client, logger *zap.Logger) (chatbot.Generator, error) {
	if cfg.Models.Provider == "openai" {
		generator, err := openai.NewGenerator(cfg.Models.OpenAIAPIKey, cfg.Models.OpenAIModel, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OpenAI generator: %w", err)
		}
		return generator, nil
	}
	return hfClient, nil
}

func answerOnce(ctx context.Context, service *chatbot.Service, question, section string) error {
	answer, err := ask(ctx, service, question, section)
	if err != nil {
		return err
	}
	fmt.Println(answer)
	return nil
}

func interactiveLoop(ctx context.Context, service *chatbot.Service, section string) error {
	fmt.Println("Assistant du portfolio. Posez votre question (ou \"exit\" pour quitter).")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			break
		}

		answer, err := ask(ctx, service, question, section)
		if err != nil {
			fmt.Printf("Erreur de sécurité: %v\n", err)
			continue
		}
		fmt.Println(answer)
	}
	return scanner.Err()
}

// ask runs one turn with a per-request timeout. Without a target section the
// answer is retrieved across every populated section.
func ask(ctx context.Context, service *chatbot.Service, question, section string) (string, error) {
	turnCtx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	if section == "" {
		return service.GetAnyResponse(turnCtx, question)
	}
	return service.GetResponse(turnCtx, question, section)
}

// initializeLogger creates a logger based on configuration settings
func initializeLogger(cfg *config.Config, serviceName string) (*zap.Logger, error) {
	var zapConfig zap.Config

	if cfg.Logging.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	switch cfg.Logging.Level {
	case "debug":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "info":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	case "warn":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		zapConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	if cfg.Logging.Output == "file" {
		zapConfig.OutputPaths = []string{serviceName + ".log"}
		zapConfig.ErrorOutputPaths = []string{serviceName + ".log"}
	} else {
		zapConfig.OutputPaths = []string{"stdout"}
		zapConfig.ErrorOutputPaths = []string{"stderr"}
	}

	return zapConfig.Build()
}
