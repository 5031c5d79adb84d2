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

// Package main provides the web API for the portfolio assistant. Each visitor
// gets an isolated chat session keyed by a cookie; all sessions share the
// extraction, ranking and generation pipeline over one portfolio page.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
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
	// DefaultPort is the default port for the web API
	DefaultPort = "8080"
	// RequestTimeout bounds one chat turn end to end
	RequestTimeout = 60 * time.Second
	// VisitorCookie identifies a browser session
	VisitorCookie = "portfolio_visitor"
	// VisitorCookieMaxAge keeps the visitor id for one year
	VisitorCookieMaxAge = 365 * 24 * 60 * 60
)

// ChatRequest is the incoming chat payload. Section is optional; without it
// the answer is retrieved across every populated section.
type ChatRequest struct {
	Message string `json:"message" binding:"required"`
	Section string `json:"section"`
}

// ChatResponse is the chat reply payload.
type ChatResponse struct {
	Answer    string    `json:"answer,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryEntry is one conversation turn in the history payload.
type HistoryEntry struct {
	Content   string    `json:"content"`
	IsUser    bool      `json:"is_user"`
	Timestamp time.Time `json:"timestamp"`
}

// Server carries the shared pipeline and the per-visitor chat sessions.
type Server struct {
	config    *config.Config
	logger    *zap.Logger
	security  *security.Manager
	engine    *embedding.Service
	generator chatbot.Generator
	extractor *content.Extractor
	page      chatbot.PageProvider
	sections  *config.SectionTable

	mu       sync.Mutex
	sessions map[string]*chatbot.Service
}

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initializeLogger(cfg)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	masked := cfg.MaskSensitiveValues()
	logger.Info("Configuration loaded successfully",
		zap.String("service", "webui"),
		zap.String("provider", masked.Models.Provider),
		zap.String("base_url", masked.Models.BaseURL),
		zap.String("api_key", masked.Models.APIKey),
		zap.String("security_db_path", masked.Security.DBPath),
	)

	pagePath := os.Getenv("PORTFOLIO_PAGE")
	if pagePath == "" {
		logger.Fatal("PORTFOLIO_PAGE must point to the portfolio HTML file")
	}

	server, cleanup, err := initializeServer(cfg, pagePath, logger)
	if err != nil {
		logger.Fatal("Failed to initialize server", zap.Error(err))
	}
	defer cleanup()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.GET("/health", server.handleHealth)
	router.GET("/api/sections", server.handleSections)
	router.POST("/api/chat", server.handleChat)
	router.GET("/api/history", server.handleHistory)

	port := os.Getenv("PORT")
	if port == "" {
		port = DefaultPort
	}

	logger.Info("Starting web API",
		zap.String("port", port),
		zap.String("service", "webui"),
	)

	if err := router.Run(":" + port); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}

// initializeServer loads the portfolio page and wires the shared pipeline.
func initializeServer(cfg *config.Config, pagePath string, logger *zap.Logger) (*Server, func(), error) {
	f, err := os.Open(pagePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open portfolio page: %w", err)
	}
	page, err := content.Parse(f)
	_ = f.Close()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse portfolio page: %w", err)
	}

	store, err := security.NewStore(cfg.Security.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open security store: %w", err)
	}

	rateLimiter := security.NewRateLimiter(logger)
	manager := security.NewManager(
		security.NewValidator(),
		rateLimiter,
		security.NewLogger(store, "webui", logger),
		logger,
	)

	hfClient := huggingface.NewClient(huggingface.Config{
		BaseURL:        cfg.Models.BaseURL,
		APIKey:         cfg.Models.APIKey,
		EmbeddingModel: cfg.Models.EmbeddingModel,
		PrimaryModel:   cfg.Models.PrimaryModel,
		FallbackModel:  cfg.Models.FallbackModel,
	}, logger)

	var generator chatbot.Generator = hfClient
	if cfg.Models.Provider == "openai" {
		generator, err = openai.NewGenerator(cfg.Models.OpenAIAPIKey, cfg.Models.OpenAIModel, logger)
		if err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("failed to initialize OpenAI generator: %w", err)
		}
	}

	extractor := content.NewExtractor(logger)
	sections := config.NewSectionTable(cfg.Sections)

	initializer := content.NewInitializer(extractor, sections, logger)
	if !initializer.PopulateConfig(page) {
		logger.Warn("Not every configured section was found on the page; cached retrieval is disabled")
	}

	server := &Server{
		config:    cfg,
		logger:    logger,
		security:  manager,
		engine:    embedding.NewService(hfClient, logger),
		generator: generator,
		extractor: extractor,
		page:      &staticPage{root: page},
		sections:  sections,
		sessions:  make(map[string]*chatbot.Service),
	}

	cleanup := func() {
		rateLimiter.Stop()
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close security store", zap.Error(err))
		}
	}
	return server, cleanup, nil
}

// staticPage serves one parsed page tree for the process lifetime.
type staticPage struct {
	root *content.Node
}

func (p *staticPage) Page() (*content.Node, error) {
	return p.root, nil
}

// handleHealth reports service liveness.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "webui",
	})
}

// handleSections lists the configured page sections.
func (s *Server) handleSections(c *gin.Context) {
	ids := s.sections.SectionIDs()
	out := make([]gin.H, 0, len(ids))
	for _, id := range ids {
		section, _ := s.sections.Get(id)
		out = append(out, gin.H{
			"id":    id,
			"title": section.Title,
		})
	}
	c.JSON(http.StatusOK, out)
}

// handleChat processes one chat turn for the calling visitor.
func (s *Server) handleChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ChatResponse{
			Error:     "Invalid request format",
			Timestamp: time.Now(),
		})
		return
	}

	session := s.sessionFor(c)

	ctx, cancel := context.WithTimeout(c.Request.Context(), RequestTimeout)
	defer cancel()

	var answer string
	var err error
	if strings.TrimSpace(req.Section) == "" {
		answer, err = session.GetAnyResponse(ctx, req.Message)
	} else {
		answer, err = session.GetResponse(ctx, req.Message, req.Section)
	}
	if err != nil {
		s.renderSecurityError(c, err)
		return
	}

	c.JSON(http.StatusOK, ChatResponse{
		Answer:    answer,
		Timestamp: time.Now(),
	})
}

// handleHistory returns the calling visitor's conversation turns.
func (s *Server) handleHistory(c *gin.Context) {
	session := s.sessionFor(c)

	turns := session.History()
	out := make([]HistoryEntry, len(turns))
	for i, turn := range turns {
		out[i] = HistoryEntry{
			Content:   turn.Content,
			IsUser:    turn.IsUser,
			Timestamp: turn.Timestamp,
		}
	}
	c.JSON(http.StatusOK, out)
}

// renderSecurityError maps a gate rejection onto a status code while keeping
// the user-facing reason distinct from internal failures.
func (s *Server) renderSecurityError(c *gin.Context, err error) {
	var secErr *security.SecurityError
	if !security.IsSecurityError(err, &secErr) {
		s.logger.Error("Chat turn failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ChatResponse{
			Error:     chatbot.MsgGenericError,
			Timestamp: time.Now(),
		})
		return
	}

	status := http.StatusBadRequest
	if secErr.Code == security.CodeRateLimitExceeded || secErr.Code == security.CodeUserBanned {
		status = http.StatusTooManyRequests
	}
	c.JSON(status, ChatResponse{
		Error:     "Erreur de sécurité: " + secErr.Error(),
		Timestamp: time.Now(),
	})
}

// sessionFor resolves the visitor's chat session, creating the visitor cookie
// and session on first contact.
func (s *Server) sessionFor(c *gin.Context) *chatbot.Service {
	visitorID, err := c.Cookie(VisitorCookie)
	if err != nil || visitorID == "" {
		if err != nil && !errors.Is(err, http.ErrNoCookie) {
			s.logger.Warn("Failed to read visitor cookie", zap.Error(err))
		}
		visitorID = uuid.NewString()
		c.SetCookie(VisitorCookie, visitorID, VisitorCookieMaxAge, "/", "", false, true)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[visitorID]; ok {
		return session
	}

	session := chatbot.NewService(chatbot.Deps{
		Security:  s.security,
		Engine:    s.engine,
		Generator: s.generator,
		Extractor: s.extractor,
		Page:      s.page,
		Sections:  s.sections,
		UserID:    visitorID,
		Logger:    s.logger,
	})
	s.sessions[visitorID] = session
	return session
}

// initializeLogger creates a logger based on configuration settings
func initializeLogger(cfg *config.Config) (*zap.Logger, error) {
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
		zapConfig.OutputPaths = []string{"webui.log"}
		zapConfig.ErrorOutputPaths = []string{"webui.log"}
	} else {
		zapConfig.OutputPaths = []string{"stdout"}
		zapConfig.ErrorOutputPaths = []string{"stderr"}
	}

	return zapConfig.Build()
}
