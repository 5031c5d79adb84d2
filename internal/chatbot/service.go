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

// Package chatbot orchestrates one dialogue turn: security gate, content
// extraction, relevance ranking, prompt construction and remote generation,
// with graceful degradation at every stage. Internal errors are logged with a
// classification tag and never surfaced verbatim to the end user; security
// failures are the one kind that propagates.
package chatbot

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/portfolio-assistant/internal/config"
	"github.com/your-org/portfolio-assistant/internal/content"
	"github.com/your-org/portfolio-assistant/internal/embedding"
	"github.com/your-org/portfolio-assistant/internal/huggingface"
	"github.com/your-org/portfolio-assistant/internal/prompt"
	"github.com/your-org/portfolio-assistant/internal/security"
)

// ErrorType classifies a failure by its origin for logging.
type ErrorType string

const (
	// ErrorInitialization covers extractor/page readiness failures
	ErrorInitialization ErrorType = "INITIALIZATION_ERROR"
	// ErrorContent covers missing or unparsable section content
	ErrorContent ErrorType = "CONTENT_ERROR"
	// ErrorSecurity covers gate rejections
	ErrorSecurity ErrorType = "SECURITY_ERROR"
	// ErrorAPI covers remote endpoint failures
	ErrorAPI ErrorType = "API_ERROR"
	// ErrorEmbedding covers embedding format and input failures
	ErrorEmbedding ErrorType = "EMBEDDING_ERROR"
)

// User-facing degraded messages. Internal errors never reach the user.
const (
	// MsgCannotAccess is returned when section content is missing or unparsable
	MsgCannotAccess = "Je ne peux pas accéder au contenu de cette section pour le moment."
	// MsgNoRelevantInfo is returned when ranking finds nothing above threshold
	MsgNoRelevantInfo = "Je ne trouve pas d'informations pertinentes pour répondre à votre question."
	// MsgNoRelevantInfoGeneral is the section-less variant of MsgNoRelevantInfo
	MsgNoRelevantInfoGeneral = "Désolé, je n'ai pas trouvé d'information pertinente."
	// MsgNoResponse is returned when the model produced nothing usable
	MsgNoResponse = "Je suis désolé, je ne parviens pas à formuler une réponse appropriée."
	// MsgGenericError is returned for any unexpected internal failure
	MsgGenericError = "Une erreur s'est produite lors du traitement de votre demande."
)

// DefaultSection receives requests whose section is unknown or empty; a
// deliberate leniency policy rather than an error.
const DefaultSection = "about"

// maxServiceLogs caps the in-memory diagnostic log ring.
const maxServiceLogs = 100

// Generator produces an answer from a question and retrieved context.
type Generator interface {
	Generate(ctx context.Context, question, contextText, section string) (string, error)
}

// PageProvider hands the orchestrator the current page tree. The extractor
// reads fresh state on every turn; nothing else couples it to rendering.
type PageProvider interface {
	Page() (*content.Node, error)
}

// Turn is one conversation entry; append-only, never mutated after append.
type Turn struct {
	Content   string    `json:"content"`
	IsUser    bool      `json:"is_user"`
	Timestamp time.Time `json:"timestamp"`
}

// ServiceLog is one entry of the in-memory diagnostic ring.
type ServiceLog struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Level     string    `json:"level"`
}

// Deps are the explicitly constructed collaborators of a Service. The service
// is dependency-injected rather than a global singleton so sessions can be
// isolated in tests.
type Deps struct {
	Security  *security.Manager
	Engine    *embedding.Service
	Generator Generator
	Extractor *content.Extractor
	Page      PageProvider
	Sections  *config.SectionTable
	UserID    string
	Logger    *zap.Logger
}

// Service drives the per-turn pipeline and owns the conversation history for
// one session.
type Service struct {
	security  *security.Manager
	engine    *embedding.Service
	generator Generator
	extractor *content.Extractor
	page      PageProvider
	sections  *config.SectionTable
	userID    string
	logger    *zap.Logger

	// mu guards history and logs; turns from one session can arrive on
	// concurrent requests.
	mu      sync.Mutex
	history []Turn
	logs    []ServiceLog
}

// NewService creates a chatbot service from its dependencies.
func NewService(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		security:  deps.Security,
		engine:    deps.Engine,
		generator: deps.Generator,
		extractor: deps.Extractor,
		page:      deps.Page,
		sections:  deps.Sections,
		userID:    deps.UserID,
		logger:    logger,
	}
}

// GetResponse processes one turn against a target section. Security failures
// are returned as errors so the caller can render them distinctly; every
// other failure degrades to a neutral user-facing message with a nil error.
func (s *Service) GetResponse(ctx context.Context, input, section string) (string, error) {
	validated, err := s.security.ProcessInput(input, s.userID)
	if err != nil {
		var secErr *security.SecurityError
		if security.IsSecurityError(err, &secErr) {
			s.logFailure(err, ErrorSecurity)
			return "", err
		}
		s.logFailure(err, ErrorContent)
		return MsgGenericError, nil
	}

	answer := s.respondFromSection(ctx, validated, section)
	s.AddToHistory(input, true)
	s.AddToHistory(answer, false)
	return answer, nil
}

// respondFromSection runs the Extracting, Ranking and Generating stages.
func (s *Service) respondFromSection(ctx context.Context, input, section string) string {
	normalized := s.normalizeSection(section)

	records, err := s.contentForSection(normalized)
	if err != nil {
		s.logFailure(err, classify(err))
		return MsgCannotAccess
	}
	if len(records) == 0 {
		return MsgCannotAccess
	}

	query := prompt.EmbeddingPrompt(input, normalized)
	relevant := s.engine.FindRelevant(ctx, query, formatBySection(records, normalized))
	if len(relevant) == 0 {
		return MsgNoRelevantInfo
	}

	contextText := prepareContext(relevant, normalized)

	response, err := s.generator.Generate(ctx, input, contextText, normalized)
	if err != nil {
		s.logFailure(err, classify(err))
		return MsgGenericError
	}
	if response == "" {
		return MsgNoResponse
	}
	return response
}

// GetAnyResponse answers without a target section, ranking across every
// populated section's cached content.
func (s *Service) GetAnyResponse(ctx context.Context, input string) (string, error) {
	validated, err := s.security.ProcessInput(input, s.userID)
	if err != nil {
		var secErr *security.SecurityError
		if security.IsSecurityError(err, &secErr) {
			s.logFailure(err, ErrorSecurity)
			return "", err
		}
		s.logFailure(err, ErrorContent)
		return MsgGenericError, nil
	}

	candidates := s.cachedCandidates()
	if len(candidates) == 0 {
		s.logFailure(content.ErrSectionNotFound, ErrorInitialization)
		return MsgCannotAccess, nil
	}

	relevant := s.engine.FindRelevant(ctx, validated, candidates)
	if len(relevant) == 0 {
		return MsgNoRelevantInfoGeneral, nil
	}

	answer, err := s.generator.Generate(ctx, validated, prepareContext(relevant, "general"), "general")
	if err != nil {
		s.logFailure(err, classify(err))
		return MsgGenericError, nil
	}
	if answer == "" {
		answer = MsgNoResponse
	}

	s.AddToHistory(input, true)
	s.AddToHistory(answer, false)
	return answer, nil
}

// normalizeSection maps the requested section onto a configured key,
// silently defaulting rather than erroring.
func (s *Service) normalizeSection(section string) string {
	normalized := strings.ToLower(strings.TrimSpace(section))
	if normalized == "" {
		s.addLog("empty section requested, using default", "warn")
		return DefaultSection
	}
	if s.sections != nil && !s.sections.Has(normalized) {
		s.addLog("unknown section \""+normalized+"\", using default", "warn")
		return DefaultSection
	}
	return normalized
}

// contentForSection extracts the structured content for a section from the
// current page state.
func (s *Service) contentForSection(section string) ([]content.Record, error) {
	root, err := s.page.Page()
	if err != nil {
		return nil, err
	}
	return s.extractor.ExtractSection(root, section)
}

// cachedCandidates decodes the config-cached extraction results of every
// populated section into ranking candidates.
func (s *Service) cachedCandidates() []embedding.Candidate {
	if s.sections == nil {
		return nil
	}

	var candidates []embedding.Candidate
	for _, id := range s.sections.SectionIDs() {
		section, ok := s.sections.Get(id)
		if !ok || section.Content == "" {
			continue
		}
		var records []content.Record
		if err := json.Unmarshal([]byte(section.Content), &records); err != nil {
			s.logFailure(err, ErrorContent)
			continue
		}
		candidates = append(candidates, formatBySection(records, id)...)
	}
	return candidates
}

// formatBySection renders records into ranking candidates using the
// section-specific formatting rules.
func formatBySection(records []content.Record, section string) []embedding.Candidate {
	candidates := make([]embedding.Candidate, 0, len(records))
	for _, r := range records {
		candidate := embedding.Candidate{Kind: string(r.Kind), Section: section}

		switch {
		case section == "skills" && r.Kind == content.KindSkill:
			candidate.Content = r.Name + " (Niveau de maîtrise: " + r.DisplayValue + ")"
		case section == "projects":
			candidate.Content = strings.Join(r.Content, " - ")
		default:
			candidate.Content = r.Text()
		}

		if candidate.Content == "" {
			continue
		}
		candidates = append(candidates, candidate)
	}
	return candidates
}

// prepareContext prepends the section's introductory phrase to the top-K
// contents.
func prepareContext(relevant []embedding.ScoredCandidate, section string) string {
	parts := make([]string, 0, len(relevant))
	for _, item := range relevant {
		parts = append(parts, item.Content)
	}
	return prompt.SectionIntro(section) + "\n" + strings.Join(parts, "\n\n")
}

// classify derives the error classification from the failure's origin.
func classify(err error) ErrorType {
	var secErr *security.SecurityError
	if security.IsSecurityError(err, &secErr) {
		return ErrorSecurity
	}

	var apiErr *huggingface.APIError
	if errors.As(err, &apiErr) {
		return ErrorAPI
	}

	switch {
	case errors.Is(err, huggingface.ErrEmbeddingFormat), errors.Is(err, huggingface.ErrEmptyText):
		return ErrorEmbedding
	default:
		return ErrorContent
	}
}

func (s *Service) logFailure(err error, errType ErrorType) {
	s.addLog("["+string(errType)+"] "+err.Error(), "error")
	s.logger.Error("Turn stage failed",
		zap.String("error_type", string(errType)),
		zap.Error(err),
	)
}

// AddToHistory appends a turn to the conversation history. History is not
// consulted for multi-turn context; each turn is independently retrieved and
// answered.
func (s *Service) AddToHistory(message string, isUser bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, Turn{
		Content:   message,
		IsUser:    isUser,
		Timestamp: time.Now(),
	})
}

// History returns the conversation turns in order.
func (s *Service) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Logs returns up to limit recent diagnostic entries, newest first.
func (s *Service) Logs(limit int) []ServiceLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 || limit > len(s.logs) {
		limit = len(s.logs)
	}
	out := make([]ServiceLog, limit)
	copy(out, s.logs[:limit])
	return out
}

// ClearLogs empties the diagnostic ring.
func (s *Service) ClearLogs() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = nil
}

// addLog prepends an entry to the diagnostic ring, evicting the oldest past
// the cap.
func (s *Service) addLog(message, level string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := ServiceLog{Timestamp: time.Now(), Message: message, Level: level}
	s.logs = append([]ServiceLog{entry}, s.logs...)
	if len(s.logs) > maxServiceLogs {
		s.logs = s.logs[:maxServiceLogs]
	}
}
