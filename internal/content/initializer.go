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

package content

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// SectionStore receives the JSON-serialized extraction result for each
// configured section. The configuration layer implements it.
type SectionStore interface {
	// SectionIDs lists every configured section id
	SectionIDs() []string
	// SetSectionContent stores the serialized records for a section
	SetSectionContent(sectionID, content string)
}

// Initializer populates the section store from the page, once per page
// lifetime. The attempt requires every configured section to be present; a
// partial page fails the whole attempt and the caller retries after a delay.
type Initializer struct {
	mu          sync.Mutex
	extractor   *Extractor
	store       SectionStore
	logger      *zap.Logger
	initialized bool
}

// NewInitializer creates an initializer over the given extractor and store.
func NewInitializer(extractor *Extractor, store SectionStore, logger *zap.Logger) *Initializer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Initializer{
		extractor: extractor,
		store:     store,
		logger:    logger,
	}
}

// PopulateConfig extracts every configured section from root into the store.
// It returns false when any configured section is missing, leaving the store
// untouched. Once it has succeeded, subsequent calls are no-ops returning true.
func (i *Initializer) PopulateConfig(root *Node) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.initialized {
		i.logger.Debug("Content extractor already initialized")
		return true
	}

	sectionIDs := i.store.SectionIDs()
	for _, id := range sectionIDs {
		if root.GetByID(id) == nil {
			i.logger.Debug("Section missing from page, deferring initialization",
				zap.String("section_id", id))
			return false
		}
	}

	for _, id := range sectionIDs {
		records, err := i.extractor.ExtractSection(root, id)
		if err != nil {
			i.logger.Warn("Extraction failed during initialization",
				zap.String("section_id", id), zap.Error(err))
			continue
		}
		serialized, err := json.Marshal(records)
		if err != nil {
			i.logger.Warn("Failed to serialize extracted content",
				zap.String("section_id", id), zap.Error(err))
			continue
		}
		i.store.SetSectionContent(id, string(serialized))
	}

	i.initialized = true
	i.logger.Info("Section content populated", zap.Int("section_count", len(sectionIDs)))
	return true
}

// Initialized reports whether the one-time population has completed.
func (i *Initializer) Initialized() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.initialized
}

// Reset clears the initialized latch for tests and page teardown.
func (i *Initializer) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.initialized = false
}
