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

import "sync"

// canonicalOrder fixes the iteration order of the known page regions so
// initialization and retrieval behave deterministically.
var canonicalOrder = []string{"about", "skills", "projects", "contact"}

// SectionTable is the mutable runtime view of the section configuration. The
// content initializer writes extraction results into it once per page
// lifetime; the ranking and orchestration layers read from it.
type SectionTable struct {
	mu       sync.RWMutex
	sections map[string]SectionConfig
}

// NewSectionTable builds a table from the loaded section configuration.
func NewSectionTable(sections map[string]SectionConfig) *SectionTable {
	copied := make(map[string]SectionConfig, len(sections))
	for id, section := range sections {
		copied[id] = section
	}
	return &SectionTable{sections: copied}
}

// SectionIDs lists every configured section id, known regions first in
// canonical order.
func (t *SectionTable) SectionIDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.sections))
	for _, id := range canonicalOrder {
		if _, ok := t.sections[id]; ok {
			ids = append(ids, id)
		}
	}
	for id := range t.sections {
		if !isCanonical(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// Get returns the configuration for a section id.
func (t *SectionTable) Get(id string) (SectionConfig, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	section, ok := t.sections[id]
	return section, ok
}

// Has reports whether the section id is configured.
func (t *SectionTable) Has(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.sections[id]
	return ok
}

// SetSectionContent stores the serialized extraction result for a section.
func (t *SectionTable) SetSectionContent(id, content string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	section, ok := t.sections[id]
	if !ok {
		return
	}
	section.Content = content
	t.sections[id] = section
}

// Weight returns the config-level relevance weight for a section, 1.0 when
// the section is unknown.
func (t *SectionTable) Weight(id string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if section, ok := t.sections[id]; ok && section.Weight > 0 {
		return section.Weight
	}
	return 1.0
}

func isCanonical(id string) bool {
	for _, known := range canonicalOrder {
		if id == known {
			return true
		}
	}
	return false
}
