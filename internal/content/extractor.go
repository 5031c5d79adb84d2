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

// Package content turns rendered page markup into typed, retrievable records.
// It combines fixed-selector detection for the page's skill widgets with a
// contextual walk that groups text under heading-defined sections.
package content

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// ErrSectionNotFound is returned when the requested page region is absent.
// This is a recoverable condition, not fatal.
var ErrSectionNotFound = errors.New("section not found in page")

const (
	// maxAncestorDepth bounds the contextual level walk so malformed trees
	// cannot loop forever.
	maxAncestorDepth = 10

	skillContainerClass = "space-y-2"
	skillNameClass      = "text-gray-300"
	skillValueClass     = "text-blue-400"
	sectionMarkerClass  = "section"
)

// excludedTags are UI chrome stripped from the working copy before extraction.
var excludedTags = map[string]struct{}{
	"button":   {},
	"svg":      {},
	"img":      {},
	"input":    {},
	"textarea": {},
	"script":   {},
	"style":    {},
	"nav":      {},
	"footer":   {},
}

// excludedClasses mark chat and menu containers that must not pollute the
// extracted knowledge.
var excludedClasses = []string{"chat-container", "mobile-menu"}

// valuePatterns detect numeric-ish skill values during the fallback text walk.
var valuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^\d+%?$`),
	regexp.MustCompile(`^[0-9.,]+$`),
}

var whitespaceRuns = regexp.MustCompile(`\s+`)

// Extractor walks a cloned section subtree and emits cleaned content records.
// Extraction is a pure function of the tree passed in; the extractor itself
// holds no per-call state.
type Extractor struct {
	logger *zap.Logger
}

// NewExtractor creates a content extractor.
func NewExtractor(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// ExtractSection locates the section root by id and extracts its structured
// content. The subtree is cloned first so extraction never mutates the live
// tree. A missing section returns ErrSectionNotFound.
func (e *Extractor) ExtractSection(root *Node, sectionID string) ([]Record, error) {
	section := root.GetByID(sectionID)
	if section == nil {
		e.logger.Debug("Section not found in tree", zap.String("section_id", sectionID))
		return nil, ErrSectionNotFound
	}

	clone := section.Clone()
	removeExcluded(clone)

	records := e.extractStructured(clone, 0)
	e.logger.Debug("Section content extracted",
		zap.String("section_id", sectionID),
		zap.Int("record_count", len(records)),
	)
	return records, nil
}

// removeExcluded prunes interactive controls, media, scripts, navigation and
// chat UI from the working copy.
func removeExcluded(n *Node) {
	kept := n.Children[:0]
	for _, child := range n.Children {
		if child.Type == ElementNode && isExcluded(child) {
			continue
		}
		removeExcluded(child)
		kept = append(kept, child)
	}
	n.Children = kept
}

func isExcluded(n *Node) bool {
	if _, ok := excludedTags[n.Tag]; ok {
		return true
	}
	for _, class := range excludedClasses {
		if n.HasClass(class) {
			return true
		}
	}
	return n.Attr("role") == "navigation"
}

// nodeLevel computes a node's hierarchy depth: heading tags yield their level
// verbatim, otherwise a bounded ancestor walk combines ancestor headings,
// section marker classes and ARIA heading levels into a best-effort depth.
func nodeLevel(n *Node, base int) int {
	if hl := n.headingLevel(); hl > 0 {
		return hl
	}

	level := base
	depth := 0
	for parent := n.Parent; parent != nil && depth < maxAncestorDepth; parent = parent.Parent {
		if hl := parent.headingLevel(); hl > 0 {
			if hl > level {
				level = hl
			}
		} else if parent.HasClass(sectionMarkerClass) {
			level++
		}

		if parent.Attr("role") == "heading" {
			if ariaLevel, err := strconv.Atoi(parent.Attr("aria-level")); err == nil && ariaLevel > level {
				level = ariaLevel
			}
		}

		depth++
	}

	return level
}

// processSkillElement tries the page's fixed skill selectors first and falls
// back to a generic text-node walk. A record is produced only when both a
// name and a numeric value were found; partial matches are discarded.
func (e *Extractor) processSkillElement(n *Node) (Record, bool) {
	nameEl := n.FindClass(skillNameClass)
	valueEl := n.FindClass(skillValueClass)

	if nameEl != nil && valueEl != nil {
		name := strings.TrimSpace(nameEl.TextContent())
		if value, ok := parseLeadingInt(strings.TrimSpace(valueEl.TextContent())); ok && name != "" {
			return skillRecord(name, value, nodeLevel(n, 0)), true
		}
	}

	var name string
	var value int
	var haveValue bool

	var walk func(node *Node)
	walk = func(node *Node) {
		if node.Type == TextNode {
			text := strings.TrimSpace(node.Text)
			if text == "" {
				return
			}
			if matchesValuePattern(text) {
				if !haveValue {
					if v, ok := parseLeadingInt(text); ok {
						value = v
						haveValue = true
					}
				}
			} else if len(text) > 1 && name == "" {
				name = text
			}
			return
		}
		for _, child := range node.Children {
			walk(child)
		}
	}
	walk(n)

	if name != "" && haveValue {
		return skillRecord(name, value, nodeLevel(n, 0)), true
	}
	return Record{}, false
}

func skillRecord(name string, value, level int) Record {
	return Record{
		Kind:         KindSkill,
		Name:         name,
		Value:        value,
		DisplayValue: strconv.Itoa(value) + "%",
		Level:        level,
	}
}

func matchesValuePattern(text string) bool {
	for _, pattern := range valuePatterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

// parseLeadingInt parses the leading digit run of a value like "50" or "50%".
func parseLeadingInt(text string) (int, bool) {
	end := 0
	for end < len(text) && text[end] >= '0' && text[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	value, err := strconv.Atoi(text[:end])
	if err != nil {
		return 0, false
	}
	return value, true
}

// extractStructured is the recursive depth-first walk. A heading closes the
// open section accumulator and opens a new one seeded with the heading text;
// loose text attaches to the open section or becomes a standalone record.
// Nodes inside claimed skill containers are skipped to avoid double-counting.
func (e *Extractor) extractStructured(root *Node, baseLevel int) []Record {
	var records []Record
	var currentSection *Record

	var process func(n *Node, level int)
	process = func(n *Node, level int) {
		if n == nil {
			return
		}

		if n.Type == ElementNode {
			nl := nodeLevel(n, level)

			if n.HasClass(skillContainerClass) {
				if skill, ok := e.processSkillElement(n); ok {
					records = append(records, skill)
					return
				}
			}

			if n.headingLevel() > 0 {
				if currentSection != nil {
					records = append(records, *currentSection)
				}
				currentSection = &Record{
					Kind:    KindSection,
					Level:   nl,
					Content: []string{strings.TrimSpace(n.TextContent())},
				}
				return
			}

			for _, child := range n.Children {
				process(child, nl)
			}
			return
		}

		text := strings.TrimSpace(n.Text)
		if text == "" || n.closestClass(skillContainerClass) {
			return
		}
		if currentSection != nil {
			currentSection.Content = append(currentSection.Content, text)
		} else {
			records = append(records, Record{Kind: KindText, Level: level, Content: []string{text}})
		}
	}

	process(root, baseLevel)

	if currentSection != nil && len(currentSection.Content) > 0 {
		records = append(records, *currentSection)
	}

	return cleanRecords(records)
}

// cleanRecords drops partial skills and empty content, normalizes whitespace
// and stamps a default section on every surviving record.
func cleanRecords(records []Record) []Record {
	cleaned := make([]Record, 0, len(records))
	for _, r := range records {
		switch r.Kind {
		case KindSkill:
			if r.Name == "" || r.DisplayValue == "" {
				continue
			}
			if r.Section == "" {
				r.Section = "skills"
			}
			r.Content = []string{r.Name + ": " + r.DisplayValue}

		case KindSection:
			var lines []string
			for _, line := range r.Content {
				line = strings.TrimSpace(whitespaceRuns.ReplaceAllString(line, " "))
				if line != "" {
					lines = append(lines, line)
				}
			}
			if len(lines) == 0 {
				continue
			}
			r.Content = lines
			if r.Section == "" {
				r.Section = UnknownSection
			}
			if r.Level == 0 {
				r.Level = 1
			}

		default:
			if len(r.Content) == 0 || r.Content[0] == "" {
				continue
			}
			if r.Section == "" {
				r.Section = UnknownSection
			}
		}
		cleaned = append(cleaned, r)
	}
	return cleaned
}
