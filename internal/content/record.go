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

import "strings"

// RecordKind is the type of an extracted content record.
type RecordKind string

const (
	// KindSkill is a labeled name/value competency pair
	KindSkill RecordKind = "skill"
	// KindSection is a heading-defined group of text lines
	KindSection RecordKind = "section"
	// KindText is a standalone text fragment outside any section
	KindText RecordKind = "text"
)

// UnknownSection is stamped on records whose owning page region could not be
// determined.
const UnknownSection = "unknown"

// Record is the unit of retrievable knowledge produced by extraction.
// Records are value types: freely copyable, never shared mutably.
type Record struct {
	Kind         RecordKind `json:"type"`
	Section      string     `json:"section"`
	Level        int        `json:"level,omitempty"`
	Name         string     `json:"name,omitempty"`
	Value        int        `json:"value,omitempty"`
	DisplayValue string     `json:"displayValue,omitempty"`
	Content      []string   `json:"content"`
}

// Text renders the record as a single retrievable string: skills as
// "name: value%", sections and text as their joined lines.
func (r Record) Text() string {
	if r.Kind == KindSkill {
		return r.Name + ": " + r.DisplayValue
	}
	return strings.Join(r.Content, " ")
}
