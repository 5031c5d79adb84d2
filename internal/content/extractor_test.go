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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func extract(t *testing.T, page, sectionID string) []Record {
	t.Helper()

	root, err := ParseString(page)
	require.NoError(t, err)

	records, err := NewExtractor(zap.NewNop()).ExtractSection(root, sectionID)
	require.NoError(t, err)
	return records
}

func TestExtractSectionMissingSection(t *testing.T) {
	root, err := ParseString(`<div id="about"></div>`)
	require.NoError(t, err)

	_, err = NewExtractor(zap.NewNop()).ExtractSection(root, "skills")
	assert.ErrorIs(t, err, ErrSectionNotFound)
}

func TestExtractSkillsAndHeadingSection(t *testing.T) {
	page := `
	<div id="skills" class="section">
		<h2>Compétences</h2>
		<div class="space-y-2">
			<span class="text-gray-300">Go</span>
			<span class="text-blue-400">75%</span>
		</div>
		<p>Je développe des services.</p>
	</div>`

	records := extract(t, page, "skills")
	require.Len(t, records, 2)

	skill := records[0]
	assert.Equal(t, KindSkill, skill.Kind)
	assert.Equal(t, "Go", skill.Name)
	assert.Equal(t, 75, skill.Value)
	assert.Equal(t, "75%", skill.DisplayValue)
	assert.Equal(t, "skills", skill.Section)
	assert.Equal(t, []string{"Go: 75%"}, skill.Content)

	section := records[1]
	assert.Equal(t, KindSection, section.Kind)
	assert.Equal(t, 2, section.Level)
	assert.Equal(t, UnknownSection, section.Section)
	assert.Equal(t, []string{"Compétences", "Je développe des services."}, section.Content)
}

func TestExtractSkillFallbackWalkFirstNumericWins(t *testing.T) {
	// No fixed selector classes: the generic text walk must find the name and
	// keep the first numeric value it sees.
	page := `
	<div id="skills">
		<div class="space-y-2">
			<div><span>React</span><span>80%</span><span>90</span></div>
		</div>
	</div>`

	records := extract(t, page, "skills")
	require.Len(t, records, 1)

	skill := records[0]
	assert.Equal(t, KindSkill, skill.Kind)
	assert.Equal(t, "React", skill.Name)
	assert.Equal(t, 80, skill.Value)
	assert.Equal(t, "80%", skill.DisplayValue)
}

func TestExtractSkillPartialMatchIsDiscarded(t *testing.T) {
	page := `
	<div id="skills">
		<div class="space-y-2"><span>Nom sans valeur</span></div>
	</div>`

	records := extract(t, page, "skills")
	assert.Empty(t, records)
}

func TestExtractSkipsExcludedElements(t *testing.T) {
	page := `
	<div id="about">
		<button>Envoyer</button>
		<div class="chat-container"><p>message du chat</p></div>
		<div role="navigation"><a>menu</a></div>
		<p>Texte conservé</p>
	</div>`

	records := extract(t, page, "about")
	require.Len(t, records, 1)
	assert.Equal(t, KindText, records[0].Kind)
	assert.Equal(t, []string{"Texte conservé"}, records[0].Content)
	assert.Equal(t, UnknownSection, records[0].Section)
}

func TestExtractHeadingOpensNewSection(t *testing.T) {
	page := `
	<div id="about">
		<h2>Présentation</h2>
		<p>Première partie.</p>
		<h3>Parcours</h3>
		<p>Seconde partie.</p>
	</div>`

	records := extract(t, page, "about")
	require.Len(t, records, 2)

	assert.Equal(t, 2, records[0].Level)
	assert.Equal(t, []string{"Présentation", "Première partie."}, records[0].Content)

	assert.Equal(t, 3, records[1].Level)
	assert.Equal(t, []string{"Parcours", "Seconde partie."}, records[1].Content)
}

func TestExtractCollapsesWhitespaceInSectionLines(t *testing.T) {
	page := `
	<div id="about">
		<h2>Titre</h2>
		<p>ligne   avec
		des    espaces</p>
	</div>`

	records := extract(t, page, "about")
	require.Len(t, records, 1)
	assert.Equal(t, []string{"Titre", "ligne avec des espaces"}, records[0].Content)
}

func TestExtractTextOutsideSkillContainerOnly(t *testing.T) {
	// Text inside a claimed skill container must not double-count as loose text.
	page := `
	<div id="skills">
		<div class="space-y-2">
			<span class="text-gray-300">Docker</span>
			<span class="text-blue-400">60%</span>
		</div>
	</div>`

	records := extract(t, page, "skills")
	require.Len(t, records, 1)
	assert.Equal(t, KindSkill, records[0].Kind)
}

func TestExtractDoesNotMutateLiveTree(t *testing.T) {
	page := `<div id="about"><button>Envoyer</button><p>Texte</p></div>`

	root, err := ParseString(page)
	require.NoError(t, err)

	_, err = NewExtractor(zap.NewNop()).ExtractSection(root, "about")
	require.NoError(t, err)

	// The button is pruned from the working copy, never from the live tree.
	about := root.GetByID("about")
	var buttons int
	var walk func(n *Node)
	walk = func(n *Node) {
		if n.Tag == "button" {
			buttons++
		}
		for _, child := range n.Children {
			walk(child)
		}
	}
	walk(about)
	assert.Equal(t, 1, buttons)
}

func TestNodeLevelUsesAncestorContext(t *testing.T) {
	page := `
	<div id="root">
		<div class="section">
			<div role="heading" aria-level="4">
				<span id="deep">x</span>
			</div>
		</div>
	</div>`

	root, err := ParseString(page)
	require.NoError(t, err)

	deep := root.GetByID("deep")
	require.NotNil(t, deep)

	// The ARIA heading level applies first, then the .section ancestor adds one.
	assert.Equal(t, 5, nodeLevel(deep, 0))
}

func TestParseLeadingInt(t *testing.T) {
	tests := []struct {
		in    string
		value int
		ok    bool
	}{
		{"50", 50, true},
		{"50%", 50, true},
		{"100", 100, true},
		{"%", 0, false},
		{"abc", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		value, ok := parseLeadingInt(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.value, value, tt.in)
	}
}
