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
	"io"
	"strings"

	"golang.org/x/net/html"
)

// NodeType discriminates element nodes from text nodes in the minimal tree.
type NodeType int

const (
	// ElementNode is an HTML element
	ElementNode NodeType = iota
	// TextNode is a text fragment
	TextNode
)

// Node is the minimal tree the extractor operates on. It carries just enough
// of the rendered page (tag, classes, attributes, text, structure) to run the
// extraction algorithm, so extraction is testable against synthetic trees
// without a rendering engine.
type Node struct {
	Type     NodeType
	Tag      string
	Text     string
	Attrs    map[string]string
	Children []*Node
	Parent   *Node
}

// Parse builds a minimal tree from an HTML document or fragment.
func Parse(r io.Reader) (*Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	return convert(doc, nil), nil
}

// ParseString is a convenience wrapper around Parse.
func ParseString(s string) (*Node, error) {
	return Parse(strings.NewReader(s))
}

// convert maps an x/net/html tree onto the minimal tree, keeping only element
// and text nodes.
func convert(n *html.Node, parent *Node) *Node {
	var node *Node

	switch n.Type {
	case html.DocumentNode:
		node = &Node{Type: ElementNode, Tag: "#document", Parent: parent}
	case html.ElementNode:
		node = &Node{
			Type:   ElementNode,
			Tag:    strings.ToLower(n.Data),
			Attrs:  attrMap(n),
			Parent: parent,
		}
	case html.TextNode:
		return &Node{Type: TextNode, Text: n.Data, Parent: parent}
	default:
		return nil
	}

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if converted := convert(child, node); converted != nil {
			node.Children = append(node.Children, converted)
		}
	}

	return node
}

func attrMap(n *html.Node) map[string]string {
	if len(n.Attr) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		attrs[strings.ToLower(a.Key)] = a.Val
	}
	return attrs
}

// Attr returns the value of the named attribute, or "" if absent.
func (n *Node) Attr(name string) string {
	if n.Attrs == nil {
		return ""
	}
	return n.Attrs[name]
}

// HasClass reports whether the node carries the given CSS class.
func (n *Node) HasClass(class string) bool {
	for _, c := range strings.Fields(n.Attr("class")) {
		if c == class {
			return true
		}
	}
	return false
}

// GetByID returns the first descendant (or the node itself) with the given id.
func (n *Node) GetByID(id string) *Node {
	if n.Type == ElementNode && n.Attr("id") == id {
		return n
	}
	for _, child := range n.Children {
		if found := child.GetByID(id); found != nil {
			return found
		}
	}
	return nil
}

// FindClass returns the first descendant element carrying the given class, in
// document order.
func (n *Node) FindClass(class string) *Node {
	for _, child := range n.Children {
		if child.Type == ElementNode && child.HasClass(class) {
			return child
		}
		if found := child.FindClass(class); found != nil {
			return found
		}
	}
	return nil
}

// TextContent returns the concatenated text of the subtree.
func (n *Node) TextContent() string {
	var sb strings.Builder
	n.appendText(&sb)
	return sb.String()
}

func (n *Node) appendText(sb *strings.Builder) {
	if n.Type == TextNode {
		sb.WriteString(n.Text)
		return
	}
	for _, child := range n.Children {
		child.appendText(sb)
	}
}

// Clone returns a deep copy of the subtree with parent links rewired, so the
// copy can be mutated without touching the live tree.
func (n *Node) Clone() *Node {
	return n.cloneInto(nil)
}

func (n *Node) cloneInto(parent *Node) *Node {
	cloned := &Node{
		Type:   n.Type,
		Tag:    n.Tag,
		Text:   n.Text,
		Parent: parent,
	}
	if n.Attrs != nil {
		cloned.Attrs = make(map[string]string, len(n.Attrs))
		for k, v := range n.Attrs {
			cloned.Attrs[k] = v
		}
	}
	for _, child := range n.Children {
		cloned.Children = append(cloned.Children, child.cloneInto(cloned))
	}
	return cloned
}

// closestClass reports whether the node or any ancestor carries the class.
func (n *Node) closestClass(class string) bool {
	for current := n; current != nil; current = current.Parent {
		if current.Type == ElementNode && current.HasClass(class) {
			return true
		}
	}
	return false
}

// headingLevel returns the heading depth (1-6) for h1..h6 tags, or 0.
func (n *Node) headingLevel() int {
	if n.Type != ElementNode || len(n.Tag) != 2 || n.Tag[0] != 'h' {
		return 0
	}
	if n.Tag[1] >= '1' && n.Tag[1] <= '6' {
		return int(n.Tag[1] - '0')
	}
	return 0
}
