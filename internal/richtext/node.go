package richtext

import (
	"fmt"
	"unicode/utf8"
)

// Kind tags a node variant.
type Kind string

const (
	KindDoc             Kind = "doc"
	KindText            Kind = "text"
	KindHeading         Kind = "heading"
	KindParagraph       Kind = "paragraph"
	KindListItem        Kind = "listItem"
	KindBlockquote      Kind = "blockquote"
	KindCodeBlock       Kind = "codeBlock"
	KindTable           Kind = "table"
	KindTableRow        Kind = "tableRow"
	KindTableCell       Kind = "tableCell"
	KindBulletList      Kind = "bulletList"
	KindOrderedList     Kind = "orderedList"
	KindHardBreak       Kind = "hardBreak"
	KindInlineChange    Kind = "inlineChange"
	KindBlockChange     Kind = "blockChange"
	KindLineBreakChange Kind = "lineBreakChange"
)

// Tracked change types carried in the changeType attribute.
const (
	ChangeAdded    = "added"
	ChangeDeleted  = "deleted"
	ChangeModified = "modified"
)

// Mark types.
const (
	MarkBold      = "bold"
	MarkItalic    = "italic"
	MarkCode      = "code"
	MarkStrike    = "strike"
	MarkUnderline = "underline"
)

// MarkTypes lists the supported inline formatting marks in canonical order.
var MarkTypes = []string{MarkBold, MarkItalic, MarkCode, MarkStrike, MarkUnderline}

// Mark is an inline formatting annotation on a text node.
type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// Node is one variant of the rich document tree. Which fields are meaningful
// depends on Kind: text nodes carry Text and Marks, everything else carries
// Content. Attrs hold per-variant properties (heading level, changeType).
type Node struct {
	Kind    Kind           `json:"type"`
	Text    string         `json:"text,omitempty"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
	Content []*Node        `json:"content,omitempty"`
}

// IsText reports whether n is a text node.
func (n *Node) IsText() bool { return n.Kind == KindText }

// IsLeafInline reports whether n is an inline node without content that
// occupies a single position.
func (n *Node) IsLeafInline() bool {
	return n.Kind == KindHardBreak || n.Kind == KindLineBreakChange
}

// IsChange reports whether n is a tracked-change node.
func (n *Node) IsChange() bool {
	switch n.Kind {
	case KindInlineChange, KindBlockChange, KindLineBreakChange:
		return true
	}
	return false
}

// IsDeleted reports whether n is a tracked change marked deleted.
func (n *Node) IsDeleted() bool {
	return n.IsChange() && n.ChangeType() == ChangeDeleted
}

// IsTextblock reports whether n holds inline content directly.
func (n *Node) IsTextblock() bool {
	switch n.Kind {
	case KindParagraph, KindHeading, KindCodeBlock:
		return true
	}
	return false
}

// HoldsInline reports whether n's children are inline nodes.
func (n *Node) HoldsInline() bool {
	return n.IsTextblock() || n.Kind == KindInlineChange
}

// Size returns the number of positions n occupies.
func (n *Node) Size() int {
	switch {
	case n.IsText():
		return utf8.RuneCountInString(n.Text)
	case n.IsLeafInline():
		return 1
	}
	return 2 + n.ContentSize()
}

// ContentSize returns the summed size of n's children.
func (n *Node) ContentSize() int {
	size := 0
	for _, c := range n.Content {
		size += c.Size()
	}
	return size
}

// Level returns the heading level, or 0 if absent.
func (n *Node) Level() int {
	return intAttr(n.Attrs, "level")
}

// ChangeType returns the changeType attribute of a tracked-change node.
func (n *Node) ChangeType() string {
	s, _ := n.Attrs["changeType"].(string)
	return s
}

// HasMark reports whether a text node carries the given mark type.
func (n *Node) HasMark(markType string) bool {
	for _, m := range n.Marks {
		if m.Type == markType {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{Kind: n.Kind, Text: n.Text}
	if n.Attrs != nil {
		out.Attrs = make(map[string]any, len(n.Attrs))
		for k, v := range n.Attrs {
			out.Attrs[k] = v
		}
	}
	if len(n.Marks) > 0 {
		out.Marks = cloneMarks(n.Marks)
	}
	if len(n.Content) > 0 {
		out.Content = make([]*Node, len(n.Content))
		for i, c := range n.Content {
			out.Content[i] = c.Clone()
		}
	}
	return out
}

func cloneMarks(marks []Mark) []Mark {
	out := make([]Mark, len(marks))
	for i, m := range marks {
		out[i] = Mark{Type: m.Type}
		if m.Attrs != nil {
			out[i].Attrs = make(map[string]any, len(m.Attrs))
			for k, v := range m.Attrs {
				out[i].Attrs[k] = v
			}
		}
	}
	return out
}

// intAttr reads an integer attribute that may have been decoded from JSON
// as float64.
func intAttr(attrs map[string]any, key string) int {
	switch v := attrs[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func (n *Node) String() string {
	if n.IsText() {
		return fmt.Sprintf("text(%q)", n.Text)
	}
	return fmt.Sprintf("%s[%d children]", n.Kind, len(n.Content))
}
