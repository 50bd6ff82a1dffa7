package doctree

import (
	"strings"

	"github.com/dgallion1/docnav/internal/richtext"
)

// Flatten walks the tree depth-first and returns its readable blocks in
// document order. Leaf blocks are emitted whole; containers are descended.
// Deleted tracked changes are skipped with everything under them.
func Flatten(doc *richtext.Node) []SemanticNode {
	f := &flattener{}
	f.content(doc, 0, "")
	return f.out
}

type flattener struct {
	sections Sections
	out      []SemanticNode
}

func (f *flattener) content(parent *richtext.Node, start int, change string) {
	pos := start
	for _, c := range parent.Content {
		f.visit(c, pos, change)
		pos += c.Size()
	}
}

func (f *flattener) visit(n *richtext.Node, pos int, change string) {
	if n.IsDeleted() {
		return
	}

	switch n.Kind {
	case richtext.KindHeading:
		text := richtext.VisibleText(n)
		if strings.TrimSpace(text) == "" {
			return
		}
		level := min(max(n.Level(), 1), 6)
		f.sections.Enter(level, text)
		f.emit(n, pos, text, level, true, change)

	case richtext.KindParagraph, richtext.KindListItem, richtext.KindBlockquote,
		richtext.KindCodeBlock, richtext.KindTableCell:
		text := richtext.VisibleText(n)
		if strings.TrimSpace(text) == "" {
			return
		}
		f.emit(n, pos, text, 0, n.Kind == richtext.KindCodeBlock, change)

	case richtext.KindText, richtext.KindHardBreak:
		// Inline content outside a block has no reading position of its own.

	default:
		if n.IsChange() {
			change = n.ChangeType()
		}
		f.content(n, pos+1, change)
	}
}

// Sections tracks the heading hierarchy during a walk.
type Sections struct {
	path []string
}

// Enter truncates the path to the parent levels and records text at level.
// Missing intermediate levels are left blank.
func (s *Sections) Enter(level int, text string) {
	if len(s.path) > level-1 {
		s.path = s.path[:level-1]
	}
	for len(s.path) < level-1 {
		s.path = append(s.path, "")
	}
	s.path = append(s.path, text)
}

// Path returns a copy of the current hierarchy without blank levels.
func (s *Sections) Path() []string {
	var out []string
	for _, p := range s.path {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (f *flattener) emit(n *richtext.Node, pos int, text string, level int, boundary bool, change string) {
	if change == "" {
		change = inlineChangeType(n)
	}
	f.out = append(f.out, SemanticNode{
		Type:                 n.Kind,
		Text:                 text,
		Pos:                  pos,
		End:                  pos + n.Size(),
		Level:                level,
		IsStructuralBoundary: boundary,
		ChangeType:           change,
		SectionPath:          f.sections.Path(),
	})
}

// inlineChangeType reports the first visible tracked change inside a block.
func inlineChangeType(block *richtext.Node) string {
	var found string
	richtext.Walk(block, func(c *richtext.Node, _ int, _ *richtext.Node) bool {
		if found != "" || c.IsDeleted() {
			return false
		}
		if c.IsChange() {
			found = c.ChangeType()
			return false
		}
		return true
	})
	return found
}
