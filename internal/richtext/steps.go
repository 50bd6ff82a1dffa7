package richtext

import (
	"errors"
	"fmt"
	"slices"
)

// StepType names a tree mutation understood by the document store.
type StepType string

const (
	StepReplaceText StepType = "replaceText"
	StepAddMark     StepType = "addMark"
	StepRemoveMark  StepType = "removeMark"
	StepInsertText  StepType = "insertText"
	StepInsertBlock StepType = "insertBlock"
)

// Step is one position-addressed mutation. Field use depends on Type.
type Step struct {
	Type     StepType `json:"stepType"`
	From     int      `json:"from,omitempty"`
	To       int      `json:"to,omitempty"`
	Pos      int      `json:"pos,omitempty"`
	Text     string   `json:"text,omitempty"`
	Mark     *Mark    `json:"mark,omitempty"`
	MarkType string   `json:"markType,omitempty"`
	Node     *Node    `json:"node,omitempty"`
}

// ErrBadStep is wrapped by every step application failure.
var ErrBadStep = errors.New("bad step")

// ReplaceText builds a step replacing [from, to) with text.
func ReplaceText(from, to int, text string) Step {
	return Step{Type: StepReplaceText, From: from, To: to, Text: text}
}

// InsertText builds a step inserting text at pos.
func InsertText(pos int, text string) Step {
	return Step{Type: StepInsertText, Pos: pos, Text: text}
}

// AddMark builds a step applying a mark to [from, to).
func AddMark(from, to int, markType string) Step {
	return Step{Type: StepAddMark, From: from, To: to, Mark: &Mark{Type: markType}}
}

// RemoveMark builds a step removing a mark type from [from, to).
func RemoveMark(from, to int, markType string) Step {
	return Step{Type: StepRemoveMark, From: from, To: to, MarkType: markType}
}

// InsertBlock builds a step inserting a block node at a block boundary.
func InsertBlock(pos int, node *Node) Step {
	return Step{Type: StepInsertBlock, Pos: pos, Node: node}
}

// Apply returns a copy of doc with steps applied in order. doc is never
// modified. A failing step aborts the whole application.
func Apply(doc *Node, steps []Step) (*Node, error) {
	out := doc.Clone()
	for i, s := range steps {
		if err := applyStep(out, s); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, s.Type, err)
		}
		normalize(out)
	}
	return out, nil
}

func applyStep(doc *Node, s Step) error {
	size := doc.ContentSize()
	switch s.Type {
	case StepReplaceText:
		if s.From < 0 || s.To < s.From || s.To > size {
			return fmt.Errorf("%w: range [%d,%d) outside document of size %d", ErrBadStep, s.From, s.To, size)
		}
		return replaceInline(doc, s.From, s.To, s.Text)
	case StepInsertText:
		if s.Pos < 0 || s.Pos > size {
			return fmt.Errorf("%w: position %d outside document of size %d", ErrBadStep, s.Pos, size)
		}
		if s.Text == "" {
			return nil
		}
		return replaceInline(doc, s.Pos, s.Pos, s.Text)
	case StepAddMark:
		if s.Mark == nil || !slices.Contains(MarkTypes, s.Mark.Type) {
			return fmt.Errorf("%w: missing or unknown mark", ErrBadStep)
		}
		mark := *s.Mark
		setMarks(doc, 0, s.From, s.To, func(marks []Mark) []Mark { return addMark(marks, mark) })
		return nil
	case StepRemoveMark:
		setMarks(doc, 0, s.From, s.To, func(marks []Mark) []Mark { return removeMark(marks, s.MarkType) })
		return nil
	case StepInsertBlock:
		if s.Node == nil {
			return fmt.Errorf("%w: missing node", ErrBadStep)
		}
		if err := s.Node.Validate(); err != nil {
			return err
		}
		if isInline(s.Node) {
			return fmt.Errorf("%w: insertBlock with inline %s", ErrBadStep, s.Node.Kind)
		}
		if !insertBlock(doc, 0, s.Pos, s.Node.Clone()) {
			return fmt.Errorf("%w: position %d is not a block boundary", ErrBadStep, s.Pos)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown step type %q", ErrBadStep, s.Type)
}

// inlineParentFor finds the deepest node holding inline content whose content
// range covers [from, to].
func inlineParentFor(doc *Node, from, to int) (*Node, int) {
	var parent *Node
	start := 0
	Walk(doc, func(n *Node, pos int, _ *Node) bool {
		if n.IsText() || n.IsLeafInline() {
			return false
		}
		cs, ce := pos+1, pos+1+n.ContentSize()
		if from < cs || to > ce {
			return false
		}
		if n.HoldsInline() {
			parent, start = n, cs
		}
		return true
	})
	return parent, start
}

// replaceInline swaps the inline content in [from, to) for a text node
// inheriting the marks found at from.
func replaceInline(doc *Node, from, to int, text string) error {
	parent, start := inlineParentFor(doc, from, to)
	if parent == nil {
		return fmt.Errorf("%w: [%d,%d) is not inside a single text block", ErrBadStep, from, to)
	}

	var (
		out      []*Node
		inserted bool
		marks    []Mark
	)
	insert := func() {
		if inserted {
			return
		}
		inserted = true
		if text != "" {
			out = append(out, &Node{Kind: KindText, Text: text, Marks: marks})
		}
	}

	offset := start
	for _, c := range parent.Content {
		cs, ce := offset, offset+c.Size()
		offset = ce
		switch {
		case ce <= from && !(cs == from && from < to):
			if c.IsText() && ce == from {
				marks = c.Marks
			}
			out = append(out, c)
		case cs >= to:
			insert()
			out = append(out, c)
		case c.IsText():
			runes := []rune(c.Text)
			if marks == nil || cs <= from {
				marks = c.Marks
			}
			if from > cs {
				out = append(out, &Node{Kind: KindText, Text: string(runes[:from-cs]), Marks: c.Marks})
			}
			insert()
			if to < ce {
				out = append(out, &Node{Kind: KindText, Text: string(runes[to-cs:]), Marks: c.Marks})
			}
		case c.IsLeafInline() && cs >= from && ce <= to:
			insert()
		default:
			return fmt.Errorf("%w: [%d,%d) crosses %s", ErrBadStep, from, to, c.Kind)
		}
	}
	insert()
	parent.Content = out
	return nil
}

// setMarks rewrites the marks of every text node overlapping [from, to),
// splitting nodes at the range edges.
func setMarks(n *Node, start, from, to int, update func([]Mark) []Mark) {
	if len(n.Content) == 0 {
		return
	}
	var out []*Node
	offset := start
	for _, c := range n.Content {
		cs, ce := offset, offset+c.Size()
		offset = ce
		if !c.IsText() || ce <= from || cs >= to {
			if !c.IsText() && !c.IsLeafInline() && ce > from && cs < to {
				setMarks(c, cs+1, from, to, update)
			}
			out = append(out, c)
			continue
		}
		runes := []rune(c.Text)
		lo, hi := max(from-cs, 0), min(to-cs, len(runes))
		if lo > 0 {
			out = append(out, &Node{Kind: KindText, Text: string(runes[:lo]), Marks: c.Marks})
		}
		out = append(out, &Node{Kind: KindText, Text: string(runes[lo:hi]), Marks: update(cloneMarks(c.Marks))})
		if hi < len(runes) {
			out = append(out, &Node{Kind: KindText, Text: string(runes[hi:]), Marks: c.Marks})
		}
	}
	n.Content = out
}

func addMark(marks []Mark, m Mark) []Mark {
	marks = removeMark(marks, m.Type)
	marks = append(marks, m)
	slices.SortFunc(marks, func(a, b Mark) int {
		return slices.Index(MarkTypes, a.Type) - slices.Index(MarkTypes, b.Type)
	})
	return marks
}

func removeMark(marks []Mark, markType string) []Mark {
	out := marks[:0]
	for _, m := range marks {
		if m.Type != markType {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// insertBlock places node at a block boundary pos inside a block container.
func insertBlock(n *Node, start, pos int, node *Node) bool {
	if n.HoldsInline() || n.IsText() || n.IsLeafInline() {
		return false
	}
	offset := start
	for i, c := range n.Content {
		if offset == pos {
			n.Content = slices.Insert(n.Content, i, node)
			return true
		}
		end := offset + c.Size()
		if pos > offset && pos < end && insertBlock(c, offset+1, pos, node) {
			return true
		}
		offset = end
	}
	if offset == pos {
		n.Content = append(n.Content, node)
		return true
	}
	return false
}

// Normalize merges adjacent text nodes with equal marks and drops empty
// text nodes throughout n, in place. Marks are compared in order, so
// builders should emit them in MarkTypes order.
func Normalize(n *Node) { normalize(n) }

// normalize merges adjacent text nodes with equal marks and drops empty ones.
func normalize(n *Node) {
	if len(n.Content) == 0 {
		return
	}
	out := n.Content[:0]
	for _, c := range n.Content {
		if c.IsText() {
			if c.Text == "" {
				continue
			}
			if k := len(out); k > 0 && out[k-1].IsText() && sameMarks(out[k-1].Marks, c.Marks) {
				out[k-1] = &Node{Kind: KindText, Text: out[k-1].Text + c.Text, Marks: out[k-1].Marks}
				continue
			}
		} else {
			normalize(c)
		}
		out = append(out, c)
	}
	n.Content = out
}

func sameMarks(a, b []Mark) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Type != b[i].Type {
			return false
		}
	}
	return true
}
