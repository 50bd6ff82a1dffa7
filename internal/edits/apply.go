package edits

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dgallion1/docnav/internal/anchor"
	"github.com/dgallion1/docnav/internal/richtext"
)

// OpError wraps the failure of one accepted operation during application.
type OpError struct {
	Index int
	Type  OpType
	Err   error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("edits[%d] (%s): %v", e.Index, e.Type, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// Outcome is the result of resolving a batch against one snapshot.
type Outcome struct {
	Doc     *richtext.Node  // Working tree after every successful operation
	Steps   []richtext.Step // Steps to commit, in application order
	Applied int
	Failed  []*OpError
}

// Applier turns text-anchored operations into position steps.
type Applier struct {
	proximity int
}

// NewApplier creates an Applier; proximity <= 0 uses DefaultProximity.
func NewApplier(proximity int) *Applier {
	if proximity <= 0 {
		proximity = DefaultProximity
	}
	return &Applier{proximity: proximity}
}

// Apply resolves entries in order. Each operation is resolved against the
// tree produced by the operations before it, so later anchors see shifted
// positions. Failing operations are skipped and reported; the input tree is
// never modified.
func (a *Applier) Apply(doc *richtext.Node, entries []Entry) Outcome {
	out := Outcome{Doc: doc}
	for _, e := range entries {
		steps, err := a.plan(out.Doc, e.Op)
		if err == nil {
			var next *richtext.Node
			if next, err = richtext.Apply(out.Doc, steps); err == nil {
				out.Doc = next
				out.Steps = append(out.Steps, steps...)
				out.Applied++
				continue
			}
		}
		out.Failed = append(out.Failed, &OpError{Index: e.Index, Type: e.Op.Type, Err: err})
	}
	return out
}

// AnchorMisses returns the failures caused by unmatched text.
func (o Outcome) AnchorMisses() []*OpError {
	var out []*OpError
	for _, f := range o.Failed {
		var nf *AnchorNotFoundError
		if errors.As(f, &nf) {
			out = append(out, f)
		}
	}
	return out
}

func (a *Applier) plan(doc *richtext.Node, op Operation) ([]richtext.Step, error) {
	switch op.Type {
	case OpReplace:
		matches, err := a.targets(doc, op.FindText, op)
		if err != nil {
			return nil, err
		}
		replacement := ""
		if op.ReplaceText != nil {
			replacement = *op.ReplaceText
		}
		// Back to front so earlier positions stay valid.
		steps := make([]richtext.Step, 0, len(matches))
		for _, m := range slices.Backward(matches) {
			steps = append(steps, richtext.ReplaceText(m.From, m.To, replacement))
		}
		return steps, nil

	case OpAddMark, OpRemoveMark, OpReplaceMark:
		matches, err := a.targets(doc, op.Text, op)
		if err != nil {
			return nil, err
		}
		var steps []richtext.Step
		for _, m := range matches {
			switch op.Type {
			case OpAddMark:
				steps = append(steps, richtext.AddMark(m.From, m.To, op.MarkType))
			case OpRemoveMark:
				steps = append(steps, richtext.RemoveMark(m.From, m.To, op.MarkType))
			default:
				steps = append(steps,
					richtext.RemoveMark(m.From, m.To, op.OldMarkType),
					richtext.AddMark(m.From, m.To, op.NewMarkType))
			}
		}
		return steps, nil

	case OpAddParagraph:
		pos, err := blockPlacement(doc, op)
		if err != nil {
			return nil, err
		}
		return []richtext.Step{richtext.InsertBlock(pos, newBlock(op))}, nil

	case OpInsert:
		pos, err := insertPosition(doc, op)
		if err != nil {
			return nil, err
		}
		return []richtext.Step{richtext.InsertText(pos, op.InsertText)}, nil
	}
	return nil, fmt.Errorf("unsupported operation %q", op.Type)
}

func occurrence(op Operation) int {
	if op.OccurrenceIndex != nil {
		return *op.OccurrenceIndex
	}
	return 1
}

func anchorError(err error) error {
	var nf *anchor.NotFoundError
	if errors.As(err, &nf) {
		return &AnchorNotFoundError{Anchor: nf.Anchor, Occurrence: nf.Occurrence, Found: nf.Found}
	}
	return err
}

// blockPlacement returns the boundary after (afterText) or before
// (beforeText) the top-level block holding the anchor, defaulting to the
// end of the document.
func blockPlacement(doc *richtext.Node, op Operation) (int, error) {
	var (
		pos int
		err error
		r   = anchor.NewResolver(doc)
	)
	switch {
	case op.AfterText != "":
		pos, err = r.After(op.AfterText, occurrence(op))
	case op.BeforeText != "":
		pos, err = r.Before(op.BeforeText, occurrence(op))
	default:
		return doc.ContentSize(), nil
	}
	if err != nil {
		return 0, anchorError(err)
	}
	block, blockPos, ok := richtext.TopLevelBlockAt(doc, pos)
	if !ok {
		return doc.ContentSize(), nil
	}
	if op.AfterText != "" {
		return blockPos + block.Size(), nil
	}
	return blockPos, nil
}

// insertPosition resolves where insert places its text: an explicit
// position, an anchor, or the end of the last text block.
func insertPosition(doc *richtext.Node, op Operation) (int, error) {
	r := anchor.NewResolver(doc)
	switch {
	case op.Position != nil:
		if pos := richtext.NearestTextPos(doc, *op.Position); pos >= 0 {
			return pos, nil
		}
		return 0, errors.New("document has no text block to insert into")
	case op.AfterText != "":
		pos, err := r.After(op.AfterText, occurrence(op))
		return pos, anchorError(err)
	case op.BeforeText != "":
		pos, err := r.Before(op.BeforeText, occurrence(op))
		return pos, anchorError(err)
	}
	if pos := richtext.LastTextblockEnd(doc); pos >= 0 {
		return pos, nil
	}
	return 0, errors.New("document has no text block to insert into")
}

func newBlock(op Operation) *richtext.Node {
	content := ""
	if op.Content != nil {
		content = *op.Content
	}
	inline := inlineContent(content)
	switch op.ParagraphType {
	case ParagraphHeading:
		level := 1
		if op.HeadingLevel != nil {
			level = *op.HeadingLevel
		}
		return richtext.Heading(level, inline...)
	case ParagraphBlockquote:
		return richtext.Blockquote(richtext.Paragraph(inline...))
	case ParagraphBulletList:
		return richtext.BulletList(richtext.ListItem(richtext.Paragraph(inline...)))
	case ParagraphOrdered:
		return richtext.OrderedList(richtext.ListItem(richtext.Paragraph(inline...)))
	case ParagraphCodeBlock:
		return richtext.CodeBlock(content)
	}
	return richtext.Paragraph(inline...)
}

// inlineContent turns newlines into hard breaks.
func inlineContent(s string) []*richtext.Node {
	var out []*richtext.Node
	for i, line := range strings.Split(s, "\n") {
		if i > 0 {
			out = append(out, richtext.HardBreak())
		}
		if line != "" {
			out = append(out, richtext.Text(line))
		}
	}
	return out
}
