package edits

import (
	"errors"
	"testing"

	rt "github.com/dgallion1/docnav/internal/richtext"
)

func apply(t *testing.T, doc *rt.Node, ops ...Operation) Outcome {
	t.Helper()
	res := NewValidator().Validate(ops)
	if len(res.Rejected) > 0 {
		t.Fatalf("unexpected rejections: %v", res.Rejected)
	}
	return NewApplier(0).Apply(doc, res.Accepted)
}

func TestApply_OccurrenceIndex(t *testing.T) {
	doc := rt.Doc(rt.Paragraph(rt.Text("A B A B A")))
	out := apply(t, doc, Operation{Type: OpReplace, FindText: "A", ReplaceText: Str("X"), OccurrenceIndex: Int(2)})
	if got := rt.VisibleText(out.Doc); got != "A B X B A" {
		t.Errorf("expected %q, got %q", "A B X B A", got)
	}
	if got := rt.VisibleText(doc); got != "A B A B A" {
		t.Errorf("input mutated: %q", got)
	}
}

func TestApply_ContextBeforeSelectsMatch(t *testing.T) {
	doc := rt.Doc(
		rt.Paragraph(rt.Text("The plaintiff filed first.")),
		rt.Paragraph(rt.Text("Later the court heard the defendant and the plaintiff appealed.")),
	)
	out := apply(t, doc, Operation{
		Type: OpReplace, FindText: "plaintiff", ReplaceText: Str("claimant"), ContextBefore: "defendant and",
	})
	want := "The plaintiff filed first.Later the court heard the defendant and the claimant appealed."
	if got := rt.VisibleText(out.Doc); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestApply_ContextAfterMissing(t *testing.T) {
	doc := rt.Doc(rt.Paragraph(rt.Text("The plaintiff filed.")))
	out := apply(t, doc, Operation{Type: OpReplace, FindText: "plaintiff", ReplaceText: Str("x"), ContextAfter: "appealed"})
	if out.Applied != 0 || len(out.AnchorMisses()) != 1 {
		t.Fatalf("expected one anchor miss, got applied=%d failed=%v", out.Applied, out.Failed)
	}
	var nf *AnchorNotFoundError
	if !errors.As(out.Failed[0], &nf) || !nf.Context {
		t.Errorf("expected context miss, got %v", out.Failed[0])
	}
}

func TestApply_SelectionModes(t *testing.T) {
	doc := rt.Doc(rt.Paragraph(rt.Text("a a a a")))
	tests := []struct {
		name string
		op   Operation
		want string
	}{
		{"first only", Operation{Type: OpReplace, FindText: "a", ReplaceText: Str("b")}, "b a a a"},
		{"max occurrences", Operation{Type: OpReplace, FindText: "a", ReplaceText: Str("b"), MaxOccurrences: Int(2)}, "b b a a"},
		{"replace all", Operation{Type: OpReplace, FindText: "a", ReplaceText: Str("bb"), ReplaceAll: true}, "bb bb bb bb"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := apply(t, doc, tt.op)
			if got := rt.VisibleText(out.Doc); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestApply_EmptyReplaceDeletes(t *testing.T) {
	doc := rt.Doc(rt.Paragraph(rt.Text("The parties, jointly and severally, agree.")))
	out := apply(t, doc, Operation{Type: OpReplace, FindText: ", jointly and severally", ReplaceText: Str("")})
	if got := rt.VisibleText(out.Doc); got != "The parties, agree." {
		t.Errorf("expected %q, got %q", "The parties, agree.", got)
	}
}

func TestApply_PositionsShiftWithinBatch(t *testing.T) {
	doc := rt.Doc(rt.Paragraph(rt.Text("short middle end")))
	out := apply(t, doc,
		Operation{Type: OpReplace, FindText: "short", ReplaceText: Str("a much longer opening")},
		Operation{Type: OpReplace, FindText: "end", ReplaceText: Str("finish")},
		Operation{Type: OpAddMark, Text: "middle", MarkType: "bold"},
	)
	if out.Applied != 3 {
		t.Fatalf("expected 3 applied, got %d: %v", out.Applied, out.Failed)
	}
	if got := rt.VisibleText(out.Doc); got != "a much longer opening middle finish" {
		t.Errorf("unexpected text %q", got)
	}

	// Replaying the collected steps on the snapshot gives the same tree.
	replayed, err := rt.Apply(doc, out.Steps)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if rt.VisibleText(replayed) != rt.VisibleText(out.Doc) {
		t.Error("expected replayed steps to reproduce the working tree")
	}
	p := replayed.Content[0]
	if len(p.Content) != 3 || p.Content[1].Text != "middle" || !p.Content[1].HasMark(rt.MarkBold) {
		t.Errorf("expected bold middle, got %v", p.Content)
	}
}

func TestApply_Marks(t *testing.T) {
	doc := rt.Doc(rt.Paragraph(rt.Text("The Seller shall deliver.")))
	out := apply(t, doc, Operation{Type: OpAddMark, Text: "Seller", MarkType: "bold"})
	seller := out.Doc.Content[0].Content[1]
	if seller.Text != "Seller" || !seller.HasMark(rt.MarkBold) {
		t.Fatalf("expected bold Seller, got %v", out.Doc.Content[0].Content)
	}

	out = apply(t, out.Doc, Operation{Type: OpReplaceMark, Text: "Seller", OldMarkType: "bold", NewMarkType: "italic"})
	seller = out.Doc.Content[0].Content[1]
	if seller.HasMark(rt.MarkBold) || !seller.HasMark(rt.MarkItalic) {
		t.Errorf("expected italic only, got %+v", seller.Marks)
	}

	out = apply(t, out.Doc, Operation{Type: OpRemoveMark, Text: "Seller", MarkType: "italic"})
	if n := len(out.Doc.Content[0].Content); n != 1 {
		t.Errorf("expected plain text to merge into one node, got %d", n)
	}
}

func TestApply_AddParagraphPlacement(t *testing.T) {
	doc := rt.Doc(rt.Paragraph(rt.Text("First.")), rt.Paragraph(rt.Text("Second.")))
	tests := []struct {
		name    string
		op      Operation
		wantIdx int
	}{
		{"after", Operation{Type: OpAddParagraph, Content: Str("New"), AfterText: "First"}, 1},
		{"before", Operation{Type: OpAddParagraph, Content: Str("New"), BeforeText: "First"}, 0},
		{"end", Operation{Type: OpAddParagraph, Content: Str("New")}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := apply(t, doc, tt.op)
			if len(out.Doc.Content) != 3 {
				t.Fatalf("expected 3 blocks, got %d", len(out.Doc.Content))
			}
			if got := rt.VisibleText(out.Doc.Content[tt.wantIdx]); got != "New" {
				t.Errorf("expected new block at %d, got %q", tt.wantIdx, got)
			}
		})
	}
}

func TestApply_AddParagraphTypes(t *testing.T) {
	doc := rt.Doc(rt.BulletList(rt.ListItem(rt.Paragraph(rt.Text("item")))))
	out := apply(t, doc,
		Operation{Type: OpAddParagraph, Content: Str("Heading"), ParagraphType: "heading", HeadingLevel: Int(2), AfterText: "item"},
		Operation{Type: OpAddParagraph, Content: Str("step"), ParagraphType: "orderedList"},
	)
	if len(out.Doc.Content) != 3 {
		t.Fatalf("expected 3 top-level blocks, got %d", len(out.Doc.Content))
	}
	h := out.Doc.Content[1]
	if h.Kind != rt.KindHeading || h.Level() != 2 {
		t.Errorf("expected level 2 heading after the list, got %s", h)
	}
	if out.Doc.Content[2].Kind != rt.KindOrderedList {
		t.Errorf("expected ordered list at end, got %s", out.Doc.Content[2])
	}
	if err := rt.ValidateDoc(out.Doc); err != nil {
		t.Errorf("expected valid tree, got %v", err)
	}
}

func TestApply_Insert(t *testing.T) {
	doc := rt.Doc(rt.Paragraph(rt.Text("Alpha")), rt.Paragraph(rt.Text("Omega")))
	tests := []struct {
		name string
		op   Operation
		want string
	}{
		{"default end", Operation{Type: OpInsert, InsertText: "!"}, "AlphaOmega!"},
		{"after anchor", Operation{Type: OpInsert, InsertText: " Beta", AfterText: "Alpha"}, "Alpha BetaOmega"},
		{"before anchor", Operation{Type: OpInsert, InsertText: "Pre-", BeforeText: "Omega"}, "AlphaPre-Omega"},
		{"position", Operation{Type: OpInsert, InsertText: "_", Position: Int(1)}, "_AlphaOmega"},
		{"position before first block", Operation{Type: OpInsert, InsertText: "_", Position: Int(0)}, "_AlphaOmega"},
		{"position between blocks", Operation{Type: OpInsert, InsertText: "_", Position: Int(7)}, "Alpha_Omega"},
		{"position past end", Operation{Type: OpInsert, InsertText: "_", Position: Int(99)}, "AlphaOmega_"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := apply(t, doc, tt.op)
			if got := rt.VisibleText(out.Doc); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestApply_CollapseDoubleSpace(t *testing.T) {
	doc := rt.Doc(rt.Paragraph(rt.Text("rent  is due")))
	out := apply(t, doc, Operation{Type: OpReplace, FindText: "  ", ReplaceText: Str(" ")})
	if out.Applied != 1 {
		t.Fatalf("expected 1 applied, got %d (%v)", out.Applied, out.Failed)
	}
	if got := rt.VisibleText(out.Doc); got != "rent is due" {
		t.Errorf("expected %q, got %q", "rent is due", got)
	}
}

func TestApply_MissesDoNotStopBatch(t *testing.T) {
	doc := rt.Doc(rt.Paragraph(rt.Text("one two")))
	out := apply(t, doc,
		Operation{Type: OpReplace, FindText: "three", ReplaceText: Str("3")},
		Operation{Type: OpReplace, FindText: "two", ReplaceText: Str("2")},
		Operation{Type: OpReplace, FindText: "one", ReplaceText: Str("1"), OccurrenceIndex: Int(2)},
	)
	if out.Applied != 1 || len(out.Failed) != 2 {
		t.Fatalf("expected 1 applied 2 failed, got %d/%d", out.Applied, len(out.Failed))
	}
	if out.Failed[0].Index != 0 || out.Failed[1].Index != 2 {
		t.Errorf("expected failures at 0 and 2, got %d and %d", out.Failed[0].Index, out.Failed[1].Index)
	}
	if got := rt.VisibleText(out.Doc); got != "one 2" {
		t.Errorf("expected %q, got %q", "one 2", got)
	}
}

// Text split across a tracked change reads as one phrase but is two runs,
// so a replace spanning both is reported as not found.
func TestApply_MultiRunFindFails(t *testing.T) {
	doc := rt.Doc(rt.Paragraph(rt.Text("net "), rt.InlineChange(rt.ChangeAdded, rt.Text("thirty")), rt.Text(" days")))
	out := apply(t, doc, Operation{Type: OpReplace, FindText: "net thirty", ReplaceText: Str("net sixty")})
	if len(out.AnchorMisses()) != 1 {
		t.Errorf("expected multi-run find to miss, got %v", out.Failed)
	}
}
