package parser

import (
	"strings"
	"testing"

	rt "github.com/dgallion1/docnav/internal/richtext"
)

func TestTextParser_BasicParagraphSplitting(t *testing.T) {
	input := "First paragraph line one.\nFirst paragraph line two.\n\nSecond paragraph.\n\nThird paragraph."
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(input), "notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(doc.Content) != 3 {
		t.Fatalf("expected 3 paragraphs, got %d", len(doc.Content))
	}

	want := []string{
		"First paragraph line one.\nFirst paragraph line two.",
		"Second paragraph.",
		"Third paragraph.",
	}
	for i, w := range want {
		if got := rt.VisibleText(doc.Content[i]); got != w {
			t.Errorf("paragraph[%d]: expected %q, got %q", i, w, got)
		}
	}
	if doc.Content[0].Content[1].Kind != rt.KindHardBreak {
		t.Errorf("expected line break inside paragraph, got %s", doc.Content[0].Content[1].Kind)
	}
}

func TestTextParser_EmptyInput(t *testing.T) {
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(""), "empty.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Kind != rt.KindDoc {
		t.Errorf("expected doc root, got %s", doc.Kind)
	}
	if len(doc.Content) != 0 {
		t.Errorf("expected 0 blocks for empty input, got %d", len(doc.Content))
	}
}

func TestTextParser_SingleLine(t *testing.T) {
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader("Hello world"), "single.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Content) != 1 {
		t.Fatalf("expected 1 block, got %d", len(doc.Content))
	}
	if got := rt.VisibleText(doc); got != "Hello world" {
		t.Errorf("expected %q, got %q", "Hello world", got)
	}
}

func TestTextParser_MultipleBlankLines(t *testing.T) {
	// Multiple consecutive blank lines should not produce empty paragraphs.
	input := "Para one.\n\n\n\nPara two."
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(input), "gaps.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Content) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(doc.Content))
	}
}

func TestTextParser_WhitespaceOnlyLines(t *testing.T) {
	// Lines with only whitespace should be treated as blank.
	input := "Para one.\n   \nPara two.\r\n"
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(input), "ws.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Content) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(doc.Content))
	}
	if got := rt.VisibleText(doc.Content[1]); got != "Para two." {
		t.Errorf("expected trailing CR trimmed, got %q", got)
	}
}

func TestCSVParser_Table(t *testing.T) {
	input := "Party,Role\nAcme Corp,Seller\nGlobex,\n"
	doc, err := (&CSVParser{}).Parse(strings.NewReader(input), "parties.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Content) != 1 || doc.Content[0].Kind != rt.KindTable {
		t.Fatalf("expected a single table, got %v", doc.Content)
	}
	rows := doc.Content[0].Content
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	header := rows[0].Content[0].Content[0].Content[0]
	if header.Text != "Party" || !header.HasMark(rt.MarkBold) {
		t.Errorf("expected bold header cell, got %s", header)
	}
	if n := len(rows[2].Content[1].Content); n != 0 {
		t.Errorf("expected empty cell, got %d blocks", n)
	}
}

func TestPageBlocks(t *testing.T) {
	blocks := pageBlocks("Intro   text\nwraps here.\n\nSecond para.\f\f  \fLast page.")
	var got []string
	for _, b := range blocks {
		got = append(got, string(b.Kind)+":"+rt.VisibleText(b))
	}
	want := []string{
		"heading:Page 1",
		"paragraph:Intro text wraps here.",
		"paragraph:Second para.",
		"heading:Page 4",
		"paragraph:Last page.",
	}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestForFile(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"a.md", false},
		{"a.MARKDOWN", false},
		{"a.htm", false},
		{"a.docx", false},
		{"a.pdf", false},
		{"a.csv", false},
		{"a.txt", false},
		{"a.rtf", true},
	}
	for _, tt := range tests {
		_, err := ForFile(tt.name, Options{})
		if (err != nil) != tt.wantErr {
			t.Errorf("%s: expected error=%v, got %v", tt.name, tt.wantErr, err)
		}
		if IsSupportedExtension(tt.name) == tt.wantErr {
			t.Errorf("%s: IsSupportedExtension disagrees with ForFile", tt.name)
		}
	}
}
