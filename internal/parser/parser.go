package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dgallion1/docnav/internal/richtext"
)

// Parser converts raw document bytes into a rich document tree.
type Parser interface {
	Parse(r io.Reader, filename string) (*richtext.Node, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// Options tunes parsers that have knobs.
type Options struct {
	PDFFallbackPdftotext bool
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// finish normalizes and validates a parsed document.
func finish(doc *richtext.Node) (*richtext.Node, error) {
	richtext.Normalize(doc)
	if err := richtext.ValidateDoc(doc); err != nil {
		return nil, fmt.Errorf("build tree: %w", err)
	}
	return doc, nil
}

// inlines accumulates inline content for one text block.
type inlines struct {
	nodes []*richtext.Node
}

func (b *inlines) text(s string, marks []string) {
	if s == "" {
		return
	}
	b.nodes = append(b.nodes, richtext.Text(s, canonicalMarks(marks)...))
}

func (b *inlines) add(n *richtext.Node) {
	b.nodes = append(b.nodes, n)
}

func (b *inlines) empty() bool {
	for _, n := range b.nodes {
		if !n.IsText() || strings.TrimSpace(n.Text) != "" {
			return false
		}
	}
	return true
}

// take returns the accumulated nodes with outer whitespace trimmed and
// resets the builder.
func (b *inlines) take() []*richtext.Node {
	nodes := b.nodes
	b.nodes = nil
	if len(nodes) > 0 && nodes[0].IsText() {
		nodes[0].Text = strings.TrimLeft(nodes[0].Text, " \t\n")
	}
	if k := len(nodes) - 1; k >= 0 && nodes[k].IsText() {
		nodes[k].Text = strings.TrimRight(nodes[k].Text, " \t\n")
	}
	out := nodes[:0]
	for _, n := range nodes {
		if n.IsText() && n.Text == "" {
			continue
		}
		out = append(out, n)
	}
	return out
}

// plainInlines splits s on newlines into text separated by hard breaks.
func plainInlines(s string, marks ...string) []*richtext.Node {
	var out []*richtext.Node
	for i, line := range strings.Split(s, "\n") {
		if i > 0 {
			out = append(out, richtext.HardBreak())
		}
		if line != "" {
			out = append(out, richtext.Text(line, marks...))
		}
	}
	return out
}

func canonicalMarks(marks []string) []string {
	var out []string
	for _, m := range richtext.MarkTypes {
		if slices.Contains(marks, m) {
			out = append(out, m)
		}
	}
	return out
}

func withMark(marks []string, m string) []string {
	out := make([]string, len(marks), len(marks)+1)
	copy(out, marks)
	return append(out, m)
}
