package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fumiama/go-docx"

	"github.com/dgallion1/docnav/internal/richtext"
)

// DOCXParser handles .docx files.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*richtext.Node, error) {
	// go-docx needs a ReaderAt+size, so write to temp file.
	tmp, err := os.CreateTemp("", "docnav-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("seek temp file: %w", err)
	}

	doc, err := docx.Parse(tmp, size)
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	var b docxBuilder
	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			b.paragraph(it)
		case *docx.Table:
			b.flushList()
			if t := docxTable(it); t != nil {
				b.out = append(b.out, t)
			}
		}
	}
	b.flushList()
	return finish(richtext.Doc(b.out...))
}

// docxBuilder groups consecutive numbered paragraphs into lists.
type docxBuilder struct {
	out       []*richtext.Node
	listItems []*richtext.Node
	ordered   bool
}

func (b *docxBuilder) paragraph(para *docx.Paragraph) {
	content := docxInlines(para)
	if len(content) == 0 {
		return
	}
	if level := docxHeadingLevel(para); level > 0 {
		b.flushList()
		b.out = append(b.out, richtext.Heading(level, content...))
		return
	}
	if isList, ordered := docxListKind(para); isList {
		if len(b.listItems) > 0 && ordered != b.ordered {
			b.flushList()
		}
		b.ordered = ordered
		b.listItems = append(b.listItems, richtext.ListItem(richtext.Paragraph(content...)))
		return
	}
	b.flushList()
	b.out = append(b.out, richtext.Paragraph(content...))
}

func (b *docxBuilder) flushList() {
	if len(b.listItems) == 0 {
		return
	}
	if b.ordered {
		b.out = append(b.out, richtext.OrderedList(b.listItems...))
	} else {
		b.out = append(b.out, richtext.BulletList(b.listItems...))
	}
	b.listItems = nil
}

func docxStyle(para *docx.Paragraph) string {
	if para.Properties == nil || para.Properties.Style == nil {
		return ""
	}
	return para.Properties.Style.Val
}

func docxHeadingLevel(para *docx.Paragraph) int {
	style := strings.ToLower(strings.ReplaceAll(docxStyle(para), " ", ""))
	if style == "title" {
		return 1
	}
	if !strings.HasPrefix(style, "heading") || len(style) != len("heading")+1 {
		return 0
	}
	level := int(style[len(style)-1] - '0')
	if level < 1 || level > 6 {
		return 0
	}
	return level
}

func docxListKind(para *docx.Paragraph) (isList, ordered bool) {
	style := strings.ToLower(docxStyle(para))
	numbered := para.Properties != nil && para.Properties.NumProperties != nil
	if !numbered && !strings.HasPrefix(style, "list") {
		return false, false
	}
	return true, strings.Contains(style, "number")
}

func docxInlines(para *docx.Paragraph) []*richtext.Node {
	var b inlines
	for _, child := range para.Children {
		switch c := child.(type) {
		case *docx.Run:
			docxRun(&b, c)
		case *docx.Hyperlink:
			docxRun(&b, &c.Run)
		}
	}
	return b.take()
}

func docxRun(b *inlines, run *docx.Run) {
	marks := docxMarks(run.RunProperties)
	for _, rc := range run.Children {
		switch c := rc.(type) {
		case *docx.Text:
			b.text(c.Text, marks)
		case *docx.Tab:
			b.text("\t", marks)
		case *docx.BarterRabbet:
			if c.Type == "" || c.Type == "textWrapping" {
				b.add(richtext.HardBreak())
			}
		}
	}
}

func docxMarks(rp *docx.RunProperties) []string {
	if rp == nil {
		return nil
	}
	var marks []string
	if rp.Bold != nil {
		marks = append(marks, richtext.MarkBold)
	}
	if rp.Italic != nil {
		marks = append(marks, richtext.MarkItalic)
	}
	if rp.Strike != nil && rp.Strike.Val != "false" && rp.Strike.Val != "0" {
		marks = append(marks, richtext.MarkStrike)
	}
	if rp.Underline != nil && rp.Underline.Val != "none" {
		marks = append(marks, richtext.MarkUnderline)
	}
	return marks
}

func docxTable(t *docx.Table) *richtext.Node {
	var rows []*richtext.Node
	for _, tr := range t.TableRows {
		var cells []*richtext.Node
		for _, tc := range tr.TableCells {
			var content []*richtext.Node
			for _, p := range tc.Paragraphs {
				if in := docxInlines(p); len(in) > 0 {
					content = append(content, richtext.Paragraph(in...))
				}
			}
			cells = append(cells, richtext.TableCell(content...))
		}
		rows = append(rows, richtext.TableRow(cells...))
	}
	if len(rows) == 0 {
		return nil
	}
	return richtext.Table(rows...)
}
