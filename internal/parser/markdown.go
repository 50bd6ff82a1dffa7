package parser

import (
	"bytes"
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/dgallion1/docnav/internal/richtext"
)

// MarkdownParser handles Markdown files using goldmark with GFM tables and
// strikethrough.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*richtext.Node, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.Table, extension.Strikethrough))
	root := md.Parser().Parse(text.NewReader(src))

	m := mdBuilder{src: src}
	return finish(richtext.Doc(m.blocks(root)...))
}

type mdBuilder struct {
	src []byte
}

func (m mdBuilder) blocks(parent ast.Node) []*richtext.Node {
	var out []*richtext.Node
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		if b := m.block(n); b != nil {
			out = append(out, b)
		}
	}
	return out
}

func (m mdBuilder) block(n ast.Node) *richtext.Node {
	switch node := n.(type) {
	case *ast.Heading:
		return richtext.Heading(node.Level, m.inline(node)...)
	case *ast.Paragraph, *ast.TextBlock:
		content := m.inline(node)
		if len(content) == 0 {
			return nil
		}
		return richtext.Paragraph(content...)
	case *ast.List:
		var items []*richtext.Node
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			items = append(items, richtext.ListItem(m.blocks(c)...))
		}
		if node.IsOrdered() {
			return richtext.OrderedList(items...)
		}
		return richtext.BulletList(items...)
	case *ast.Blockquote:
		return richtext.Blockquote(m.blocks(node)...)
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		return richtext.CodeBlock(string(bytes.TrimRight(m.lines(node), "\n")))
	case *east.Table:
		var rows []*richtext.Node
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			var cells []*richtext.Node
			for cell := c.FirstChild(); cell != nil; cell = cell.NextSibling() {
				var content []*richtext.Node
				if in := m.inline(cell); len(in) > 0 {
					content = append(content, richtext.Paragraph(in...))
				}
				cells = append(cells, richtext.TableCell(content...))
			}
			rows = append(rows, richtext.TableRow(cells...))
		}
		return richtext.Table(rows...)
	}
	// Thematic breaks and raw HTML blocks carry no readable text.
	return nil
}

func (m mdBuilder) lines(n ast.Node) []byte {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(m.src))
	}
	return buf.Bytes()
}

func (m mdBuilder) inline(n ast.Node) []*richtext.Node {
	var b inlines
	m.walkInline(&b, n, nil)
	return b.take()
}

func (m mdBuilder) walkInline(b *inlines, parent ast.Node, marks []string) {
	for c := parent.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *ast.Text:
			b.text(string(node.Segment.Value(m.src)), marks)
			switch {
			case node.HardLineBreak():
				b.add(richtext.HardBreak())
			case node.SoftLineBreak():
				b.text(" ", marks)
			}
		case *ast.String:
			b.text(string(node.Value), marks)
		case *ast.Emphasis:
			mark := richtext.MarkItalic
			if node.Level >= 2 {
				mark = richtext.MarkBold
			}
			m.walkInline(b, node, withMark(marks, mark))
		case *ast.CodeSpan:
			m.walkInline(b, node, withMark(marks, richtext.MarkCode))
		case *east.Strikethrough:
			m.walkInline(b, node, withMark(marks, richtext.MarkStrike))
		case *ast.AutoLink:
			b.text(string(node.Label(m.src)), marks)
		case *ast.RawHTML:
		default:
			m.walkInline(b, node, marks)
		}
	}
}
