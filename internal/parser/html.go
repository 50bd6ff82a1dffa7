package parser

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/dgallion1/docnav/internal/richtext"
)

// HTMLParser handles HTML files. <ins> and <del> become tracked changes.
type HTMLParser struct{}

func (p *HTMLParser) Parse(r io.Reader, filename string) (*richtext.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	root := findBody(doc)
	if root == nil {
		root = doc
	}
	return finish(richtext.Doc(htmlBlocks(root)...))
}

var htmlBlockTags = map[string]bool{
	"p": true, "h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ul": true, "ol": true, "li": true, "blockquote": true, "pre": true, "table": true,
	"div": true, "section": true, "article": true, "main": true, "hr": true,
}

func skipped(tag string) bool {
	switch tag {
	case "script", "style", "nav", "footer", "header", "head", "noscript", "template":
		return true
	}
	return false
}

// htmlBlocks converts the children of parent into blocks. Loose inline
// content between blocks becomes its own paragraph.
func htmlBlocks(parent *html.Node) []*richtext.Node {
	var (
		out     []*richtext.Node
		pending inlines
	)
	flush := func() {
		if pending.empty() {
			pending.take()
			return
		}
		out = append(out, richtext.Paragraph(pending.take()...))
	}
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			if skipped(c.Data) {
				continue
			}
			if htmlBlockTags[c.Data] || (isChangeTag(c.Data) && containsBlock(c)) {
				flush()
				out = append(out, htmlBlock(c)...)
				continue
			}
		}
		htmlInline(&pending, c, nil)
	}
	flush()
	return out
}

func htmlBlock(n *html.Node) []*richtext.Node {
	if level := headingLevel(n.Data); level > 0 {
		return []*richtext.Node{richtext.Heading(level, inlineContent(n)...)}
	}
	switch n.Data {
	case "p":
		content := inlineContent(n)
		if len(content) == 0 {
			return nil
		}
		return []*richtext.Node{richtext.Paragraph(content...)}
	case "ul", "ol":
		var items []*richtext.Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == "li" {
				items = append(items, richtext.ListItem(htmlBlocks(c)...))
			}
		}
		if len(items) == 0 {
			return nil
		}
		if n.Data == "ol" {
			return []*richtext.Node{richtext.OrderedList(items...)}
		}
		return []*richtext.Node{richtext.BulletList(items...)}
	case "li":
		// Stray list item outside a list.
		return []*richtext.Node{richtext.BulletList(richtext.ListItem(htmlBlocks(n)...))}
	case "blockquote":
		return []*richtext.Node{richtext.Blockquote(htmlBlocks(n)...)}
	case "pre":
		return []*richtext.Node{richtext.CodeBlock(strings.TrimRight(rawText(n), "\n"))}
	case "table":
		if t := htmlTable(n); t != nil {
			return []*richtext.Node{t}
		}
		return nil
	case "ins", "del":
		return []*richtext.Node{richtext.BlockChange(changeType(n.Data), htmlBlocks(n)...)}
	case "hr":
		return nil
	}
	return htmlBlocks(n)
}

func htmlTable(n *html.Node) *richtext.Node {
	var rows []*richtext.Node
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "thead", "tbody", "tfoot":
				collect(c)
			case "tr":
				var cells []*richtext.Node
				for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.Type == html.ElementNode && (cell.Data == "td" || cell.Data == "th") {
						cells = append(cells, richtext.TableCell(htmlBlocks(cell)...))
					}
				}
				rows = append(rows, richtext.TableRow(cells...))
			}
		}
	}
	collect(n)
	if len(rows) == 0 {
		return nil
	}
	return richtext.Table(rows...)
}

func inlineContent(n *html.Node) []*richtext.Node {
	var b inlines
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		htmlInline(&b, c, nil)
	}
	return b.take()
}

func htmlInline(b *inlines, n *html.Node, marks []string) {
	switch n.Type {
	case html.TextNode:
		b.text(collapseSpace(n.Data), marks)
		return
	case html.ElementNode:
	default:
		return
	}

	switch n.Data {
	case "br":
		b.add(richtext.HardBreak())
		return
	case "b", "strong":
		marks = withMark(marks, richtext.MarkBold)
	case "i", "em":
		marks = withMark(marks, richtext.MarkItalic)
	case "code", "kbd", "samp":
		marks = withMark(marks, richtext.MarkCode)
	case "s", "strike":
		marks = withMark(marks, richtext.MarkStrike)
	case "u":
		marks = withMark(marks, richtext.MarkUnderline)
	case "ins", "del":
		var inner inlines
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			htmlInline(&inner, c, marks)
		}
		if !inner.empty() {
			b.add(richtext.InlineChange(changeType(n.Data), inner.nodes...))
		}
		return
	default:
		if skipped(n.Data) {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		htmlInline(b, c, marks)
	}
}

func isChangeTag(tag string) bool { return tag == "ins" || tag == "del" }

func changeType(tag string) string {
	if tag == "del" {
		return richtext.ChangeDeleted
	}
	return richtext.ChangeAdded
}

func containsBlock(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (htmlBlockTags[c.Data] || containsBlock(c)) {
			return true
		}
	}
	return false
}

func collapseSpace(s string) string {
	var buf strings.Builder
	space := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' {
			if !space {
				buf.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		buf.WriteRune(r)
	}
	return buf.String()
}

func headingLevel(tag string) int {
	switch tag {
	case "h1":
		return 1
	case "h2":
		return 2
	case "h3":
		return 3
	case "h4":
		return 4
	case "h5":
		return 5
	case "h6":
		return 6
	}
	return 0
}

func rawText(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return buf.String()
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
