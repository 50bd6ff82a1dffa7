package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/docnav/internal/richtext"
)

// TextParser handles plain text files. Blank lines separate paragraphs;
// single newlines inside a paragraph become hard breaks.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*richtext.Node, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var paragraphs []string
	var current strings.Builder

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if strings.TrimSpace(line) == "" {
			if current.Len() > 0 {
				paragraphs = append(paragraphs, current.String())
				current.Reset()
			}
		} else {
			if current.Len() > 0 {
				current.WriteString("\n")
			}
			current.WriteString(line)
		}
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	blocks := make([]*richtext.Node, 0, len(paragraphs))
	for _, para := range paragraphs {
		blocks = append(blocks, richtext.Paragraph(plainInlines(para)...))
	}
	return finish(richtext.Doc(blocks...))
}

// splitParagraphs splits text on blank lines, dropping empty paragraphs.
func splitParagraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
