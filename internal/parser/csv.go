package parser

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/dgallion1/docnav/internal/richtext"
)

// CSVParser handles CSV files. The whole file becomes one table whose first
// row holds the headers.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*richtext.Node, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return finish(richtext.Doc())
	}

	rows := make([]*richtext.Node, 0, len(records))
	for i, rec := range records {
		cells := make([]*richtext.Node, 0, len(rec))
		for _, field := range rec {
			var content []*richtext.Node
			if field != "" {
				var marks []string
				if i == 0 {
					marks = []string{richtext.MarkBold}
				}
				content = append(content, richtext.Paragraph(plainInlines(field, marks...)...))
			}
			cells = append(cells, richtext.TableCell(content...))
		}
		rows = append(rows, richtext.TableRow(cells...))
	}
	return finish(richtext.Doc(richtext.Table(rows...)))
}
