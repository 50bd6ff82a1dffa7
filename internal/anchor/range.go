package anchor

import (
	"errors"

	"github.com/dgallion1/docnav/internal/richtext"
)

// RangeRequest describes a span by explicit positions or text anchors.
// Explicit positions win over anchors for the same bound.
type RangeRequest struct {
	From            *int   `json:"from,omitempty"`
	To              *int   `json:"to,omitempty"`
	AfterText       string `json:"afterText,omitempty"`
	BeforeText      string `json:"beforeText,omitempty"`
	OccurrenceIndex int    `json:"occurrenceIndex,omitempty"`
}

// Range is a resolved span of the document.
type Range struct {
	From     int              `json:"from"`
	To       int              `json:"to"`
	Text     string           `json:"text"`
	Blocks   []*richtext.Node `json:"blocks,omitempty"`
	Warnings []string         `json:"warnings,omitempty"`
}

// Select resolves req against doc. It never fails: bounds are clamped into
// the document and an unmatched anchor falls back to the document edge with
// a warning.
func Select(doc *richtext.Node, req RangeRequest) Range {
	size := doc.ContentSize()
	var (
		resolver *Resolver
		warnings []string
	)
	resolve := func(text string, after bool, fallback int) int {
		if resolver == nil {
			resolver = NewResolver(doc)
		}
		var (
			pos int
			err error
		)
		if after {
			pos, err = resolver.After(text, req.OccurrenceIndex)
		} else {
			pos, err = resolver.Before(text, req.OccurrenceIndex)
		}
		var nf *NotFoundError
		if errors.As(err, &nf) {
			warnings = append(warnings, nf.Error())
			return fallback
		}
		return pos
	}

	from := 0
	switch {
	case req.From != nil:
		from = *req.From
	case req.AfterText != "":
		from = resolve(req.AfterText, true, 0)
	}
	to := size
	switch {
	case req.To != nil:
		to = *req.To
	case req.BeforeText != "":
		to = resolve(req.BeforeText, false, size)
	}

	from = min(max(from, 0), size)
	to = min(max(to, from), size)

	return Range{
		From:     from,
		To:       to,
		Text:     richtext.TextBetween(doc, from, to, "\n\n"),
		Blocks:   richtext.TopLevelBlocksBetween(doc, from, to),
		Warnings: warnings,
	}
}
