// Package anchor locates document positions from literal text.
package anchor

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docnav/internal/richtext"
)

// TextRun is a maximal span of adjacent visible text nodes. Anchors are
// matched within one run at a time and never across two runs.
type TextRun struct {
	Text string `json:"text"`
	From int    `json:"from"`
	To   int    `json:"to"`
}

// Runs collects the document's text runs in order. Text under deleted
// tracked changes is excluded.
func Runs(doc *richtext.Node) []TextRun {
	var runs []TextRun
	richtext.Walk(doc, func(n *richtext.Node, pos int, _ *richtext.Node) bool {
		if n.IsDeleted() {
			return false
		}
		if !n.IsText() {
			return true
		}
		end := pos + n.Size()
		if k := len(runs); k > 0 && runs[k-1].To == pos {
			runs[k-1].Text += n.Text
			runs[k-1].To = end
			return false
		}
		runs = append(runs, TextRun{Text: n.Text, From: pos, To: end})
		return false
	})
	return runs
}

// Match is one occurrence of a literal in a run.
type Match struct {
	From int
	To   int
	Run  int // Index of the run holding the match.
}

// FindAll returns every non-overlapping occurrence of needle, run by run.
func FindAll(runs []TextRun, needle string) []Match {
	if needle == "" {
		return nil
	}
	n := utf8.RuneCountInString(needle)
	var out []Match
	for i, r := range runs {
		offset := 0
		for {
			idx := strings.Index(r.Text[offset:], needle)
			if idx < 0 {
				break
			}
			byteStart := offset + idx
			start := r.From + utf8.RuneCountInString(r.Text[:byteStart])
			out = append(out, Match{From: start, To: start + n, Run: i})
			offset = byteStart + len(needle)
		}
	}
	return out
}

// NotFoundError reports that an anchor has fewer occurrences than requested.
type NotFoundError struct {
	Anchor     string
	Occurrence int
	Found      int
}

func (e *NotFoundError) Error() string {
	if e.Found == 0 {
		return fmt.Sprintf("anchor %q not found", e.Anchor)
	}
	return fmt.Sprintf("anchor %q occurrence %d requested, only %d found", e.Anchor, e.Occurrence, e.Found)
}

// Resolver turns text anchors into positions over one snapshot.
type Resolver struct {
	runs []TextRun
}

// NewResolver indexes doc's text runs.
func NewResolver(doc *richtext.Node) *Resolver {
	return &Resolver{runs: Runs(doc)}
}

// Runs returns the indexed runs.
func (r *Resolver) Runs() []TextRun { return r.runs }

// After returns the position just past the occurrence-th match of text.
// occurrence is 1-based; values below 1 mean the first match.
func (r *Resolver) After(text string, occurrence int) (int, error) {
	m, err := r.nth(text, occurrence)
	if err != nil {
		return 0, err
	}
	return m.To, nil
}

// Before returns the position at the start of the occurrence-th match.
func (r *Resolver) Before(text string, occurrence int) (int, error) {
	m, err := r.nth(text, occurrence)
	if err != nil {
		return 0, err
	}
	return m.From, nil
}

func (r *Resolver) nth(text string, occurrence int) (Match, error) {
	occurrence = max(occurrence, 1)
	matches := FindAll(r.runs, text)
	if len(matches) < occurrence {
		return Match{}, &NotFoundError{Anchor: text, Occurrence: occurrence, Found: len(matches)}
	}
	return matches[occurrence-1], nil
}
