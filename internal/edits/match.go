package edits

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docnav/internal/anchor"
	"github.com/dgallion1/docnav/internal/richtext"
)

// DefaultProximity is how far, in characters, context text may sit from a
// match and still count.
const DefaultProximity = 80

// AnchorNotFoundError reports that an operation's text could not be located,
// or that fewer occurrences exist than requested.
type AnchorNotFoundError struct {
	Anchor     string
	Occurrence int // Requested occurrence, 0 when any match would do
	Found      int // Matches available after context filtering
	Context    bool
}

func (e *AnchorNotFoundError) Error() string {
	switch {
	case e.Found == 0 && e.Context:
		return fmt.Sprintf("no occurrence of %q matches the given context", e.Anchor)
	case e.Found == 0:
		return fmt.Sprintf("text %q not found", e.Anchor)
	default:
		return fmt.Sprintf("occurrence %d of %q requested, only %d found", e.Occurrence, e.Anchor, e.Found)
	}
}

// flatText is the run texts joined by newlines, with each run's starting
// offset, for context checks that look past run edges.
type flatText struct {
	runes   []rune
	offsets []int
}

func newFlatText(runs []anchor.TextRun) flatText {
	var f flatText
	for i, r := range runs {
		if i > 0 {
			f.runes = append(f.runes, '\n')
		}
		f.offsets = append(f.offsets, len(f.runes))
		f.runes = append(f.runes, []rune(r.Text)...)
	}
	return f
}

func (f flatText) before(runs []anchor.TextRun, m anchor.Match, width int) string {
	start := f.offsets[m.Run] + (m.From - runs[m.Run].From)
	return string(f.runes[max(start-width, 0):start])
}

func (f flatText) after(runs []anchor.TextRun, m anchor.Match, width int) string {
	end := f.offsets[m.Run] + (m.To - runs[m.Run].From)
	return string(f.runes[end:min(end+width, len(f.runes))])
}

// targets finds needle in doc's visible text and selects the matches op
// applies to: occurrenceIndex, else the first maxOccurrences, else every
// match with replaceAll, else the first match.
func (a *Applier) targets(doc *richtext.Node, needle string, op Operation) ([]anchor.Match, error) {
	runs := anchor.Runs(doc)
	matches := anchor.FindAll(runs, needle)
	if len(matches) == 0 {
		return nil, &AnchorNotFoundError{Anchor: needle}
	}

	if op.ContextBefore != "" || op.ContextAfter != "" {
		flat := newFlatText(runs)
		before := strings.ToLower(op.ContextBefore)
		after := strings.ToLower(op.ContextAfter)
		filtered := matches[:0:0]
		for _, m := range matches {
			if before != "" && !strings.Contains(strings.ToLower(flat.before(runs, m, a.proximity+len([]rune(before)))), before) {
				continue
			}
			if after != "" && !strings.Contains(strings.ToLower(flat.after(runs, m, a.proximity+len([]rune(after)))), after) {
				continue
			}
			filtered = append(filtered, m)
		}
		if len(filtered) == 0 {
			return nil, &AnchorNotFoundError{Anchor: needle, Context: true}
		}
		matches = filtered
	}

	switch {
	case op.OccurrenceIndex != nil:
		k := *op.OccurrenceIndex
		if k > len(matches) {
			return nil, &AnchorNotFoundError{Anchor: needle, Occurrence: k, Found: len(matches)}
		}
		return matches[k-1 : k], nil
	case op.MaxOccurrences != nil:
		return matches[:min(*op.MaxOccurrences, len(matches))], nil
	case op.ReplaceAll:
		return matches, nil
	}
	return matches[:1], nil
}
