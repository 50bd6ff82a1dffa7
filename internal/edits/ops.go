// Package edits validates and applies text-anchored edit batches.
package edits

import (
	"encoding/json"
	"fmt"
)

// OpType names an edit operation.
type OpType string

const (
	OpReplace      OpType = "replace"
	OpAddMark      OpType = "add_mark"
	OpRemoveMark   OpType = "remove_mark"
	OpReplaceMark  OpType = "replace_mark"
	OpAddParagraph OpType = "add_paragraph"
	OpInsert       OpType = "insert"
)

// Paragraph types accepted by add_paragraph.
const (
	ParagraphPlain      = "paragraph"
	ParagraphHeading    = "heading"
	ParagraphBlockquote = "blockquote"
	ParagraphBulletList = "bulletList"
	ParagraphOrdered    = "orderedList"
	ParagraphCodeBlock  = "codeBlock"
)

// Operation is one entry of an edit batch. Fields used depend on Type.
type Operation struct {
	Type OpType `json:"type" jsonschema:"one of replace, add_mark, remove_mark, replace_mark, add_paragraph, insert"`

	// replace
	FindText    string  `json:"findText,omitempty" jsonschema:"literal text to find (replace)"`
	ReplaceText *string `json:"replaceText,omitempty" jsonschema:"replacement text; empty deletes the match (replace)"`

	// disambiguation, shared by replace and the mark operations
	ContextBefore   string `json:"contextBefore,omitempty" jsonschema:"text expected shortly before the match"`
	ContextAfter    string `json:"contextAfter,omitempty" jsonschema:"text expected shortly after the match"`
	OccurrenceIndex *int   `json:"occurrenceIndex,omitempty" jsonschema:"1-based match to target; also selects the anchor occurrence"`
	MaxOccurrences  *int   `json:"maxOccurrences,omitempty" jsonschema:"target at most this many matches from the start"`
	ReplaceAll      bool   `json:"replaceAll,omitempty" jsonschema:"target every match"`

	// marks
	Text        string `json:"text,omitempty" jsonschema:"text to format (mark operations)"`
	MarkType    string `json:"markType,omitempty" jsonschema:"bold, italic, code, strike or underline"`
	OldMarkType string `json:"oldMarkType,omitempty" jsonschema:"mark to remove (replace_mark)"`
	NewMarkType string `json:"newMarkType,omitempty" jsonschema:"mark to add (replace_mark)"`

	// add_paragraph
	Content       *string `json:"content,omitempty" jsonschema:"text of the new block (add_paragraph)"`
	ParagraphType string  `json:"paragraphType,omitempty" jsonschema:"paragraph, heading, blockquote, bulletList, orderedList or codeBlock"`
	HeadingLevel  *int    `json:"headingLevel,omitempty" jsonschema:"1-6, required for headings"`
	AfterText     string  `json:"afterText,omitempty" jsonschema:"anchor to place content after"`
	BeforeText    string  `json:"beforeText,omitempty" jsonschema:"anchor to place content before"`

	// insert
	InsertText string `json:"insertText,omitempty" jsonschema:"literal text to insert (insert)"`
	Position   *int   `json:"position,omitempty" jsonschema:"absolute insertion position, moved to the nearest text block content (insert)"`

	decodeErr error
}

// DecodeEntries decodes each raw batch entry on its own so one malformed
// entry is rejected by validation instead of failing the batch.
func DecodeEntries(raw []json.RawMessage) []Operation {
	ops := make([]Operation, len(raw))
	for i, r := range raw {
		if err := json.Unmarshal(r, &ops[i]); err != nil {
			ops[i] = Operation{decodeErr: fmt.Errorf("malformed entry: %w", err)}
		}
	}
	return ops
}

// String pointer helper for callers building operations in code.
func Str(s string) *string { return &s }

// Int pointer helper.
func Int(v int) *int { return &v }
