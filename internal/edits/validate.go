package edits

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// ValidationError describes why one batch entry was rejected.
type ValidationError struct {
	Index  int
	Type   OpType
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("edits[%d]: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("edits[%d] (%s): %s", e.Index, e.Type, e.Reason)
}

// Entry is an accepted operation with its position in the submitted batch.
type Entry struct {
	Index int
	Op    Operation
}

// Validation is the outcome of filtering a batch.
type Validation struct {
	Accepted []Entry
	Rejected []*ValidationError
	Warnings []string
}

const markTypes = "oneof=bold italic code strike underline"

// Strings an agent copies from a rendered view instead of the document,
// e.g. "[Position: 12]" or "pos=40".
var positionMarker = regexp.MustCompile(
	`(?i)\[\s*(position|pos|offset|index|char(acter)?|line)\b[^\]]*\]|` +
		`^\s*(position|pos|offset|index)\s*[:=#]?\s*\d+\s*$`,
)

// Validator filters edit batches entry by entry.
type Validator struct {
	v *validator.Validate
}

// NewValidator creates a Validator with the anchor-text rule registered.
func NewValidator() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("anchortext", validateAnchorText)
	return &Validator{v: v}
}

// validateAnchorText accepts text with at least one letter that does not
// look like a position marker.
func validateAnchorText(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return strings.IndexFunc(s, unicode.IsLetter) >= 0 && !positionMarker.MatchString(s)
}

// Validate never fails: rejected entries are listed and skipped. Accepted
// entries carry their normalized form (defaults applied, precedence
// resolved).
func (v *Validator) Validate(ops []Operation) Validation {
	var out Validation
	for i, op := range ops {
		warnings, reason := v.check(&op)
		for _, w := range warnings {
			out.Warnings = append(out.Warnings, fmt.Sprintf("edits[%d] (%s): %s", i, op.Type, w))
		}
		if reason != "" {
			out.Rejected = append(out.Rejected, &ValidationError{Index: i, Type: op.Type, Reason: reason})
			continue
		}
		out.Accepted = append(out.Accepted, Entry{Index: i, Op: op})
	}
	return out
}

func (v *Validator) check(op *Operation) (warnings []string, reason string) {
	if op.decodeErr != nil {
		return nil, op.decodeErr.Error()
	}
	switch op.Type {
	case "":
		return nil, "missing type"
	case OpReplace, OpAddMark, OpRemoveMark, OpReplaceMark, OpAddParagraph, OpInsert:
	default:
		return nil, fmt.Sprintf("unknown type %q", op.Type)
	}

	if op.OccurrenceIndex != nil && v.v.Var(*op.OccurrenceIndex, "gt=0") != nil {
		return nil, "occurrenceIndex must be a positive integer"
	}
	if op.MaxOccurrences != nil && v.v.Var(*op.MaxOccurrences, "gt=0") != nil {
		return nil, "maxOccurrences must be a positive integer"
	}
	if op.OccurrenceIndex != nil && op.MaxOccurrences != nil {
		warnings = append(warnings, "occurrenceIndex takes precedence over maxOccurrences")
		op.MaxOccurrences = nil
	}

	switch op.Type {
	case OpReplace:
		if op.FindText == "" {
			return warnings, "findText is required"
		}
		if op.ReplaceText == nil {
			return warnings, "replaceText is required (use \"\" to delete)"
		}
		return warnings, v.checkContext(op)

	case OpAddMark, OpRemoveMark:
		if strings.TrimSpace(op.Text) == "" {
			return warnings, "text is required"
		}
		if v.v.Var(op.MarkType, markTypes) != nil {
			return warnings, fmt.Sprintf("markType %q must be one of bold, italic, code, strike, underline", op.MarkType)
		}
		return warnings, v.checkContext(op)

	case OpReplaceMark:
		if strings.TrimSpace(op.Text) == "" {
			return warnings, "text is required"
		}
		if v.v.Var(op.OldMarkType, markTypes) != nil || v.v.Var(op.NewMarkType, markTypes) != nil {
			return warnings, "oldMarkType and newMarkType must be one of bold, italic, code, strike, underline"
		}
		return warnings, v.checkContext(op)

	case OpAddParagraph:
		explicit := op.Content != nil
		if !explicit {
			op.Content = Str("")
		}
		if op.ParagraphType == "" {
			op.ParagraphType = ParagraphPlain
		}
		if v.v.Var(op.ParagraphType, "oneof=paragraph heading blockquote bulletList orderedList codeBlock") != nil {
			return warnings, fmt.Sprintf("unsupported paragraphType %q", op.ParagraphType)
		}
		if op.ParagraphType == ParagraphHeading &&
			(op.HeadingLevel == nil || v.v.Var(*op.HeadingLevel, "min=1,max=6") != nil) {
			return warnings, "heading requires headingLevel between 1 and 6"
		}
		if explicit {
			return warnings, ""
		}
		return warnings, v.checkAnchors(op)

	case OpInsert:
		if op.InsertText == "" {
			return warnings, "insertText is required"
		}
		if op.Position != nil && v.v.Var(*op.Position, "min=0") != nil {
			return warnings, "position must not be negative"
		}
		return warnings, v.checkAnchors(op)
	}
	return warnings, ""
}

func (v *Validator) checkContext(op *Operation) string {
	if v.v.Var(op.ContextBefore, "omitempty,anchortext") != nil {
		return fmt.Sprintf("contextBefore %q must be literal document text", op.ContextBefore)
	}
	if v.v.Var(op.ContextAfter, "omitempty,anchortext") != nil {
		return fmt.Sprintf("contextAfter %q must be literal document text", op.ContextAfter)
	}
	return ""
}

func (v *Validator) checkAnchors(op *Operation) string {
	if v.v.Var(op.AfterText, "omitempty,anchortext") != nil {
		return fmt.Sprintf("afterText %q must be literal document text", op.AfterText)
	}
	if v.v.Var(op.BeforeText, "omitempty,anchortext") != nil {
		return fmt.Sprintf("beforeText %q must be literal document text", op.BeforeText)
	}
	return ""
}
