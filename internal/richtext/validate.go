package richtext

import (
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidNode is wrapped by every tree validation failure.
var ErrInvalidNode = errors.New("invalid node")

// ValidateDoc checks that root is a document and every descendant satisfies
// its variant's constraints.
func ValidateDoc(root *Node) error {
	if root == nil {
		return fmt.Errorf("%w: nil document", ErrInvalidNode)
	}
	if root.Kind != KindDoc {
		return fmt.Errorf("%w: root is %q, want doc", ErrInvalidNode, root.Kind)
	}
	for _, c := range root.Content {
		if isInline(c) {
			return fmt.Errorf("%w: inline %s directly under doc", ErrInvalidNode, c.Kind)
		}
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks n and its descendants against their per-variant rules.
func (n *Node) Validate() error {
	switch n.Kind {
	case KindText:
		if n.Text == "" {
			return fmt.Errorf("%w: empty text node", ErrInvalidNode)
		}
		if len(n.Content) > 0 {
			return fmt.Errorf("%w: text node with content", ErrInvalidNode)
		}
		for _, m := range n.Marks {
			if !slices.Contains(MarkTypes, m.Type) {
				return fmt.Errorf("%w: unknown mark %q", ErrInvalidNode, m.Type)
			}
		}
		return nil
	case KindHardBreak:
		if len(n.Content) > 0 {
			return fmt.Errorf("%w: hardBreak with content", ErrInvalidNode)
		}
	case KindHeading:
		if l := n.Level(); l < 1 || l > 6 {
			return fmt.Errorf("%w: heading level %d out of range 1-6", ErrInvalidNode, l)
		}
	case KindInlineChange, KindBlockChange, KindLineBreakChange:
		switch n.ChangeType() {
		case ChangeAdded, ChangeDeleted, ChangeModified:
		default:
			return fmt.Errorf("%w: %s changeType %q", ErrInvalidNode, n.Kind, n.ChangeType())
		}
		if n.Kind == KindLineBreakChange && len(n.Content) > 0 {
			return fmt.Errorf("%w: lineBreakChange with content", ErrInvalidNode)
		}
	case KindParagraph, KindCodeBlock, KindListItem, KindBlockquote, KindTable, KindTableRow,
		KindTableCell, KindBulletList, KindOrderedList:
	case KindDoc:
		return fmt.Errorf("%w: nested doc", ErrInvalidNode)
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidNode, n.Kind)
	}

	if len(n.Marks) > 0 || n.Text != "" {
		return fmt.Errorf("%w: %s carries text or marks", ErrInvalidNode, n.Kind)
	}
	inline := n.HoldsInline()
	for _, c := range n.Content {
		if isInline(c) != inline {
			return fmt.Errorf("%w: %s cannot contain %s", ErrInvalidNode, n.Kind, c.Kind)
		}
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func isInline(n *Node) bool {
	switch n.Kind {
	case KindText, KindHardBreak, KindLineBreakChange, KindInlineChange:
		return true
	}
	return false
}
