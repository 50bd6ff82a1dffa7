package richtext

import "strings"

// Visitor is called for each node with its absolute position and parent.
// Returning false skips the node's children.
type Visitor func(n *Node, pos int, parent *Node) bool

// Walk visits every descendant of root depth-first in document order.
// The root itself is not visited; its content starts at position 0.
func Walk(root *Node, visit Visitor) {
	walkContent(root, 0, visit)
}

func walkContent(parent *Node, start int, visit Visitor) {
	pos := start
	for _, child := range parent.Content {
		if visit(child, pos, parent) && len(child.Content) > 0 {
			walkContent(child, pos+1, visit)
		}
		pos += child.Size()
	}
}

// VisibleText returns the text a reader sees in n. Deleted tracked changes
// contribute nothing; breaks contribute a newline.
func VisibleText(n *Node) string {
	var sb strings.Builder
	writeVisible(&sb, n)
	return sb.String()
}

func writeVisible(sb *strings.Builder, n *Node) {
	if n.IsDeleted() {
		return
	}
	switch n.Kind {
	case KindText:
		sb.WriteString(n.Text)
	case KindHardBreak, KindLineBreakChange:
		sb.WriteByte('\n')
	default:
		for _, c := range n.Content {
			writeVisible(sb, c)
		}
	}
}

// TextBetween returns the visible text in [from, to), with blockSep written
// between text blocks.
func TextBetween(root *Node, from, to int, blockSep string) string {
	var sb strings.Builder
	Walk(root, func(n *Node, pos int, _ *Node) bool {
		end := pos + n.Size()
		if end <= from || pos >= to {
			return false
		}
		if n.IsDeleted() {
			return false
		}
		switch {
		case n.IsText():
			runes := []rune(n.Text)
			lo, hi := max(from-pos, 0), min(to-pos, len(runes))
			sb.WriteString(string(runes[lo:hi]))
		case n.IsLeafInline():
			sb.WriteByte('\n')
		case n.IsTextblock():
			if sb.Len() > 0 {
				sb.WriteString(blockSep)
			}
		}
		return true
	})
	return sb.String()
}

// TopLevelBlockAt returns the direct child of root containing pos, with its
// position. ok is false when pos lies outside every child.
func TopLevelBlockAt(root *Node, pos int) (block *Node, blockPos int, ok bool) {
	offset := 0
	for _, c := range root.Content {
		end := offset + c.Size()
		if pos > offset && pos < end {
			return c, offset, true
		}
		offset = end
	}
	return nil, 0, false
}

// TopLevelBlocksBetween returns the direct children of root overlapping
// [from, to]. An empty range selects the block containing it.
func TopLevelBlocksBetween(root *Node, from, to int) []*Node {
	var out []*Node
	offset := 0
	for _, c := range root.Content {
		end := offset + c.Size()
		if (end > from && offset < to) || (from == to && from > offset && from < end) {
			out = append(out, c)
		}
		offset = end
	}
	return out
}

// LastTextblockEnd returns the position at the end of the last text block's
// content, or -1 when the tree holds no text block.
func LastTextblockEnd(root *Node) int {
	last := -1
	Walk(root, func(n *Node, pos int, _ *Node) bool {
		if n.IsDeleted() {
			return false
		}
		if n.IsTextblock() {
			last = pos + 1 + n.ContentSize()
			return false
		}
		return true
	})
	return last
}

// NearestTextPos moves pos to the closest position inside a text block's
// content. Positions already inside one are returned unchanged; on a tie the
// earlier block wins. It returns -1 when the tree holds no text block.
func NearestTextPos(root *Node, pos int) int {
	best, bestDist := -1, 0
	Walk(root, func(n *Node, at int, _ *Node) bool {
		if n.IsDeleted() {
			return false
		}
		if !n.IsTextblock() {
			return true
		}
		start := at + 1
		end := start + n.ContentSize()
		cand := min(max(pos, start), end)
		dist := cand - pos
		if dist < 0 {
			dist = -dist
		}
		if best < 0 || dist < bestDist {
			best, bestDist = cand, dist
		}
		return false
	})
	return best
}
