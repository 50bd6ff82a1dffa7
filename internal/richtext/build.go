package richtext

// Constructors for building trees in parsers and tests.

// Doc builds a document root.
func Doc(children ...*Node) *Node { return &Node{Kind: KindDoc, Content: children} }

// Paragraph builds a paragraph.
func Paragraph(children ...*Node) *Node { return &Node{Kind: KindParagraph, Content: children} }

// Heading builds a heading of the given level.
func Heading(level int, children ...*Node) *Node {
	return &Node{Kind: KindHeading, Attrs: map[string]any{"level": level}, Content: children}
}

// Text builds a text node with optional marks.
func Text(s string, marks ...string) *Node {
	n := &Node{Kind: KindText, Text: s}
	for _, m := range marks {
		n.Marks = append(n.Marks, Mark{Type: m})
	}
	return n
}

// Blockquote builds a blockquote.
func Blockquote(children ...*Node) *Node { return &Node{Kind: KindBlockquote, Content: children} }

// CodeBlock builds a code block holding a single text node.
func CodeBlock(code string) *Node {
	n := &Node{Kind: KindCodeBlock}
	if code != "" {
		n.Content = []*Node{Text(code)}
	}
	return n
}

// BulletList builds an unordered list.
func BulletList(items ...*Node) *Node { return &Node{Kind: KindBulletList, Content: items} }

// OrderedList builds an ordered list.
func OrderedList(items ...*Node) *Node { return &Node{Kind: KindOrderedList, Content: items} }

// ListItem builds a list item.
func ListItem(children ...*Node) *Node { return &Node{Kind: KindListItem, Content: children} }

// Table builds a table.
func Table(rows ...*Node) *Node { return &Node{Kind: KindTable, Content: rows} }

// TableRow builds a table row.
func TableRow(cells ...*Node) *Node { return &Node{Kind: KindTableRow, Content: cells} }

// TableCell builds a table cell.
func TableCell(children ...*Node) *Node { return &Node{Kind: KindTableCell, Content: children} }

// HardBreak builds a hard line break.
func HardBreak() *Node { return &Node{Kind: KindHardBreak} }

// InlineChange wraps inline content in a tracked change.
func InlineChange(changeType string, children ...*Node) *Node {
	return &Node{Kind: KindInlineChange, Attrs: map[string]any{"changeType": changeType}, Content: children}
}

// BlockChange wraps blocks in a tracked change.
func BlockChange(changeType string, children ...*Node) *Node {
	return &Node{Kind: KindBlockChange, Attrs: map[string]any{"changeType": changeType}, Content: children}
}

// LineBreakChange builds a tracked line break.
func LineBreakChange(changeType string) *Node {
	return &Node{Kind: KindLineBreakChange, Attrs: map[string]any{"changeType": changeType}}
}
