package chunker

import (
	"github.com/dgallion1/docnav/internal/doctree"
	"github.com/dgallion1/docnav/internal/richtext"
)

var leafBlocks = map[richtext.Kind]bool{
	richtext.KindParagraph:  true,
	richtext.KindHeading:    true,
	richtext.KindBlockquote: true,
	richtext.KindCodeBlock:  true,
	richtext.KindListItem:   true,
	richtext.KindTableCell:  true,
}

// Leaves returns every leaf block of the tree with its own visible text.
// Unlike doctree.Flatten it keeps empty blocks and does not skip deleted
// block changes, so the two strategies can place boundaries differently on
// the same document.
func Leaves(doc *richtext.Node) []doctree.SemanticNode {
	var (
		out      []doctree.SemanticNode
		sections doctree.Sections
	)
	richtext.Walk(doc, func(n *richtext.Node, pos int, _ *richtext.Node) bool {
		if !leafBlocks[n.Kind] {
			return true
		}
		text := richtext.VisibleText(n)
		if n.Kind == richtext.KindHeading && text != "" {
			sections.Enter(min(max(n.Level(), 1), 6), text)
		}
		out = append(out, doctree.SemanticNode{
			Type:                 n.Kind,
			Text:                 text,
			Pos:                  pos,
			End:                  pos + n.Size(),
			Level:                n.Level(),
			IsStructuralBoundary: n.Kind == richtext.KindHeading || n.Kind == richtext.KindCodeBlock,
			SectionPath:          sections.Path(),
		})
		return false
	})
	return out
}

// Fixed greedily groups consecutive leaves, flushing a chunk as soon as its
// unit total reaches size.
func Fixed(leaves []doctree.SemanticNode, unit Unit, size int) []doctree.Chunk {
	if size <= 0 {
		size = DefaultConfig().FixedSize
	}

	var (
		chunks  []doctree.Chunk
		current doctree.Chunk
	)
	flush := func() {
		if len(current.Nodes) == 0 {
			return
		}
		current.ChunkIndex = len(chunks)
		chunks = append(chunks, current)
		current = doctree.Chunk{}
	}

	for _, leaf := range leaves {
		if len(current.Nodes) == 0 {
			current.SectionPath = leaf.SectionPath
		}
		current.Add(leaf, CountWords(leaf.Text))

		total := current.WordCount
		if unit == UnitNodes {
			total = len(current.Nodes)
		}
		if total >= size {
			flush()
		}
	}
	flush()

	return chunks
}
