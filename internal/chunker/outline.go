package chunker

import (
	"github.com/dgallion1/docnav/internal/doctree"
	"github.com/dgallion1/docnav/internal/richtext"
)

// OutlineEntry is one heading in a document outline.
type OutlineEntry struct {
	Text       string `json:"text"`
	Position   int    `json:"position"`
	ChunkIndex int    `json:"chunkIndex"`
	Type       string `json:"type"`
	Level      int    `json:"level"`
}

// Outline lists the document's headings with the semantic chunk holding each.
func (r *Reader) Outline(doc *richtext.Node) []OutlineEntry {
	out := []OutlineEntry{}
	for _, c := range Semantic(doctree.Flatten(doc), r.cfg.WordBudget) {
		for _, n := range c.Nodes {
			if n.Type != richtext.KindHeading {
				continue
			}
			out = append(out, OutlineEntry{
				Text:       n.Text,
				Position:   n.Pos,
				ChunkIndex: c.ChunkIndex,
				Type:       string(n.Type),
				Level:      n.Level,
			})
		}
	}
	return out
}
