package chunker

import (
	"github.com/dgallion1/docnav/internal/doctree"
	"github.com/dgallion1/docnav/internal/richtext"
)

// Strategy selects how a document is partitioned.
type Strategy string

const (
	StrategySemantic Strategy = "semantic"
	StrategyFixed    Strategy = "fixed"
)

// Unit is what a fixed-size chunk counts.
type Unit string

const (
	UnitWords Unit = "words"
	UnitNodes Unit = "nodes"
)

// Config controls chunking behavior.
type Config struct {
	WordBudget int  // Semantic chunk budget in words.
	FixedSize  int  // Target size of fixed chunks, in FixedUnit.
	FixedUnit  Unit // words or nodes.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		WordBudget: 300,
		FixedSize:  300,
		FixedUnit:  UnitWords,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.WordBudget <= 0 {
		c.WordBudget = d.WordBudget
	}
	if c.FixedSize <= 0 {
		c.FixedSize = d.FixedSize
	}
	if c.FixedUnit != UnitNodes {
		c.FixedUnit = UnitWords
	}
	return c
}

// Semantic partitions flattened nodes into word-budgeted chunks that follow
// the document's structure. Level 1-2 headings always start a new chunk.
// A structural boundary is never moved into the next chunk to make room, so
// a chunk may exceed the budget only by a boundary node or a single
// oversized node.
func Semantic(nodes []doctree.SemanticNode, budget int) []doctree.Chunk {
	if budget <= 0 {
		budget = DefaultConfig().WordBudget
	}

	var (
		chunks  []doctree.Chunk
		current *doctree.Chunk
	)
	flush := func() {
		if current != nil && len(current.Nodes) > 0 {
			current.ChunkIndex = len(chunks)
			chunks = append(chunks, *current)
		}
		current = nil
	}
	open := func(n doctree.SemanticNode) {
		current = &doctree.Chunk{}
		current.SectionPath = n.SectionPath
	}

	for _, n := range nodes {
		words := CountWords(n.Text)

		if n.Type == richtext.KindHeading && n.Level <= 2 {
			flush()
		}
		if current == nil {
			open(n)
		}
		if current.WordCount+words > budget && len(current.Nodes) > 0 && !n.IsStructuralBoundary {
			flush()
			open(n)
		}
		current.Add(n, words)
	}
	flush()

	return chunks
}
