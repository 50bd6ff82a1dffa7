package doctree

import "github.com/dgallion1/docnav/internal/richtext"

// SemanticNode is a readable block extracted from the document tree.
type SemanticNode struct {
	Type                 richtext.Kind `json:"type"`
	Text                 string        `json:"text"`
	Pos                  int           `json:"pos"`
	End                  int           `json:"end"`             // Position after the node's close token
	Level                int           `json:"level,omitempty"` // Heading level (0 for non-headings)
	IsStructuralBoundary bool          `json:"isStructuralBoundary"`
	ChangeType           string        `json:"changeType,omitempty"`
	SectionPath          []string      `json:"sectionPath,omitempty"` // Heading hierarchy at this node
}

// ChunkMetadata describes where a chunk sits in the document.
type ChunkMetadata struct {
	ChunkIndex            int      `json:"chunkIndex"`
	StartPos              int      `json:"startPos"`
	EndPos                int      `json:"endPos"`
	SectionPath           []string `json:"sectionPath"`
	NodeTypes             []string `json:"nodeTypes"`
	HasStructuralBoundary bool     `json:"hasStructuralBoundary"`
}

// Chunk is a contiguous run of semantic nodes.
type Chunk struct {
	ChunkMetadata
	Nodes     []SemanticNode
	WordCount int
}

// ProcessedChunk is a chunk rendered for a reader.
type ProcessedChunk struct {
	ChunkMetadata
	Text      string `json:"text"`
	Preview   string `json:"preview"`
	WordCount int    `json:"wordCount"`
	HasMore   bool   `json:"hasMore"`
}

// Add appends n to the chunk, tracking the end position, node types and
// boundary flag.
func (c *Chunk) Add(n SemanticNode, words int) {
	if len(c.Nodes) == 0 {
		c.StartPos = n.Pos
	}
	c.Nodes = append(c.Nodes, n)
	c.WordCount += words
	c.EndPos = n.End
	if n.IsStructuralBoundary {
		c.HasStructuralBoundary = true
	}
	t := string(n.Type)
	for _, seen := range c.NodeTypes {
		if seen == t {
			return
		}
	}
	c.NodeTypes = append(c.NodeTypes, t)
}
