package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docnav/internal/doctree"
	"github.com/dgallion1/docnav/internal/richtext"
)

const (
	previewLimit = 120
	// A chunk filled to this share of the budget was probably cut short.
	hasMoreRatio = 0.95
)

// Reader serves chunk windows from a document snapshot.
type Reader struct {
	cfg Config
}

// NewReader creates a Reader; zero config fields take defaults.
func NewReader(cfg Config) *Reader {
	return &Reader{cfg: cfg.withDefaults()}
}

// Config returns the effective configuration.
func (r *Reader) Config() Config { return r.cfg }

// Partition splits doc into chunks with the given strategy.
func (r *Reader) Partition(doc *richtext.Node, strategy Strategy) []doctree.Chunk {
	if strategy == StrategyFixed {
		return Fixed(Leaves(doc), r.cfg.FixedUnit, r.cfg.FixedSize)
	}
	return Semantic(doctree.Flatten(doc), r.cfg.WordBudget)
}

// Window is a run of rendered chunks around a requested index.
type Window struct {
	Index  int                      `json:"index"` // Effective index after clamping.
	Total  int                      `json:"totalChunks"`
	Chunks []doctree.ProcessedChunk `json:"chunks"`
}

// Read returns the chunk at index plus contextWindow neighbors on each side.
// An index past the end falls back to the last chunk; a negative index or
// window is treated as zero. An empty document yields no chunks.
func (r *Reader) Read(doc *richtext.Node, index, contextWindow int, strategy Strategy) []doctree.ProcessedChunk {
	return r.ReadWindow(doc, index, contextWindow, strategy).Chunks
}

// ReadWindow is Read with the clamped index and chunk total.
func (r *Reader) ReadWindow(doc *richtext.Node, index, contextWindow int, strategy Strategy) Window {
	chunks := r.Partition(doc, strategy)
	if len(chunks) == 0 {
		return Window{Chunks: []doctree.ProcessedChunk{}}
	}
	target := min(max(index, 0), len(chunks)-1)
	contextWindow = max(contextWindow, 0)
	lo := max(target-contextWindow, 0)
	hi := min(target+contextWindow, len(chunks)-1)

	out := make([]doctree.ProcessedChunk, 0, hi-lo+1)
	for _, c := range chunks[lo : hi+1] {
		out = append(out, r.Render(c))
	}
	return Window{Index: target, Total: len(chunks), Chunks: out}
}

// Render formats a chunk for reading.
func (r *Reader) Render(c doctree.Chunk) doctree.ProcessedChunk {
	text := ChunkText(c)
	return doctree.ProcessedChunk{
		ChunkMetadata: c.ChunkMetadata,
		Text:          text,
		Preview:       Preview(text),
		WordCount:     c.WordCount,
		HasMore:       float64(c.WordCount) >= hasMoreRatio*float64(r.cfg.WordBudget),
	}
}

// ChunkText joins node texts with blank lines, upper-casing headings.
func ChunkText(c doctree.Chunk) string {
	parts := make([]string, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		if n.Type == richtext.KindHeading {
			parts = append(parts, strings.ToUpper(n.Text))
			continue
		}
		parts = append(parts, n.Text)
	}
	return strings.Join(parts, "\n\n")
}

// Preview returns the first sentence when it fits in 120 characters,
// otherwise the text cut at a word boundary with an ellipsis.
func Preview(text string) string {
	flat := strings.Join(strings.Fields(text), " ")
	if s := firstSentence(flat); s != "" && utf8.RuneCountInString(s) <= previewLimit {
		return s
	}
	if utf8.RuneCountInString(flat) <= previewLimit {
		return flat
	}
	cut := string([]rune(flat)[:previewLimit-3])
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,;:") + "..."
}

func firstSentence(s string) string {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', '!', '?':
			if i+1 == len(s) || s[i+1] == ' ' {
				return s[:i+1]
			}
		}
	}
	return ""
}
