package ingest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/docnav/internal/chunker"
	"github.com/dgallion1/docnav/internal/collab"
	"github.com/dgallion1/docnav/internal/doctree"
	"github.com/dgallion1/docnav/internal/parser"
	"github.com/dgallion1/docnav/internal/richtext"
)

// HashIndex remembers which document each content hash was stored as.
type HashIndex struct {
	mu     sync.Mutex
	byHash map[string]string
}

func NewHashIndex() *HashIndex {
	return &HashIndex{byHash: make(map[string]string)}
}

func (h *HashIndex) Get(hash string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id, ok := h.byHash[hash]
	return id, ok
}

func (h *HashIndex) Put(hash, docID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.byHash[hash] = docID
}

func (h *HashIndex) Delete(hash string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.byHash, hash)
}

// Worker processes a single document job.
type Worker struct {
	store      collab.Store
	hashes     *HashIndex
	reader     *chunker.Reader
	parserOpts parser.Options
	log        *slog.Logger

	backoff func(attempt int) time.Duration
	newID   func() string
}

func NewWorker(store collab.Store, hashes *HashIndex, chunkCfg chunker.Config, parserOpts parser.Options, log *slog.Logger) *Worker {
	if hashes == nil {
		hashes = NewHashIndex()
	}
	return &Worker{
		store:      store,
		hashes:     hashes,
		reader:     chunker.NewReader(chunkCfg),
		parserOpts: parserOpts,
		log:        log,
		backoff:    Backoff,
		newID:      newDocumentID,
	}
}

// newDocumentID returns a time-ordered UUIDv7. At 36 characters it is never
// mistaken for a truncated identifier.
func newDocumentID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Process runs the import pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	p, err := parser.ForFile(job.Filename, w.parserOpts)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	tree, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	if len(tree.Content) == 0 {
		log.Warn("no readable content")
		job.AddError("no readable content")
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	nodes := doctree.Flatten(tree)
	chunks := w.reader.Partition(tree, chunker.StrategySemantic)
	words := 0
	for _, c := range chunks {
		words += c.WordCount
	}
	hash := ContentHashHex([]byte(flattenText(nodes)))
	job.SetParsed(firstHeading(nodes), hash, len(tree.Content), words, len(chunks))
	log.Info("parsed document", "blocks", len(tree.Content), "words", words, "chunks", len(chunks))

	// Phase 1.5: Dedup check
	if existing, ok := w.checkDuplicate(ctx, hash); ok {
		log.Info("duplicate document, skipping", "existing_doc_id", existing)
		job.SetDocID(existing)
		job.SetStatus(StatusDupSkipped, "dedup")
		return
	}

	// Phase 2: Store
	job.SetStatus(StatusStoring, "storing")
	docID := w.newID()
	if err := w.create(ctx, job, docID, tree, log); err != nil {
		log.Error("store failed", "doc_id", docID, "error", err)
		job.AddError(fmt.Sprintf("store: %s", err))
		job.SetStatus(StatusFailed, "storing")
		return
	}

	w.hashes.Put(hash, docID)
	job.SetDocID(docID)
	job.SetStatus(StatusCompleted, "done")
	log.Info("document stored", "doc_id", docID)
}

// create writes the tree, retrying transient store failures.
func (w *Worker) create(ctx context.Context, job *Job, docID string, tree *richtext.Node, log *slog.Logger) error {
	return retryStore(ctx, w.backoff,
		func() error {
			job.IncrAttempts()
			return w.store.CreateDocument(ctx, docID, tree)
		},
		func(attempt int, err error) {
			log.Warn("retryable store error", "attempt", attempt, "error", err)
		})
}

// checkDuplicate reports the document already stored for hash, if it still
// exists.
func (w *Worker) checkDuplicate(ctx context.Context, hash string) (string, bool) {
	docID, ok := w.hashes.Get(hash)
	if !ok {
		return "", false
	}
	if _, err := w.store.GetSnapshot(ctx, docID); err != nil {
		w.hashes.Delete(hash)
		return "", false
	}
	return docID, true
}

// flattenText joins the readable text of every node for hashing.
func flattenText(nodes []doctree.SemanticNode) string {
	var sb strings.Builder
	for _, n := range nodes {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(n.Text)
	}
	return sb.String()
}

func firstHeading(nodes []doctree.SemanticNode) string {
	for _, n := range nodes {
		if n.Type == richtext.KindHeading {
			return n.Text
		}
	}
	return ""
}
