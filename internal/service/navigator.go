// Package service exposes the read and edit operations over documents held
// in the collaborative store.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docnav/internal/anchor"
	"github.com/dgallion1/docnav/internal/chunker"
	"github.com/dgallion1/docnav/internal/collab"
	"github.com/dgallion1/docnav/internal/doctree"
	"github.com/dgallion1/docnav/internal/edits"
	"github.com/dgallion1/docnav/internal/reconcile"
	"github.com/dgallion1/docnav/internal/richtext"
)

// Range output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// NotFoundError reports a document that is absent after reconciliation.
type NotFoundError struct {
	DocumentID string // As requested.
	Resolved   string // After reconciliation.
}

func (e *NotFoundError) Error() string {
	if e.Resolved != "" && e.Resolved != e.DocumentID {
		return fmt.Sprintf("document %s (resolved %s) not found", e.DocumentID, e.Resolved)
	}
	return fmt.Sprintf("document %s not found", e.DocumentID)
}

func (e *NotFoundError) Unwrap() error { return collab.ErrNotFound }

// Options configures a Navigator.
type Options struct {
	Chunking   chunker.Config
	Proximity  int           // Context match window for edits.
	Strict     bool          // Reject a whole batch when any entry fails.
	IDCacheTTL time.Duration // Lifetime of the cached identifier listing.
	Metrics    *Metrics
	Stats      *LatencyStats
}

// Navigator implements the document operations on top of a Store.
type Navigator struct {
	store     collab.Store
	ids       *reconcile.Reconciler
	reader    *chunker.Reader
	validator *edits.Validator
	applier   *edits.Applier
	strict    bool
	metrics   *Metrics
	stats     *LatencyStats
	log       *slog.Logger
}

// New creates a Navigator. When lister is nil and the store lists its own
// identifiers, the store is used; otherwise ids are never reconciled.
func New(store collab.Store, lister collab.IdentifierLister, opts Options, log *slog.Logger) *Navigator {
	if lister == nil {
		lister, _ = store.(collab.IdentifierLister)
	}
	n := &Navigator{
		store:     store,
		reader:    chunker.NewReader(opts.Chunking),
		validator: edits.NewValidator(),
		applier:   edits.NewApplier(opts.Proximity),
		strict:    opts.Strict,
		metrics:   opts.Metrics,
		stats:     opts.Stats,
		log:       log,
	}
	if lister != nil {
		n.ids = reconcile.New(lister, opts.IDCacheTTL)
	}
	if n.metrics == nil {
		n.metrics = NewMetrics(nil)
	}
	if n.stats == nil {
		n.stats = NewLatencyStats(time.Hour)
	}
	return n
}

// Stats returns the rolling edit latency window.
func (n *Navigator) Stats() *LatencyStats { return n.stats }

// ChunkConfig returns the effective chunking configuration.
func (n *Navigator) ChunkConfig() chunker.Config { return n.reader.Config() }

// DocRef identifies the snapshot a result was computed from.
type DocRef struct {
	DocumentID string `json:"documentId"`
	Version    int64  `json:"version"`
	Corrected  bool   `json:"corrected,omitempty"`
}

// OutlineResult is the heading outline of a document.
type OutlineResult struct {
	DocRef
	Entries []chunker.OutlineEntry `json:"outline"`
}

// ChunkResult is a chunk window of a document.
type ChunkResult struct {
	DocRef
	Strategy    chunker.Strategy         `json:"strategy"`
	Index       int                      `json:"index"`
	TotalChunks int                      `json:"totalChunks"`
	Chunks      []doctree.ProcessedChunk `json:"chunks"`
}

// RangeResult is a resolved span. Text is set for FormatText, Blocks for
// FormatJSON.
type RangeResult struct {
	DocRef
	From     int              `json:"from"`
	To       int              `json:"to"`
	Text     string           `json:"text,omitempty"`
	Blocks   []*richtext.Node `json:"blocks,omitempty"`
	Warnings []string         `json:"warnings,omitempty"`
}

// EditResult summarizes an edit batch.
type EditResult struct {
	AppliedCount int      `json:"appliedCount"`
	Rejected     []string `json:"rejected"`
	Warnings     []string `json:"warnings,omitempty"`
	Version      int64    `json:"version"`
	DocumentID   string   `json:"documentId"`
	Corrected    bool     `json:"corrected,omitempty"`
}

// ReadOutline lists the document's headings with the chunk holding each.
func (n *Navigator) ReadOutline(ctx context.Context, docID string) (OutlineResult, error) {
	snap, ref, err := n.snapshot(ctx, docID)
	if err != nil {
		return OutlineResult{}, err
	}
	return OutlineResult{DocRef: ref, Entries: n.reader.Outline(snap.Tree)}, nil
}

// ReadChunk returns chunk index with contextWindow neighbors on each side.
func (n *Navigator) ReadChunk(ctx context.Context, docID string, index, contextWindow int, strategy chunker.Strategy) (ChunkResult, error) {
	if strategy != chunker.StrategyFixed {
		strategy = chunker.StrategySemantic
	}
	snap, ref, err := n.snapshot(ctx, docID)
	if err != nil {
		return ChunkResult{}, err
	}
	w := n.reader.ReadWindow(snap.Tree, index, contextWindow, strategy)
	return ChunkResult{
		DocRef:      ref,
		Strategy:    strategy,
		Index:       w.Index,
		TotalChunks: w.Total,
		Chunks:      w.Chunks,
	}, nil
}

// ReadRange resolves a span by positions or anchors.
func (n *Navigator) ReadRange(ctx context.Context, docID string, req anchor.RangeRequest, format string) (RangeResult, error) {
	snap, ref, err := n.snapshot(ctx, docID)
	if err != nil {
		return RangeResult{}, err
	}
	r := anchor.Select(snap.Tree, req)
	out := RangeResult{DocRef: ref, From: r.From, To: r.To, Warnings: r.Warnings}
	if format == FormatJSON {
		out.Blocks = r.Blocks
		if out.Blocks == nil {
			out.Blocks = []*richtext.Node{}
		}
	} else {
		out.Text = r.Text
	}
	return out, nil
}

// ApplyEdits validates ops, resolves them against the current snapshot and
// commits the resulting steps as one batch. A stale snapshot fails with a
// *collab.ConflictError and nothing is written.
func (n *Navigator) ApplyEdits(ctx context.Context, docID string, ops []edits.Operation) (EditResult, error) {
	start := time.Now()
	res, err := n.applyEdits(ctx, docID, ops)
	status := "ok"
	switch {
	case errors.As(err, new(*collab.ConflictError)):
		status = "conflict"
	case err != nil:
		status = "error"
	}
	elapsed := time.Since(start)
	n.metrics.batchLatency.WithLabelValues(status).Observe(elapsed.Seconds())
	n.stats.Record(elapsed)
	return res, err
}

func (n *Navigator) applyEdits(ctx context.Context, docID string, ops []edits.Operation) (EditResult, error) {
	snap, ref, err := n.snapshot(ctx, docID)
	if err != nil {
		return EditResult{}, err
	}
	log := n.log.With("doc_id", ref.DocumentID, "version", snap.Version)

	result := EditResult{
		Rejected:   []string{},
		Version:    snap.Version,
		DocumentID: ref.DocumentID,
		Corrected:  ref.Corrected,
	}

	v := n.validator.Validate(ops)
	result.Warnings = v.Warnings
	for _, r := range v.Rejected {
		log.Debug("edit rejected", "index", r.Index, "type", r.Type, "reason", r.Reason)
		n.metrics.editsRejected.WithLabelValues("invalid").Inc()
		result.Rejected = append(result.Rejected, r.Error())
	}
	if n.strict && len(v.Rejected) > 0 {
		log.Info("strict batch rejected", "rejected", len(v.Rejected))
		return result, nil
	}

	out := n.applier.Apply(snap.Tree, v.Accepted)
	for _, f := range out.Failed {
		reason := "unresolved"
		var nf *edits.AnchorNotFoundError
		if errors.As(f, &nf) {
			reason = "anchor_not_found"
		}
		log.Debug("edit not applied", "index", f.Index, "type", f.Type, "error", f.Err)
		n.metrics.editsRejected.WithLabelValues(reason).Inc()
		result.Rejected = append(result.Rejected, f.Error())
	}
	if n.strict && len(out.Failed) > 0 {
		log.Info("strict batch rejected", "rejected", len(out.Failed))
		return result, nil
	}
	if len(out.Steps) == 0 {
		return result, nil
	}

	version, err := n.store.ApplyOperations(ctx, ref.DocumentID, snap.Version, out.Steps)
	if err != nil {
		var cerr *collab.ConflictError
		if errors.As(err, &cerr) {
			n.metrics.conflicts.Inc()
			log.Warn("edit batch conflict", "actual", cerr.Actual)
			return EditResult{}, err
		}
		return EditResult{}, fmt.Errorf("commit edits to %s: %w", ref.DocumentID, err)
	}

	n.metrics.editsApplied.Add(float64(out.Applied))
	log.Info("edit batch committed", "applied", out.Applied, "steps", len(out.Steps), "new_version", version)
	result.AppliedCount = out.Applied
	result.Version = version
	return result, nil
}

// snapshot reconciles docID and loads the document. A miss on a reconciled
// id refreshes the identifier listing once before giving up.
func (n *Navigator) snapshot(ctx context.Context, docID string) (collab.Snapshot, DocRef, error) {
	res, err := n.resolve(ctx, docID)
	if err != nil {
		return collab.Snapshot{}, DocRef{}, err
	}
	snap, err := n.store.GetSnapshot(ctx, res.ID)
	if errors.Is(err, collab.ErrNotFound) && n.ids != nil && len(docID) < reconcile.CompleteLength {
		n.ids.Invalidate(collab.ScopeDocuments)
		if res, err = n.resolve(ctx, docID); err != nil {
			return collab.Snapshot{}, DocRef{}, err
		}
		snap, err = n.store.GetSnapshot(ctx, res.ID)
	}
	if errors.Is(err, collab.ErrNotFound) {
		return collab.Snapshot{}, DocRef{}, &NotFoundError{DocumentID: docID, Resolved: res.ID}
	}
	if err != nil {
		return collab.Snapshot{}, DocRef{}, fmt.Errorf("load %s: %w", res.ID, err)
	}
	if res.Corrected {
		n.metrics.reconciled.Inc()
		n.log.Debug("document id corrected", "requested", docID, "resolved", res.ID)
	}
	return snap, DocRef{DocumentID: res.ID, Version: snap.Version, Corrected: res.Corrected}, nil
}

func (n *Navigator) resolve(ctx context.Context, docID string) (reconcile.Result, error) {
	if n.ids == nil {
		return reconcile.Result{ID: docID}, nil
	}
	res, err := n.ids.Resolve(ctx, docID, collab.ScopeDocuments)
	if err != nil {
		return reconcile.Result{}, fmt.Errorf("reconcile %s: %w", docID, err)
	}
	return res, nil
}
