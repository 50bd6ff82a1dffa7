package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docnav/internal/anchor"
	"github.com/dgallion1/docnav/internal/chunker"
	"github.com/dgallion1/docnav/internal/collab"
	"github.com/dgallion1/docnav/internal/edits"
	rt "github.com/dgallion1/docnav/internal/richtext"
)

const longID = "abcdefghij0123456789ABCDEFGHIJK"

func agreement() *rt.Node {
	return rt.Doc(
		rt.Heading(1, rt.Text("Purchase Agreement")),
		rt.Paragraph(rt.Text("The Seller shall deliver the goods to the Buyer.")),
		rt.Heading(2, rt.Text("Payment")),
		rt.Paragraph(rt.Text("The Buyer shall pay within thirty days, jointly and severally.")),
	)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newNavigator(t *testing.T, store collab.Store, opts Options) *Navigator {
	t.Helper()
	return New(store, nil, opts, discard())
}

func seeded(t *testing.T) *collab.MemoryStore {
	t.Helper()
	s := collab.NewMemoryStore()
	require.NoError(t, s.CreateDocument(context.Background(), longID, agreement()))
	return s
}

func TestReadOutline(t *testing.T) {
	nav := newNavigator(t, seeded(t), Options{})
	out, err := nav.ReadOutline(context.Background(), longID)
	require.NoError(t, err)

	assert.Equal(t, longID, out.DocumentID)
	assert.Equal(t, int64(1), out.Version)
	assert.False(t, out.Corrected)
	require.Len(t, out.Entries, 2)
	assert.Equal(t, "Purchase Agreement", out.Entries[0].Text)
	assert.Equal(t, 0, out.Entries[0].ChunkIndex)
	assert.Equal(t, "Payment", out.Entries[1].Text)
	assert.Equal(t, 1, out.Entries[1].ChunkIndex)
}

func TestTruncatedIDIsCorrected(t *testing.T) {
	nav := newNavigator(t, seeded(t), Options{IDCacheTTL: time.Minute})
	truncated := longID[:29]

	out, err := nav.ReadOutline(context.Background(), truncated)
	require.NoError(t, err)
	assert.Equal(t, longID, out.DocumentID)
	assert.True(t, out.Corrected)
}

func TestNewDocumentFoundDespiteCachedListing(t *testing.T) {
	store := seeded(t)
	nav := newNavigator(t, store, Options{IDCacheTTL: time.Hour})
	ctx := context.Background()

	_, err := nav.ReadOutline(ctx, longID[:25])
	require.NoError(t, err)

	require.NoError(t, store.CreateDocument(ctx, "zzz-fresh-document-0001", agreement()))
	out, err := nav.ReadOutline(ctx, "zzz-fresh-document")
	require.NoError(t, err)
	assert.Equal(t, "zzz-fresh-document-0001", out.DocumentID)
}

func TestNotFound(t *testing.T) {
	nav := newNavigator(t, seeded(t), Options{})
	_, err := nav.ReadChunk(context.Background(), "missing-document", 0, 0, chunker.StrategySemantic)

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "missing-document", nf.DocumentID)
	assert.ErrorIs(t, err, collab.ErrNotFound)
}

func TestReadChunk(t *testing.T) {
	nav := newNavigator(t, seeded(t), Options{})
	ctx := context.Background()

	out, err := nav.ReadChunk(ctx, longID, 9, 0, "")
	require.NoError(t, err)
	assert.Equal(t, chunker.StrategySemantic, out.Strategy)
	assert.Equal(t, 2, out.TotalChunks)
	assert.Equal(t, 1, out.Index)
	require.Len(t, out.Chunks, 1)
	assert.Contains(t, out.Chunks[0].Text, "PAYMENT")

	again, err := nav.ReadChunk(ctx, longID, 1, 0, "")
	require.NoError(t, err)
	assert.Equal(t, out.Chunks, again.Chunks)

	fixed, err := nav.ReadChunk(ctx, longID, 0, 5, chunker.StrategyFixed)
	require.NoError(t, err)
	assert.Equal(t, chunker.StrategyFixed, fixed.Strategy)
	assert.NotEmpty(t, fixed.Chunks)
}

func TestReadRange(t *testing.T) {
	nav := newNavigator(t, seeded(t), Options{})
	ctx := context.Background()

	text, err := nav.ReadRange(ctx, longID, anchor.RangeRequest{AfterText: "Seller", BeforeText: "Buyer."}, FormatText)
	require.NoError(t, err)
	assert.Equal(t, " shall deliver the goods to the ", text.Text)
	assert.Nil(t, text.Blocks)

	js, err := nav.ReadRange(ctx, longID, anchor.RangeRequest{AfterText: "Payment"}, FormatJSON)
	require.NoError(t, err)
	assert.Empty(t, js.Text)
	require.Len(t, js.Blocks, 2)
	assert.Equal(t, rt.KindHeading, js.Blocks[0].Kind)

	to := 100000
	clamped, err := nav.ReadRange(ctx, longID, anchor.RangeRequest{To: &to}, FormatText)
	require.NoError(t, err)
	assert.Equal(t, agreement().ContentSize(), clamped.To)
}

func TestApplyEdits_DeleteReducesWordCount(t *testing.T) {
	nav := newNavigator(t, seeded(t), Options{})
	ctx := context.Background()

	before, err := nav.ReadChunk(ctx, longID, 1, 0, chunker.StrategySemantic)
	require.NoError(t, err)

	res, err := nav.ApplyEdits(ctx, longID, []edits.Operation{
		{Type: edits.OpReplace, FindText: ", jointly and severally", ReplaceText: edits.Str("")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.AppliedCount)
	assert.Empty(t, res.Rejected)
	assert.Equal(t, int64(2), res.Version)

	after, err := nav.ReadChunk(ctx, longID, 1, 0, chunker.StrategySemantic)
	require.NoError(t, err)
	assert.NotContains(t, after.Chunks[0].Text, "severally")
	assert.Equal(t, before.Chunks[0].WordCount-3, after.Chunks[0].WordCount)
}

func TestApplyEdits_ContextSelectsOccurrence(t *testing.T) {
	store := collab.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateDocument(ctx, "case-file", rt.Doc(
		rt.Paragraph(rt.Text("The plaintiff filed the complaint.")),
		rt.Paragraph(rt.Text("The defendant answered and the plaintiff replied.")),
	)))
	nav := newNavigator(t, store, Options{})

	res, err := nav.ApplyEdits(ctx, "case-file", []edits.Operation{{
		Type: edits.OpReplace, FindText: "plaintiff", ReplaceText: edits.Str("claimant"), ContextBefore: "answered and the",
	}})
	require.NoError(t, err)
	require.Equal(t, 1, res.AppliedCount)

	snap, err := store.GetSnapshot(ctx, "case-file")
	require.NoError(t, err)
	assert.Equal(t, "The plaintiff filed the complaint.The defendant answered and the claimant replied.", rt.VisibleText(snap.Tree))
}

func TestApplyEdits_PartialBatchReportsRejections(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	nav := newNavigator(t, seeded(t), Options{Metrics: m})

	res, err := nav.ApplyEdits(context.Background(), longID, []edits.Operation{
		{Type: "rewrite"},
		{Type: edits.OpReplace, FindText: "Vendor", ReplaceText: edits.Str("x")},
		{Type: edits.OpAddMark, Text: "Seller", MarkType: "bold"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.AppliedCount)
	require.Len(t, res.Rejected, 2)
	assert.Contains(t, res.Rejected[0], "edits[0]")
	assert.Contains(t, res.Rejected[1], "edits[1]")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.editsApplied))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.editsRejected.WithLabelValues("invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.editsRejected.WithLabelValues("anchor_not_found")))
	assert.Equal(t, 1, nav.Stats().Snapshot().Count)
}

func TestApplyEdits_StrictRejectsWholeBatch(t *testing.T) {
	store := seeded(t)
	nav := newNavigator(t, store, Options{Strict: true})
	ctx := context.Background()

	res, err := nav.ApplyEdits(ctx, longID, []edits.Operation{
		{Type: edits.OpAddMark, Text: "Seller", MarkType: "bold"},
		{Type: edits.OpReplace, FindText: "nowhere", ReplaceText: edits.Str("x")},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.AppliedCount)
	assert.Len(t, res.Rejected, 1)
	assert.Equal(t, int64(1), res.Version)

	snap, err := store.GetSnapshot(ctx, longID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Version)
}

// racingStore lets another writer commit between the snapshot read and the
// batch commit.
type racingStore struct {
	*collab.MemoryStore
	raced bool
}

func (s *racingStore) GetSnapshot(ctx context.Context, docID string) (collab.Snapshot, error) {
	snap, err := s.MemoryStore.GetSnapshot(ctx, docID)
	if err != nil || s.raced {
		return snap, err
	}
	s.raced = true
	// "Purchase" spans [1, 9) in the heading.
	_, err = s.MemoryStore.ApplyOperations(ctx, docID, snap.Version, []rt.Step{rt.ReplaceText(1, 9, "Sale")})
	return snap, err
}

func TestApplyEdits_StaleCommitIsAtomic(t *testing.T) {
	store := &racingStore{MemoryStore: seeded(t)}
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	nav := newNavigator(t, store, Options{Metrics: m})
	ctx := context.Background()

	_, err := nav.ApplyEdits(ctx, longID, []edits.Operation{
		{Type: edits.OpReplace, FindText: "Seller", ReplaceText: edits.Str("Vendor")},
		{Type: edits.OpReplace, FindText: "thirty", ReplaceText: edits.Str("sixty")},
	})
	var cerr *collab.ConflictError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, int64(1), cerr.Expected)
	assert.Equal(t, int64(2), cerr.Actual)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.conflicts))

	snap, err := store.MemoryStore.GetSnapshot(ctx, longID)
	require.NoError(t, err)
	text := rt.VisibleText(snap.Tree)
	assert.Contains(t, text, "Sale Agreement")
	assert.Contains(t, text, "Seller")
	assert.Contains(t, text, "thirty")
	assert.Equal(t, int64(2), snap.Version)
}
