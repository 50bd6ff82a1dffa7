package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/docnav/internal/chunker"
	"github.com/dgallion1/docnav/internal/collab"
	"github.com/dgallion1/docnav/internal/config"
	"github.com/dgallion1/docnav/internal/parser"
	"github.com/dgallion1/docnav/internal/richtext"
)

const lease = "# Lease\n\nThe tenant pays rent monthly.\n"

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testWorker(store collab.Store) *Worker {
	w := NewWorker(store, nil, chunker.DefaultConfig(), parser.Options{}, discard())
	w.backoff = func(int) time.Duration { return 0 }
	return w
}

// flakyStore fails CreateDocument with a retryable error a fixed number of
// times before delegating.
type flakyStore struct {
	*collab.MemoryStore
	mu       sync.Mutex
	failures int
	err      error
}

func (s *flakyStore) CreateDocument(ctx context.Context, docID string, tree *richtext.Node) error {
	s.mu.Lock()
	if s.failures > 0 {
		s.failures--
		s.mu.Unlock()
		return s.err
	}
	s.mu.Unlock()
	return s.MemoryStore.CreateDocument(ctx, docID, tree)
}

func TestWorker_ImportsMarkdown(t *testing.T) {
	store := collab.NewMemoryStore()
	w := testWorker(store)
	job := NewJob("job-1", "lease.md", "", []byte(lease))

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %q (errors %v)", snap.Status, snap.Progress.Errors)
	}
	if len(snap.DocID) != 36 {
		t.Errorf("expected a 36 character document id, got %q", snap.DocID)
	}
	if snap.Title != "Lease" {
		t.Errorf("expected title %q, got %q", "Lease", snap.Title)
	}
	if snap.Progress.Blocks != 2 {
		t.Errorf("expected 2 blocks, got %d", snap.Progress.Blocks)
	}
	if snap.Progress.Words != 6 {
		t.Errorf("expected 6 words, got %d", snap.Progress.Words)
	}
	if snap.Progress.Attempts != 1 {
		t.Errorf("expected 1 store attempt, got %d", snap.Progress.Attempts)
	}

	doc, err := store.GetSnapshot(context.Background(), snap.DocID)
	if err != nil {
		t.Fatalf("expected stored document, got %v", err)
	}
	if doc.Version != 1 {
		t.Errorf("expected version 1, got %d", doc.Version)
	}
	if got := richtext.VisibleText(doc.Tree); got != "LeaseThe tenant pays rent monthly." {
		t.Errorf("unexpected stored text %q", got)
	}
}

func TestWorker_UnsupportedFormat(t *testing.T) {
	w := testWorker(collab.NewMemoryStore())
	job := NewJob("job-2", "slides.pptx", "", []byte("x"))

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed {
		t.Errorf("expected failed, got %q", snap.Status)
	}
	if snap.Phase != "parsing" {
		t.Errorf("expected failure in parsing, got %q", snap.Phase)
	}
	if len(snap.Progress.Errors) != 1 {
		t.Errorf("expected 1 error, got %d", len(snap.Progress.Errors))
	}
}

func TestWorker_EmptyDocumentFails(t *testing.T) {
	w := testWorker(collab.NewMemoryStore())
	job := NewJob("job-3", "blank.txt", "", []byte("   \n\n  "))

	w.Process(context.Background(), job)

	if got := job.Snapshot().Status; got != StatusFailed {
		t.Errorf("expected failed, got %q", got)
	}
}

func TestWorker_RetriesTransientStoreErrors(t *testing.T) {
	store := &flakyStore{
		MemoryStore: collab.NewMemoryStore(),
		failures:    2,
		err:         &collab.RetryableError{StatusCode: 503, Message: "unavailable"},
	}
	w := testWorker(store)
	job := NewJob("job-4", "lease.md", "", []byte(lease))

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed after retries, got %q", snap.Status)
	}
	if snap.Progress.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", snap.Progress.Attempts)
	}
}

func TestWorker_GivesUpAfterMaxRetries(t *testing.T) {
	store := &flakyStore{
		MemoryStore: collab.NewMemoryStore(),
		failures:    MaxRetries,
		err:         &collab.RetryableError{StatusCode: 429, Message: "slow down"},
	}
	w := testWorker(store)
	job := NewJob("job-5", "lease.md", "", []byte(lease))

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed {
		t.Errorf("expected failed, got %q", snap.Status)
	}
	if snap.Progress.Attempts != MaxRetries {
		t.Errorf("expected %d attempts, got %d", MaxRetries, snap.Progress.Attempts)
	}
}

func TestWorker_PermanentStoreErrorIsNotRetried(t *testing.T) {
	store := &flakyStore{
		MemoryStore: collab.NewMemoryStore(),
		failures:    1,
		err:         errors.New("disk full"),
	}
	w := testWorker(store)
	job := NewJob("job-6", "lease.md", "", []byte(lease))

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusFailed {
		t.Errorf("expected failed, got %q", snap.Status)
	}
	if snap.Progress.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", snap.Progress.Attempts)
	}
}

func TestWorker_SkipsDuplicateContent(t *testing.T) {
	store := collab.NewMemoryStore()
	w := testWorker(store)
	ctx := context.Background()

	first := NewJob("job-7", "lease.md", "", []byte(lease))
	w.Process(ctx, first)
	second := NewJob("job-8", "copy.md", "", []byte(lease))
	w.Process(ctx, second)

	snap := second.Snapshot()
	if snap.Status != StatusDupSkipped {
		t.Fatalf("expected duplicate_skipped, got %q", snap.Status)
	}
	if snap.DocID != first.Snapshot().DocID {
		t.Errorf("expected duplicate to point at %q, got %q", first.Snapshot().DocID, snap.DocID)
	}

	ids, err := store.ListKnownIdentifiers(ctx, collab.ScopeDocuments)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 {
		t.Errorf("expected 1 stored document, got %d", len(ids))
	}
}

func TestOrchestrator_ProcessesSubmittedJobs(t *testing.T) {
	cfg := config.Default()
	cfg.WorkerCount = 2
	store := collab.NewMemoryStore()
	o := NewOrchestrator(cfg, store, discard())
	o.Start(context.Background())

	job := NewJob("job-9", "notes.txt", "", []byte("First paragraph.\n\nSecond paragraph."))
	if err := o.Submit(job); err != nil {
		t.Fatalf("submit: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for !job.Snapshot().Done() {
		if time.Now().After(deadline) {
			t.Fatal("job did not finish")
		}
		time.Sleep(5 * time.Millisecond)
	}
	o.Stop()

	if got := o.GetJob("job-9"); got != job {
		t.Error("expected job to be retrievable by id")
	}
	if got := job.Snapshot().Status; got != StatusCompleted {
		t.Errorf("expected completed, got %q", got)
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	cfg := config.Default()
	cfg.MaxQueueSize = 1
	o := NewOrchestrator(cfg, collab.NewMemoryStore(), discard())
	// Workers are not started, so the queue never drains.

	if err := o.Submit(NewJob("a", "a.txt", "", []byte("a"))); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	b := NewJob("b", "b.txt", "", []byte("b"))
	if err := o.Submit(b); err == nil {
		t.Fatal("expected queue full error")
	}
	if got := b.Snapshot().Status; got != StatusFailed {
		t.Errorf("expected rejected job to be failed, got %q", got)
	}
	if o.QueueDepth() != 1 {
		t.Errorf("expected queue depth 1, got %d", o.QueueDepth())
	}
}

func TestOrchestrator_SubmitAfterStop(t *testing.T) {
	o := NewOrchestrator(config.Default(), collab.NewMemoryStore(), discard())
	o.Start(context.Background())
	o.Stop()
	o.Stop()

	job := NewJob("late", "late.txt", "", []byte("late"))
	if err := o.Submit(job); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	if got := job.Snapshot().Status; got != StatusFailed {
		t.Errorf("expected failed, got %q", got)
	}
}
