// Package collab holds the collaborative document store port and its
// adapters. The store owns every document tree; callers read versioned
// snapshots and submit step batches conditioned on the version they read.
package collab

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgallion1/docnav/internal/richtext"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrConflict = errors.New("version conflict")
	ErrExists   = errors.New("document already exists")
)

// ScopeDocuments is the identifier scope covering every stored document.
const ScopeDocuments = "documents"

// Snapshot is an immutable view of a document at one version.
type Snapshot struct {
	DocumentID string         `json:"id"`
	Version    int64          `json:"version"`
	Tree       *richtext.Node `json:"tree"`
}

// KnownIdentifier is one entry of an identifier listing.
type KnownIdentifier struct {
	ID             string    `json:"id"`
	LastModifiedAt time.Time `json:"lastModifiedAt"`
}

// Store is the collaborative document store.
type Store interface {
	GetSnapshot(ctx context.Context, docID string) (Snapshot, error)
	// ApplyOperations applies steps atomically if the document is still at
	// expectedVersion and returns the new version. A stale version yields
	// a *ConflictError and leaves the document untouched.
	ApplyOperations(ctx context.Context, docID string, expectedVersion int64, steps []richtext.Step) (int64, error)
	CreateDocument(ctx context.Context, docID string, tree *richtext.Node) error
}

// IdentifierLister lists identifiers known within a scope.
type IdentifierLister interface {
	ListKnownIdentifiers(ctx context.Context, scope string) ([]KnownIdentifier, error)
}

// ConflictError reports a commit against a stale version.
type ConflictError struct {
	DocumentID string
	Expected   int64
	Actual     int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("document %s: expected version %d, store has %d", e.DocumentID, e.Expected, e.Actual)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// RetryableError indicates a transient store failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration // From the Retry-After header; zero when absent.
}

func (e *RetryableError) Error() string {
	msg := e.Message
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, msg)
}
