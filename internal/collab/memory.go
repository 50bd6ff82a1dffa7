package collab

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgallion1/docnav/internal/richtext"
)

// Verify interface compliance.
var (
	_ Store            = (*MemoryStore)(nil)
	_ IdentifierLister = (*MemoryStore)(nil)
)

type memoryDoc struct {
	version   int64
	tree      *richtext.Node
	updatedAt time.Time
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]*memoryDoc
	now  func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]*memoryDoc), now: time.Now}
}

// Close is a no-op; it lets MemoryStore serve as a Backend.
func (s *MemoryStore) Close() error { return nil }

// GetSnapshot returns the current version of a document. The tree is a copy.
func (s *MemoryStore) GetSnapshot(ctx context.Context, docID string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.docs[docID]
	if !ok {
		return Snapshot{}, fmt.Errorf("get %s: %w", docID, ErrNotFound)
	}
	return Snapshot{DocumentID: docID, Version: d.version, Tree: d.tree.Clone()}, nil
}

// ApplyOperations commits steps when expectedVersion is current.
func (s *MemoryStore) ApplyOperations(ctx context.Context, docID string, expectedVersion int64, steps []richtext.Step) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[docID]
	if !ok {
		return 0, fmt.Errorf("apply to %s: %w", docID, ErrNotFound)
	}
	if d.version != expectedVersion {
		return 0, &ConflictError{DocumentID: docID, Expected: expectedVersion, Actual: d.version}
	}
	next, err := richtext.Apply(d.tree, steps)
	if err != nil {
		return 0, fmt.Errorf("apply to %s: %w", docID, err)
	}
	d.tree = next
	d.version++
	d.updatedAt = s.now()
	return d.version, nil
}

// CreateDocument stores tree as version 1 of a new document.
func (s *MemoryStore) CreateDocument(ctx context.Context, docID string, tree *richtext.Node) error {
	if err := richtext.ValidateDoc(tree); err != nil {
		return fmt.Errorf("create %s: %w", docID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[docID]; ok {
		return fmt.Errorf("create %s: %w", docID, ErrExists)
	}
	s.docs[docID] = &memoryDoc{version: 1, tree: tree.Clone(), updatedAt: s.now()}
	return nil
}

// ListKnownIdentifiers lists every document id, most recently modified first.
func (s *MemoryStore) ListKnownIdentifiers(ctx context.Context, scope string) ([]KnownIdentifier, error) {
	if scope != ScopeDocuments {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]KnownIdentifier, 0, len(s.docs))
	for id, d := range s.docs {
		out = append(out, KnownIdentifier{ID: id, LastModifiedAt: d.updatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastModifiedAt.After(out[j].LastModifiedAt) })
	return out, nil
}
