package collab

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/dgallion1/docnav/internal/collab/migrations"
	"github.com/dgallion1/docnav/internal/richtext"
)

// Verify interface compliance.
var (
	_ Store            = (*SQLiteStore)(nil)
	_ IdentifierLister = (*SQLiteStore)(nil)
)

// SQLiteStore persists documents in a local SQLite database. Each commit
// runs in one transaction guarded by the version column and appends the
// committed steps to a log.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) migrate(fsys embed.FS) error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			upFiles = append(upFiles, e.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

// GetSnapshot loads the current version of a document.
func (s *SQLiteStore) GetSnapshot(ctx context.Context, docID string) (Snapshot, error) {
	var (
		version int64
		raw     string
	)
	err := s.db.QueryRowContext(ctx, "SELECT version, tree FROM documents WHERE id = ?", docID).Scan(&version, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("get %s: %w", docID, ErrNotFound)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("get %s: %w", docID, err)
	}
	var tree richtext.Node
	if err := json.Unmarshal([]byte(raw), &tree); err != nil {
		return Snapshot{}, fmt.Errorf("decode tree %s: %w", docID, err)
	}
	return Snapshot{DocumentID: docID, Version: version, Tree: &tree}, nil
}

// ApplyOperations commits steps in one transaction if expectedVersion is
// still current.
func (s *SQLiteStore) ApplyOperations(ctx context.Context, docID string, expectedVersion int64, steps []richtext.Step) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var (
		version int64
		raw     string
	)
	err = tx.QueryRowContext(ctx, "SELECT version, tree FROM documents WHERE id = ?", docID).Scan(&version, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("apply to %s: %w", docID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", docID, err)
	}
	if version != expectedVersion {
		return 0, &ConflictError{DocumentID: docID, Expected: expectedVersion, Actual: version}
	}

	var tree richtext.Node
	if err := json.Unmarshal([]byte(raw), &tree); err != nil {
		return 0, fmt.Errorf("decode tree %s: %w", docID, err)
	}
	next, err := richtext.Apply(&tree, steps)
	if err != nil {
		return 0, fmt.Errorf("apply to %s: %w", docID, err)
	}
	treeJSON, err := json.Marshal(next)
	if err != nil {
		return 0, fmt.Errorf("encode tree: %w", err)
	}
	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return 0, fmt.Errorf("encode steps: %w", err)
	}

	now := time.Now().UnixNano()
	res, err := tx.ExecContext(ctx,
		"UPDATE documents SET version = ?, tree = ?, updated_at = ? WHERE id = ? AND version = ?",
		version+1, string(treeJSON), now, docID, expectedVersion)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", docID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, &ConflictError{DocumentID: docID, Expected: expectedVersion, Actual: -1}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO document_steps (document_id, version, steps, applied_at) VALUES (?, ?, ?, ?)",
		docID, version+1, string(stepsJSON), now); err != nil {
		return 0, fmt.Errorf("log steps %s: %w", docID, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit %s: %w", docID, err)
	}
	return version + 1, nil
}

// CreateDocument stores tree as version 1 of a new document.
func (s *SQLiteStore) CreateDocument(ctx context.Context, docID string, tree *richtext.Node) error {
	if err := richtext.ValidateDoc(tree); err != nil {
		return fmt.Errorf("create %s: %w", docID, err)
	}
	treeJSON, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("encode tree: %w", err)
	}
	now := time.Now().UnixNano()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO documents (id, version, tree, created_at, updated_at) VALUES (?, 1, ?, ?, ?) ON CONFLICT(id) DO NOTHING",
		docID, string(treeJSON), now, now)
	if err != nil {
		return fmt.Errorf("create %s: %w", docID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("create %s: %w", docID, ErrExists)
	}
	return nil
}

// ListKnownIdentifiers lists document ids, most recently modified first.
func (s *SQLiteStore) ListKnownIdentifiers(ctx context.Context, scope string) ([]KnownIdentifier, error) {
	if scope != ScopeDocuments {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, "SELECT id, updated_at FROM documents ORDER BY updated_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []KnownIdentifier
	for rows.Next() {
		var (
			id      string
			updated int64
		)
		if err := rows.Scan(&id, &updated); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, KnownIdentifier{ID: id, LastModifiedAt: time.Unix(0, updated)})
	}
	return out, rows.Err()
}
