package collab

import "fmt"

// Backend is a Store that also lists its identifiers and owns resources.
type Backend interface {
	Store
	IdentifierLister
	Close() error
}

var (
	_ Backend = (*MemoryStore)(nil)
	_ Backend = (*SQLiteStore)(nil)
	_ Backend = (*Client)(nil)
)

// Open returns the backend named by kind: "sqlite", "memory" or "remote".
func Open(kind, sqlitePath, storeURL, storeAPIKey string) (Backend, error) {
	switch kind {
	case "sqlite":
		return OpenSQLite(sqlitePath)
	case "memory":
		return NewMemoryStore(), nil
	case "remote":
		if storeURL == "" {
			return nil, fmt.Errorf("remote store needs a URL")
		}
		return NewClient(storeURL, storeAPIKey), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", kind)
	}
}
