// Package reconcile repairs truncated or slightly mangled document
// identifiers against the identifiers the store actually knows.
package reconcile

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgallion1/docnav/internal/collab"
)

const (
	// CompleteLength is the length at which a candidate is taken as-is.
	CompleteLength = 30
	// fuzzyMinLength is the length a candidate must exceed for fuzzy matching.
	fuzzyMinLength = 20
	// MaxDistance is the largest accepted edit distance.
	MaxDistance = 5
)

// Cached is a value with the time it was fetched and how long it stays valid.
type Cached[T any] struct {
	Value     T
	FetchedAt time.Time
	TTL       time.Duration
}

// Fresh reports whether the value is still valid at now.
func (c Cached[T]) Fresh(now time.Time) bool {
	if c.FetchedAt.IsZero() {
		return false
	}
	return now.Sub(c.FetchedAt) < c.TTL
}

// Result is the outcome of reconciling one candidate.
type Result struct {
	ID        string
	Corrected bool
}

// Reconciler resolves candidates against a cached identifier listing.
type Reconciler struct {
	lister collab.IdentifierLister
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]Cached[[]collab.KnownIdentifier]
}

// New creates a Reconciler. A non-positive ttl disables caching.
func New(lister collab.IdentifierLister, ttl time.Duration) *Reconciler {
	return &Reconciler{
		lister: lister,
		ttl:    ttl,
		now:    time.Now,
		cache:  make(map[string]Cached[[]collab.KnownIdentifier]),
	}
}

// Resolve maps candidate onto a known identifier in scope. A candidate that
// matches nothing is returned unchanged with Corrected false.
func (r *Reconciler) Resolve(ctx context.Context, candidate, scope string) (Result, error) {
	if candidate == "" || len(candidate) >= CompleteLength {
		return Result{ID: candidate}, nil
	}
	known, err := r.known(ctx, scope)
	if err != nil {
		return Result{}, err
	}
	return Match(candidate, known), nil
}

// Invalidate drops the cached listing for scope.
func (r *Reconciler) Invalidate(scope string) {
	r.mu.Lock()
	delete(r.cache, scope)
	r.mu.Unlock()
}

func (r *Reconciler) known(ctx context.Context, scope string) ([]collab.KnownIdentifier, error) {
	r.mu.Lock()
	c, ok := r.cache[scope]
	r.mu.Unlock()
	if ok && c.Fresh(r.now()) {
		return c.Value, nil
	}

	ids, err := r.lister.ListKnownIdentifiers(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("list identifiers in %s: %w", scope, err)
	}
	if r.ttl > 0 {
		r.mu.Lock()
		r.cache[scope] = Cached[[]collab.KnownIdentifier]{Value: ids, FetchedAt: r.now(), TTL: r.ttl}
		r.mu.Unlock()
	}
	return ids, nil
}

// Match applies the reconciliation rules to candidate over known.
func Match(candidate string, known []collab.KnownIdentifier) Result {
	if candidate == "" || len(candidate) >= CompleteLength {
		return Result{ID: candidate}
	}
	for _, k := range known {
		if k.ID == candidate {
			return Result{ID: candidate}
		}
	}

	var matches []collab.KnownIdentifier
	for _, k := range known {
		if strings.HasPrefix(k.ID, candidate) {
			matches = append(matches, k)
		}
	}
	if len(matches) == 0 && len(candidate) > fuzzyMinLength {
		for _, k := range known {
			if levenshtein(candidate, k.ID) <= MaxDistance {
				matches = append(matches, k)
			}
		}
	}
	if len(matches) == 0 {
		return Result{ID: candidate}
	}

	best := matches[0]
	for _, m := range matches[1:] {
		if m.LastModifiedAt.After(best.LastModifiedAt) {
			best = m
		}
	}
	return Result{ID: best.ID, Corrected: true}
}

// levenshtein returns the edit distance between a and b in runes.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}

	prev := make([]int, len(ra)+1)
	curr := make([]int, len(ra)+1)
	for i := range prev {
		prev[i] = i
	}
	for j := 1; j <= len(rb); j++ {
		curr[0] = j
		for i := 1; i <= len(ra); i++ {
			if ra[i-1] == rb[j-1] {
				curr[i] = prev[i-1]
				continue
			}
			curr[i] = 1 + min(prev[i], curr[i-1], prev[i-1])
		}
		prev, curr = curr, prev
	}
	return prev[len(ra)]
}
