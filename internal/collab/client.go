package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dgallion1/docnav/internal/richtext"
)

// Verify interface compliance.
var (
	_ Store            = (*Client)(nil)
	_ IdentifierLister = (*Client)(nil)
)

// Client communicates with a remote collaborative store over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// operationsRequest is the body for POST /documents/{id}/operations.
type operationsRequest struct {
	ExpectedVersion int64           `json:"expectedVersion"`
	Steps           []richtext.Step `json:"steps"`
}

type operationsResponse struct {
	Version int64 `json:"version"`
}

type conflictResponse struct {
	Version int64 `json:"version"`
}

// GetSnapshot fetches the current version of a document.
func (c *Client) GetSnapshot(ctx context.Context, docID string) (Snapshot, error) {
	resp, err := c.do(ctx, http.MethodGet, "/documents/"+url.PathEscape(docID), nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("get snapshot: %w", err)
	}
	defer resp.Body.Close()
	if err := statusError(resp, docID, http.StatusOK); err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.DocumentID == "" {
		snap.DocumentID = docID
	}
	return snap, nil
}

// ApplyOperations submits steps conditioned on expectedVersion.
func (c *Client) ApplyOperations(ctx context.Context, docID string, expectedVersion int64, steps []richtext.Step) (int64, error) {
	body, err := json.Marshal(operationsRequest{ExpectedVersion: expectedVersion, Steps: steps})
	if err != nil {
		return 0, fmt.Errorf("marshal operations: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/documents/"+url.PathEscape(docID)+"/operations", body)
	if err != nil {
		return 0, fmt.Errorf("apply operations: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusConflict {
		cerr := &ConflictError{DocumentID: docID, Expected: expectedVersion, Actual: -1}
		var cr conflictResponse
		if json.NewDecoder(io.LimitReader(resp.Body, 1024)).Decode(&cr) == nil && cr.Version > 0 {
			cerr.Actual = cr.Version
		}
		return 0, cerr
	}
	if err := statusError(resp, docID, http.StatusOK); err != nil {
		return 0, err
	}

	var out operationsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode operations response: %w", err)
	}
	return out.Version, nil
}

// CreateDocument stores tree as a new document.
func (c *Client) CreateDocument(ctx context.Context, docID string, tree *richtext.Node) error {
	body, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("marshal tree: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPut, "/documents/"+url.PathEscape(docID), body)
	if err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusConflict {
		return fmt.Errorf("create %s: %w", docID, ErrExists)
	}
	return statusError(resp, docID, http.StatusOK, http.StatusCreated)
}

// ListKnownIdentifiers fetches the identifier listing for scope.
func (c *Client) ListKnownIdentifiers(ctx context.Context, scope string) ([]KnownIdentifier, error) {
	resp, err := c.do(ctx, http.MethodGet, "/identifiers?scope="+url.QueryEscape(scope), nil)
	if err != nil {
		return nil, fmt.Errorf("list identifiers: %w", err)
	}
	defer resp.Body.Close()
	if err := statusError(resp, scope, http.StatusOK); err != nil {
		return nil, err
	}

	var result struct {
		Identifiers []KnownIdentifier `json:"identifiers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode identifiers: %w", err)
	}
	return result.Identifiers, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return c.httpClient.Do(httpReq)
}

// statusError maps a non-accepted response onto the package errors.
func statusError(resp *http.Response, subject string, accepted ...int) error {
	for _, code := range accepted {
		if resp.StatusCode == code {
			return nil
		}
	}
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", subject, ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return &RetryableError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
			RetryAfter: retryAfter(resp.Header.Get("Retry-After")),
		}
	default:
		return fmt.Errorf("%s: status %d: %s", subject, resp.StatusCode, string(respBody))
	}
}

// retryAfter parses a Retry-After value given in seconds. HTTP dates are
// ignored.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
