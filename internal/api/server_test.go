package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dgallion1/docnav/internal/collab"
	"github.com/dgallion1/docnav/internal/config"
	"github.com/dgallion1/docnav/internal/ingest"
	rt "github.com/dgallion1/docnav/internal/richtext"
	"github.com/dgallion1/docnav/internal/service"
)

const (
	testKey = "test-key"
	docID   = "0199a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	srv   *Server
	store collab.Store
	orch  *ingest.Orchestrator
}

func newHarness(t *testing.T, store collab.Store) harness {
	t.Helper()
	cfg := config.Default()
	cfg.APIKey = testKey
	cfg.MaxUploadBytes = 1 << 20

	reg := prometheus.NewRegistry()
	nav := service.New(store, nil, service.Options{Metrics: service.NewMetrics(reg)}, discard())
	orch := ingest.NewOrchestrator(cfg, store, discard())
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	lister, _ := store.(collab.IdentifierLister)
	return harness{
		srv:   NewServer(nav, orch, lister, reg, discard(), cfg),
		store: store,
		orch:  orch,
	}
}

func seededStore(t *testing.T) *collab.MemoryStore {
	t.Helper()
	s := collab.NewMemoryStore()
	err := s.CreateDocument(context.Background(), docID, rt.Doc(
		rt.Heading(1, rt.Text("Purchase Agreement")),
		rt.Paragraph(rt.Text("The Seller shall deliver the goods to the Buyer.")),
		rt.Heading(2, rt.Text("Payment")),
		rt.Paragraph(rt.Text("The Buyer shall pay within thirty days.")),
	))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func (h harness) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+testKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealth_NoAuth(t *testing.T) {
	h := newHarness(t, collab.NewMemoryStore())
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestAuth(t *testing.T) {
	h := newHarness(t, seededStore(t))
	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic " + testKey},
		{"wrong key", "Bearer nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/documents/"+docID+"/outline", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.srv.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestOutline(t *testing.T) {
	h := newHarness(t, seededStore(t))
	rec := h.do(t, http.MethodGet, "/api/documents/"+docID+"/outline", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out service.OutlineResult
	decode(t, rec, &out)
	if len(out.Entries) != 2 {
		t.Fatalf("expected 2 outline entries, got %d", len(out.Entries))
	}
	if out.Entries[1].Text != "Payment" {
		t.Errorf("expected second heading %q, got %q", "Payment", out.Entries[1].Text)
	}
}

func TestOutline_NotFound(t *testing.T) {
	h := newHarness(t, seededStore(t))
	rec := h.do(t, http.MethodGet, "/api/documents/missing/outline", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestChunk(t *testing.T) {
	h := newHarness(t, seededStore(t))

	rec := h.do(t, http.MethodGet, "/api/documents/"+docID+"/chunks/1?context=1", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out service.ChunkResult
	decode(t, rec, &out)
	if out.TotalChunks != 2 {
		t.Errorf("expected 2 chunks, got %d", out.TotalChunks)
	}
	if len(out.Chunks) != 2 {
		t.Errorf("expected window of 2 chunks, got %d", len(out.Chunks))
	}

	for _, path := range []string{
		"/api/documents/" + docID + "/chunks/x",
		"/api/documents/" + docID + "/chunks/0?context=many",
		"/api/documents/" + docID + "/chunks/0?strategy=random",
	} {
		if rec := h.do(t, http.MethodGet, path, nil, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, rec.Code)
		}
	}
}

func TestRange(t *testing.T) {
	h := newHarness(t, seededStore(t))

	rec := h.do(t, http.MethodGet, "/api/documents/"+docID+"/range?afterText=Seller&beforeText=Buyer.", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out service.RangeResult
	decode(t, rec, &out)
	if out.Text != " shall deliver the goods to the " {
		t.Errorf("unexpected range text %q", out.Text)
	}

	rec = h.do(t, http.MethodGet, "/api/documents/"+docID+"/range?from=0&to=5&format=json", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	decode(t, rec, &out)
	if len(out.Blocks) != 1 {
		t.Errorf("expected 1 block, got %d", len(out.Blocks))
	}

	for _, path := range []string{
		"/api/documents/" + docID + "/range?from=a",
		"/api/documents/" + docID + "/range?format=xml",
	} {
		if rec := h.do(t, http.MethodGet, path, nil, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, rec.Code)
		}
	}
}

func TestEdits(t *testing.T) {
	store := seededStore(t)
	h := newHarness(t, store)

	body := `{"edits":[
		{"type":"replace","findText":"thirty","replaceText":"sixty"},
		{"type":"add_mark","text":"Seller","markType":"sparkle"},
		"not an object"
	]}`
	rec := h.do(t, http.MethodPost, "/api/documents/"+docID+"/edits", strings.NewReader(body), "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var out service.EditResult
	decode(t, rec, &out)
	if out.AppliedCount != 1 {
		t.Errorf("expected 1 applied, got %d", out.AppliedCount)
	}
	if len(out.Rejected) != 2 {
		t.Errorf("expected 2 rejected, got %v", out.Rejected)
	}
	if out.Version != 2 {
		t.Errorf("expected version 2, got %d", out.Version)
	}

	snap, err := store.GetSnapshot(context.Background(), docID)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rt.VisibleText(snap.Tree), "within sixty days") {
		t.Errorf("expected committed replacement, got %q", rt.VisibleText(snap.Tree))
	}
}

func TestEdits_BadBody(t *testing.T) {
	h := newHarness(t, seededStore(t))
	for _, body := range []string{`not json`, `{}`} {
		rec := h.do(t, http.MethodPost, "/api/documents/"+docID+"/edits", strings.NewReader(body), "application/json")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
}

// racingStore commits a competing change right after the first snapshot
// read.
type racingStore struct {
	*collab.MemoryStore
	raced bool
}

func (s *racingStore) GetSnapshot(ctx context.Context, id string) (collab.Snapshot, error) {
	snap, err := s.MemoryStore.GetSnapshot(ctx, id)
	if err != nil || s.raced {
		return snap, err
	}
	s.raced = true
	_, err = s.MemoryStore.ApplyOperations(ctx, id, snap.Version, []rt.Step{rt.InsertText(1, "Draft ")})
	return snap, err
}

func TestEdits_Conflict(t *testing.T) {
	h := newHarness(t, &racingStore{MemoryStore: seededStore(t)})
	body := `{"edits":[{"type":"replace","findText":"thirty","replaceText":"sixty"}]}`
	rec := h.do(t, http.MethodPost, "/api/documents/"+docID+"/edits", strings.NewReader(body), "application/json")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	var out map[string]any
	decode(t, rec, &out)
	if out["expectedVersion"] != 1.0 || out["actualVersion"] != 2.0 {
		t.Errorf("unexpected conflict body %v", out)
	}
}

func TestImport(t *testing.T) {
	store := collab.NewMemoryStore()
	h := newHarness(t, store)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "lease.md")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte("# Lease\n\nThe tenant pays rent monthly.\n"))
	mw.Close()

	rec := h.do(t, http.MethodPost, "/api/import", &buf, mw.FormDataContentType())
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var accepted map[string]any
	decode(t, rec, &accepted)
	jobID, _ := accepted["job_id"].(string)
	if jobID == "" {
		t.Fatal("expected job id")
	}

	var snap ingest.JobSnapshot
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec = h.do(t, http.MethodGet, "/api/import/"+jobID+"/status", nil, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		decode(t, rec, &snap)
		if snap.Done() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("import did not finish")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if snap.Status != ingest.StatusCompleted {
		t.Fatalf("expected completed, got %q: %v", snap.Status, snap.Progress.Errors)
	}

	rec = h.do(t, http.MethodGet, "/api/documents/"+snap.DocID+"/outline", nil, "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected imported document to be readable, got %d", rec.Code)
	}

	rec = h.do(t, http.MethodGet, "/api/documents", nil, "")
	var listing struct {
		Documents []collab.KnownIdentifier `json:"documents"`
	}
	decode(t, rec, &listing)
	if len(listing.Documents) != 1 || listing.Documents[0].ID != snap.DocID {
		t.Errorf("expected listing with %q, got %+v", snap.DocID, listing.Documents)
	}
}

func TestImport_Rejections(t *testing.T) {
	h := newHarness(t, collab.NewMemoryStore())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, _ := mw.CreateFormFile("file", "deck.pptx")
	fw.Write([]byte("x"))
	mw.Close()
	rec := h.do(t, http.MethodPost, "/api/import", &buf, mw.FormDataContentType())
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unsupported type, got %d", rec.Code)
	}

	rec = h.do(t, http.MethodGet, "/api/import/nope/status", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown job, got %d", rec.Code)
	}
}

func TestStatsAndMetrics(t *testing.T) {
	h := newHarness(t, seededStore(t))
	body := `{"edits":[{"type":"replace","findText":"thirty","replaceText":"sixty"}]}`
	h.do(t, http.MethodPost, "/api/documents/"+docID+"/edits", strings.NewReader(body), "application/json")

	rec := h.do(t, http.MethodGet, "/api/stats/edits", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats struct {
		Stats service.StatsSnapshot `json:"stats"`
	}
	decode(t, rec, &stats)
	if stats.Stats.Count != 1 {
		t.Errorf("expected 1 recorded batch, got %d", stats.Stats.Count)
	}

	rec = h.do(t, http.MethodGet, "/metrics", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "docnav_edits_applied_total 1") {
		t.Errorf("expected applied counter in metrics output")
	}
	if !strings.Contains(rec.Body.String(), `route="/api/documents/{docID}/edits"`) {
		t.Errorf("expected request counter labelled by route pattern")
	}
}
