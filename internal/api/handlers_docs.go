package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docnav/internal/anchor"
	"github.com/dgallion1/docnav/internal/chunker"
	"github.com/dgallion1/docnav/internal/collab"
	"github.com/dgallion1/docnav/internal/edits"
	"github.com/dgallion1/docnav/internal/service"
)

const maxEditBodyBytes = 10 << 20

// handleListDocuments lists stored documents, most recently modified first.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if s.docs == nil {
		jsonError(w, "document listing unavailable", http.StatusServiceUnavailable)
		return
	}
	ids, err := s.docs.ListKnownIdentifiers(r.Context(), collab.ScopeDocuments)
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if ids == nil {
		ids = []collab.KnownIdentifier{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": ids})
}

func (s *Server) handleOutline(w http.ResponseWriter, r *http.Request) {
	out, err := s.nav.ReadOutline(r.Context(), chi.URLParam(r, "docID"))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		jsonError(w, "chunk index must be an integer", http.StatusBadRequest)
		return
	}
	q := r.URL.Query()
	contextWindow, err := queryInt(q.Get("context"), 0)
	if err != nil {
		jsonError(w, "context must be an integer", http.StatusBadRequest)
		return
	}
	strategy := chunker.Strategy(q.Get("strategy"))
	switch strategy {
	case "", chunker.StrategySemantic, chunker.StrategyFixed:
	default:
		jsonError(w, "strategy must be semantic or fixed", http.StatusBadRequest)
		return
	}

	out, err := s.nav.ReadChunk(r.Context(), chi.URLParam(r, "docID"), index, contextWindow, strategy)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := anchor.RangeRequest{
		AfterText:  q.Get("afterText"),
		BeforeText: q.Get("beforeText"),
	}
	for _, p := range []struct {
		name string
		dst  **int
	}{{"from", &req.From}, {"to", &req.To}} {
		if v := q.Get(p.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				jsonError(w, p.name+" must be an integer", http.StatusBadRequest)
				return
			}
			*p.dst = &n
		}
	}
	occ, err := queryInt(q.Get("occurrenceIndex"), 0)
	if err != nil {
		jsonError(w, "occurrenceIndex must be an integer", http.StatusBadRequest)
		return
	}
	req.OccurrenceIndex = occ

	format := q.Get("format")
	switch format {
	case "":
		format = service.FormatText
	case service.FormatText, service.FormatJSON:
	default:
		jsonError(w, "format must be text or json", http.StatusBadRequest)
		return
	}

	out, err := s.nav.ReadRange(r.Context(), chi.URLParam(r, "docID"), req, format)
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type editsRequest struct {
	Edits []json.RawMessage `json:"edits"`
}

func (s *Server) handleEdits(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxEditBodyBytes)
	var body editsRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if body.Edits == nil {
		jsonError(w, "edits is required", http.StatusBadRequest)
		return
	}

	out, err := s.nav.ApplyEdits(r.Context(), chi.URLParam(r, "docID"), edits.DecodeEntries(body.Edits))
	if err != nil {
		s.serviceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// serviceError maps navigator errors to HTTP statuses.
func (s *Server) serviceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		nf       *service.NotFoundError
		conflict *collab.ConflictError
	)
	switch {
	case errors.As(err, &nf):
		jsonError(w, nf.Error(), http.StatusNotFound)
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":           conflict.Error(),
			"expectedVersion": conflict.Expected,
			"actualVersion":   conflict.Actual,
		})
	default:
		s.log.Error("request failed", "path", r.URL.Path, "error", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}

func queryInt(v string, fallback int) (int, error) {
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
