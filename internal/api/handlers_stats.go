package api

import (
	"net/http"
)

func (s *Server) handleEditStats(w http.ResponseWriter, r *http.Request) {
	stats := s.nav.Stats()
	if stats == nil {
		jsonError(w, "edit stats unavailable", http.StatusServiceUnavailable)
		return
	}
	resp := map[string]any{"stats": stats.Snapshot()}
	if s.orchestrator != nil {
		resp["importQueueDepth"] = s.orchestrator.QueueDepth()
	}
	writeJSON(w, http.StatusOK, resp)
}
