package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/insight/internal/query"
)

// submitQuery handles POST /api/queries
func (s *Server) submitQuery(w http.ResponseWriter, r *http.Request) {
	var req query.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	sub := req.Submission()
	answer, err := s.queries.Answer(r.Context(), sub)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, query.NewResponse(sub.Text, answer))
}

// getHistory handles GET /api/queries/history/{sessionID}
func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	records, err := s.queries.History(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	items := make([]query.HistoryItem, len(records))
	for i, rec := range records {
		items[i] = query.NewHistoryItem(rec)
	}
	writeJSON(w, http.StatusOK, items)
}

// clearHistory handles DELETE /api/queries/history/{sessionID}
func (s *Server) clearHistory(w http.ResponseWriter, r *http.Request) {
	if _, err := s.queries.ClearHistory(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Query history cleared"})
}
