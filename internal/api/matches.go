package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/dealdesk/internal/events"
	"github.com/sells-group/dealdesk/internal/model"
)

func (s *Server) runMatches(w http.ResponseWriter, r *http.Request) {
	if s.deps.Matcher == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "matching is not configured"})
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.edits.Flush(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	matches, res, err := s.deps.Matcher.Run(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if matches == nil {
		matches = []model.LenderMatch{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"matches":  matches,
		"summary":  res.Summary,
		"screened": res.Screened,
	})
}

func (s *Server) listMatches(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.deps.Store.GetDeal(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	matches, err := s.deps.Store.ListMatches(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if matches == nil {
		matches = []model.LenderMatch{}
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) setMatchStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status model.SubmissionStatus `json:"status"`
	}
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, err.Error())
		return
	}
	if !body.Status.Valid() {
		badRequest(w, "unknown submission status "+strconv.Quote(string(body.Status)))
		return
	}
	m, err := s.deps.Store.UpdateMatchStatus(r.Context(), chi.URLParam(r, "id"), body.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	events.PublishLogged(r.Context(), s.deps.Publisher, events.New(events.MatchUpdated, m.DealID, m))
	writeJSON(w, http.StatusOK, m)
}
