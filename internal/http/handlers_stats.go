package http

import (
	"net/http"

	"tally/internal/log"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	summary, err := s.stats.Summary(r.Context(), userID, s.now())
	if err != nil {
		s.logFailure(r, log.OpSummary, err)
		InternalServerError("Failed to load statistics").Write(w)
		return
	}
	NewJSONResponse().Body(summary).Write(w)
}

func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(w, r)
	if !ok {
		return
	}
	charts, err := s.stats.Charts(r.Context(), userID, s.now())
	if err != nil {
		s.logFailure(r, log.OpCharts, err)
		InternalServerError("Failed to load statistics").Write(w)
		return
	}
	NewJSONResponse().Body(charts).Write(w)
}
