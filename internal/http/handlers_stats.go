package http

import (
	"net/http"

	"taskboard/internal/log"
)

// handleTodoStats serves the report computed on demand.
func (s *Server) handleTodoStats(w http.ResponseWriter, r *http.Request) {
	report, err := s.stats.Report(r.Context())
	if err != nil {
		s.fail(w, r, err, log.ComponentStats, log.OpAggregate)
		return
	}
	NewJSONResponse().Body(report).Write(w)
}

// handleLatestSnapshot serves the last report persisted by the worker.
func (s *Server) handleLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		NotFoundError("no stats snapshot available").Write(w)
		return
	}
	snap, err := s.snapshots.LatestStatsSnapshot(r.Context())
	if err != nil {
		s.fail(w, r, err, log.ComponentStats, log.OpRead)
		return
	}
	NewJSONResponse().Body(snap).Write(w)
}
