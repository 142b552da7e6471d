package gateway

import (
	"net/http"

	"github.com/go-chi/chi"
	"go.uber.org/zap"

	"github.com/medstock-labs/medstock/internal/auth"
	"github.com/medstock-labs/medstock/internal/errors"
	"github.com/medstock-labs/medstock/internal/reports"
)

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	includeAcknowledged := r.URL.Query().Get("acknowledged") == "true"
	alerts, err := s.store.Alerts().List(r.Context(), includeAcknowledged)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]any{"alerts": alerts})
}

func (s *Server) handleCheckAlerts(w http.ResponseWriter, r *http.Request) {
	result, err := s.checker.Run(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	by := ""
	if user := auth.UserFromContext(r.Context()); user != nil {
		by = user.Name
	}
	id := chi.URLParam(r, "id")
	if err := s.store.Alerts().Acknowledge(r.Context(), id, by, s.clock.Now()); err != nil {
		s.writeError(w, r, err)
		return
	}
	alert, err := s.store.Alerts().Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, alert)
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	typ := reports.Type(r.URL.Query().Get("type"))
	if !typ.IsValid() {
		s.writeError(w, r, errors.NewInvalidRecord("type", "unknown report type"))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+typ.Filename()+`"`)
	if err := s.reports.Write(r.Context(), typ, w); err != nil {
		// Headers are already written; log and abandon the response.
		s.logger.Error("report generation failed",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.String("type", string(typ)),
			zap.Error(err))
	}
}
