package gateway

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/medstock-labs/medstock/internal/errors"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error      string `json:"error"`
	Reason     string `json:"reason,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response",
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	body := errorBody{
		Error:     err.Error(),
		RequestID: requestIDFrom(r.Context()),
	}
	if me, ok := errors.Describe(err); ok {
		body.Error = me.Message
		body.Reason = me.Reason
		body.Suggestion = me.Suggestion
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", body.RequestID),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	s.writeJSON(w, r, status, body)
}

// statusForError maps typed domain errors onto HTTP status codes.
func statusForError(err error) int {
	var (
		invalid      *errors.ErrInvalidRecord
		recordNF     *errors.ErrRecordNotFound
		batchNF      *errors.ErrBatchNotFound
		alertNF      *errors.ErrAlertNotFound
		insufficient *errors.ErrInsufficientStock
		authFailed   *errors.ErrAuthFailed
		forbidden    *errors.ErrForbidden
		importFailed *errors.ErrImportFailed
		unavailable  *errors.ErrStorageUnavailable
	)
	switch {
	case stderrors.As(err, &insufficient):
		return http.StatusConflict
	case stderrors.As(err, &recordNF), stderrors.As(err, &batchNF), stderrors.As(err, &alertNF):
		return http.StatusNotFound
	case stderrors.As(err, &invalid), stderrors.As(err, &importFailed):
		return http.StatusBadRequest
	case stderrors.As(err, &forbidden):
		return http.StatusForbidden
	case stderrors.As(err, &authFailed):
		return http.StatusUnauthorized
	case stderrors.As(err, &unavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
