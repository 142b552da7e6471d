package gateway

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medstock-labs/medstock/internal/auth"
	"github.com/medstock-labs/medstock/internal/errors"
)

type contextKey string

const requestIDKey contextKey = "medstock_request_id"

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// logUser carries the authenticated user name out to the access-log
// middleware, which wraps the handler chain outside of authenticate.
type logUser struct {
	name string
}

const logUserKey contextKey = "medstock_log_user"

// statusWriter records the response status for logging and metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// requestID assigns each request a UUID, echoed in the X-Request-Id
// response header.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// logging emits one structured line per request and feeds the HTTP metrics.
func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w}
		lu := &logUser{}
		r = r.WithContext(context.WithValue(r.Context(), logUserKey, lu))
		next.ServeHTTP(sw, r)
		duration := time.Since(start)

		if sw.status == 0 {
			sw.status = http.StatusOK
		}
		route := routePattern(r)

		fields := []zap.Field{
			zap.String("request_id", requestIDFrom(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("duration", duration),
		}
		if lu.name != "" {
			fields = append(fields, zap.String("user", lu.name))
		}
		s.logger.Info("http request", fields...)

		if s.metrics != nil {
			s.metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(sw.status)).Inc()
			s.metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(duration.Seconds())
		}
	})
}

// routePattern collapses paths with IDs so metric labels stay bounded.
func routePattern(r *http.Request) string {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	for i, p := range parts {
		if _, err := uuid.Parse(p); err == nil {
			parts[i] = "{id}"
		}
	}
	return "/" + strings.Join(parts, "/")
}

// requireWrite rejects tokens whose user holds no writing role. Viewer
// tokens stay read-only.
func (s *Server) requireWrite(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := auth.UserFromContext(r.Context())
		if user == nil || !user.CanWrite() {
			name := ""
			if user != nil {
				name = user.Name
			}
			s.writeError(w, r, errors.NewForbidden(name, "modify the inventory"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authenticate enforces bearer-token auth and attaches the user to the
// request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		user, err := s.auth.ValidateToken(r.Context(), token)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if lu, ok := r.Context().Value(logUserKey).(*logUser); ok {
			lu.name = user.Name
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithUser(r.Context(), user)))
	})
}
