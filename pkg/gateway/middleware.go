package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/maiahq/maia/pkg/apikey"
)

// requestLogger emits one structured line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

// requireAPIKey gates a route group on the X-API-Key header. An absent
// header and a wrong key are distinct failures so clients can tell a
// misconfigured integration from a revoked one. A server with no keys at
// all is its own condition and wins over both, even when the header is
// missing too.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if err := s.authority.Validate(key); err != nil {
			switch {
			case errors.Is(err, apikey.ErrNotConfigured):
				s.logger.Error().Msg("No API keys configured")
				writeError(w, http.StatusInternalServerError, "server has no API keys configured", "")
			case key == "":
				writeError(w, http.StatusUnauthorized, "missing API key", "set the X-API-Key header")
			case errors.Is(err, apikey.ErrInvalidKey):
				writeError(w, http.StatusForbidden, "invalid API key", "")
			default:
				writeError(w, http.StatusInternalServerError, "authentication failed", "")
			}
			return
		}

		next.ServeHTTP(w, r)
	})
}
