package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// TokenHeader carries the API token on /api/v1 requests.
const TokenHeader = "X-Geocoin-Token"

// RequestLoggingMiddleware logs every request with its outcome
func (s *Server) RequestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Printf(
			"request_completed method=%s path=%s status=%d duration=%v request_id=%s bytes_written=%d remote_addr=%s",
			r.Method,
			r.URL.Path,
			ww.Status(),
			time.Since(start),
			requestID,
			ww.BytesWritten(),
			r.RemoteAddr,
		)
	})
}

// CORSMiddleware lets the map page call the API from another origin
func (s *Server) CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+TokenHeader)
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// TokenMiddleware rejects requests whose token header does not match. An
// empty server token disables the check.
func (s *Server) TokenMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" {
			got := r.Header.Get(TokenHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
				s.errorHandler.HandleUnauthorized(w, r)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
