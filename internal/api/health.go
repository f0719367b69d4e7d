package api

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// worse orders statuses so the overall result is the worst check.
func (h HealthStatus) worse(o HealthStatus) HealthStatus {
	rank := map[HealthStatus]int{HealthStatusHealthy: 0, HealthStatusDegraded: 1, HealthStatusUnhealthy: 2}
	if rank[o] > rank[h] {
		return o
	}
	return h
}

// HealthCheckResponse is the body of GET /health.
type HealthCheckResponse struct {
	Status    HealthStatus           `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Version   string                 `json:"version"`
	GitCommit string                 `json:"git_commit,omitempty"`
	BuildTime string                 `json:"build_time,omitempty"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]HealthCheck `json:"checks"`
	Runtime   RuntimeInfo            `json:"runtime"`
	RequestID string                 `json:"request_id,omitempty"`
}

type HealthCheck struct {
	Status      HealthStatus `json:"status"`
	Message     string       `json:"message,omitempty"`
	LastChecked string       `json:"last_checked"`
	Duration    string       `json:"duration,omitempty"`
}

type RuntimeInfo struct {
	GoVersion   string `json:"go_version"`
	Goroutines  int    `json:"goroutines"`
	HeapAlloc   uint64 `json:"heap_alloc_bytes"`
	GCCycles    uint32 `json:"gc_cycles"`
	Geolocating bool   `json:"geolocating"`
}

// timed runs check and stamps the result.
func timed(check func() (HealthStatus, string)) HealthCheck {
	start := time.Now()
	status, msg := check()
	return HealthCheck{
		Status:      status,
		Message:     msg,
		LastChecked: time.Now().UTC().Format(time.RFC3339),
		Duration:    time.Since(start).String(),
	}
}

// GET /health
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	checks := map[string]HealthCheck{
		"session":     timed(s.checkSession),
		"store":       timed(func() (HealthStatus, string) { return s.checkStore(r.Context()) }),
		"geolocation": timed(s.checkFeed),
	}

	overall := HealthStatusHealthy
	for _, c := range checks {
		overall = overall.worse(c.Status)
	}

	code := http.StatusOK
	if overall == HealthStatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, HealthCheckResponse{
		Status:    overall,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		Uptime:    time.Since(s.getStartTime()).String(),
		Checks:    checks,
		Runtime:   s.runtimeInfo(),
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// GET /health/ready. Ready once a session and a fix feed are wired.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	var missing string
	switch {
	case s.session == nil:
		missing = "session"
	case s.feed == nil:
		missing = "geolocation feed"
	}

	code, msg := http.StatusOK, "Ready"
	if missing != "" {
		code, msg = http.StatusServiceUnavailable, missing+" not initialized"
	}
	s.writeJSON(w, code, map[string]any{
		"ready":      missing == "",
		"message":    msg,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"version":    Version,
		"request_id": middleware.GetReqID(r.Context()),
	})
}

// GET /health/live
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"alive":      true,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"version":    Version,
		"uptime":     time.Since(s.getStartTime()).String(),
		"request_id": middleware.GetReqID(r.Context()),
	})
}

// GET /version
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, GetVersionInfo())
}

func (s *Server) checkSession() (HealthStatus, string) {
	if s.session == nil {
		return HealthStatusUnhealthy, "Session not initialized"
	}
	st := s.session.State()
	return HealthStatusHealthy, fmt.Sprintf("position=%s caches=%d known=%d coins=%d",
		st.Position.Key(), len(st.Caches), st.KnownCaches, st.CoinCount)
}

// checkStore pings the database. In-memory sessions have none and report
// degraded: progress will not survive a restart.
func (s *Server) checkStore(ctx context.Context) (HealthStatus, string) {
	if s.db == nil {
		return HealthStatusDegraded, "No database configured"
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.db.Ping(ctx); err != nil {
		return HealthStatusUnhealthy, fmt.Sprintf("Database ping failed: %v", err)
	}
	return HealthStatusHealthy, "Database connection healthy"
}

func (s *Server) checkFeed() (HealthStatus, string) {
	if s.feed == nil {
		return HealthStatusDegraded, "No geolocation feed"
	}
	if s.feed.Watching() {
		return HealthStatusHealthy, "following fixes"
	}
	return HealthStatusHealthy, "idle"
}

func (s *Server) runtimeInfo() RuntimeInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return RuntimeInfo{
		GoVersion:   runtime.Version(),
		Goroutines:  runtime.NumGoroutine(),
		HeapAlloc:   m.HeapAlloc,
		GCCycles:    m.NumGC,
		Geolocating: s.session != nil && s.session.Geolocating(),
	}
}
