package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/geocoin/internal/game"
	"github.com/MJE43/geocoin/internal/geo"
	"github.com/MJE43/geocoin/internal/store"
)

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures a Server. Session and Feed are required.
type Options struct {
	Session *game.Session
	Feed    *geo.Feed
	Journal store.Journal
	DB      Pinger
	Token   string
	Logger  *log.Logger
}

// Server handles HTTP requests
type Server struct {
	session      *game.Session
	feed         *geo.Feed
	journal      store.Journal
	db           Pinger
	token        string
	errorHandler *ErrorHandler
	logger       *log.Logger
	startTime    time.Time
	httpServer   *http.Server
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[API] ", log.LstdFlags|log.Lshortfile)
	}
	return &Server{
		session:      opts.Session,
		feed:         opts.Feed,
		journal:      opts.Journal,
		db:           opts.DB,
		token:        opts.Token,
		errorHandler: NewErrorHandler(logger),
		logger:       logger,
		startTime:    time.Now(),
	}
}

// Routes sets up the HTTP routes with proper middleware
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.RequestLoggingMiddleware)
	r.Use(s.errorHandler.RecoveryHandler)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(s.CORSMiddleware)

	r.Get("/health", s.handleHealthCheck)
	r.Get("/health/ready", s.handleReadiness)
	r.Get("/health/live", s.handleLiveness)
	r.Get("/version", s.handleVersion)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.TokenMiddleware)

		r.Get("/state", s.handleState)
		r.Post("/move", s.handleMove)
		r.Post("/position", s.handlePosition)
		r.Post("/reset", s.handleReset)
		r.Post("/zoom", s.handleZoom)

		r.Post("/geolocation", s.handleGeolocation)
		r.Post("/geolocation/fix", s.handleGeolocationFix)

		r.Route("/caches/{row}/{col}", func(r chi.Router) {
			r.Get("/", s.handleCache)
			r.Post("/take", s.handleTake)
			r.Post("/put", s.handlePut)
		})

		r.Get("/transfers", s.handleTransfers)
		r.Get("/export", s.handleExport)
		r.Post("/import", s.handleImport)
	})

	return r
}

// Start binds addr and serves in the background. It returns once the
// socket is listening.
func (s *Server) Start(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s.httpServer = &http.Server{
		Handler:      s.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
	}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Printf("serve failed addr=%s err=%v", ln.Addr(), err)
		}
	}()
	s.logger.Printf("listening addr=%s token_enabled=%t", ln.Addr(), s.token != "")
	return ln.Addr(), nil
}

// ListenAndServe serves on addr until Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
	}
	s.logger.Printf("listening addr=%s token_enabled=%t", addr, s.token != "")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// writeJSON writes a JSON response with proper headers
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Geocoin-Version", Version)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Printf("encode response failed err=%v", err)
	}
}

func (s *Server) getStartTime() time.Time {
	return s.startTime
}
