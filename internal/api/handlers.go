package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MJE43/geocoin/internal/game"
	"github.com/MJE43/geocoin/internal/grid"
	"github.com/MJE43/geocoin/internal/store"
)

const maxBodyBytes = 4 << 20

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.errorHandler.HandleValidationError(w, r, "body", "invalid JSON: "+err.Error())
		return false
	}
	return true
}

func (s *Server) writeState(w http.ResponseWriter) {
	s.writeJSON(w, http.StatusOK, StateResponse{State: s.session.State(), Version: Version})
}

// GET /api/v1/state
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeState(w)
}

// POST /api/v1/move
func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if !s.decode(w, r, &req) {
		return
	}

	delta := grid.Cell{Row: req.DRow, Col: req.DCol}
	if req.Direction != "" {
		d, ok := grid.Direction(req.Direction)
		if !ok {
			s.errorHandler.HandleValidationError(w, r, "direction", "unknown direction "+strconv.Quote(req.Direction))
			return
		}
		delta = d
	}
	if delta == (grid.Cell{}) {
		s.errorHandler.HandleValidationError(w, r, "direction", "move needs a direction or a non-zero delta")
		return
	}

	if err := s.session.Move(r.Context(), delta); err != nil {
		s.errorHandler.HandleGameError(w, r, "move", err)
		return
	}
	s.writeState(w)
}

// POST /api/v1/position
func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	var req PositionRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Lat == nil || req.Lng == nil {
		s.errorHandler.HandleValidationError(w, r, "lat,lng", "lat and lng are required")
		return
	}
	if err := s.session.SetLatLng(r.Context(), req.latLng()); err != nil {
		s.errorHandler.HandleGameError(w, r, "position", err)
		return
	}
	s.writeState(w)
}

// POST /api/v1/reset
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Reset(r.Context()); err != nil {
		s.errorHandler.HandleGameError(w, r, "reset", err)
		return
	}
	s.writeState(w)
}

// POST /api/v1/zoom
func (s *Server) handleZoom(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, ZoomResponse{ZoomedOut: s.session.ToggleZoom()})
}

// POST /api/v1/geolocation
func (s *Server) handleGeolocation(w http.ResponseWriter, r *http.Request) {
	var req GeolocationRequest
	if r.ContentLength > 0 && !s.decode(w, r, &req) {
		return
	}

	var on bool
	switch {
	case req.Enabled == nil:
		on = s.session.ToggleGeolocation(s.feed)
	case *req.Enabled:
		s.session.UseGeolocation(s.feed)
		on = true
	default:
		s.session.IgnoreGeolocation()
	}
	s.writeJSON(w, http.StatusOK, GeolocationResponse{Geolocation: on})
}

// POST /api/v1/geolocation/fix
func (s *Server) handleGeolocationFix(w http.ResponseWriter, r *http.Request) {
	var req PositionRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Lat == nil || req.Lng == nil {
		s.errorHandler.HandleValidationError(w, r, "lat,lng", "lat and lng are required")
		return
	}
	s.writeJSON(w, http.StatusAccepted, FixResponse{Delivered: s.feed.Publish(req.latLng())})
}

func (s *Server) cellParam(w http.ResponseWriter, r *http.Request) (grid.Cell, bool) {
	row, err := strconv.Atoi(chi.URLParam(r, "row"))
	if err != nil {
		s.errorHandler.HandleValidationError(w, r, "row", "row must be an integer")
		return grid.Cell{}, false
	}
	col, err := strconv.Atoi(chi.URLParam(r, "col"))
	if err != nil {
		s.errorHandler.HandleValidationError(w, r, "col", "col must be an integer")
		return grid.Cell{}, false
	}
	return grid.Cell{Row: row, Col: col}, true
}

// GET /api/v1/caches/{row}/{col}
func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	cell, ok := s.cellParam(w, r)
	if !ok {
		return
	}
	v, err := s.session.Cache(cell)
	if err != nil {
		s.errorHandler.HandleGameError(w, r, "cache", err)
		return
	}
	s.writeJSON(w, http.StatusOK, v)
}

// POST /api/v1/caches/{row}/{col}/take
func (s *Server) handleTake(w http.ResponseWriter, r *http.Request) {
	s.trade(w, r, "take", s.session.Take)
}

// POST /api/v1/caches/{row}/{col}/put
func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	s.trade(w, r, "put", s.session.Put)
}

type tradeFunc func(ctx context.Context, cell grid.Cell) (*game.Transfer, error)

func (s *Server) trade(w http.ResponseWriter, r *http.Request, op string, fn tradeFunc) {
	cell, ok := s.cellParam(w, r)
	if !ok {
		return
	}
	res, err := fn(r.Context(), cell)
	if err != nil {
		s.errorHandler.HandleGameError(w, r, op, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// GET /api/v1/transfers?page=&perPage=&row=&col=
func (s *Server) handleTransfers(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.errorHandler.HandleError(w, r,
			NewError(ErrTypeServiceUnavailable, "transfer journal is not enabled").Build(),
			http.StatusServiceUnavailable)
		return
	}

	q := store.TransfersQuery{
		Page:    qInt(r, "page", 1),
		PerPage: clampInt(qInt(r, "perPage", 50), 1, 500),
	}
	rowStr, colStr := r.URL.Query().Get("row"), r.URL.Query().Get("col")
	if rowStr != "" || colStr != "" {
		row, errRow := strconv.Atoi(rowStr)
		col, errCol := strconv.Atoi(colStr)
		if errRow != nil || errCol != nil {
			s.errorHandler.HandleValidationError(w, r, "row,col", "row and col must both be integers")
			return
		}
		q.Cell = &grid.Cell{Row: row, Col: col}
	}

	page, err := s.journal.ListTransfers(r.Context(), q)
	if err != nil {
		s.errorHandler.HandleError(w, r, err, http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

// GET /api/v1/export
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	save, err := s.session.Export()
	if err != nil {
		s.errorHandler.HandleGameError(w, r, "export", err)
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="geocoin-save.json"`)
	s.writeJSON(w, http.StatusOK, save)
}

// POST /api/v1/import
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var save game.SaveFile
	if !s.decode(w, r, &save) {
		return
	}
	if err := s.session.Import(r.Context(), &save); err != nil {
		s.errorHandler.HandleGameError(w, r, "import", err)
		return
	}
	s.writeState(w)
}

func qInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
