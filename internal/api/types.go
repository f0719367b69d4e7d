package api

import (
	"github.com/MJE43/geocoin/internal/game"
	"github.com/MJE43/geocoin/internal/grid"
)

// APIError represents a structured error response with context
type APIError struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// Error implements the error interface
func (e APIError) Error() string {
	return e.Message
}

// Error types with proper categorization
const (
	// Input validation errors
	ErrTypeInvalidParams = "invalid_params"
	ErrTypeValidation    = "validation_error"
	ErrTypeInvalidSave   = "invalid_save"
	ErrTypeUnauthorized  = "unauthorized"

	// Game-related errors
	ErrTypeOutOfRange    = "out_of_range"
	ErrTypeCacheNotFound = "cache_not_found"

	// System errors
	ErrTypeTimeout            = "timeout"
	ErrTypeInternal           = "internal_error"
	ErrTypeServiceUnavailable = "service_unavailable"
)

// ErrorCategory represents error categories for monitoring
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryAuth       ErrorCategory = "auth"
	CategoryGame       ErrorCategory = "game"
	CategorySystem     ErrorCategory = "system"
	CategoryTimeout    ErrorCategory = "timeout"
)

// GetErrorCategory returns the category for an error type
func GetErrorCategory(errType string) ErrorCategory {
	switch errType {
	case ErrTypeInvalidParams, ErrTypeValidation, ErrTypeInvalidSave:
		return CategoryValidation
	case ErrTypeUnauthorized:
		return CategoryAuth
	case ErrTypeOutOfRange, ErrTypeCacheNotFound:
		return CategoryGame
	case ErrTypeTimeout:
		return CategoryTimeout
	default:
		return CategorySystem
	}
}

// VersionInfo contains build version information
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
}

// MoveRequest steps the player. Direction ("north", "e", ...) wins over
// the explicit deltas when both are given.
type MoveRequest struct {
	Direction string `json:"direction,omitempty"`
	DRow      int    `json:"dRow"`
	DCol      int    `json:"dCol"`
}

// PositionRequest places the player at a lat/lng. Both fields are required.
type PositionRequest struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func (p PositionRequest) latLng() grid.LatLng {
	return grid.LatLng{Lat: *p.Lat, Lng: *p.Lng}
}

// GeolocationRequest turns geolocation on or off. A missing Enabled toggles.
type GeolocationRequest struct {
	Enabled *bool `json:"enabled,omitempty"`
}

// GeolocationResponse reports the geolocation switch.
type GeolocationResponse struct {
	Geolocation bool `json:"geolocation"`
}

// FixResponse reports whether a pushed fix reached an active watch.
type FixResponse struct {
	Delivered bool `json:"delivered"`
}

// ZoomResponse reports the map zoom mode.
type ZoomResponse struct {
	ZoomedOut bool `json:"zoomedOut"`
}

// StateResponse wraps the session state with the server version.
type StateResponse struct {
	game.State
	Version string `json:"version"`
}
