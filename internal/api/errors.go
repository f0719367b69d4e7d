package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/geocoin/internal/game"
	"github.com/MJE43/geocoin/internal/snapshot"
)

// ErrorBuilder helps construct structured errors with context
type ErrorBuilder struct {
	errType   string
	message   string
	context   map[string]any
	requestID string
}

// NewError creates a new error builder
func NewError(errType, message string) *ErrorBuilder {
	return &ErrorBuilder{
		errType: errType,
		message: message,
		context: make(map[string]any),
	}
}

// WithContext adds context information to the error
func (eb *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	eb.context[key] = value
	return eb
}

// WithRequestID adds request ID to the error
func (eb *ErrorBuilder) WithRequestID(requestID string) *ErrorBuilder {
	eb.requestID = requestID
	return eb
}

// WithCause adds the underlying cause error
func (eb *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	if err != nil {
		eb.context["cause"] = err.Error()
	}
	return eb
}

// Build creates the final APIError
func (eb *ErrorBuilder) Build() APIError {
	return APIError{
		Type:      eb.errType,
		Message:   eb.message,
		Context:   eb.context,
		RequestID: eb.requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// ErrorHandler provides centralized error handling with logging
type ErrorHandler struct {
	logger *log.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *log.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// HandleError processes an error and writes appropriate HTTP response
func (eh *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error, defaultStatus int) {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		eh.logError(r, apiErr, defaultStatus)
		eh.writeErrorResponse(w, defaultStatus, apiErr)
		return
	}

	apiErr = NewError(ErrTypeInternal, err.Error()).
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("path", r.URL.Path).
		WithContext("method", r.Method).
		Build()

	eh.logError(r, apiErr, defaultStatus)
	eh.writeErrorResponse(w, defaultStatus, apiErr)
}

// HandleValidationError handles validation-specific errors
func (eh *ErrorHandler) HandleValidationError(w http.ResponseWriter, r *http.Request, field, message string) {
	apiErr := NewError(ErrTypeValidation, fmt.Sprintf("Validation failed: %s", message)).
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("field", field).
		WithContext("path", r.URL.Path).
		WithContext("method", r.Method).
		Build()

	eh.logError(r, apiErr, http.StatusBadRequest)
	eh.writeErrorResponse(w, http.StatusBadRequest, apiErr)
}

// HandleGameError maps session errors to HTTP statuses.
func (eh *ErrorHandler) HandleGameError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := http.StatusInternalServerError
	errType := ErrTypeInternal
	message := "Game operation failed"

	switch {
	case errors.Is(err, game.ErrOutOfRange):
		status, errType, message = http.StatusConflict, ErrTypeOutOfRange, "Cell is outside the neighborhood"
	case errors.Is(err, game.ErrNoCache):
		status, errType, message = http.StatusNotFound, ErrTypeCacheNotFound, "No cache at cell"
	case errors.Is(err, snapshot.ErrDeserialization):
		status, errType, message = http.StatusBadRequest, ErrTypeInvalidSave, "Save data is malformed"
	case errors.Is(err, game.ErrClosed):
		status, errType, message = http.StatusServiceUnavailable, ErrTypeServiceUnavailable, "Session is closed"
	}

	apiErr := NewError(errType, message).
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("operation", op).
		WithContext("path", r.URL.Path).
		WithCause(err).
		Build()

	eh.logError(r, apiErr, status)
	eh.writeErrorResponse(w, status, apiErr)
}

// HandleUnauthorized rejects a request without a valid token.
func (eh *ErrorHandler) HandleUnauthorized(w http.ResponseWriter, r *http.Request) {
	apiErr := NewError(ErrTypeUnauthorized, "missing or invalid "+TokenHeader).
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("path", r.URL.Path).
		Build()

	eh.logError(r, apiErr, http.StatusUnauthorized)
	eh.writeErrorResponse(w, http.StatusUnauthorized, apiErr)
}

// logError logs the error with appropriate level and context
func (eh *ErrorHandler) logError(r *http.Request, apiErr APIError, status int) {
	category := GetErrorCategory(apiErr.Type)

	logLevel := "ERROR"
	if category == CategoryValidation || category == CategoryGame || category == CategoryAuth {
		logLevel = "WARN"
	}

	eh.logger.Printf(
		"error_occurred level=%s type=%s category=%s status=%d request_id=%s method=%s path=%s message=%q context=%+v",
		logLevel, apiErr.Type, category, status, apiErr.RequestID, r.Method, r.URL.Path, apiErr.Message, apiErr.Context,
	)
}

// writeErrorResponse writes the error response as JSON
func (eh *ErrorHandler) writeErrorResponse(w http.ResponseWriter, status int, apiErr APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Geocoin-Version", Version)
	w.Header().Set("X-Error-Type", apiErr.Type)
	w.Header().Set("X-Error-Category", string(GetErrorCategory(apiErr.Type)))
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(apiErr); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// RecoveryHandler provides panic recovery with structured error logging
func (eh *ErrorHandler) RecoveryHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				requestID := middleware.GetReqID(r.Context())

				eh.logger.Printf(
					"panic_recovered request_id=%s path=%s method=%s panic=%v",
					requestID, r.URL.Path, r.Method, rvr,
				)

				apiErr := NewError(ErrTypeInternal, "Internal server error").
					WithRequestID(requestID).
					WithContext("panic", fmt.Sprintf("%v", rvr)).
					WithContext("path", r.URL.Path).
					WithContext("method", r.Method).
					Build()

				eh.writeErrorResponse(w, http.StatusInternalServerError, apiErr)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
