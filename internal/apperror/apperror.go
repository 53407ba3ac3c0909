// Package apperror implements the error taxonomy from the design's error
// handling section: a small set of typed errors, each owning one HTTP
// status, funneled through a single JSON envelope writer so every handler
// in internal/handler reports failures the same way.
package apperror

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Code is a stable machine-readable error identifier.
type Code string

const (
	CodeValidation  Code = "VALIDATION_ERROR"
	CodeNotFound    Code = "NOT_FOUND"
	CodeConflict    Code = "CONFLICT"
	CodePolicy      Code = "POLICY_ERROR"
	CodeTransient   Code = "TRANSIENT_INFRASTRUCTURE_ERROR"
	CodeFatalConfig Code = "FATAL_CONFIG_ERROR"
	CodeInternal    Code = "INTERNAL_ERROR"
)

// AppError is the common shape every taxonomy member implements.
type AppError struct {
	Code    Code
	Message string
	Status  int
	Details map[string]any
	cause   error
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.cause }

// WithDetail attaches a key/value pair surfaced in the response envelope's
// "details" object. Returns the receiver for chaining.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

func newError(code Code, status int, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Status: status, cause: cause}
}

// Validation wraps malformed/blank input caught at a boundary (spec §7 — maps to 400).
func Validation(message string) *AppError {
	return newError(CodeValidation, http.StatusBadRequest, message, nil)
}

// NotFound wraps a missing tenant-scoped aggregate (spec §7 — maps to 404).
func NotFound(message string) *AppError {
	return newError(CodeNotFound, http.StatusNotFound, message, nil)
}

// Conflict wraps a duplicate idempotency-key race with no safe recovery
// (spec §7 — maps to 409).
func Conflict(message string, cause error) *AppError {
	return newError(CodeConflict, http.StatusConflict, message, cause)
}

// Policy wraps an engine failure that could not be cleanly resolved to an
// ERROR/POLICY_ERROR decision — distinct from the ordinary POLICY_ERROR
// decision path, which never reaches this constructor (spec §7 — maps to 500).
func Policy(message string, cause error) *AppError {
	return newError(CodePolicy, http.StatusInternalServerError, message, cause)
}

// Transient wraps DB/transport unavailability on the synchronous path
// (spec §7 — maps to 503).
func Transient(message string, cause error) *AppError {
	return newError(CodeTransient, http.StatusServiceUnavailable, message, cause)
}

// FatalConfig wraps a misconfiguration that must abort startup or first use —
// e.g. a missing POLICY_ERROR row in the reason catalog (spec §3, §7).
func FatalConfig(message string, cause error) *AppError {
	return newError(CodeFatalConfig, http.StatusInternalServerError, message, cause)
}

// Internal wraps an unclassified failure.
func Internal(message string, cause error) *AppError {
	return newError(CodeInternal, http.StatusInternalServerError, message, cause)
}

// As extracts an *AppError from err, returning (nil, false) if err does not
// wrap one.
func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// envelope is the structured JSON body clients receive (spec §7).
type envelope struct {
	Code      Code           `json:"code"`
	Message   string         `json:"message"`
	Status    int            `json:"status"`
	Path      string         `json:"path"`
	Timestamp string         `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// WriteHTTP maps err to the taxonomy (defaulting to 500/INTERNAL_ERROR for
// anything untyped) and writes the structured envelope.
func WriteHTTP(c echo.Context, err error) error {
	ae, ok := As(err)
	if !ok {
		ae = Internal("internal error", err)
	}
	return c.JSON(ae.Status, envelope{
		Code:      ae.Code,
		Message:   ae.Message,
		Status:    ae.Status,
		Path:      c.Request().URL.Path,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Details:   ae.Details,
	})
}
