// Package apierr holds the error taxonomy shared by the REST and realtime
// boundaries and renders it as the JSON error envelope.
//
// Packages declare their failures as *Error values (or types implementing
// Coded) so boundaries never have to know which package produced them:
//
//	var ErrNotFound = apierr.New(apierr.NotFound, "project not found")
//
// Wrapping with fmt.Errorf("...: %w", err) keeps the code intact.
package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Code is the machine-readable error kind sent to clients.
type Code string

const (
	AuthRequired Code = "AUTH_REQUIRED"
	Forbidden    Code = "FORBIDDEN"
	NotOwner     Code = "NOT_OWNER"
	NotMember    Code = "NOT_MEMBER"
	NotAuthor    Code = "NOT_AUTHOR"
	NotFound     Code = "NOT_FOUND"
	Validation   Code = "VALIDATION"
	Conflict     Code = "CONFLICT"
	RateLimited  Code = "RATE_LIMITED"
	Upstream     Code = "UPSTREAM_UNAVAILABLE"
	Internal     Code = "INTERNAL"
)

// Status maps a code to its HTTP status.
func (c Code) Status() int {
	switch c {
	case AuthRequired:
		return http.StatusUnauthorized
	case Forbidden, NotOwner, NotMember, NotAuthor:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Validation:
		return http.StatusBadRequest
	case Conflict:
		return http.StatusConflict
	case RateLimited:
		return http.StatusTooManyRequests
	case Upstream:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Coded is implemented by errors that carry a Code.
type Coded interface {
	ErrorCode() Code
}

// Error is a coded failure with a client-safe message.
type Error struct {
	Code    Code
	Message string
	Fields  map[string]string
}

// New returns an Error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Invalid returns a VALIDATION error with per-field messages.
func Invalid(msg string, fields map[string]string) *Error {
	return &Error{Code: Validation, Message: msg, Fields: fields}
}

func (e *Error) Error() string { return e.Message }
func (e *Error) ErrorCode() Code { return e.Code }

// CodeOf returns the code carried by err, or Internal when none is found.
func CodeOf(err error) Code {
	var c Coded
	if errors.As(err, &c) {
		return c.ErrorCode()
	}
	return Internal
}

// IsUpstream reports whether err means a dependency was unavailable.
func IsUpstream(err error) bool { return CodeOf(err) == Upstream }

// ErrStore is reported when the data store cannot answer.
var ErrStore = New(Upstream, "data store unavailable")

// StoreFailure classifies an error returned by a store call. Coded errors
// (not found, conflict) pass through; anything else becomes ErrStore.
func StoreFailure(err error) error {
	if err == nil {
		return nil
	}
	var c Coded
	if errors.As(err, &c) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStore, err)
}

/* -------------------------------------------------------------------------- */
/* JSON envelope                                                              */
/* -------------------------------------------------------------------------- */

type errorBody struct {
	Success bool              `json:"success"`
	Code    Code              `json:"code"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Write renders err as the JSON error envelope. Errors without a code are
// logged and reported as a generic 500 so internals never leak.
func Write(w http.ResponseWriter, log *zap.Logger, err error) {
	body := errorBody{Code: Internal, Message: "internal server error"}

	var e *Error
	var c Coded
	switch {
	case errors.As(err, &e):
		body.Code, body.Message, body.Errors = e.Code, e.Message, e.Fields
	case errors.As(err, &c):
		body.Code, body.Message = c.ErrorCode(), err.Error()
	}

	status := body.Code.Status()
	if status >= http.StatusInternalServerError && log != nil {
		log.Error("request failed", zap.String("code", string(body.Code)), zap.Error(err))
	}
	WriteJSON(w, status, body)
}
