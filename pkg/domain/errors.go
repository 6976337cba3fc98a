package domain

import (
	"net/http"

	"github.com/pkg/errors"
)

// Client-facing messages are part of the API contract. The widget and
// any other consumers match on them, so change them deliberately.
var (
	ErrPasteNotFound  = NewErr("PASTE_NOT_FOUND", "Paste not found.", http.StatusNotFound)
	ErrInvalidContent = NewErr("INVALID_CONTENT", "Invalid content.", http.StatusBadRequest)
	ErrContentTooLong = NewErr("CONTENT_TOO_LONG", "Content is too long.", http.StatusBadRequest)
	ErrInvalidRequest = NewErr("INVALID_REQUEST", "Invalid request body.", http.StatusBadRequest)
	ErrRateLimited    = NewErr("RATE_LIMITED", "Too many requests.", http.StatusTooManyRequests)
	ErrIDConflict     = NewErr("ID_CONFLICT", "paste id already in use", http.StatusInternalServerError)
	ErrInternal       = NewErr("INTERNAL_ERROR", "Something went wrong.", http.StatusInternalServerError)
)

// Err carries the wire-level code, message and HTTP status for a
// failure. Handlers unwrap to an Err to decide what to send; anything
// that is not an Err is treated as internal.
type Err struct {
	Code   string `json:"code"`
	Msg    string `json:"message"`
	Status int    `json:"-"`
}

func (e *Err) Error() string { return e.Msg }

func NewErr(code, msg string, status int) *Err {
	return &Err{Code: code, Msg: msg, Status: status}
}

// Message returns the client-safe message for err, unwrapping pkg/errors
// chains. Unknown errors map to the generic internal message so internal
// detail never leaks to the wire.
func Message(err error) string {
	if e := asErr(err); e != nil {
		return e.Msg
	}
	return ErrInternal.Msg
}

// Status returns the HTTP status for err, defaulting to 500 for errors
// outside the taxonomy.
func Status(err error) int {
	if e := asErr(err); e != nil {
		return e.Status
	}
	return http.StatusInternalServerError
}

func asErr(err error) *Err {
	if e, ok := err.(*Err); ok {
		return e
	}
	if e, ok := errors.Cause(err).(*Err); ok {
		return e
	}
	return nil
}
