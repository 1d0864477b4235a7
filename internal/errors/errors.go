package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a cardbot error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrInstanceLocked ErrorCode = "INSTANCE_LOCKED" // 409
	ErrCorpusInvalid  ErrorCode = "CORPUS_INVALID"  // 422, fatal at startup
	ErrCorpusEmpty    ErrorCode = "CORPUS_EMPTY"    // 500, fatal at startup
	ErrTransport      ErrorCode = "TRANSPORT"       // 502, fatal for the run
	ErrActionFailed   ErrorCode = "ACTION_FAILED"   // 502, recovered per event
	ErrInternal       ErrorCode = "INTERNAL"        // 500
)

// CardbotError represents a structured error with code, status, and details.
type CardbotError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	Cause   error
}

// Error implements the error interface.
func (e *CardbotError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *CardbotError) Unwrap() error {
	return e.Cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *CardbotError {
	return &CardbotError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for when a card or record cannot be found.
func NewNotFound(what, identifier string) *CardbotError {
	return &CardbotError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", what, identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewInstanceLocked creates a 409 error when another instance holds the lock.
func NewInstanceLocked(channel string) *CardbotError {
	return &CardbotError{
		Code:    ErrInstanceLocked,
		Status:  409,
		Message: fmt.Sprintf("another cardbot instance is already watching %q", channel),
		Details: map[string]any{"channel": channel},
	}
}

// NewCorpusInvalid creates an error for a corpus source that cannot be decoded.
func NewCorpusInvalid(source string, err error) *CardbotError {
	return &CardbotError{
		Code:    ErrCorpusInvalid,
		Status:  422,
		Message: fmt.Sprintf("card corpus %s is invalid: %v", source, err),
		Details: map[string]any{"source": source},
		Cause:   err,
	}
}

// NewCorpusEmpty creates an error for a corpus source with zero records.
func NewCorpusEmpty(source string) *CardbotError {
	return &CardbotError{
		Code:    ErrCorpusEmpty,
		Status:  500,
		Message: fmt.Sprintf("card corpus %s has no records", source),
		Details: map[string]any{"source": source},
	}
}

// NewTransport creates an error for a failed transport call (fetch or auth).
// Transport errors end the current run.
func NewTransport(op string, err error) *CardbotError {
	return &CardbotError{
		Code:    ErrTransport,
		Status:  502,
		Message: fmt.Sprintf("transport %s failed: %v", op, err),
		Details: map[string]any{"op": op},
		Cause:   err,
	}
}

// NewActionFailed creates an error for a rejected per-event action
// (reply, comment, save). These are recovered by the poll loop.
func NewActionFailed(eventID, op string, err error) *CardbotError {
	return &CardbotError{
		Code:    ErrActionFailed,
		Status:  502,
		Message: fmt.Sprintf("%s on %s failed: %v", op, eventID, err),
		Details: map[string]any{"event_id": eventID, "op": op},
		Cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *CardbotError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &CardbotError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		Cause:   err,
	}
}

// Is checks if an error is (or wraps) a CardbotError with the given code.
func Is(err error, code ErrorCode) bool {
	var cErr *CardbotError
	if stderrors.As(err, &cErr) {
		return cErr.Code == code
	}
	return false
}

// IsFatal reports whether err should terminate the process or the poll loop.
func IsFatal(err error) bool {
	var cErr *CardbotError
	if !stderrors.As(err, &cErr) {
		return false
	}
	switch cErr.Code {
	case ErrCorpusEmpty, ErrCorpusInvalid, ErrTransport, ErrInstanceLocked:
		return true
	default:
		return false
	}
}
