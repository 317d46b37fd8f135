package store

import (
	"errors"
	"fmt"
)

// ErrCode categorizes store and identity failures.
type ErrCode string

const (
	// CodeCacheMiss indicates the queried identity was never durably
	// cached. Recoverable and expected; callers treat it as "not pinned".
	CodeCacheMiss ErrCode = "CACHE_MISS"

	// CodeIllegalState indicates an internal invariant violation, such as
	// a handed-out key with no backing row or two live instances claiming
	// one server identity. Fatal; surfaces a bug rather than a user error.
	CodeIllegalState ErrCode = "ILLEGAL_STATE"
)

// Error is a structured store failure. Modeled after the engine's runtime
// error type: a string code for programmatic dispatch plus a human-readable
// message.
type Error struct {
	Code    ErrCode
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewCacheMiss creates a CACHE_MISS error for the given identity.
func NewCacheMiss(format string, args ...any) *Error {
	return &Error{Code: CodeCacheMiss, Message: fmt.Sprintf(format, args...)}
}

// NewIllegalState creates an ILLEGAL_STATE error.
func NewIllegalState(format string, args ...any) *Error {
	return &Error{Code: CodeIllegalState, Message: fmt.Sprintf(format, args...)}
}

// IsCacheMiss reports whether err is (or wraps) a cache miss.
func IsCacheMiss(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Code == CodeCacheMiss
}

// IsIllegalState reports whether err is (or wraps) an invariant violation.
func IsIllegalState(err error) bool {
	var se *Error
	return errors.As(err, &se) && se.Code == CodeIllegalState
}
