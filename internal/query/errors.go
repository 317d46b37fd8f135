package query

import (
	"errors"
	"fmt"
)

// ErrCode categorizes query usage errors. These surface malformed
// constraints directly to the caller and are never retried.
type ErrCode string

const (
	// CodeInvalidQuery indicates a structurally invalid constraint, such
	// as a geo box crossing the antimeridian or a typed comparison over
	// mismatched types.
	CodeInvalidQuery ErrCode = "INVALID_QUERY"

	// CodeInvalidKeyName indicates a sort key that is not a legal field
	// name.
	CodeInvalidKeyName ErrCode = "INVALID_KEY_NAME"

	// CodeInvalidNestedKey indicates a dotted path that descends into a
	// value that cannot be traversed, or into an unfetched object.
	CodeInvalidNestedKey ErrCode = "INVALID_NESTED_KEY"
)

// Error is a structured query usage error.
type Error struct {
	Code    ErrCode
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidQuery creates an INVALID_QUERY error.
func NewInvalidQuery(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidQuery, Message: fmt.Sprintf(format, args...)}
}

// NewInvalidKeyName creates an INVALID_KEY_NAME error.
func NewInvalidKeyName(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidKeyName, Message: fmt.Sprintf(format, args...)}
}

// NewInvalidNestedKey creates an INVALID_NESTED_KEY error.
func NewInvalidNestedKey(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidNestedKey, Message: fmt.Sprintf(format, args...)}
}

// IsInvalidQuery reports whether err is (or wraps) an INVALID_QUERY error.
func IsInvalidQuery(err error) bool {
	return hasCode(err, CodeInvalidQuery)
}

// IsInvalidKeyName reports whether err is (or wraps) an INVALID_KEY_NAME
// error.
func IsInvalidKeyName(err error) bool {
	return hasCode(err, CodeInvalidKeyName)
}

// IsInvalidNestedKey reports whether err is (or wraps) an
// INVALID_NESTED_KEY error.
func IsInvalidNestedKey(err error) bool {
	return hasCode(err, CodeInvalidNestedKey)
}

func hasCode(err error, code ErrCode) bool {
	var qe *Error
	return errors.As(err, &qe) && qe.Code == code
}
