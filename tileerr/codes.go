package tileerr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies failures across the archive, publish and serve paths.
type Code int

const (
	CodeOK Code = 0

	// Request-scoped. An in-range check failure is the client's (4xx); a
	// segment that is not an integer at all answers 500.
	CodeInvalidCoordinate   Code = 1000
	CodeMalformedCoordinate Code = 1001

	// Fatal to the run or request
	CodeArchiveUnavailable Code = 2000
	CodeArchiveCorrupt     Code = 2001

	// Per tile, counted and never retried by the publisher
	CodeSinkWriteFailure Code = 3000

	// Degrades to literal passthrough, never surfaced to a client
	CodeMetadataDecodeFailure Code = 4000
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeInvalidCoordinate:
		return "InvalidCoordinate"
	case CodeMalformedCoordinate:
		return "MalformedCoordinate"
	case CodeArchiveUnavailable:
		return "ArchiveUnavailable"
	case CodeArchiveCorrupt:
		return "ArchiveCorrupt"
	case CodeSinkWriteFailure:
		return "SinkWriteFailure"
	case CodeMetadataDecodeFailure:
		return "MetadataDecodeFailure"
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Sentinels for errors.Is. Any *Error with the same Code matches.
var (
	ErrInvalidCoordinate     = &Error{Code: CodeInvalidCoordinate, Message: "invalid tile coordinate"}
	ErrMalformedCoordinate   = &Error{Code: CodeMalformedCoordinate, Message: "malformed tile coordinate"}
	ErrArchiveUnavailable    = &Error{Code: CodeArchiveUnavailable, Message: "tile archive unavailable"}
	ErrArchiveCorrupt        = &Error{Code: CodeArchiveCorrupt, Message: "tile archive corrupt"}
	ErrSinkWriteFailure      = &Error{Code: CodeSinkWriteFailure, Message: "sink write failed"}
	ErrMetadataDecodeFailure = &Error{Code: CodeMetadataDecodeFailure, Message: "metadata value is not JSON"}
)

// Error is a structured error with a code and an optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports a match when target is an *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// HTTPStatus maps the code to the response status a request handler should use.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeOK:
		return http.StatusOK
	case CodeInvalidCoordinate:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to cause. A nil cause returns nil.
func Wrap(cause error, code Code, message string) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Cause: cause}
}

func Wrapf(cause error, code Code, format string, args ...interface{}) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeOK for nil.
// ok is false for errors outside the taxonomy.
func CodeOf(err error) (Code, bool) {
	if err == nil {
		return CodeOK, true
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Code, true
	}
	return 0, false
}

// StatusOf maps any error to an HTTP status, defaulting to 500.
func StatusOf(err error) int {
	var te *Error
	if errors.As(err, &te) {
		return te.HTTPStatus()
	}
	if err == nil {
		return http.StatusOK
	}
	return http.StatusInternalServerError
}
