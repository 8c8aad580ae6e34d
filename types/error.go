package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unified error code across the module.
type ErrorCode string

// Container error codes
const (
	ErrKeyNotFound      ErrorCode = "KEY_NOT_FOUND"
	ErrUnsupportedShape ErrorCode = "UNSUPPORTED_SHAPE"
	ErrTargetExists     ErrorCode = "TARGET_EXISTS"
	ErrInvalidArgument  ErrorCode = "INVALID_ARGUMENT"
)

// Persistence error codes
const (
	ErrDecode            ErrorCode = "DECODE_ERROR"
	ErrCorruptLayout     ErrorCode = "CORRUPT_LAYOUT"
	ErrArtifactCopy      ErrorCode = "ARTIFACT_COPY_ERROR"
	ErrUnsupportedScheme ErrorCode = "UNSUPPORTED_SCHEME"
)

// Error represents a structured error with code, message, and the offending
// step / artifact / path when known.
type Error struct {
	Code     ErrorCode `json:"code"`
	Message  string    `json:"message"`
	Step     string    `json:"step,omitempty"`
	Split    string    `json:"split,omitempty"`
	Artifact string    `json:"artifact,omitempty"`
	Path     string    `json:"path,omitempty"`
	Cause    error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)

	var where []string
	if e.Step != "" {
		where = append(where, "step="+e.Step)
	}
	if e.Split != "" {
		where = append(where, "split="+e.Split)
	}
	if e.Artifact != "" {
		where = append(where, "artifact="+e.Artifact)
	}
	if e.Path != "" {
		where = append(where, "path="+e.Path)
	}
	if len(where) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(where, " "))
	}

	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code, so that
// errors.Is(err, types.NewError(types.ErrKeyNotFound, "")) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithStep attaches the step name.
func (e *Error) WithStep(step string) *Error {
	e.Step = step
	return e
}

// WithSplit attaches the split name.
func (e *Error) WithSplit(split string) *Error {
	e.Split = split
	return e
}

// WithArtifact attaches the artifact name.
func (e *Error) WithArtifact(artifact string) *Error {
	e.Artifact = artifact
	return e
}

// WithPath attaches the path that was being read or written.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// GetErrorCode extracts the error code from an error chain.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether any error in err's chain carries code.
func IsCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}

// AsError returns the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
