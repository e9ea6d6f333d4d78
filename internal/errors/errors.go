// Package errors defines the structured error taxonomy shared by the
// readers, the aggregator and the CLI.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"strings"
	"syscall"
)

// ErrorCode represents a structured error classification.
type ErrorCode string

const (
	// ErrCodeUnsupportedPlatform indicates the OS/arch lacks the needed introspection mechanism.
	ErrCodeUnsupportedPlatform ErrorCode = "UNSUPPORTED_PLATFORM"
	// ErrCodePermissionDenied indicates the OS refused the read.
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	// ErrCodeTimeout indicates the snapshot exceeded its deadline.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeMalformedData indicates a reading failed basic sanity bounds.
	ErrCodeMalformedData ErrorCode = "MALFORMED_DATA"
	// ErrCodeInternal indicates an unexpected failure.
	ErrCodeInternal ErrorCode = "INTERNAL"
	// ErrCodeInvalidConfig indicates invalid user configuration.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
)

// StructuredError carries an error code for programmatic handling, a
// human-readable message, the underlying cause and optional context.
type StructuredError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *StructuredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is and errors.As support.
func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// New creates a new StructuredError with the given code and message.
func New(code ErrorCode, message string) *StructuredError {
	return &StructuredError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a code and message.
func Wrap(code ErrorCode, message string, cause error) *StructuredError {
	return &StructuredError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapWithContext wraps an error with additional context information.
func WrapWithContext(code ErrorCode, message string, cause error, context map[string]any) *StructuredError {
	return &StructuredError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: context,
	}
}

// CodeOf returns the code of the outermost StructuredError in err's chain,
// or ErrCodeInternal when err carries none. A nil error has no code.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var se *StructuredError
	if stderrors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// gopsutil reports stubbed platforms with this message from an internal package.
const notImplementedMessage = "not implemented yet"

// Classify maps a raw OS or library error to an ErrorCode.
// Errors that already carry a code keep it.
func Classify(err error) ErrorCode {
	var se *StructuredError
	switch {
	case err == nil:
		return ""
	case stderrors.As(err, &se):
		return se.Code
	case stderrors.Is(err, fs.ErrPermission),
		stderrors.Is(err, syscall.EACCES),
		stderrors.Is(err, syscall.EPERM):
		return ErrCodePermissionDenied
	case stderrors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	case stderrors.Is(err, stderrors.ErrUnsupported),
		strings.Contains(err.Error(), notImplementedMessage):
		return ErrCodeUnsupportedPlatform
	default:
		return ErrCodeInternal
	}
}

// FromOS wraps err with its classified code. Nil stays nil.
func FromOS(message string, err error) error {
	if err == nil {
		return nil
	}
	return Wrap(Classify(err), message, err)
}
