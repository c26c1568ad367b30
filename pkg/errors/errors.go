// Package errors defines the error taxonomy of the sieve.
//
// Every error that aborts a run carries one of the codes below. None of them
// is recoverable: a failed run produces no output.
package errors

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	CodeUnknown           = "UNKNOWN_ERROR"
	CodeConfigError       = "CONFIG_ERROR"
	CodeResourceExhausted = "RESOURCE_EXHAUSTED"
	CodeCollectiveError   = "COLLECTIVE_ERROR"
	CodeWorkerFailed      = "WORKER_FAILED"
	CodeDatabaseError     = "DATABASE_ERROR"
	CodeUploadError       = "UPLOAD_ERROR"
	CodeNotFound          = "NOT_FOUND"
)

// AppError represents an application error with a code and message.
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message.
func Newf(code string, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Sentinel values for errors.Is comparisons.
var (
	ErrConfigError       = New(CodeConfigError, "configuration error")
	ErrResourceExhausted = New(CodeResourceExhausted, "resource exhausted")
	ErrCollectiveError   = New(CodeCollectiveError, "collective operation failed")
	ErrWorkerFailed      = New(CodeWorkerFailed, "worker failed")
	ErrDatabaseError     = New(CodeDatabaseError, "database error")
	ErrUploadError       = New(CodeUploadError, "upload error")
	ErrNotFound          = New(CodeNotFound, "resource not found")
)

// IsConfigError checks if the error is a configuration error.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfigError)
}

// IsResourceError checks if the error reports resource exhaustion.
func IsResourceError(err error) bool {
	return errors.Is(err, ErrResourceExhausted)
}

// IsCollectiveError checks if the error is a failed collective operation.
func IsCollectiveError(err error) bool {
	return errors.Is(err, ErrCollectiveError)
}

// IsWorkerFailed checks if the error comes from a failed worker.
func IsWorkerFailed(err error) bool {
	return errors.Is(err, ErrWorkerFailed)
}

// IsDatabaseError checks if the error is a database error.
func IsDatabaseError(err error) bool {
	return errors.Is(err, ErrDatabaseError)
}

// IsNotFound checks if the error is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetErrorMessage extracts the error message from an error.
func GetErrorMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// ExitCode maps an error to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch GetErrorCode(err) {
	case CodeConfigError:
		return 2
	case CodeResourceExhausted:
		return 3
	case CodeCollectiveError:
		return 4
	case CodeWorkerFailed:
		return 5
	default:
		return 1
	}
}
