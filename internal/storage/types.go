package storage

import (
	"fmt"

	"github.com/maxiofs/nasfs/internal/config"
)

// Config alias for storage configuration
type Config = config.StorageConfig

// NASConfig alias for the NAS backend configuration
type NASConfig = config.NASConfig

// DefaultSaveChunkSize is used when the configured chunk size is not positive
const DefaultSaveChunkSize = config.DefaultSaveChunkSize

// Error kinds. Every error returned by a backend matches exactly one of these
// through errors.Is.
var (
	ErrConfiguration = NewError("ConfigurationError", "Invalid storage configuration")
	ErrValidation    = NewError("ValidationError", "The storage request was rejected")
	ErrNotFound      = NewError("NotFound", "The specified file does not exist")
	ErrPermission    = NewError("PermissionDenied", "Permission denied")
	ErrIO            = NewError("IOError", "Storage I/O failure")
)

// StorageError represents a storage-specific error
type StorageError struct {
	Code    string
	Message string
	Cause   error
}

func (e *StorageError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes the underlying cause
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a StorageError of the same kind
func (e *StorageError) Is(target error) bool {
	t, ok := target.(*StorageError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new storage error
func NewError(code, message string) *StorageError {
	return &StorageError{
		Code:    code,
		Message: message,
	}
}

// NewErrorWithCause creates a new storage error with underlying cause
func NewErrorWithCause(code, message string, cause error) *StorageError {
	return &StorageError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// errorf builds an error of the given kind with a formatted message
func errorf(kind *StorageError, cause error, format string, args ...any) *StorageError {
	return NewErrorWithCause(kind.Code, fmt.Sprintf(format, args...), cause)
}
