// Package errors provides structured error types for the depsync application.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across all commands
//   - Machine-readable error codes for programmatic handling
//   - A clean split between fatal workspace-integrity failures and
//     recoverable per-item failures
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures
//   - NOT_FOUND_* / *_MISSING: Resource not found
//   - NETWORK_*: Network-related errors
//   - INTERNAL_*: Unexpected internal errors
//
// Codes in the fatal set (workspace listing failure, corrupt manifests,
// unknown graph seeds, dependency cycles, catalog conflicts) abort the
// enclosing batch; everything else is contained by the caller.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeManifestCorrupt, "manifest %s: invalid JSON", path)
//	if errors.Is(err, errors.ErrCodeManifestCorrupt) {
//	    // Abort the run
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeNetwork, origErr, "failed to fetch %s", url)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput   Code = "INVALID_INPUT"
	ErrCodeInvalidPackage Code = "INVALID_PACKAGE"
	ErrCodeInvalidPattern Code = "INVALID_PATTERN"
	ErrCodeInvalidConfig  Code = "INVALID_CONFIG"

	// Workspace integrity errors (fatal for the enclosing batch)
	ErrCodeListingFailed   Code = "LISTING_FAILED"
	ErrCodeManifestMissing Code = "MANIFEST_MISSING"
	ErrCodeManifestCorrupt Code = "MANIFEST_CORRUPT"
	ErrCodeSeedNotFound    Code = "SEED_NOT_FOUND"
	ErrCodeCycle           Code = "DEPENDENCY_CYCLE"
	ErrCodeCatalogConflict Code = "CATALOG_CONFLICT"

	// Resource not found errors
	ErrCodeNotFound        Code = "NOT_FOUND"
	ErrCodePackageNotFound Code = "PACKAGE_NOT_FOUND"

	// Network errors
	ErrCodeNetwork Code = "NETWORK_ERROR"
	ErrCodeTimeout Code = "TIMEOUT"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// fatalCodes are the workspace-integrity failures that abort a whole batch
// rather than being contained to a single item.
var fatalCodes = map[Code]bool{
	ErrCodeListingFailed:   true,
	ErrCodeManifestMissing: true,
	ErrCodeManifestCorrupt: true,
	ErrCodeSeedNotFound:    true,
	ErrCodeCycle:           true,
	ErrCodeCatalogConflict: true,
}

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsFatal reports whether err carries a workspace-integrity code that must
// abort the enclosing batch. Errors without a code are treated as fatal:
// an unclassified failure is a bug, not a skippable item.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) {
		return fatalCodes[e.Code]
	}
	return true
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
