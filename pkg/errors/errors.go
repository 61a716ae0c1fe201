package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents application-specific error codes
type ErrorCode string

const (
	// Validation errors
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// Authentication errors
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"

	// Authorization errors
	ErrCodeForbidden ErrorCode = "FORBIDDEN"

	// Conversation errors
	ErrCodeConversationNotFound ErrorCode = "CONVERSATION_NOT_FOUND"
	ErrCodeConversationExists   ErrorCode = "CONVERSATION_EXISTS"
	ErrCodeMalformedDocument    ErrorCode = "MALFORMED_DOCUMENT"
	ErrCodeInvalidStatus        ErrorCode = "INVALID_STATUS"

	// Assignment errors
	ErrCodeNoAgentsOnline ErrorCode = "NO_AGENTS_ONLINE"

	// Store errors
	ErrCodeStoreUnavailable   ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeArchiveWriteFailed ErrorCode = "ARCHIVE_WRITE_FAILED"

	// Internal errors
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// AppError represents a structured application error with code, message, and HTTP status
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	StatusCode int       `json:"-"`
	Err        error     `json:"-"`
}

// Error implements the error interface, returning a formatted error message
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches AppErrors by code so wrapped instances compare equal to the
// package sentinels under errors.Is
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError with the given code and message
// The status code defaults to 500 Internal Server Error
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

// NewWithStatus creates a new AppError with a specific HTTP status code
func NewWithStatus(code ErrorCode, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an existing error with an AppError, preserving the original error
// The status code defaults to 500 Internal Server Error
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

// WrapWithStatus wraps an existing error with an AppError and specific status code
func WrapWithStatus(code ErrorCode, message string, statusCode int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// Sentinel errors for the conversation subsystem.
// Compare with errors.Is; wrap causes with the helpers below.
var (
	// ErrStoreUnavailable means the live store could not be reached.
	// Not retried locally; surfaced to the caller.
	ErrStoreUnavailable = NewWithStatus(ErrCodeStoreUnavailable,
		"live conversation store unavailable", http.StatusServiceUnavailable)

	// ErrConversationNotFound means neither the live store nor the archive
	// holds the requested conversation
	ErrConversationNotFound = NewWithStatus(ErrCodeConversationNotFound,
		"conversation not found", http.StatusNotFound)

	// ErrConversationExists means the requested id already has an archived
	// document; re-creating it live would put the conversation in both stores
	ErrConversationExists = NewWithStatus(ErrCodeConversationExists,
		"conversation already archived", http.StatusConflict)

	// ErrMalformedDocument means a stored conversation document failed to decode
	ErrMalformedDocument = NewWithStatus(ErrCodeMalformedDocument,
		"malformed conversation document", http.StatusInternalServerError)

	// ErrArchiveWriteFailed means a durable write failed; the live copy must
	// be kept until a later pass succeeds
	ErrArchiveWriteFailed = New(ErrCodeArchiveWriteFailed,
		"conversation archive write failed")

	// ErrNoAgentsOnline means no CSR is available for hand-off
	ErrNoAgentsOnline = NewWithStatus(ErrCodeNoAgentsOnline,
		"no agents online", http.StatusConflict)
)

// StoreUnavailable wraps a live-store failure
func StoreUnavailable(err error) *AppError {
	return WrapWithStatus(ErrCodeStoreUnavailable,
		"live conversation store unavailable", http.StatusServiceUnavailable, err)
}

// MalformedDocument wraps a document decode failure
func MalformedDocument(err error) *AppError {
	return Wrap(ErrCodeMalformedDocument, "malformed conversation document", err)
}

// ArchiveWriteFailed wraps a durable-store write failure
func ArchiveWriteFailed(err error) *AppError {
	return Wrap(ErrCodeArchiveWriteFailed, "conversation archive write failed", err)
}

// AsAppError extracts an AppError from an error chain, or nil
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}
