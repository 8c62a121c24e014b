package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Status  int       `json:"status,omitempty"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// StatusCode is picked up by the error middleware.
func (e *AppError) StatusCode() int {
	if e.Status != 0 {
		return e.Status
	}
	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrBadRequest, ErrValidation:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrValidation
	ErrUpstream
	ErrTransport
)

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// NewUpstream wraps a non-2xx answer from the appointment API. message is the
// server supplied "message" field and may be empty.
func NewUpstream(status int, message string) *AppError {
	return &AppError{
		Code:    ErrUpstream,
		Status:  status,
		Message: message,
	}
}

// NewTransport wraps a failure to reach the appointment API at all.
func NewTransport(err error) *AppError {
	return &AppError{
		Code:    ErrTransport,
		Status:  http.StatusBadGateway,
		Message: "appointment service unreachable",
		Err:     err,
	}
}

// Common errors
func NotFound(resource string, err error) *AppError {
	return NewNotFound(resource, err)
}

func BadRequest(message string, err error) *AppError {
	return NewBadRequest(message, err)
}

func Internal(err error) *AppError {
	return NewInternal(err)
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

// Validation signals a client-side check that failed before any request.
func Validation(message string) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
	}
}

// ServerMessage returns the message the appointment API sent with err, if any.
func ServerMessage(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) && appErr.Code == ErrUpstream {
		return appErr.Message
	}
	return ""
}

// MessageOr returns the server supplied message carried by err, or fallback.
func MessageOr(err error, fallback string) string {
	if msg := ServerMessage(err); msg != "" {
		return msg
	}
	return fallback
}

// Is reports whether err is an AppError with the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Code == code
}
