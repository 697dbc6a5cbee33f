package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error kinds surfaced at the API boundary.
const (
	CodeValidation          = "validation"
	CodeBadRequest          = "bad_request"
	CodeUnauthorized        = "unauthorized"
	CodeForbidden           = "forbidden"
	CodeNotFound            = "not_found"
	CodeConflict            = "conflict"
	CodeInsufficientBalance = "insufficient_balance"
	CodeProviderError       = "provider_error"
	CodeRateLimited         = "rate_limited"
	CodeServerError         = "server_error"
)

// Domain errors
var (
	ErrNotFound            = errors.New("resource not found")
	ErrAlreadyExists       = errors.New("resource already exists")
	ErrInvalidInput        = errors.New("invalid input")
	ErrBadRequest          = errors.New("bad request")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrTokenExpired        = errors.New("token expired")
	ErrAccountNotVerified  = errors.New("account not verified")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidPIN          = errors.New("invalid pin")
	ErrPINNotSet           = errors.New("pin not set")
	ErrInvalidState        = errors.New("invalid state")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrRateLimited         = errors.New("rate limited")
	ErrProviderFailure     = errors.New("provider failure")
	ErrLimitExceeded       = errors.New("limit exceeded")
	ErrInvalidSignature    = errors.New("invalid signature")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
)

// AppError represents application error with HTTP status
type AppError struct {
	Status     int               `json:"-"`
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"fields,omitempty"`
	RetryAfter time.Duration     `json:"-"`
	Err        error             `json:"-"`
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new app error
func NewAppError(status int, code, message string, err error) *AppError {
	return &AppError{
		Status:  status,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Validation reports malformed or missing fields.
func Validation(message string, fields map[string]string) *AppError {
	e := NewAppError(http.StatusUnprocessableEntity, CodeValidation, message, ErrInvalidInput)
	e.Fields = fields
	return e
}

// BadRequest is used for unparseable requests and rejected webhook signatures.
func BadRequest(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeBadRequest, message, ErrBadRequest)
}

func Unauthorized(message string) *AppError {
	return NewAppError(http.StatusUnauthorized, CodeUnauthorized, message, ErrUnauthorized)
}

func Forbidden(message string) *AppError {
	return NewAppError(http.StatusForbidden, CodeForbidden, message, ErrForbidden)
}

func NotFound(message string) *AppError {
	return NewAppError(http.StatusNotFound, CodeNotFound, message, ErrNotFound)
}

func Conflict(message string) *AppError {
	return NewAppError(http.StatusConflict, CodeConflict, message, ErrAlreadyExists)
}

// InvalidState is a conflict caused by the current status of a resource.
func InvalidState(message string) *AppError {
	return NewAppError(http.StatusConflict, CodeConflict, message, ErrInvalidState)
}

func InsufficientBalance(message string) *AppError {
	return NewAppError(http.StatusBadRequest, CodeInsufficientBalance, message, ErrInsufficientBalance)
}

func ProviderError(message string, err error) *AppError {
	if err == nil {
		err = ErrProviderFailure
	}
	return NewAppError(http.StatusBadGateway, CodeProviderError, message, err)
}

func RateLimited(message string, retryAfter time.Duration) *AppError {
	e := NewAppError(http.StatusTooManyRequests, CodeRateLimited, message, ErrRateLimited)
	e.RetryAfter = retryAfter
	return e
}

func InternalError(err error) *AppError {
	return NewAppError(http.StatusInternalServerError, CodeServerError, "internal server error", err)
}

func InternalServerError(message string) *AppError {
	return NewAppError(http.StatusInternalServerError, CodeServerError, message, nil)
}

// Wrapf keeps the kind of an AppError while adding context to its message.
func Wrapf(err *AppError, format string, args ...interface{}) *AppError {
	cp := *err
	cp.Message = fmt.Sprintf(format, args...) + ": " + err.Message
	return &cp
}

// From converts any error into an AppError, mapping known sentinels to their kind.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return NewAppError(http.StatusNotFound, CodeNotFound, err.Error(), err)
	case errors.Is(err, ErrAlreadyExists):
		return NewAppError(http.StatusConflict, CodeConflict, err.Error(), err)
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrInvalidTransition):
		return NewAppError(http.StatusConflict, CodeConflict, err.Error(), err)
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrUnsupportedCurrency):
		return NewAppError(http.StatusUnprocessableEntity, CodeValidation, err.Error(), err)
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrInvalidSignature):
		return NewAppError(http.StatusBadRequest, CodeBadRequest, err.Error(), err)
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrTokenExpired):
		return NewAppError(http.StatusUnauthorized, CodeUnauthorized, err.Error(), err)
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrInvalidPIN), errors.Is(err, ErrPINNotSet),
		errors.Is(err, ErrAccountNotVerified), errors.Is(err, ErrLimitExceeded):
		return NewAppError(http.StatusForbidden, CodeForbidden, err.Error(), err)
	case errors.Is(err, ErrInsufficientBalance):
		return NewAppError(http.StatusBadRequest, CodeInsufficientBalance, err.Error(), err)
	case errors.Is(err, ErrProviderFailure):
		return NewAppError(http.StatusBadGateway, CodeProviderError, err.Error(), err)
	case errors.Is(err, ErrRateLimited):
		return NewAppError(http.StatusTooManyRequests, CodeRateLimited, err.Error(), err)
	}
	return InternalError(err)
}

// IsKind reports whether err carries the given kind code.
func IsKind(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
