package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/feral-file/ff-rewards/internal/domain"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Client errors (4xx)
	ErrCodeBadRequest       ErrorCode = "bad_request"
	ErrCodeNotFound         ErrorCode = "not_found"
	ErrCodeValidationFailed ErrorCode = "validation_failed"
	ErrCodeUnauthorized     ErrorCode = "unauthorized"
	ErrCodeForbidden        ErrorCode = "forbidden"

	// Reward rejections (409)
	ErrCodeInactiveResource ErrorCode = "inactive_resource"
	ErrCodeWindowClosed     ErrorCode = "window_closed"
	ErrCodeNotEligible      ErrorCode = "not_eligible"
	ErrCodeCapReached       ErrorCode = "cap_reached"
	ErrCodeAlreadyClaimed   ErrorCode = "already_claimed"
	ErrCodeSupplyExhausted  ErrorCode = "supply_exhausted"

	// Server errors (5xx)
	ErrCodeInternalError ErrorCode = "internal_error"
	ErrCodeDatabaseError ErrorCode = "database_error"
)

// APIError represents a structured API error that carries error code and details
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	// Details is a string, or an object for cooldown rejections
	Details any `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	jsonErr, _ := json.Marshal(e)
	return string(jsonErr)
}

// StatusCode returns the HTTP status for the error code
func (e *APIError) StatusCode() int {
	switch e.Code {
	case ErrCodeBadRequest:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeValidationFailed:
		return http.StatusUnprocessableEntity
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeInactiveResource,
		ErrCodeWindowClosed,
		ErrCodeNotEligible,
		ErrCodeCapReached,
		ErrCodeAlreadyClaimed,
		ErrCodeSupplyExhausted:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// CooldownDetails is attached to not_eligible errors raised by a running faucet cooldown
type CooldownDetails struct {
	MinutesRemaining int64 `json:"minutes_remaining"`
}

// FromDomain converts an engine error into an APIError.
// Errors outside the domain taxonomy become internal errors without leaking their text.
func FromDomain(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	code := ErrorCode(domain.ErrorCode(err))
	if code == ErrCodeInternalError {
		return NewInternalError("Internal server error")
	}

	result := &APIError{Code: code, Message: err.Error()}
	if code == ErrCodeValidationFailed {
		result.Message = "Validation failed"
		result.Details = err.Error()
	}

	var rewardErr *domain.RewardError
	if errors.As(err, &rewardErr) {
		result.Message = rewardErr.Reason
		if code == ErrCodeValidationFailed {
			result.Message = "Validation failed"
			result.Details = rewardErr.Reason
		}
		if rewardErr.MinutesRemaining != nil {
			result.Details = CooldownDetails{MinutesRemaining: *rewardErr.MinutesRemaining}
		}
	}

	return result
}

// Error constructors for common error types
func NewBadRequestError(message string, details ...string) *APIError {
	return newError(ErrCodeBadRequest, message, details)
}

func NewNotFoundError(message string, details ...string) *APIError {
	return newError(ErrCodeNotFound, message, details)
}

func NewValidationError(details ...string) *APIError {
	return newError(ErrCodeValidationFailed, "Validation failed", details)
}

func NewUnauthorizedError(message string, details ...string) *APIError {
	return newError(ErrCodeUnauthorized, message, details)
}

func NewForbiddenError(message string, details ...string) *APIError {
	return newError(ErrCodeForbidden, message, details)
}

func NewInternalError(message string, details ...string) *APIError {
	return newError(ErrCodeInternalError, message, details)
}

func NewDatabaseError(message string, details ...string) *APIError {
	return newError(ErrCodeDatabaseError, message, details)
}

func newError(code ErrorCode, message string, details []string) *APIError {
	apiErr := &APIError{Code: code, Message: message}
	if len(details) > 0 {
		apiErr.Details = strings.Join(details, ", ")
	}
	return apiErr
}
