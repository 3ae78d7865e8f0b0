package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeInvalidState ErrorType = "INVALID_STATE"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeDeclined     ErrorType = "DECLINED"
	ErrorTypeUnavailable  ErrorType = "UNAVAILABLE"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeInternal     ErrorType = "INTERNAL_ERROR"
	ErrorTypeExternal     ErrorType = "EXTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed    ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidAmount       ErrorCode = "INVALID_AMOUNT"
	ErrCodeUnsupportedCurrency ErrorCode = "UNSUPPORTED_CURRENCY"
	ErrCodeInvalidPaymentType  ErrorCode = "INVALID_PAYMENT_TYPE"
	ErrCodeMissingIdempotency  ErrorCode = "MISSING_IDEMPOTENCY_KEY"

	ErrCodePaymentNotFound        ErrorCode = "PAYMENT_NOT_FOUND"
	ErrCodeInvalidPaymentState    ErrorCode = "INVALID_PAYMENT_STATE"
	ErrCodeConcurrentModification ErrorCode = "CONCURRENT_MODIFICATION"

	ErrCodePaymentDeclined    ErrorCode = "PAYMENT_DECLINED"
	ErrCodeCircuitOpen        ErrorCode = "CIRCUIT_OPEN"
	ErrCodeMaxRetriesExceeded ErrorCode = "MAX_RETRIES_EXCEEDED"
	ErrCodeGatewayError       ErrorCode = "GATEWAY_ERROR"

	ErrCodeWebhookSignature ErrorCode = "WEBHOOK_SIGNATURE_INVALID"
	ErrCodeUnauthorized     ErrorCode = "UNAUTHORIZED"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	// RetryAfter, when positive, is surfaced as a Retry-After hint in seconds.
	RetryAfter int   `json:"retry_after,omitempty"`
	Cause      error `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok {
			if len(validationErrors.Errors) == 1 {
				return validationErrors.Errors[0].Message
			} else if len(validationErrors.Errors) > 1 {
				messages := make([]string, len(validationErrors.Errors))
				for i, err := range validationErrors.Errors {
					messages[i] = err.Message
				}
				return strings.Join(messages, "; ")
			}
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewInvalidStateError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInvalidState,
		Code:       ErrCodeInvalidPaymentState,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewDeclinedError carries only the structured gateway reason code, never
// gateway-internal detail.
func NewDeclinedError(reasonCode string) *AppError {
	return &AppError{
		Type:       ErrorTypeDeclined,
		Code:       ErrCodePaymentDeclined,
		Message:    fmt.Sprintf("payment declined: %s", reasonCode),
		StatusCode: http.StatusPaymentRequired,
	}
}

func NewCircuitOpenError(retryAfterSeconds int) *AppError {
	return &AppError{
		Type:       ErrorTypeUnavailable,
		Code:       ErrCodeCircuitOpen,
		Message:    "payment service temporarily unavailable, retry later",
		StatusCode: http.StatusServiceUnavailable,
		RetryAfter: retryAfterSeconds,
	}
}

func NewMaxRetriesExceededError(retryCount int) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Code:       ErrCodeMaxRetriesExceeded,
		Message:    fmt.Sprintf("payment failed after %d attempts", retryCount),
		StatusCode: http.StatusBadGateway,
	}
}

func NewGatewayError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Code:       ErrCodeGatewayError,
		Message:    message,
		StatusCode: http.StatusBadGateway,
	}
}

var (
	ErrPaymentNotFound        = NewNotFoundError("Payment not found", ErrCodePaymentNotFound)
	ErrConcurrentModification = NewConflictError("payment was modified concurrently, reload and retry", ErrCodeConcurrentModification)
	ErrWebhookSignature       = NewUnauthorizedError("invalid webhook signature", ErrCodeWebhookSignature)
)

func IsAppError(err error) (*AppError, bool) {
	if appErr, ok := err.(*AppError); ok {
		return appErr, true
	}
	return nil, false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type       ErrorType   `json:"type"`
		Code       ErrorCode   `json:"code"`
		Message    string      `json:"message"`
		Details    interface{} `json:"details,omitempty"`
		RetryAfter int         `json:"retry_after,omitempty"`
	}{
		Type:       e.Type,
		Code:       e.Code,
		Message:    e.Message,
		Details:    e.Details,
		RetryAfter: e.RetryAfter,
	})
}
