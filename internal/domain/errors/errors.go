package errors

import (
	"errors"
	"fmt"
)

// ErrorType buckets errors by how the platform reacts to them.
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeContext    ErrorType = "context"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeCompliance ErrorType = "compliance"
	ErrorTypeConsent    ErrorType = "consent"
	ErrorTypeBudget     ErrorType = "budget"
	ErrorTypeProvider   ErrorType = "provider"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeCancelled  ErrorType = "cancelled"
)

// AppError is the structured error carried across layers. Services never pass
// stringly-typed errors upward; they wrap causes into an AppError with a
// stable code the API layer can surface together with the correlation ID.
type AppError struct {
	Type          ErrorType              `json:"type"`
	Code          string                 `json:"code"`
	Message       string                 `json:"message"`
	Details       map[string]interface{} `json:"details,omitempty"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	Cause         error                  `json:"-"`
	Retryable     bool                   `json:"retryable"`
	StatusCode    int                    `json:"status_code"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithCorrelationID(id string) *AppError {
	e.CorrelationID = id
	return e
}

// IsType reports whether err is an AppError of the given type anywhere in its
// chain.
func IsType(err error, t ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}

// Code extracts the stable error code, or "internal_error" for foreign errors.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "internal_error"
}

// Fully surfaced kinds.

func NewContextMissingError() *AppError {
	return &AppError{
		Type:       ErrorTypeContext,
		Code:       "context_missing",
		Message:    "no request context bound to this operation",
		StatusCode: 500,
	}
}

func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: 400,
	}
}

func NewTenantNotFoundError(slug string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       "tenant_not_found",
		Message:    fmt.Sprintf("tenant %q not found", slug),
		StatusCode: 404,
	}
}

func NewTenantInactiveError(slug string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       "tenant_inactive",
		Message:    fmt.Sprintf("tenant %q is deactivated and rejects new work", slug),
		StatusCode: 403,
	}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       "resource_not_found",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: 404,
	}
}

func NewComplianceBlockedError(reason string) *AppError {
	return &AppError{
		Type:       ErrorTypeCompliance,
		Code:       "compliance_blocked",
		Message:    reason,
		StatusCode: 422,
	}
}

func NewConsentMissingError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConsent,
		Code:       "consent_missing",
		Message:    message,
		StatusCode: 422,
	}
}

func NewConsentExpiredError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeConsent,
		Code:       "consent_expired",
		Message:    message,
		StatusCode: 422,
	}
}

func NewCancelledError(cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeCancelled,
		Code:       "cancelled",
		Message:    "operation cancelled",
		Cause:      cause,
		StatusCode: 499,
	}
}

// Partially surfaced kinds.

func NewBudgetExceededError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeBudget,
		Code:       "budget_exceeded",
		Message:    message,
		StatusCode: 429,
	}
}

func NewNoProviderAvailableError(checkType string) *AppError {
	return &AppError{
		Type:       ErrorTypeProvider,
		Code:       "no_provider_available",
		Message:    fmt.Sprintf("no provider can serve check type %s", checkType),
		StatusCode: 503,
	}
}

// Locally recovered kinds: the router handles these by fallback or retry and
// they only escape when every alternative is exhausted.

func NewCircuitOpenError(providerID string) *AppError {
	return &AppError{
		Type:       ErrorTypeProvider,
		Code:       "circuit_open",
		Message:    fmt.Sprintf("circuit breaker open for provider %s", providerID),
		Retryable:  true,
		StatusCode: 503,
	}
}

func NewRateLimitedError(providerID string, retryAfterSeconds float64) *AppError {
	e := &AppError{
		Type:       ErrorTypeProvider,
		Code:       "rate_limited",
		Message:    fmt.Sprintf("rate limit exceeded for provider %s", providerID),
		Retryable:  true,
		StatusCode: 429,
	}
	return e.WithDetail("retry_after_seconds", retryAfterSeconds)
}

func NewProviderTimeoutError(providerID string) *AppError {
	return &AppError{
		Type:       ErrorTypeProvider,
		Code:       "provider_timeout",
		Message:    fmt.Sprintf("provider %s exceeded its call deadline", providerID),
		Retryable:  true,
		StatusCode: 504,
	}
}

func NewProviderFailureError(providerID, message string) *AppError {
	return &AppError{
		Type:       ErrorTypeProvider,
		Code:       "provider_failure",
		Message:    fmt.Sprintf("provider %s: %s", providerID, message),
		Retryable:  true,
		StatusCode: 502,
	}
}

// NewInvestigationHaltedError marks a screening that cannot produce a usable
// result: identity was never established, or a required record type could not
// be obtained.
func NewInvestigationHaltedError(reason, message string) *AppError {
	e := &AppError{
		Type:       ErrorTypeInternal,
		Code:       "investigation_halted",
		Message:    message,
		StatusCode: 422,
	}
	return e.WithDetail("reason", reason)
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "internal_error",
		Message:    message,
		StatusCode: 500,
	}
}

// IsRetryable reports whether the router may retry the failed call.
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}
