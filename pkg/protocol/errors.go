// Package protocol defines the wire types and error codes shared by the
// mirror authentication client and server.
package protocol

import (
	"errors"
	"fmt"
)

// ErrorCode represents a standardized error code for the authentication API.
type ErrorCode string

// API error codes.
const (
	// ErrCodeValidation indicates the request was rejected before authentication.
	ErrCodeValidation ErrorCode = "VALIDATION_ERROR"
	// ErrCodeAuthentication indicates the credentials or challenge were rejected.
	ErrCodeAuthentication ErrorCode = "AUTHENTICATION_ERROR"
	// ErrCodeAccountLocked indicates the account is temporarily locked.
	ErrCodeAccountLocked ErrorCode = "ACCOUNT_LOCKED"
	// ErrCodeTooManyRequests indicates the caller exceeded a request quota.
	ErrCodeTooManyRequests ErrorCode = "TOO_MANY_REQUESTS"
	// ErrCodeUserNotFound indicates the username is unknown to the server.
	ErrCodeUserNotFound ErrorCode = "USER_NOT_FOUND"

	// ErrCodeMissingToken indicates a protected request carried no bearer token.
	ErrCodeMissingToken ErrorCode = "MISSING_TOKEN"
	// ErrCodeInvalidToken indicates the bearer token is unknown or expired.
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"

	// ErrCodeInternal indicates a server-side failure.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeNetwork is synthesized by the client when no response was received.
	ErrCodeNetwork ErrorCode = "NETWORK_ERROR"
	// ErrCodeUnknown is used for responses that carry no recognizable error.
	ErrCodeUnknown ErrorCode = "UNKNOWN_ERROR"
)

// Kind groups error codes by how a caller has to react to them.
type Kind int

// Error kinds.
const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindLocked
	KindRateLimited
	KindNotFound
	KindUnauthorized
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindLocked:
		return "locked"
	case KindRateLimited:
		return "rate_limited"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindNetwork:
		return "network"
	default:
		return "internal"
	}
}

// ErrorResponse represents a standardized API error response.
type ErrorResponse struct {
	Code           ErrorCode `json:"code"`
	Message        string    `json:"message"`
	RetryAfter     *int      `json:"retryAfter,omitempty"`
	FailedAttempts *int      `json:"failedAttempts,omitempty"`
	Details        string    `json:"details,omitempty"`

	// Status is the HTTP status the error arrived with, zero if none.
	Status int `json:"-"`
}

// Error implements the error interface.
func (e *ErrorResponse) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Kind classifies the error code.
func (e *ErrorResponse) Kind() Kind {
	switch e.Code {
	case ErrCodeValidation:
		return KindValidation
	case ErrCodeAuthentication:
		return KindAuthentication
	case ErrCodeAccountLocked:
		return KindLocked
	case ErrCodeTooManyRequests:
		return KindRateLimited
	case ErrCodeUserNotFound:
		return KindNotFound
	case ErrCodeMissingToken, ErrCodeInvalidToken:
		return KindUnauthorized
	case ErrCodeNetwork:
		return KindNetwork
	default:
		return KindInternal
	}
}

// RetryAfterSeconds returns the server-suggested wait, or zero.
func (e *ErrorResponse) RetryAfterSeconds() int {
	if e.RetryAfter == nil {
		return 0
	}
	return *e.RetryAfter
}

// CountsTowardLockout reports whether the error is a rejected credential
// that the client tallies as a failed attempt.
func (e *ErrorResponse) CountsTowardLockout() bool {
	return e.Kind() == KindAuthentication
}

// NewError creates a new ErrorResponse.
func NewError(code ErrorCode, message string) *ErrorResponse {
	return &ErrorResponse{
		Code:    code,
		Message: message,
	}
}

// NewErrorWithDetails creates a new ErrorResponse with details.
func NewErrorWithDetails(code ErrorCode, message, details string) *ErrorResponse {
	return &ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// AsError extracts an *ErrorResponse from err. Errors that are not protocol
// errors are reported as INTERNAL_ERROR carrying the original message.
func AsError(err error) *ErrorResponse {
	if err == nil {
		return nil
	}
	var e *ErrorResponse
	if errors.As(err, &e) {
		return e
	}
	return NewErrorWithDetails(ErrCodeInternal, "Internal error", err.Error())
}

// KindOf classifies any error, see AsError.
func KindOf(err error) Kind {
	return AsError(err).Kind()
}

// Common error constructors for convenience

// NewValidationError creates a validation error.
func NewValidationError(message string) *ErrorResponse {
	return NewError(ErrCodeValidation, message)
}

// NewAuthenticationError creates an authentication error.
func NewAuthenticationError(message string) *ErrorResponse {
	return NewError(ErrCodeAuthentication, message)
}

// NewAccountLockedError creates an account locked error.
func NewAccountLockedError(retryAfter, failedAttempts int) *ErrorResponse {
	return &ErrorResponse{
		Code:           ErrCodeAccountLocked,
		Message:        fmt.Sprintf("Account is locked, retry after %d seconds", retryAfter),
		RetryAfter:     &retryAfter,
		FailedAttempts: &failedAttempts,
	}
}

// NewTooManyRequestsError creates a rate limit error.
func NewTooManyRequestsError(retryAfter int) *ErrorResponse {
	return &ErrorResponse{
		Code:       ErrCodeTooManyRequests,
		Message:    fmt.Sprintf("Too many requests, retry after %d seconds", retryAfter),
		RetryAfter: &retryAfter,
	}
}

// NewUserNotFoundError creates a user not found error.
func NewUserNotFoundError() *ErrorResponse {
	return NewError(ErrCodeUserNotFound, "User not found")
}

// NewMissingTokenError creates a missing token error.
func NewMissingTokenError() *ErrorResponse {
	return NewError(ErrCodeMissingToken, "Authentication required")
}

// NewInvalidTokenError creates an invalid token error.
func NewInvalidTokenError() *ErrorResponse {
	return NewError(ErrCodeInvalidToken, "Session token is invalid or expired")
}

// NewInternalError creates an internal error.
func NewInternalError(details string) *ErrorResponse {
	return NewErrorWithDetails(ErrCodeInternal, "Internal error", details)
}

// NewNetworkError creates a network error.
func NewNetworkError(details string) *ErrorResponse {
	return NewErrorWithDetails(ErrCodeNetwork, "Network error", details)
}
