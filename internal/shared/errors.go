package shared

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Upstream API errors, one per taxonomy kind
	ErrRateLimitExceeded    = fmt.Errorf("rate limit exceeded")
	ErrAuthorizationExpired = fmt.Errorf("authorization expired")
	ErrNotFound             = fmt.Errorf("resource not found")
	ErrNetwork              = fmt.Errorf("network error")
	ErrClientError          = fmt.Errorf("client error")
	ErrServerError          = fmt.Errorf("server error")
	ErrRequestCancelled     = fmt.Errorf("request cancelled")
	ErrDecode               = fmt.Errorf("malformed response")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)

// ErrorKind identifies the taxonomy bucket of an [APIError].
type ErrorKind int

const (
	KindNetwork ErrorKind = iota
	KindClient
	KindServer
	KindNotFound
	KindRateLimit
	KindAuthorization
	KindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network_error"
	case KindClient:
		return "client_error"
	case KindServer:
		return "server_error"
	case KindNotFound:
		return "not_found"
	case KindRateLimit:
		return "rate_limit_exceeded"
	case KindAuthorization:
		return "authorization_expired"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindClient:
		return ErrClientError
	case KindServer:
		return ErrServerError
	case KindNotFound:
		return ErrNotFound
	case KindRateLimit:
		return ErrRateLimitExceeded
	case KindAuthorization:
		return ErrAuthorizationExpired
	case KindCancelled:
		return ErrRequestCancelled
	default:
		return ErrNetwork
	}
}

// APIError carries enough structure for a caller to render a failure without
// inspecting transport details: the kind, the upstream status (0 for
// connectivity failures), a message and an optional retry-after hint.
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind.sentinel(), e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind.sentinel(), e.Message)
}

// Unwrap allows errors.Is(err, shared.ErrRateLimitExceeded) and friends.
func (e *APIError) Unwrap() error {
	return e.Kind.sentinel()
}

// NewAPIError builds an [APIError] for an HTTP status, classifying it with [ClassifyStatus].
func NewAPIError(status int, message string) *APIError {
	return &APIError{Kind: ClassifyStatus(status), StatusCode: status, Message: message}
}

// NetworkError wraps a transport failure (no response received).
func NetworkError(err error) *APIError {
	return &APIError{Kind: KindNetwork, Message: err.Error()}
}

// ClassifyStatus maps an HTTP status code onto an [ErrorKind].
func ClassifyStatus(status int) ErrorKind {
	switch {
	case status == 0:
		return KindNetwork
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuthorization
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= 500:
		return KindServer
	default:
		return KindClient
	}
}

// AsAPIError extracts an [APIError] from an error chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
