package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// AuthError indicates token issuance or refresh failed, or a provider
// rejected the presented credential (401/403).
type AuthError struct {
	Err        error
	StatusCode int
}

func (e *AuthError) Error() string { return e.Err.Error() }
func (e *AuthError) Unwrap() error { return e.Err }

// NewAuthError wraps an error as an authentication failure.
func NewAuthError(err error, statusCode int) *AuthError {
	return &AuthError{Err: err, StatusCode: statusCode}
}

// IsAuth reports whether the error chain contains an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// RateLimitError indicates a provider returned a quota-exceeded response
// despite local throttling. Always retryable after the limiter delay.
type RateLimitError struct {
	Err      error
	Provider string
}

func (e *RateLimitError) Error() string { return e.Err.Error() }
func (e *RateLimitError) Unwrap() error { return e.Err }

// NewRateLimitError wraps an error as a provider-side quota rejection.
func NewRateLimitError(err error, provider string) *RateLimitError {
	return &RateLimitError{Err: err, Provider: provider}
}

// ProviderError indicates a provider was reachable but returned an error
// status or a payload that did not match its documented shape. Transient
// marks whether the failure is safe to retry.
type ProviderError struct {
	Err        error
	Provider   string
	StatusCode int
	Transient  bool
}

func (e *ProviderError) Error() string { return e.Err.Error() }
func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError wraps an error from a provider, classifying transience
// from the HTTP status when one is available.
func NewProviderError(err error, provider string, statusCode int) *ProviderError {
	return &ProviderError{
		Err:        err,
		Provider:   provider,
		StatusCode: statusCode,
		Transient:  IsTransientHTTPStatus(statusCode),
	}
}

// ValidationError indicates the input record is missing the minimum fields
// a stage needs. The stage is skipped, not failed.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError wraps an error as an input-validation failure.
func NewValidationError(err error) *ValidationError {
	return &ValidationError{Err: err}
}

// IsValidation reports whether the error chain contains a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsRetryable reports whether the error is safe to retry: rate-limit
// rejections, transient provider errors, and network-level transient
// failures. Auth and validation errors are never retryable here — auth
// failures go through the token refresh path instead.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var rle *RateLimitError
	if errors.As(err, &rle) {
		return true
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient
	}

	if IsAuth(err) || IsValidation(err) {
		return false
	}

	return isTransientNetwork(err)
}

// isTransientNetwork matches network-level failures that are safe to retry:
// timeouts, connection resets, DNS hiccups.
func isTransientNetwork(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String heuristics for errors wrapped by HTTP clients.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"context deadline exceeded",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus reports whether an HTTP status indicates a
// transient server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
