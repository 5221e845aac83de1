// Package engine provides the provider-agnostic chat primitives shared by the
// gateways. This file contains error classification and handling.

package engine

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrProcessingTimeout reports that an uploaded asset did not finish
// processing within the configured bound.
var ErrProcessingTimeout = errors.New("engine: asset processing timed out")

// ErrorClass groups upstream failures by how the caller should react.
type ErrorClass string

const (
	ClassTransient ErrorClass = "transient" // upstream answered with a temporary failure
	ClassClient    ErrorClass = "client"    // request rejected by upstream (auth, bad request, quota)
	ClassUnknown   ErrorClass = "unknown"
)

// EngineError wraps errors with classification metadata.
type EngineError struct {
	Err         error
	Class       ErrorClass
	HTTPStatus  int    // HTTP status code if applicable
	RetryAfter  string // Retry-After header value if present
	IsRateLimit bool   // True if this is a rate limit error
	IsTimeout   bool   // True if this is a timeout error
	IsNetwork   bool   // True if upstream could not be reached at all
	IsAuth      bool   // True if this is an authentication error
	IsQuota     bool   // True if this is a quota exhaustion error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("engine error: %s", e.Class)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// ClassifyLLMError classifies an error from an LLM provider call.
func ClassifyLLMError(err error) ErrorClass {
	if err == nil {
		return ClassUnknown
	}

	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Class
	}

	errStr := strings.ToLower(err.Error())

	// Rate limit and server errors
	if strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") ||
		strings.Contains(errStr, "service unavailable") ||
		strings.Contains(errStr, "timeout") {
		return ClassTransient
	}

	// Authentication, bad request, quota
	if strings.Contains(errStr, "400") ||
		strings.Contains(errStr, "401") ||
		strings.Contains(errStr, "402") ||
		strings.Contains(errStr, "403") ||
		strings.Contains(errStr, "unauthorized") ||
		strings.Contains(errStr, "invalid api key") ||
		strings.Contains(errStr, "quota") {
		return ClassClient
	}

	return ClassUnknown
}

// IsUnreachable reports whether err means the upstream could not be reached
// before any response was framed (DNS failure, refused connection).
func IsUnreachable(err error) bool {
	if err == nil {
		return false
	}
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.IsNetwork
	}
	return isTransportFailure(err)
}

func isTransportFailure(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "network is unreachable")
}

// WrapLLMError wraps an LLM provider error with classification metadata.
func WrapLLMError(err error, httpStatus int, retryAfter string) error {
	if err == nil {
		return nil
	}

	return &EngineError{
		Err:         err,
		Class:       ClassifyLLMError(err),
		HTTPStatus:  httpStatus,
		RetryAfter:  retryAfter,
		IsRateLimit: httpStatus == http.StatusTooManyRequests,
		IsTimeout:   httpStatus == http.StatusGatewayTimeout || httpStatus == http.StatusRequestTimeout,
		IsNetwork:   isTransportFailure(err),
		IsAuth:      httpStatus == http.StatusUnauthorized || httpStatus == http.StatusForbidden,
		IsQuota:     httpStatus == http.StatusPaymentRequired,
	}
}

// ExtractErrorMetadata extracts HTTP status code and Retry-After value from
// an SDK error message.
func ExtractErrorMetadata(err error) (int, string) {
	if err == nil || isTransportFailure(err) {
		return 0, ""
	}

	errStr := err.Error()
	var httpStatus int
	var retryAfter string

	// Common patterns: "429", "status code 429", "HTTP 429", etc.
	for _, status := range []int{
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusBadRequest,
		http.StatusPaymentRequired,
	} {
		if strings.Contains(errStr, fmt.Sprintf("%d", status)) {
			httpStatus = status
			break
		}
	}

	lower := strings.ToLower(errStr)
	if idx := strings.Index(lower, "retry-after"); idx != -1 {
		rest := strings.TrimLeft(errStr[idx+len("retry-after"):], ":= ")
		if parts := strings.Fields(rest); len(parts) > 0 {
			retryAfter = strings.TrimRight(parts[0], ",;")
		}
	}

	return httpStatus, retryAfter
}
