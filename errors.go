package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel errors for common failure scenarios
var (
	// ErrTimeout is wrapped by every *TimeoutError.
	ErrTimeout = errors.New("Request timeout")

	// ErrAborted is wrapped by every *AbortError.
	ErrAborted = errors.New("Request aborted")

	// ErrClosed is returned by calls made on a closed Dispatcher.
	ErrClosed = errors.New("apiclient: dispatcher closed")

	// ErrRateLimited is returned when the client-side rate limiter refuses to wait.
	ErrRateLimited = errors.New("apiclient: rate limited")
)

// Error type labels used in logs and metrics.
const (
	ErrorTypeHTTP    = "HTTP"
	ErrorTypeNetwork = "Network"
	ErrorTypeTimeout = "Timeout"
	ErrorTypeAbort   = "Abort"
	ErrorTypeDecode  = "Decode"
	ErrorTypeUnknown = "Unknown"
)

// HTTPError is returned for a response whose status is outside 2xx.
type HTTPError struct {
	Status  int
	Message string
	Method  string
	URL     string
	Body    []byte
	// Cause holds a failed token refresh attempted for a 401.
	Cause error
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return fmt.Sprintf("HTTP %d: %s (%v)", e.Status, e.Message, e.Cause)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NetworkError is a transport level failure; it carries no status.
type NetworkError struct {
	Method string
	URL    string
	Cause  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network request failed: %s %s: %v", e.Method, e.URL, e.Cause)
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// TimeoutError is raised by the timeout timer of a call.
type TimeoutError struct {
	URL     string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return ErrTimeout.Error()
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}

// AbortError is raised by CancelRequest and by Close.
type AbortError struct {
	URL string
}

func (e *AbortError) Error() string {
	return ErrAborted.Error()
}

func (e *AbortError) Unwrap() error {
	return ErrAborted
}

// DecodeError is returned when a body declared as JSON fails to parse.
type DecodeError struct {
	URL         string
	ContentType string
	Cause       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s response from %s: %v", e.ContentType, e.URL, e.Cause)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// StatusCode returns the HTTP status carried by err, if any.
func StatusCode(err error) (int, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status, true
	}
	return 0, false
}

// ErrorType classifies err into one of the ErrorType* labels.
func ErrorType(err error) string {
	var (
		httpErr    *HTTPError
		networkErr *NetworkError
		decodeErr  *DecodeError
	)
	switch {
	case errors.As(err, &httpErr):
		return ErrorTypeHTTP
	case errors.Is(err, ErrTimeout):
		return ErrorTypeTimeout
	case errors.Is(err, ErrAborted), errors.Is(err, context.Canceled):
		return ErrorTypeAbort
	case errors.As(err, &networkErr):
		return ErrorTypeNetwork
	case errors.As(err, &decodeErr):
		return ErrorTypeDecode
	default:
		return ErrorTypeUnknown
	}
}

// IsTransient reports whether err is a failure that might succeed on a later attempt:
// network errors, timeouts, 5xx responses and 429.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if status, ok := StatusCode(err); ok {
		return status >= http.StatusInternalServerError || status == http.StatusTooManyRequests
	}
	var networkErr *NetworkError
	return errors.As(err, &networkErr) || errors.Is(err, ErrTimeout)
}

// isAbort reports whether err came from cancellation rather than from the backend.
func isAbort(err error) bool {
	return errors.Is(err, ErrAborted) || errors.Is(err, context.Canceled) || errors.Is(err, ErrClosed)
}
