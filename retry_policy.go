package apiclient

import (
	"errors"
	"net/http"
	"time"
)

// RetryPolicy decides whether a failed attempt is retried and how long to
// wait before the next one. attempt is zero based.
type RetryPolicy interface {
	ShouldRetry(attempt, maxRetries int, err error) bool
	Delay(attempt int) time.Duration
}

// FixedDelayPolicy retries network failures and 5xx responses after a
// constant delay.
type FixedDelayPolicy struct {
	delay time.Duration
}

// NewFixedDelayPolicy returns a policy waiting delay between attempts.
func NewFixedDelayPolicy(delay time.Duration) *FixedDelayPolicy {
	if delay < 0 {
		delay = 0
	}
	return &FixedDelayPolicy{delay: delay}
}

// ShouldRetry implements RetryPolicy.
func (p *FixedDelayPolicy) ShouldRetry(attempt, maxRetries int, err error) bool {
	if err == nil || attempt >= maxRetries {
		return false
	}

	if status, ok := StatusCode(err); ok {
		return status >= http.StatusInternalServerError
	}

	// Without a status only transport failures qualify; timeouts, aborts and
	// decode errors are final.
	var networkErr *NetworkError
	return errors.As(err, &networkErr)
}

// Delay implements RetryPolicy.
func (p *FixedDelayPolicy) Delay(int) time.Duration {
	return p.delay
}
