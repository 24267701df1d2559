package apiclient

import (
	"context"
	"net/http"
	"strings"
)

// Middleware wraps the transport of every attempt.
type Middleware func(req *http.Request, next RoundTripper) (*http.Response, error)

// RoundTripper is the next stage of a middleware chain.
type RoundTripper interface {
	RoundTrip(*http.Request) (*http.Response, error)
}

// RoundTripperFunc adapts a function to RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// HTTPDoer is the transport used by a Dispatcher. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RequestKey identifies a cacheable request as METHOD:URL.
type RequestKey string

// NewRequestKey builds the key of a call to the resolved url.
func NewRequestKey(method, url string) RequestKey {
	return RequestKey(strings.ToUpper(method) + ":" + url)
}

// ResponseTransformer is applied to every decoded success body before it is
// cached and returned.
type ResponseTransformer func(value any) any

// Option configures a Dispatcher.
type Option func(*Dispatcher)

type contextKey string

const loggerContextKey contextKey = "apiclient_logger"

// WithLoggerContext returns a context carrying logger. Calls made with it log
// there instead of the dispatcher's logger.
func WithLoggerContext(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// LoggerFromContext returns the logger stored by WithLoggerContext.
func LoggerFromContext(ctx context.Context) (Logger, bool) {
	logger, ok := ctx.Value(loggerContextKey).(Logger)
	return logger, ok && logger != nil
}
