package apiclient

import (
	"time"

	"github.com/getsentry/sentry-go"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/michaelayoade/dotmac-shared-sub011/notify"
)

// WithConfig replaces the whole configuration. Options applied after it
// still override single fields.
func WithConfig(config Config) Option {
	return func(d *Dispatcher) {
		d.config = config
	}
}

// WithBaseURL sets the prefix of relative paths
func WithBaseURL(baseURL string) Option {
	return func(d *Dispatcher) {
		d.config.BaseURL = baseURL
	}
}

// WithPortal sets the X-Portal header value
func WithPortal(portal string) Option {
	return func(d *Dispatcher) {
		d.config.Portal = portal
	}
}

// WithTimeout sets the per-call timeout. 0 disables it.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.config.Timeout = timeout
	}
}

// WithRetries sets the number of retries after a network failure or 5xx
func WithRetries(n int) Option {
	return func(d *Dispatcher) {
		d.config.Retries = n
	}
}

// WithRetryDelay sets the fixed delay between attempts
func WithRetryDelay(delay time.Duration) Option {
	return func(d *Dispatcher) {
		d.config.RetryDelay = delay
	}
}

// WithCaching enables or disables caching of GET responses
func WithCaching(enabled bool) Option {
	return func(d *Dispatcher) {
		d.config.EnableCaching = enabled
	}
}

// WithCacheTimeout sets the lifetime of cached responses
func WithCacheTimeout(ttl time.Duration) Option {
	return func(d *Dispatcher) {
		d.config.CacheTimeout = ttl
	}
}

// WithCacheSweep starts a background janitor evicting expired cache entries
func WithCacheSweep(enabled bool) Option {
	return func(d *Dispatcher) {
		d.cacheConfig.Sweep = enabled
	}
}

// WithCacheCapacity bounds the number of cached responses
func WithCacheCapacity(n uint64) Option {
	return func(d *Dispatcher) {
		d.cacheConfig.Capacity = n
	}
}

// WithResponseTransformer sets the function applied to decoded bodies
func WithResponseTransformer(fn ResponseTransformer) Option {
	return func(d *Dispatcher) {
		d.config.ResponseTransformer = fn
	}
}

// WithDefaultHeaders adds headers sent with every call
func WithDefaultHeaders(headers map[string]string) Option {
	return func(d *Dispatcher) {
		merged := make(map[string]string, len(d.config.Headers)+len(headers))
		for k, v := range d.config.Headers {
			merged[k] = v
		}
		for k, v := range headers {
			merged[k] = v
		}
		d.config.Headers = merged
	}
}

// WithSession sets the credential source used for Authorization, tenant
// headers and token refresh
func WithSession(session SessionProvider) Option {
	return func(d *Dispatcher) {
		d.session = session
	}
}

// WithRetryPolicy replaces the fixed delay retry policy
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(d *Dispatcher) {
		d.retryPolicy = policy
	}
}

// WithHTTPClient sets the transport
func WithHTTPClient(client HTTPDoer) Option {
	return func(d *Dispatcher) {
		d.httpClient = client
	}
}

// WithMiddleware appends middleware around the transport
func WithMiddleware(middleware ...Middleware) Option {
	return func(d *Dispatcher) {
		d.middleware = append(d.middleware, middleware...)
	}
}

// WithRateLimit limits attempts to r per second with the given burst
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(d *Dispatcher) {
		d.rateLimiter = NewRateLimiter(r, burst)
	}
}

// WithLoadingListener registers a function called when the aggregate
// loading flag flips
func WithLoadingListener(fn func(anyLoading bool)) Option {
	return func(d *Dispatcher) {
		d.loadingListener = fn
	}
}

// WithNotifier publishes an error notification for every surfaced failure
// other than an abort
func WithNotifier(store *notify.Store) Option {
	return func(d *Dispatcher) {
		d.notifier = store
	}
}

// WithSentryHub reports surfaced failures to hub. Without it the hub carried
// by the call context, if any, is used.
func WithSentryHub(hub *sentry.Hub) Option {
	return func(d *Dispatcher) {
		d.sentryHub = hub
	}
}

// WithTracerProvider traces calls and wraps *http.Client transports with otelhttp
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(d *Dispatcher) {
		d.tracerProvider = tp
	}
}

// WithMetrics enables Prometheus metrics with default collector
func WithMetrics() Option {
	return func(d *Dispatcher) {
		d.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector records metrics into collector
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(d *Dispatcher) {
		d.metrics = collector
	}
}

// WithDebug turns on debug logging for every category
func WithDebug() Option {
	return func(d *Dispatcher) {
		if d.debug == nil {
			d.debug = DefaultDebugConfig()
		}
		d.debug.Enabled = true
	}
}

// WithDebugConfig selects which debug categories are logged
func WithDebugConfig(config *DebugConfig) Option {
	return func(d *Dispatcher) {
		d.debug = config
	}
}

// WithLogger sets a custom logger
func WithLogger(logger Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithSimpleLogger turns on debug logging to stderr
func WithSimpleLogger() Option {
	return func(d *Dispatcher) {
		if d.debug == nil {
			d.debug = DefaultDebugConfig()
		}
		d.debug.Enabled = true
		d.logger = NewSimpleLogger()
	}
}
