package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/michaelayoade/dotmac-shared-sub011/notify"
)

// Dispatcher issues JSON API calls with caching, per-URL cancellation,
// timeouts, bounded retries and token refresh. It is safe for concurrent use.
type Dispatcher struct {
	config      Config
	httpClient  HTTPDoer
	middleware  []Middleware
	session     SessionProvider
	refresher   *refresher
	retryPolicy RetryPolicy

	cache           *CacheStore
	cacheConfig     CacheStoreConfig
	registry        *ControllerRegistry
	loading         *LoadingTracker
	loadingListener func(anyLoading bool)

	rateLimiter    *RateLimiter
	metrics        *MetricsCollector
	logger         Logger
	debug          *DebugConfig
	tracer         trace.Tracer
	tracerProvider trace.TracerProvider
	sentryHub      *sentry.Hub
	notifier       *notify.Store

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
	newID func() string

	closed          atomic.Bool
	closeOnce       sync.Once
	validationError error
}

type callResult struct {
	value any
	err   error
}

// New creates a Dispatcher with sensible defaults.
func New(options ...Option) *Dispatcher {
	d := &Dispatcher{
		config:     DefaultConfig(),
		httpClient: &http.Client{},
		logger:     discardLogger(),
		debug:      DefaultDebugConfig(),
		tracer:     defaultTracer(),
		now:        time.Now,
		after:      time.After,
		newID:      uuid.NewString,
	}

	for _, option := range options {
		option(d)
	}

	if d.logger == nil {
		d.logger = discardLogger()
	}
	if d.retryPolicy == nil {
		d.retryPolicy = NewFixedDelayPolicy(d.config.RetryDelay)
	}
	if d.session != nil {
		d.refresher = newRefresher(d.session)
	}
	if d.tracerProvider != nil {
		d.tracer = d.tracerProvider.Tracer(instrumentationName)
		d.httpClient = instrumentHTTPClient(d.httpClient, d.tracerProvider)
	}
	if d.cacheConfig.Now == nil {
		d.cacheConfig.Now = d.now
	}

	d.cache = NewCacheStore(d.cacheConfig)
	d.registry = NewControllerRegistry()
	d.loading = NewLoadingTracker(d.loadingListener)

	d.validationError = d.ValidateConfiguration()
	if d.validationError != nil {
		d.logger.Warn("Invalid dispatcher configuration", "error", d.validationError)
	}

	return d
}

// Get issues a GET. Responses are served from the cache when caching is enabled.
func (d *Dispatcher) Get(ctx context.Context, path string, opts ...RequestOption) (any, error) {
	return d.Do(ctx, http.MethodGet, path, nil, opts...)
}

// Post issues a POST with body encoded as JSON.
func (d *Dispatcher) Post(ctx context.Context, path string, body any, opts ...RequestOption) (any, error) {
	return d.Do(ctx, http.MethodPost, path, body, opts...)
}

// Put issues a PUT with body encoded as JSON.
func (d *Dispatcher) Put(ctx context.Context, path string, body any, opts ...RequestOption) (any, error) {
	return d.Do(ctx, http.MethodPut, path, body, opts...)
}

// Patch issues a PATCH with body encoded as JSON.
func (d *Dispatcher) Patch(ctx context.Context, path string, body any, opts ...RequestOption) (any, error) {
	return d.Do(ctx, http.MethodPatch, path, body, opts...)
}

// Delete issues a DELETE.
func (d *Dispatcher) Delete(ctx context.Context, path string, opts ...RequestOption) (any, error) {
	return d.Do(ctx, http.MethodDelete, path, nil, opts...)
}

// Do issues a call with an arbitrary method. path is joined to the base URL
// unless it is absolute. The decoded body is returned: JSON bodies as any,
// other bodies as a string and empty bodies as nil.
func (d *Dispatcher) Do(ctx context.Context, method, path string, body any, opts ...RequestOption) (value any, err error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}

	var ro requestOptions
	for _, opt := range opts {
		opt(&ro)
	}

	method = strings.ToUpper(method)
	target := d.resolveURL(path)
	endpoint := endpointFromURL(target)
	logger := d.loggerFor(ctx)

	c := &call{
		id:       d.newID(),
		method:   method,
		url:      target,
		endpoint: endpoint,
		headers:  ro.headers,
		retries:  d.config.Retries,
		timeout:  d.config.Timeout,
	}
	if ro.retries != nil {
		c.retries = *ro.retries
	}
	if ro.timeout != nil {
		c.timeout = *ro.timeout
	}

	ctx, span := d.startSpan(ctx, method, target)
	defer func() { endSpan(span, err) }()

	if method == http.MethodGet && d.config.EnableCaching && !ro.noCache {
		c.cacheKey = string(NewRequestKey(method, target))
		if cached, ok := d.cache.Get(c.cacheKey); ok {
			d.metrics.RecordCacheHit(method, endpoint)
			span.SetAttributes(attribute.Bool("apiclient.cache_hit", true))
			if d.debugEnabled(d.debug.LogCache) {
				logger.Debug("Cache hit", "requestID", c.id, "cacheKey", c.cacheKey)
			}
			return cached, nil
		}
		d.metrics.RecordCacheMiss(method, endpoint)
		if d.debugEnabled(d.debug.LogCache) {
			logger.Debug("Cache miss", "requestID", c.id, "cacheKey", c.cacheKey)
		}
	}

	if c.payload, err = encodeBody(method, body); err != nil {
		return nil, err
	}

	if d.debugEnabled(d.debug.LogRequests) {
		logger.Debug("Starting request", "requestID", c.id, "method", method, "url", target, "endpoint", endpoint)
	}

	value, err = d.dispatch(ctx, c, logger)
	if err != nil {
		d.metrics.RecordError(ErrorType(err), method, endpoint)
		if !isAbort(err) {
			logger.Warn("Request failed", "requestID", c.id, "method", method, "url", target, "error", err)
		}
		d.report(ctx, err, method, target)
		return nil, err
	}
	return value, nil
}

// dispatch registers the call, runs its attempts in a goroutine and waits for
// either the result or a rejection. Registration and loading state are
// released on every exit path.
func (d *Dispatcher) dispatch(ctx context.Context, c *call, logger Logger) (any, error) {
	callCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	rejected := make(chan error, 1)
	reject := func(err error) {
		select {
		case rejected <- err:
		default:
		}
	}

	start := time.Now()
	d.registry.Register(c.url, c.id, cancel, reject)
	d.loading.SetLoading(c.url, true)
	d.metrics.RecordRequestStart(c.method, c.endpoint)

	settled := make(chan struct{})
	defer func() {
		if d.registry.Release(c.url, c.id) {
			d.loading.SetLoading(c.url, false)
		}
		d.metrics.RecordRequestEnd(c.method, c.endpoint)
		close(settled)
	}()

	// Close may have drained the registry between the check in Do and Register.
	if d.closed.Load() {
		return nil, ErrClosed
	}

	if c.timeout > 0 {
		timer := time.AfterFunc(c.timeout, func() { d.expire(c, logger) })
		defer timer.Stop()
	}

	results := make(chan callResult, 1)
	go func() {
		value, err := d.execute(callCtx, c, logger)
		results <- callResult{value: value, err: err}
		// No abort can mark the call once it is released.
		<-settled
		d.registry.ClearCancelled(c.id)
	}()

	var res callResult
	select {
	case res = <-results:
		// a rejection that raced the result still wins
		select {
		case err := <-rejected:
			res = callResult{err: err}
		default:
		}
	case err := <-rejected:
		res.err = err
	case <-ctx.Done():
		res.err = context.Cause(ctx)
	}

	status := 0
	if res.err == nil {
		status = http.StatusOK
	} else if s, ok := StatusCode(res.err); ok {
		status = s
	}
	d.metrics.RecordRequest(c.method, c.endpoint, status, time.Since(start))

	if res.err != nil {
		return nil, res.err
	}

	if c.cacheKey != "" && !d.registry.IsCancelled(c.id) {
		d.cache.Set(c.cacheKey, res.value, d.config.CacheTimeout)
		d.metrics.RecordCacheSize(d.cache.Len())
		if d.debugEnabled(d.debug.LogCache) {
			logger.Debug("Response cached", "requestID", c.id, "cacheKey", c.cacheKey, "ttl", d.config.CacheTimeout)
		}
	}
	return res.value, nil
}

// execute runs the attempts of a call until success, a final error or
// cancellation.
func (d *Dispatcher) execute(ctx context.Context, c *call, logger Logger) (any, error) {
	token := d.accessToken()
	refreshed := false

	for attempt := 0; ; {
		if err := d.checkpoint(ctx, c.id); err != nil {
			return nil, err
		}
		if d.rateLimiter != nil {
			if err := d.rateLimiter.Wait(ctx); err != nil {
				return nil, err
			}
			d.metrics.RecordRateLimiterTokens(d.rateLimiter.Tokens())
		}

		value, err := d.attempt(ctx, c, token)
		if err == nil {
			return value, nil
		}
		if cerr := d.checkpoint(ctx, c.id); cerr != nil {
			return nil, cerr
		}

		if status, ok := StatusCode(err); ok && status == http.StatusUnauthorized && d.refresher != nil && !refreshed {
			refreshed = true
			newToken, rerr := d.refreshToken(ctx, c, logger)
			if cerr := d.checkpoint(ctx, c.id); cerr != nil {
				return nil, cerr
			}
			if rerr == nil && newToken != "" {
				token = newToken
				continue
			}
			var httpErr *HTTPError
			if rerr != nil && errors.As(err, &httpErr) {
				httpErr.Cause = rerr
			}
		}

		if !d.retryPolicy.ShouldRetry(attempt, c.retries, err) {
			return nil, err
		}

		delay := d.retryPolicy.Delay(attempt)
		attempt++
		d.metrics.RecordRetry(c.method, c.endpoint, attempt)
		addSpanEvent(ctx, "retry", attribute.Int("attempt", attempt), attribute.String("error", err.Error()))
		if d.debugEnabled(d.debug.LogRetries) {
			logger.Info("Scheduling retry", "requestID", c.id, "attempt", attempt, "maxRetries", c.retries, "delay", delay, "error", err)
		}

		select {
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		case <-d.after(delay):
		}
	}
}

// checkpoint reports why the call must stop, or nil to continue.
func (d *Dispatcher) checkpoint(ctx context.Context, id string) error {
	if d.registry.IsCancelled(id) {
		if cause := context.Cause(ctx); cause != nil {
			return cause
		}
		return ErrAborted
	}
	return context.Cause(ctx)
}

func (d *Dispatcher) accessToken() string {
	if d.session == nil {
		return ""
	}
	return d.session.Tokens().AccessToken
}

func (d *Dispatcher) refreshToken(ctx context.Context, c *call, logger Logger) (string, error) {
	if d.debugEnabled(d.debug.LogRefresh) {
		logger.Debug("Refreshing token after 401", "requestID", c.id, "url", c.url)
	}

	token, err := d.refresher.refresh(ctx)
	outcome := "success"
	switch {
	case err != nil:
		outcome = "failure"
		logger.Warn("Token refresh failed", "requestID", c.id, "error", err)
	case token == "":
		outcome = "empty"
	}
	d.metrics.RecordRefresh(outcome)
	addSpanEvent(ctx, "token_refresh", attribute.String("outcome", outcome))
	return token, err
}

// expire is the timeout path. It does nothing once the call has settled.
func (d *Dispatcher) expire(c *call, logger Logger) {
	if !d.registry.AbortCall(c.url, c.id, &TimeoutError{URL: c.url, Timeout: c.timeout}) {
		return
	}
	d.loading.SetLoading(c.url, false)
	d.metrics.RecordTimeout(c.endpoint)
	if d.debugEnabled(d.debug.LogCancel) {
		logger.Debug("Request timed out", "requestID", c.id, "url", c.url, "timeout", c.timeout)
	}
}

// IsLoading reports whether any call is in flight.
func (d *Dispatcher) IsLoading() bool {
	return d.loading.AnyLoading()
}

// IsRequestLoading reports whether a call to rawURL is in flight. rawURL may
// be a path or a resolved URL.
func (d *Dispatcher) IsRequestLoading(rawURL string) bool {
	return d.loading.IsLoading(rawURL) || d.loading.IsLoading(d.resolveURL(rawURL))
}

// InvalidateCache removes every cache entry whose key ends with rawURL.
func (d *Dispatcher) InvalidateCache(rawURL string) {
	removed := d.cache.DeleteSuffix(rawURL)
	d.metrics.RecordCacheSize(d.cache.Len())
	if removed > 0 && d.debugEnabled(d.debug.LogCache) {
		d.logger.Debug("Cache invalidated", "suffix", rawURL, "entries", removed)
	}
}

// CancelRequest aborts every in-flight call to rawURL. Each pending caller
// receives an *AbortError. rawURL may be a path or a resolved URL.
func (d *Dispatcher) CancelRequest(rawURL string) {
	target := rawURL
	if d.registry.Len(target) == 0 {
		target = d.resolveURL(rawURL)
	}

	n := d.registry.Abort(target, &AbortError{URL: target})
	for i := 0; i < n; i++ {
		d.loading.SetLoading(target, false)
	}
	d.metrics.RecordCancellation(endpointFromURL(target), n)
	if n > 0 && d.debugEnabled(d.debug.LogCancel) {
		d.logger.Debug("Request cancelled", "url", target, "calls", n)
	}
}

// Close aborts every in-flight call and drops the cache. Later calls fail
// with ErrClosed.
func (d *Dispatcher) Close() error {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		aborted := d.registry.AbortAll(func(target string) error {
			return &AbortError{URL: target}
		})
		for target, n := range aborted {
			for i := 0; i < n; i++ {
				d.loading.SetLoading(target, false)
			}
			d.metrics.RecordCancellation(endpointFromURL(target), n)
		}
		d.cache.Close()
		d.metrics.RecordCacheSize(0)
	})
	return nil
}

// Config returns the configuration in use.
func (d *Dispatcher) Config() Config {
	return d.config
}

// Metrics returns the collector, or nil when metrics are disabled.
func (d *Dispatcher) Metrics() *MetricsCollector {
	return d.metrics
}

// IsValid reports whether configuration validation passed at construction.
func (d *Dispatcher) IsValid() bool {
	return d.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (d *Dispatcher) ValidationError() error {
	return d.validationError
}

// ValidateConfiguration checks the dispatcher configuration and returns a
// *ConfigError listing every problem.
func (d *Dispatcher) ValidateConfiguration() error {
	var result *multierror.Error

	if err := d.config.Validate(); err != nil {
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) {
			result = multierror.Append(result, cfgErr.Errors.Errors...)
		} else {
			result = multierror.Append(result, err)
		}
	}
	if d.httpClient == nil {
		result = multierror.Append(result, fmt.Errorf("%w: HTTP client cannot be nil", ErrInvalidValue))
	}
	for i, m := range d.middleware {
		if m == nil {
			result = multierror.Append(result, fmt.Errorf("%w: middleware at index %d cannot be nil", ErrInvalidValue, i))
		}
	}
	if d.rateLimiter != nil && d.rateLimiter.limiter.Burst() <= 0 {
		result = multierror.Append(result, fmt.Errorf("%w: rate limiter burst must be positive", ErrInvalidValue))
	}

	if result == nil {
		return nil
	}
	return &ConfigError{Errors: result}
}
