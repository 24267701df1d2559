package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Headers set by the dispatcher.
const (
	HeaderTenantID = "X-Tenant-ID"
	HeaderPortal   = "X-Portal"
)

// RequestOption adjusts a single call.
type RequestOption func(*requestOptions)

type requestOptions struct {
	headers map[string]string
	timeout *time.Duration
	retries *int
	noCache bool
}

// WithHeaders adds headers to one call. They override every other header.
func WithHeaders(headers map[string]string) RequestOption {
	return func(o *requestOptions) {
		if o.headers == nil {
			o.headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			o.headers[k] = v
		}
	}
}

// WithRequestTimeout overrides the configured timeout. 0 disables it.
func WithRequestTimeout(d time.Duration) RequestOption {
	return func(o *requestOptions) {
		o.timeout = &d
	}
}

// WithRequestRetries overrides the configured retry count.
func WithRequestRetries(n int) RequestOption {
	return func(o *requestOptions) {
		if n < 0 {
			n = 0
		}
		o.retries = &n
	}
}

// WithNoCache makes a GET bypass the cache for both lookup and store.
func WithNoCache() RequestOption {
	return func(o *requestOptions) {
		o.noCache = true
	}
}

// call is the immutable description of one logical call.
type call struct {
	id       string
	method   string
	url      string
	endpoint string
	cacheKey string // empty when the call is not cacheable
	payload  []byte
	headers  map[string]string
	retries  int
	timeout  time.Duration
}

// resolveURL returns path unchanged when it is absolute, otherwise joins it
// to the base URL with exactly one slash.
func (d *Dispatcher) resolveURL(path string) string {
	if strings.Contains(path, "://") || d.config.BaseURL == "" {
		return path
	}
	base := strings.TrimRight(d.config.BaseURL, "/")
	if path == "" {
		return base
	}
	return base + "/" + strings.TrimLeft(path, "/")
}

func encodeBody(method string, body any) ([]byte, error) {
	if body == nil || method == http.MethodGet || method == http.MethodHead {
		return nil, nil
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: encode %s body: %w", method, err)
	}
	return payload, nil
}

func (d *Dispatcher) buildHeaders(c *call, token string) http.Header {
	h := make(http.Header)
	h.Set("Accept", "application/json")
	h.Set("Content-Type", "application/json")
	h.Set("User-Agent", UserAgent())

	for k, v := range d.config.Headers {
		h.Set(k, v)
	}

	if d.session != nil {
		if token != "" && d.session.IsAuthenticated() {
			h.Set("Authorization", "Bearer "+token)
		}
		if user := d.session.User(); user != nil && user.TenantID != "" {
			h.Set(HeaderTenantID, user.TenantID)
		}
	}
	if d.config.Portal != "" {
		h.Set(HeaderPortal, d.config.Portal)
	}

	for k, v := range c.headers {
		h.Set(k, v)
	}
	return h
}

func (d *Dispatcher) newRequest(ctx context.Context, c *call, token string) (*http.Request, error) {
	var body io.Reader
	if c.payload != nil {
		body = bytes.NewReader(c.payload)
	}
	req, err := http.NewRequestWithContext(ctx, c.method, c.url, body)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build request %s %s: %w", c.method, c.url, err)
	}
	req.Header = d.buildHeaders(c, token)
	return req, nil
}

func (d *Dispatcher) executeMiddleware(req *http.Request) (*http.Response, error) {
	if len(d.middleware) == 0 {
		return d.httpClient.Do(req)
	}

	current := RoundTripperFunc(d.httpClient.Do)

	for i := len(d.middleware) - 1; i >= 0; i-- {
		middleware := d.middleware[i]
		next := current
		current = RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return middleware(r, next)
		})
	}

	return current.RoundTrip(req)
}
