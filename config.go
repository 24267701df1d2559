package apiclient

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Default configuration values.
const (
	DefaultTimeout      = 5 * time.Second
	DefaultRetryDelay   = 300 * time.Millisecond
	DefaultCacheTimeout = 5 * time.Second
)

// ErrInvalidValue is wrapped by every configuration problem.
var ErrInvalidValue = errors.New("invalid value")

// Config holds the settings of a Dispatcher.
type Config struct {
	// BaseURL is prefixed to relative paths.
	BaseURL string
	// Portal is sent as X-Portal when set.
	Portal string
	// Timeout bounds a whole call, retries and refresh included. 0 disables it.
	Timeout time.Duration
	// Retries is the number of extra attempts after a network failure or 5xx.
	Retries int
	// RetryDelay is the fixed wait between attempts.
	RetryDelay time.Duration
	// EnableCaching turns on caching of GET responses.
	EnableCaching bool
	// CacheTimeout is the lifetime of a cached response.
	CacheTimeout time.Duration
	// ResponseTransformer is applied to decoded bodies. Nil means identity.
	ResponseTransformer ResponseTransformer
	// Headers are sent with every call.
	Headers map[string]string
}

// DefaultConfig returns the configuration used when no option overrides it.
func DefaultConfig() Config {
	return Config{
		Timeout:      DefaultTimeout,
		RetryDelay:   DefaultRetryDelay,
		CacheTimeout: DefaultCacheTimeout,
	}
}

// ConfigError lists every problem found while validating a configuration.
type ConfigError struct {
	Errors *multierror.Error
}

func (e *ConfigError) Error() string {
	return "configuration validation failed: " + e.Errors.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Errors
}

// Validate checks c and returns a *ConfigError describing every problem.
func (c Config) Validate() error {
	var result *multierror.Error

	if c.BaseURL != "" {
		if _, err := url.Parse(c.BaseURL); err != nil {
			result = multierror.Append(result, fmt.Errorf("%w: baseURL %q: %v", ErrInvalidValue, c.BaseURL, err))
		}
	}
	if c.Timeout < 0 {
		result = multierror.Append(result, fmt.Errorf("%w: timeout must be non-negative", ErrInvalidValue))
	}
	if c.Retries < 0 {
		result = multierror.Append(result, fmt.Errorf("%w: retries must be non-negative", ErrInvalidValue))
	}
	if c.Retries > 100 {
		result = multierror.Append(result, fmt.Errorf("%w: retries %d is excessive (max 100)", ErrInvalidValue, c.Retries))
	}
	if c.RetryDelay < 0 {
		result = multierror.Append(result, fmt.Errorf("%w: retryDelay must be non-negative", ErrInvalidValue))
	}
	if c.EnableCaching && c.CacheTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("%w: cacheTimeout must be positive when caching is enabled", ErrInvalidValue))
	}
	for name := range c.Headers {
		if strings.TrimSpace(name) == "" {
			result = multierror.Append(result, fmt.Errorf("%w: header name cannot be empty", ErrInvalidValue))
		}
	}

	if result == nil {
		return nil
	}
	return &ConfigError{Errors: result}
}

// ConfigFromEnv builds a Config from the environment, starting from
// DefaultConfig. Variables are named <prefix>_BASE_URL, <prefix>_PORTAL,
// <prefix>_TIMEOUT, <prefix>_RETRIES, <prefix>_RETRY_DELAY,
// <prefix>_ENABLE_CACHING, <prefix>_CACHE_TIMEOUT and <prefix>_HEADERS.
// Durations accept Go syntax ("1.5s") or a bare number of milliseconds.
// Headers are comma separated Name=Value pairs.
func ConfigFromEnv(prefix string) (Config, error) {
	cfg := DefaultConfig()
	env := func(name string) (string, bool) {
		v, ok := os.LookupEnv(prefix + "_" + name)
		return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
	}

	var result *multierror.Error

	if v, ok := env("BASE_URL"); ok {
		cfg.BaseURL = v
	}
	if v, ok := env("PORTAL"); ok {
		cfg.Portal = v
	}
	if v, ok := env("TIMEOUT"); ok {
		d, err := parseDuration(prefix+"_TIMEOUT", v)
		result = appendIfErr(result, err)
		cfg.Timeout = d
	}
	if v, ok := env("RETRIES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%w: %s_RETRIES (%s)", ErrInvalidValue, prefix, v))
		}
		cfg.Retries = n
	}
	if v, ok := env("RETRY_DELAY"); ok {
		d, err := parseDuration(prefix+"_RETRY_DELAY", v)
		result = appendIfErr(result, err)
		cfg.RetryDelay = d
	}
	if v, ok := env("ENABLE_CACHING"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%w: %s_ENABLE_CACHING (%s)", ErrInvalidValue, prefix, v))
		}
		cfg.EnableCaching = b
	}
	if v, ok := env("CACHE_TIMEOUT"); ok {
		d, err := parseDuration(prefix+"_CACHE_TIMEOUT", v)
		result = appendIfErr(result, err)
		cfg.CacheTimeout = d
	}
	if v, ok := env("HEADERS"); ok {
		headers, err := parseHeaders(prefix+"_HEADERS", v)
		result = appendIfErr(result, err)
		cfg.Headers = headers
	}

	if result != nil {
		return cfg, &ConfigError{Errors: result}
	}
	return cfg, nil
}

func appendIfErr(result *multierror.Error, err error) *multierror.Error {
	if err == nil {
		return result
	}
	return multierror.Append(result, err)
}

func parseDuration(name, raw string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s (%s)", ErrInvalidValue, name, raw)
	}
	return d, nil
}

func parseHeaders(name, raw string) (map[string]string, error) {
	headers := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: %s (%s)", ErrInvalidValue, name, pair)
		}
		headers[k] = strings.TrimSpace(v)
	}
	return headers, nil
}
