// Package apiclient is the request orchestration core of a JSON API client:
//
//   - GET response caching with a per-entry lifetime and lazy eviction
//   - Per-URL in-flight tracking exposed as loading state
//   - Cancellation of every in-flight call to a URL
//   - Whole-call timeouts that win over late transport results
//   - Bounded retries with a fixed delay for network failures and 5xx
//   - One token refresh per call when the backend answers 401
//   - Prometheus metrics, OpenTelemetry spans, Sentry reporting
//
// Typical usage:
//
//	d := apiclient.New(
//	    apiclient.WithBaseURL("https://api.example.com"),
//	    apiclient.WithRetries(2),
//	    apiclient.WithCaching(true),
//	    apiclient.WithSession(session),
//	)
//	defer d.Close()
//	users, err := d.Get(ctx, "/users")
//
// Values are returned decoded: JSON bodies as any (map[string]any, []any,
// float64, ...), other bodies as a string and empty bodies as nil. Use
// GetJSON, PostJSON or Decode for typed results.
//
// Failures are typed: *HTTPError for non-2xx responses, *NetworkError for
// transport failures, *TimeoutError (ErrTimeout), *AbortError (ErrAborted)
// and *DecodeError.
package apiclient
