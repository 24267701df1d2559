package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
)

// attempt performs one round trip and turns the response into a value or an error.
func (d *Dispatcher) attempt(ctx context.Context, c *call, token string) (any, error) {
	req, err := d.newRequest(ctx, c, token)
	if err != nil {
		return nil, err
	}

	resp, err := d.executeMiddleware(req)
	if err != nil {
		if cause := context.Cause(ctx); cause != nil {
			return nil, cause
		}
		return nil, &NetworkError{Method: c.method, URL: c.url, Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if cause := context.Cause(ctx); cause != nil {
			return nil, cause
		}
		return nil, &NetworkError{Method: c.method, URL: c.url, Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newHTTPError(c, resp, data)
	}

	value, err := decodeBody(c.url, resp.StatusCode, resp.Header.Get("Content-Type"), data)
	if err != nil {
		return nil, err
	}
	if d.config.ResponseTransformer != nil {
		value = d.config.ResponseTransformer(value)
	}
	return value, nil
}

func isJSONContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// decodeBody parses JSON bodies into any and returns other bodies as strings.
// 204 and empty bodies decode to nil.
func decodeBody(target string, status int, contentType string, data []byte) (any, error) {
	if status == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	if !isJSONContentType(contentType) {
		return string(data), nil
	}

	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, &DecodeError{URL: target, ContentType: contentType, Cause: err}
	}
	return value, nil
}

func newHTTPError(c *call, resp *http.Response, data []byte) *HTTPError {
	return &HTTPError{
		Status:  resp.StatusCode,
		Message: errorMessage(resp, data),
		Method:  c.method,
		URL:     c.url,
		Body:    data,
	}
}

// errorMessage prefers the body's "error" then "message" field and falls back
// to the status text.
func errorMessage(resp *http.Response, data []byte) string {
	var body map[string]any
	if err := json.Unmarshal(data, &body); err == nil {
		for _, field := range []string{"error", "message"} {
			if s, ok := body[field].(string); ok && s != "" {
				return s
			}
		}
	}

	if text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))); text != "" {
		return text
	}
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return "HTTP error " + strconv.Itoa(resp.StatusCode)
}
