package infra

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single upstream request.
const DefaultTimeout = 30 * time.Second

// HTTPClient is used by DoGet. Tests may replace it.
var HTTPClient = &http.Client{Timeout: DefaultTimeout}

// StatusError is returned by DoGet for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("GET %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("GET %s: status %d: %s", e.URL, e.StatusCode, e.Body)
}

// NotFound reports whether the upstream answered 404.
func (e *StatusError) NotFound() bool { return e.StatusCode == http.StatusNotFound }

// DoGet issues a GET request with the given headers. On success the caller
// owns the returned body and must close it. Non-2xx responses are returned as
// *StatusError with the first bytes of the body for context.
func DoGet(ctx context.Context, url string, headers map[string]string) (io.ReadCloser, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := HTTPClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("GET %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, resp.StatusCode, &StatusError{URL: url, StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	return resp.Body, resp.StatusCode, nil
}
