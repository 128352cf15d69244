// Package routing contains the HTTP clients for the external geospatial
// services: geocoding, route geometry and the vehicle-routing solver.
// Transient failures (network errors, 5xx) are retried with exponential
// backoff; client errors are not.
package routing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config tunes the shared HTTP behavior of the routing clients.
type Config struct {
	GeocoderURL string
	RouterURL   string
	SolverURL   string

	Timeout    time.Duration
	MaxRetries uint64
}

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 2
)

type httpClient struct {
	client     *http.Client
	maxRetries uint64
}

func newHTTPClient(cfg Config) httpClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = defaultMaxRetries
	}
	return httpClient{
		client:     &http.Client{Timeout: timeout},
		maxRetries: retries,
	}
}

// permanentError marks responses that must not be retried.
type permanentError struct {
	status int
	body   string
}

func (e *permanentError) Error() string {
	return fmt.Sprintf("request rejected with status %d: %s", e.status, e.body)
}

// StatusCode returns the HTTP status the server answered with.
func (e *permanentError) StatusCode() int {
	return e.status
}

// do performs the request with retries and decodes the JSON response into
// out. The request body is re-marshaled per attempt so retries never reuse
// a consumed reader.
func (c httpClient) do(ctx context.Context, method, url string, in, out any) error {
	operation := func() error {
		var body io.Reader
		if in != nil {
			payload, err := json.Marshal(in)
			if err != nil {
				return backoff.Permanent(err)
			}
			body = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return backoff.Permanent(err)
		}
		if in != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("server error %d: %s", resp.StatusCode, raw)
		}
		if resp.StatusCode >= http.StatusBadRequest {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return backoff.Permanent(&permanentError{status: resp.StatusCode, body: string(raw)})
		}

		if out == nil {
			return nil
		}
		if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	return backoff.Retry(operation, policy)
}
