// Package transport is the JSON-over-HTTP client shared by the outbound
// provider integrations.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	obstracing "github.com/smallbiznis/incomeengine/internal/observability/tracing"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultAttempts = 3
	maxErrorBody    = 2048
	maxRawBody      = 4 << 20
)

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

func WithAttempts(n uint) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.attempts = n
		}
	}
}

func WithInitialInterval(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.initialInterval = d
		}
	}
}

type Client struct {
	http            *http.Client
	attempts        uint
	initialInterval time.Duration
}

func New(opts ...Option) *Client {
	c := &Client{
		http:            obstracing.WrapHTTPClient(&http.Client{Timeout: defaultTimeout}),
		attempts:        defaultAttempts,
		initialInterval: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Request describes one call. Body is JSON encoded unless RawBody is set.
type Request struct {
	Method  string
	URL     string
	Header  http.Header
	Body    any
	RawBody []byte
	// NoRetry sends the request exactly once. Set it on calls that are not
	// safe to repeat.
	NoRetry bool
}

// Do sends req and decodes a JSON response into out when out is non-nil.
// A *[]byte out receives the raw body instead.
// Network errors, 429 and 5xx responses are retried with exponential backoff
// unless req.NoRetry is set.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	var payload []byte
	switch {
	case req.RawBody != nil:
		payload = req.RawBody
	case req.Body != nil:
		b, err := json.Marshal(req.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("encode request: %w", err))
		}
		payload = b
	}

	tries := c.attempts
	if req.NoRetry {
		tries = 1
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initialInterval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, c.once(ctx, req, payload, out)
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(tries))
	return err
}

func (c *Client) once(ctx context.Context, req Request, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return backoff.Permanent(err)
	}
	for k, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(k, v)
		}
	}
	if payload != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return backoff.Permanent(err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
		if statusErr.Retryable() {
			return statusErr
		}
		return backoff.Permanent(statusErr)
	}

	switch dst := out.(type) {
	case nil:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	case *[]byte:
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxRawBody))
		if err != nil {
			return err
		}
		*dst = b
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}
