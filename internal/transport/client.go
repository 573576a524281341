package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"routekit/pkg/endpoint"
)

// ErrUnexpectedStatus matches every *StatusError.
var ErrUnexpectedStatus = errors.New("unexpected status code")

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.StatusCode)
}

// Is reports whether target is ErrUnexpectedStatus.
func (e *StatusError) Is(target error) bool {
	return target == ErrUnexpectedStatus
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode  int
	Header      http.Header
	Body        []byte
	Duration    time.Duration
	RequestID   string
	URL         string
	RequestBody []byte
}

// Client sends endpoint requests built by a RequestBuilder.
type Client struct {
	http    *http.Client
	builder *RequestBuilder
}

// New creates a new transport client.
func New(builder *RequestBuilder, timeout time.Duration) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		builder: builder,
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// Do builds and sends the request for r. A non-2xx response is returned
// together with a *StatusError.
func (c *Client) Do(ctx context.Context, r Request, headers map[string]string) (*Response, error) {
	req, err := c.builder.Build(ctx, r, headers)
	if err != nil {
		return nil, err
	}

	var reqBody []byte
	if req.GetBody != nil {
		if rc, err := req.GetBody(); err == nil {
			reqBody, _ = io.ReadAll(rc)
			rc.Close()
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	out := &Response{
		StatusCode:  resp.StatusCode,
		Header:      resp.Header,
		Body:        body,
		Duration:    time.Since(start),
		RequestID:   req.Header.Get(RequestIDHeader),
		URL:         req.URL.String(),
		RequestBody: reqBody,
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return out, nil
}

// Retryable reports whether a failed attempt may succeed when repeated.
// Request building errors and 4xx responses other than 429 are final.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, endpoint.ErrUnresolvedRouteParam) || errors.Is(err, endpoint.ErrInvalidParameter) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}
	return true
}
