// Package httpclient provides the resty-backed HTTP client shared by fetchers and publishers.
package httpclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Response is the subset of an HTTP response callers need.
type Response interface {
	StatusCode() int
	Body() []byte
}

// Client performs HTTP requests with per-call headers.
type Client interface {
	Get(ctx context.Context, url string, headers map[string]string) (Response, error)
	Do(ctx context.Context, method, url string, headers map[string]string, body []byte) (Response, error)
}

type restyClient struct {
	rc *resty.Client
}

// NewRestyClient returns a Client with the given request timeout.
func NewRestyClient(timeout time.Duration) Client {
	rc := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &restyClient{rc: rc}
}

// NewFromResty wraps an already configured resty client.
func NewFromResty(rc *resty.Client) Client {
	if rc == nil {
		rc = resty.New()
	}
	return &restyClient{rc: rc}
}

// Get issues a GET request.
func (c *restyClient) Get(ctx context.Context, url string, headers map[string]string) (Response, error) {
	return c.Do(ctx, "GET", url, headers, nil)
}

// Do issues a request with an optional body. Non-2xx statuses are not errors;
// callers inspect StatusCode.
func (c *restyClient) Do(ctx context.Context, method, url string, headers map[string]string, body []byte) (Response, error) {
	req := c.rc.R().SetContext(ctx).SetHeaders(headers)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, url)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	return resp, nil
}
