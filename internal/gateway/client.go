// Package gateway provides REST clients for the upstream storefront backend:
// the invoice resource, the PayPal payment wrapper, and the product catalog.
//
// All clients share one transport with OpenTelemetry instrumentation and
// bearer-token injection. Tokens come from an external session-storage
// collaborator via TokenFunc; a missing token is not validated here, the
// upstream backend rejects unauthenticated calls itself.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// TokenFunc returns the bearer token to attach to an upstream call, or an
// empty string when no session token is available.
type TokenFunc func(ctx context.Context) string

// ClientConfig configures the shared upstream HTTP client.
type ClientConfig struct {
	// BaseURL is the upstream backend root, e.g. "https://api.grocerly.dev".
	BaseURL string
	// Token provides the bearer token per request. Optional.
	Token TokenFunc
	// Timeout bounds each upstream call. Defaults to 10s, matching the
	// mobile client's transport timeout.
	Timeout time.Duration
	// HTTPClient overrides the underlying client, used by tests. When nil, a
	// client with an otelhttp-instrumented transport is built.
	HTTPClient *http.Client
	// TracerProvider and MeterProvider instrument the transport. Global
	// providers are used when nil.
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Client is the shared upstream HTTP plumbing used by the resource clients.
type Client struct {
	base  *url.URL
	http  *http.Client
	token TokenFunc
}

// NewClient validates the base URL and builds the shared client.
func NewClient(cfg ClientConfig) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse base URL")
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("upstream base URL %q must be absolute", cfg.BaseURL)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		var opts []otelhttp.Option
		if cfg.TracerProvider != nil {
			opts = append(opts, otelhttp.WithTracerProvider(cfg.TracerProvider))
		}
		if cfg.MeterProvider != nil {
			opts = append(opts, otelhttp.WithMeterProvider(cfg.MeterProvider))
		}
		hc = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport, opts...),
		}
	}

	return &Client{base: base, http: hc, token: cfg.Token}, nil
}

// do issues one upstream call. A non-nil body is JSON-encoded; a non-nil out
// receives the decoded 2xx response body. Non-2xx responses decode the error
// envelope into an *APIError.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encode request")
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reqBody)
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != nil {
		if token := c.token(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	// Error envelopes can be large only by accident; cap the read.
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrapf(err, "read %s %s response", method, path)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.Wrapf(err, "decode %s %s response", method, path)
	}
	return nil
}
