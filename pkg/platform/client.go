// platform-mcp - MCP servers for developer platforms
// License: MIT
//
// Copyright (c) 2026 DevOpsClaw contributors

// Package platform is the shared outbound side of every server: a resty
// client bound to one platform's base URL and credentials, and the error
// translator that turns platform failures into tool error results.
package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/freitascorp/platform-mcp/pkg/logger"
)

// Options configures a Client.
type Options struct {
	Platform     string
	BaseURL      string
	Headers      map[string]string
	MessagePaths []string
	// HTTPClient, when set, carries authentication (e.g. an oauth2 transport).
	HTTPClient *http.Client
	// Timeout of zero leaves the HTTP client default in place.
	Timeout time.Duration
}

// Option adjusts Options before a platform builds its Client.
type Option func(*Options)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Options) { o.HTTPClient = c }
}

// WithTimeout bounds every outbound request.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) { o.Timeout = d }
}

// WithBaseURL points the client at another host, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(o *Options) { o.BaseURL = u }
}

// Apply runs opts over o and returns it.
func (o Options) Apply(opts ...Option) Options {
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Client issues requests against one platform. It never retries.
type Client struct {
	Translator
	http *resty.Client
}

// NewClient builds a Client. Authentication that is not carried by
// opts.HTTPClient is configured through Resty().
func NewClient(opts Options) *Client {
	var rc *resty.Client
	if opts.HTTPClient != nil {
		rc = resty.NewWithClient(opts.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetBaseURL(strings.TrimRight(opts.BaseURL, "/"))
	rc.SetHeader("Accept", "application/json")
	rc.SetHeader("User-Agent", "platform-mcp")
	rc.SetHeaders(opts.Headers)
	rc.SetRetryCount(0)
	if opts.Timeout > 0 {
		rc.SetTimeout(opts.Timeout)
	}

	component := strings.ToLower(strings.ReplaceAll(opts.Platform, " ", ""))
	rc.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		logger.DebugCF(component, "HTTP request", map[string]any{
			"method":   resp.Request.Method,
			"url":      resp.Request.URL,
			"status":   resp.StatusCode(),
			"duration": resp.Time().String(),
		})
		return nil
	})

	return &Client{
		Translator: Translator{Platform: opts.Platform, MessagePaths: opts.MessagePaths},
		http:       rc,
	}
}

// Resty exposes the underlying client for platform-specific auth setup.
func (c *Client) Resty() *resty.Client { return c.http }

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string { return c.http.BaseURL }

// Request describes one outbound call. Path may contain {name} placeholders
// filled from PathParams (escaped) or RawPathParams (used verbatim).
// An absolute Path bypasses the base URL.
type Request struct {
	Method        string
	Path          string
	PathParams    map[string]string
	RawPathParams map[string]string
	Query         url.Values
	Body          any
	ContentType   string
}

// Do performs the request and returns the response body unmodified.
// Failures come back already translated.
func (c *Client) Do(ctx context.Context, req Request) (json.RawMessage, error) {
	r := c.http.R().SetContext(ctx)
	if len(req.PathParams) > 0 {
		r.SetPathParams(req.PathParams)
	}
	if len(req.RawPathParams) > 0 {
		r.SetRawPathParams(req.RawPathParams)
	}
	if len(req.Query) > 0 {
		r.SetQueryParamsFromValues(req.Query)
	}
	if req.ContentType != "" {
		r.SetHeader("Content-Type", req.ContentType)
	}
	if req.Body != nil {
		r.SetBody(req.Body)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	resp, err := r.Execute(method, req.Path)
	if err != nil {
		return nil, c.Translate(&HTTPError{Method: method, URL: req.Path, Err: err})
	}
	if resp.IsError() {
		return nil, c.Translate(&HTTPError{
			Method:     method,
			URL:        resp.Request.URL,
			StatusCode: resp.StatusCode(),
			Status:     resp.Status(),
			Body:       resp.Body(),
		})
	}

	body := resp.Body()
	if len(body) == 0 {
		return json.RawMessage(fmt.Sprintf(`{"status":%d}`, resp.StatusCode())), nil
	}
	return json.RawMessage(body), nil
}

// Get is Do for a GET without a body.
func (c *Client) Get(ctx context.Context, path string, pathParams map[string]string, query url.Values) (json.RawMessage, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, PathParams: pathParams, Query: query})
}

// Post is Do for a JSON POST.
func (c *Client) Post(ctx context.Context, path string, pathParams map[string]string, query url.Values, body any) (json.RawMessage, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, PathParams: pathParams, Query: query, Body: body})
}

// Query builds url.Values from key/value pairs, skipping empty values.
func Query(kv ...string) url.Values {
	q := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] != "" {
			q.Set(kv[i], kv[i+1])
		}
	}
	return q
}

// EscapePath escapes each segment of a slash-separated path, keeping the
// slashes, for use in RawPathParams.
func EscapePath(p string) string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range parts {
		parts[i] = url.PathEscape(s)
	}
	return strings.Join(parts, "/")
}
