// Package gcloud exposes read-mostly Google Cloud operations (projects,
// storage, compute, logging, Cloud Run, GKE and Pub/Sub) as MCP tools.
package gcloud

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/freitascorp/platform-mcp/pkg/config"
	"github.com/freitascorp/platform-mcp/pkg/platform"
)

const (
	Platform   = "Google Cloud"
	cloudScope = "https://www.googleapis.com/auth/cloud-platform"
)

// Client calls the Google Cloud REST APIs of several services through one
// authenticated HTTP client.
type Client struct {
	api      *platform.Client
	project  string
	endpoint string
}

// New resolves credentials once: the configured access token, or
// Application Default Credentials when none is set. Failing to find any
// credentials is an error.
func New(ctx context.Context, cfg config.GoogleCloud, opts ...platform.Option) (*Client, error) {
	var src oauth2.TokenSource
	if cfg.AccessToken != "" {
		src = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken})
	} else {
		ts, err := google.DefaultTokenSource(ctx, cloudScope)
		if err != nil {
			return nil, fmt.Errorf("gcloud: no GOOGLE_ACCESS_TOKEN and no application default credentials: %w", err)
		}
		src = ts
	}

	o := platform.Options{
		Platform:     Platform,
		BaseURL:      cfg.Endpoint,
		MessagePaths: []string{"message", "error.message"},
	}.Apply(opts...)

	base := o.HTTPClient
	if base == nil {
		base = &http.Client{}
	}
	o.HTTPClient = oauth2.NewClient(context.WithValue(context.Background(), oauth2.HTTPClient, base), src)

	return &Client{
		api:      platform.NewClient(o),
		project:  cfg.Project,
		endpoint: strings.TrimRight(o.BaseURL, "/"),
	}, nil
}

// url returns the absolute URL of path on service, honouring the endpoint
// override.
func (c *Client) url(service, path string) string {
	if c.endpoint != "" {
		return c.endpoint + path
	}
	return "https://" + service + ".googleapis.com" + path
}

// projectOr returns p, or the configured default project when p is empty.
func (c *Client) projectOr(p string) string {
	if p != "" {
		return p
	}
	return c.project
}
