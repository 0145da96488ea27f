// Package litellm exposes a LiteLLM proxy as MCP tools: the OpenAI and
// Anthropic compatible endpoints through their SDKs, and the proxy's own
// management endpoints over REST.
package litellm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go/v3"
	openaiopt "github.com/openai/openai-go/v3/option"

	"github.com/freitascorp/platform-mcp/pkg/config"
	"github.com/freitascorp/platform-mcp/pkg/platform"
)

const Platform = "LiteLLM"

// Client talks to one LiteLLM proxy.
type Client struct {
	api       *platform.Client
	openai    openai.Client
	anthropic anthropic.Client
}

// New builds the REST client and both SDK clients against cfg.BaseURL.
// The SDKs never retry, matching the REST side.
func New(cfg config.LiteLLM, opts ...platform.Option) *Client {
	o := platform.Options{
		Platform:     Platform,
		BaseURL:      cfg.BaseURL,
		MessagePaths: []string{"message", "error.message", "detail"},
	}.Apply(opts...)

	api := platform.NewClient(o)
	api.Resty().SetAuthToken(cfg.APIKey)

	base := strings.TrimRight(o.BaseURL, "/")
	oaiOpts := []openaiopt.RequestOption{
		openaiopt.WithBaseURL(base + "/v1/"),
		openaiopt.WithAPIKey(cfg.APIKey),
		openaiopt.WithMaxRetries(0),
	}
	antOpts := []anthropicopt.RequestOption{
		anthropicopt.WithBaseURL(base + "/"),
		anthropicopt.WithAPIKey(cfg.APIKey),
		anthropicopt.WithMaxRetries(0),
	}
	if o.HTTPClient != nil {
		oaiOpts = append(oaiOpts, openaiopt.WithHTTPClient(o.HTTPClient))
		antOpts = append(antOpts, anthropicopt.WithHTTPClient(o.HTTPClient))
	}
	if o.Timeout > 0 {
		oaiOpts = append(oaiOpts, openaiopt.WithRequestTimeout(o.Timeout))
		antOpts = append(antOpts, anthropicopt.WithRequestTimeout(o.Timeout))
	}

	return &Client{
		api:       api,
		openai:    openai.NewClient(oaiOpts...),
		anthropic: anthropic.NewClient(antOpts...),
	}
}

// sdkError converts SDK failures into the HTTPError shape so they are
// translated exactly like REST failures.
func (c *Client) sdkError(err error) error {
	var oe *openai.Error
	if errors.As(err, &oe) {
		return c.api.Translate(statusError(oe.StatusCode, oe.RawJSON(), oe.Request))
	}
	var ae *anthropic.Error
	if errors.As(err, &ae) {
		return c.api.Translate(statusError(ae.StatusCode, ae.RawJSON(), ae.Request))
	}
	return c.api.Translate(&platform.HTTPError{Err: err})
}

func statusError(code int, body string, req *http.Request) *platform.HTTPError {
	he := &platform.HTTPError{
		StatusCode: code,
		Status:     fmt.Sprintf("%d %s", code, http.StatusText(code)),
		Body:       []byte(body),
	}
	if req != nil {
		he.Method = req.Method
		he.URL = req.URL.String()
	}
	return he
}
