// Package github exposes the GitHub REST API (repositories, contents,
// issues, pull requests and search) as MCP tools.
package github

import (
	"context"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/freitascorp/platform-mcp/pkg/config"
	"github.com/freitascorp/platform-mcp/pkg/platform"
)

const (
	Platform   = "GitHub"
	apiVersion = "2022-11-28"
)

// Client talks to api.github.com or a GitHub Enterprise API root.
type Client struct {
	api *platform.Client
}

// New builds a client whose transport adds the token as a bearer
// credential. A caller supplied HTTP client becomes the base transport.
func New(cfg config.GitHub, opts ...platform.Option) *Client {
	o := platform.Options{
		Platform: Platform,
		BaseURL:  cfg.APIURL,
		Headers: map[string]string{
			"Accept":               "application/vnd.github+json",
			"X-GitHub-Api-Version": apiVersion,
		},
		MessagePaths: []string{"message"},
	}.Apply(opts...)

	base := o.HTTPClient
	if base == nil {
		base = &http.Client{}
	}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	o.HTTPClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))

	return &Client{api: platform.NewClient(o)}
}

func repoParams(owner, repo string) map[string]string {
	return map[string]string{"owner": owner, "repo": repo}
}

// defaultBranch returns the repository default branch name.
func (c *Client) defaultBranch(ctx context.Context, owner, repo string) (string, error) {
	body, err := c.api.Get(ctx, "/repos/{owner}/{repo}", repoParams(owner, repo), nil)
	if err != nil {
		return "", err
	}
	branch := gjson.GetBytes(body, "default_branch").String()
	if branch == "" {
		return "", c.api.Errorf("repository %s/%s has no default branch", owner, repo)
	}
	return branch, nil
}

// branchSHA resolves the commit a branch points at.
func (c *Client) branchSHA(ctx context.Context, owner, repo, branch string) (string, error) {
	body, err := c.api.Do(ctx, platform.Request{
		Method:        http.MethodGet,
		Path:          "/repos/{owner}/{repo}/git/ref/heads/{branch}",
		PathParams:    repoParams(owner, repo),
		RawPathParams: map[string]string{"branch": platform.EscapePath(branch)},
	})
	if err != nil {
		return "", err
	}
	sha := gjson.GetBytes(body, "object.sha").String()
	if sha == "" {
		return "", c.api.Errorf("branch %q not found in %s/%s", branch, owner, repo)
	}
	return sha, nil
}

func trimRef(branch string) string {
	return strings.TrimPrefix(branch, "refs/heads/")
}
