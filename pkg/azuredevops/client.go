// Package azuredevops exposes Azure DevOps Services (repos, pull requests,
// work items and pipelines) as MCP tools.
package azuredevops

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/freitascorp/platform-mcp/pkg/config"
	"github.com/freitascorp/platform-mcp/pkg/platform"
)

const (
	Platform = "Azure DevOps"
	// zeroObjectID is the old object id of a ref that does not exist yet.
	zeroObjectID = "0000000000000000000000000000000000000000"
)

// Client talks to one Azure DevOps organization.
type Client struct {
	api *platform.Client
}

// New builds a client authenticated with a personal access token (Basic
// auth, empty user). api-version is sent on every call.
func New(cfg config.AzureDevOps, opts ...platform.Option) *Client {
	o := platform.Options{
		Platform:     Platform,
		BaseURL:      cfg.OrgURL,
		MessagePaths: []string{"message"},
	}.Apply(opts...)

	api := platform.NewClient(o)
	api.Resty().
		SetBasicAuth("", cfg.PAT).
		SetQueryParam("api-version", cfg.APIVersion)
	return &Client{api: api}
}

func repoPath(suffix string) string {
	return "/{project}/_apis/git/repositories/{repo}" + suffix
}

func repoParams(project, repo string) map[string]string {
	return map[string]string{"project": project, "repo": repo}
}

// defaultBranch reads the repository default branch, without refs/heads/.
func (c *Client) defaultBranch(ctx context.Context, project, repo string) (string, error) {
	body, err := c.api.Get(ctx, repoPath(""), repoParams(project, repo), nil)
	if err != nil {
		return "", err
	}
	ref := gjson.GetBytes(body, "defaultBranch").String()
	if ref == "" {
		return "", c.api.Errorf("repository %s has no default branch", repo)
	}
	return strings.TrimPrefix(ref, "refs/heads/"), nil
}

// branchHead resolves the latest commit id of a branch.
func (c *Client) branchHead(ctx context.Context, project, repo, branch string) (string, error) {
	body, err := c.api.Get(ctx, repoPath("/refs"), repoParams(project, repo), platform.Query("filter", "heads/"+branch))
	if err != nil {
		return "", err
	}
	want := "refs/heads/" + branch
	for _, ref := range gjson.GetBytes(body, "value").Array() {
		if ref.Get("name").String() == want {
			if id := ref.Get("objectId").String(); id != "" {
				return id, nil
			}
		}
	}
	return "", c.api.Errorf("branch %q not found in repository %s", branch, repo)
}

// push commits a single file change on top of the branch head.
func (c *Client) push(ctx context.Context, project, repo, branch, path, content, message, changeType string) (json.RawMessage, error) {
	head, err := c.branchHead(ctx, project, repo, branch)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	body := map[string]any{
		"refUpdates": []map[string]any{{
			"name":        "refs/heads/" + branch,
			"oldObjectId": head,
		}},
		"commits": []map[string]any{{
			"comment": message,
			"changes": []map[string]any{{
				"changeType": changeType,
				"item":       map[string]any{"path": path},
				"newContent": map[string]any{"content": content, "contentType": "rawtext"},
			}},
		}},
	}
	return c.api.Post(ctx, repoPath("/pushes"), repoParams(project, repo), nil, body)
}

func refName(branch string) string {
	if strings.HasPrefix(branch, "refs/") {
		return branch
	}
	return "refs/heads/" + branch
}

func fieldPatch(field string, value any) map[string]any {
	return map[string]any{"op": "add", "path": fmt.Sprintf("/fields/%s", field), "value": value}
}
