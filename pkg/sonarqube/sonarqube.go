// Package sonarqube exposes the SonarQube Web API (projects, issues,
// measures, quality gates, hotspots and rules) as MCP tools.
package sonarqube

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/freitascorp/platform-mcp/pkg/config"
	"github.com/freitascorp/platform-mcp/pkg/platform"
	"github.com/freitascorp/platform-mcp/pkg/tools"
)

const Platform = "SonarQube"

// Client talks to one SonarQube server. Without a token every request is
// anonymous and access is decided by the server.
type Client struct {
	api *platform.Client
}

func New(cfg config.SonarQube, opts ...platform.Option) *Client {
	o := platform.Options{
		Platform:     Platform,
		BaseURL:      cfg.URL,
		MessagePaths: []string{"message", "errors.0.msg"},
	}.Apply(opts...)

	api := platform.NewClient(o)
	if cfg.Token != "" {
		api.Resty().SetBasicAuth(cfg.Token, "")
	}
	return &Client{api: api}
}

type listProjectsArgs struct {
	Query    string `json:"query,omitempty" jsonschema:"Filter on project name or key"`
	Page     int    `json:"page,omitempty" jsonschema:"Page number, starting at 1"`
	PageSize int    `json:"pageSize,omitempty" jsonschema:"Page size (max 500)"`
}

type issuesArgs struct {
	ProjectKey string `json:"project_key" jsonschema:"Project key"`
	Severities string `json:"severities,omitempty" jsonschema:"Comma-separated severities, e.g. BLOCKER,CRITICAL"`
	Types      string `json:"types,omitempty" jsonschema:"Comma-separated types: CODE_SMELL, BUG, VULNERABILITY"`
	Statuses   string `json:"statuses,omitempty" jsonschema:"Comma-separated statuses, e.g. OPEN,CONFIRMED"`
	Page       int    `json:"page,omitempty" jsonschema:"Page number, starting at 1"`
	PageSize   int    `json:"pageSize,omitempty" jsonschema:"Page size (max 500)"`
}

type measuresArgs struct {
	ProjectKey string   `json:"project_key" jsonschema:"Project key"`
	MetricKeys []string `json:"metric_keys" jsonschema:"Metric keys, e.g. coverage, bugs, ncloc"`
}

type projectKeyArgs struct {
	ProjectKey string `json:"project_key" jsonschema:"Project key"`
}

type hotspotsArgs struct {
	ProjectKey string `json:"project_key" jsonschema:"Project key"`
	Status     string `json:"status,omitempty" jsonschema:"Hotspot status"`
}

type pageArgs struct {
	Page     int `json:"page,omitempty" jsonschema:"Page number, starting at 1"`
	PageSize int `json:"pageSize,omitempty" jsonschema:"Page size (max 500)"`
}

type sourceArgs struct {
	ComponentKey string `json:"component_key" jsonschema:"File component key"`
	From         int    `json:"from,omitempty" jsonschema:"First line (1-based)"`
	To           int    `json:"to,omitempty" jsonschema:"Last line"`
}

type rulesArgs struct {
	Query     string `json:"query,omitempty" jsonschema:"Text to search in rule names"`
	Languages string `json:"languages,omitempty" jsonschema:"Comma-separated language keys"`
	Page      int    `json:"page,omitempty" jsonschema:"Page number, starting at 1"`
	PageSize  int    `json:"pageSize,omitempty" jsonschema:"Page size (max 500)"`
}

var paging = tools.Defaults(map[string]any{"page": 1, "pageSize": 100})

// Tools returns the SonarQube tool catalog.
func (c *Client) Tools() []tools.Tool {
	return []tools.Tool{
		tools.New("list_projects", "List projects", c.listProjects, paging),
		tools.New("get_issues", "Search issues of a project", c.getIssues, paging),
		tools.New("get_measures", "Get metric values of a project", c.getMeasures),
		tools.New("get_quality_gate_status", "Get the quality gate status of a project", c.getQualityGateStatus),
		tools.New("list_quality_gates", "List quality gates", c.listQualityGates),
		tools.New("get_hotspots", "Search security hotspots of a project", c.getHotspots,
			tools.Enum("status", "TO_REVIEW", "REVIEWED"),
		),
		tools.New("list_metrics", "List metric definitions", c.listMetrics, paging),
		tools.New("get_source_lines", "Get source lines of a file component", c.getSourceLines),
		tools.New("search_rules", "Search coding rules", c.searchRules, paging),
		tools.New("get_system_status", "Get server status and version", c.getSystemStatus),
	}
}

// paged adds SonarQube's p/ps paging parameters.
func paged(q url.Values, page, size int) url.Values {
	if page > 0 {
		q.Set("p", strconv.Itoa(page))
	}
	if size > 0 {
		q.Set("ps", strconv.Itoa(min(size, 500)))
	}
	return q
}

func (c *Client) listProjects(ctx context.Context, a listProjectsArgs) (any, error) {
	return c.api.Get(ctx, "/api/projects/search", nil, paged(platform.Query("q", a.Query), a.Page, a.PageSize))
}

func (c *Client) getIssues(ctx context.Context, a issuesArgs) (any, error) {
	q := platform.Query(
		"componentKeys", a.ProjectKey,
		"severities", a.Severities,
		"types", a.Types,
		"statuses", a.Statuses,
	)
	return c.api.Get(ctx, "/api/issues/search", nil, paged(q, a.Page, a.PageSize))
}

func (c *Client) getMeasures(ctx context.Context, a measuresArgs) (any, error) {
	q := platform.Query("component", a.ProjectKey, "metricKeys", strings.Join(a.MetricKeys, ","))
	return c.api.Get(ctx, "/api/measures/component", nil, q)
}

func (c *Client) getQualityGateStatus(ctx context.Context, a projectKeyArgs) (any, error) {
	return c.api.Get(ctx, "/api/qualitygates/project_status", nil, platform.Query("projectKey", a.ProjectKey))
}

func (c *Client) listQualityGates(ctx context.Context, _ tools.NoArgs) (any, error) {
	return c.api.Get(ctx, "/api/qualitygates/list", nil, nil)
}

func (c *Client) getHotspots(ctx context.Context, a hotspotsArgs) (any, error) {
	return c.api.Get(ctx, "/api/hotspots/search", nil, platform.Query("projectKey", a.ProjectKey, "status", a.Status))
}

func (c *Client) listMetrics(ctx context.Context, a pageArgs) (any, error) {
	return c.api.Get(ctx, "/api/metrics/search", nil, paged(url.Values{}, a.Page, a.PageSize))
}

func (c *Client) getSourceLines(ctx context.Context, a sourceArgs) (any, error) {
	q := platform.Query("key", a.ComponentKey)
	if a.From > 0 {
		q.Set("from", strconv.Itoa(a.From))
	}
	if a.To > 0 {
		q.Set("to", strconv.Itoa(a.To))
	}
	return c.api.Get(ctx, "/api/sources/lines", nil, q)
}

func (c *Client) searchRules(ctx context.Context, a rulesArgs) (any, error) {
	q := platform.Query("q", a.Query, "languages", a.Languages)
	return c.api.Get(ctx, "/api/rules/search", nil, paged(q, a.Page, a.PageSize))
}

func (c *Client) getSystemStatus(ctx context.Context, _ tools.NoArgs) (any, error) {
	return c.api.Get(ctx, "/api/system/status", nil, nil)
}
