package github

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/freitascorp/platform-mcp/pkg/platform"
	"github.com/freitascorp/platform-mcp/pkg/tools"
)

type searchArgs struct {
	Query   string `json:"query" jsonschema:"GitHub search query"`
	Page    int    `json:"page,omitempty" jsonschema:"Page number, starting at 1"`
	PerPage int    `json:"perPage,omitempty" jsonschema:"Results per page (max 100)"`
}

type repoArgs struct {
	Owner string `json:"owner" jsonschema:"Repository owner (user or organization)"`
	Repo  string `json:"repo" jsonschema:"Repository name"`
}

type listArgs struct {
	Owner   string `json:"owner" jsonschema:"Repository owner (user or organization)"`
	Repo    string `json:"repo" jsonschema:"Repository name"`
	Page    int    `json:"page,omitempty" jsonschema:"Page number, starting at 1"`
	PerPage int    `json:"perPage,omitempty" jsonschema:"Results per page (max 100)"`
}

type createBranchArgs struct {
	Owner      string `json:"owner" jsonschema:"Repository owner (user or organization)"`
	Repo       string `json:"repo" jsonschema:"Repository name"`
	Branch     string `json:"branch" jsonschema:"New branch name"`
	FromBranch string `json:"from_branch,omitempty" jsonschema:"Source branch (defaults to the repository default branch)"`
}

type fileArgs struct {
	Owner  string `json:"owner" jsonschema:"Repository owner (user or organization)"`
	Repo   string `json:"repo" jsonschema:"Repository name"`
	Path   string `json:"path" jsonschema:"Path in the repository"`
	Branch string `json:"branch,omitempty" jsonschema:"Branch, tag or commit (defaults to the default branch)"`
}

type writeFileArgs struct {
	Owner   string `json:"owner" jsonschema:"Repository owner (user or organization)"`
	Repo    string `json:"repo" jsonschema:"Repository name"`
	Path    string `json:"path" jsonschema:"Path in the repository"`
	Content string `json:"content" jsonschema:"Full file content (plain text)"`
	Message string `json:"message" jsonschema:"Commit message"`
	Branch  string `json:"branch" jsonschema:"Branch to commit to"`
	SHA     string `json:"sha,omitempty" jsonschema:"Blob SHA of the file being replaced (required for updates)"`
}

type commitsArgs struct {
	Owner   string `json:"owner" jsonschema:"Repository owner (user or organization)"`
	Repo    string `json:"repo" jsonschema:"Repository name"`
	SHA     string `json:"sha,omitempty" jsonschema:"Branch name or commit SHA to start from"`
	Page    int    `json:"page,omitempty" jsonschema:"Page number, starting at 1"`
	PerPage int    `json:"perPage,omitempty" jsonschema:"Results per page (max 100)"`
}

type listIssuesArgs struct {
	Owner   string `json:"owner" jsonschema:"Repository owner (user or organization)"`
	Repo    string `json:"repo" jsonschema:"Repository name"`
	State   string `json:"state,omitempty" jsonschema:"Issue state"`
	Labels  string `json:"labels,omitempty" jsonschema:"Comma-separated label names"`
	Page    int    `json:"page,omitempty" jsonschema:"Page number, starting at 1"`
	PerPage int    `json:"perPage,omitempty" jsonschema:"Results per page (max 100)"`
}

type issueArgs struct {
	Owner       string `json:"owner" jsonschema:"Repository owner (user or organization)"`
	Repo        string `json:"repo" jsonschema:"Repository name"`
	IssueNumber int    `json:"issue_number" jsonschema:"Issue number"`
}

type createIssueArgs struct {
	Owner     string   `json:"owner" jsonschema:"Repository owner (user or organization)"`
	Repo      string   `json:"repo" jsonschema:"Repository name"`
	Title     string   `json:"title" jsonschema:"Issue title"`
	Body      string   `json:"body,omitempty" jsonschema:"Issue body (Markdown)"`
	Labels    []string `json:"labels,omitempty" jsonschema:"Labels to apply"`
	Assignees []string `json:"assignees,omitempty" jsonschema:"Logins to assign"`
}

type issueCommentArgs struct {
	Owner       string `json:"owner" jsonschema:"Repository owner (user or organization)"`
	Repo        string `json:"repo" jsonschema:"Repository name"`
	IssueNumber int    `json:"issue_number" jsonschema:"Issue number"`
	Body        string `json:"body" jsonschema:"Comment body (Markdown)"`
}

type listPRArgs struct {
	Owner   string `json:"owner" jsonschema:"Repository owner (user or organization)"`
	Repo    string `json:"repo" jsonschema:"Repository name"`
	State   string `json:"state,omitempty" jsonschema:"Pull request state"`
	Page    int    `json:"page,omitempty" jsonschema:"Page number, starting at 1"`
	PerPage int    `json:"perPage,omitempty" jsonschema:"Results per page (max 100)"`
}

type prArgs struct {
	Owner      string `json:"owner" jsonschema:"Repository owner (user or organization)"`
	Repo       string `json:"repo" jsonschema:"Repository name"`
	PullNumber int    `json:"pull_number" jsonschema:"Pull request number"`
}

type createPRArgs struct {
	Owner string `json:"owner" jsonschema:"Repository owner (user or organization)"`
	Repo  string `json:"repo" jsonschema:"Repository name"`
	Title string `json:"title" jsonschema:"Title"`
	Head  string `json:"head" jsonschema:"Branch containing the changes"`
	Base  string `json:"base" jsonschema:"Branch to merge into"`
	Body  string `json:"body,omitempty" jsonschema:"Description (Markdown)"`
	Draft bool   `json:"draft,omitempty" jsonschema:"Open as draft"`
}

type mergePRArgs struct {
	Owner       string `json:"owner" jsonschema:"Repository owner (user or organization)"`
	Repo        string `json:"repo" jsonschema:"Repository name"`
	PullNumber  int    `json:"pull_number" jsonschema:"Pull request number"`
	MergeMethod string `json:"merge_method,omitempty" jsonschema:"Merge method"`
	CommitTitle string `json:"commit_title,omitempty" jsonschema:"Title of the merge commit"`
}

// paging is shared by every listing and search tool.
var paging = tools.Defaults(map[string]any{"page": 1, "perPage": 30})

// Tools returns the GitHub tool catalog.
func (c *Client) Tools() []tools.Tool {
	return []tools.Tool{
		tools.New("search_repositories", "Search repositories", c.searchRepositories, paging),
		tools.New("get_repository", "Get repository details", c.getRepository),
		tools.New("list_branches", "List branches of a repository", c.listBranches, paging),
		tools.New("create_branch", "Create a branch from from_branch, or from the default branch when omitted", c.createBranch),
		tools.New("get_file_contents", "Get a file or directory listing", c.getFileContents),
		tools.New("create_or_update_file", "Create or update a single file with a commit", c.createOrUpdateFile),
		tools.New("list_commits", "List commits of a repository", c.listCommits, paging),
		tools.New("list_issues", "List issues of a repository", c.listIssues,
			paging,
			tools.Enum("state", "open", "closed", "all"),
			tools.Default("state", "open"),
		),
		tools.New("get_issue", "Get an issue", c.getIssue),
		tools.New("create_issue", "Create an issue", c.createIssue),
		tools.New("add_issue_comment", "Comment on an issue or pull request", c.addIssueComment),
		tools.New("list_pull_requests", "List pull requests of a repository", c.listPullRequests,
			paging,
			tools.Enum("state", "open", "closed", "all"),
			tools.Default("state", "open"),
		),
		tools.New("get_pull_request", "Get a pull request", c.getPullRequest),
		tools.New("create_pull_request", "Open a pull request", c.createPullRequest,
			tools.Default("draft", false),
		),
		tools.New("merge_pull_request", "Merge a pull request", c.mergePullRequest,
			tools.Enum("merge_method", "merge", "squash", "rebase"),
			tools.Default("merge_method", "merge"),
		),
		tools.New("search_code", "Search code across repositories", c.searchCode, paging),
		tools.New("search_issues", "Search issues and pull requests", c.searchIssues, paging),
	}
}

func pageQuery(page, perPage int, kv ...string) url.Values {
	q := platform.Query(kv...)
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if perPage > 0 {
		q.Set("per_page", strconv.Itoa(min(perPage, platform.MaxPerPage)))
	}
	return q
}

func (c *Client) search(ctx context.Context, kind string, a searchArgs) (any, error) {
	return c.api.Get(ctx, "/search/"+kind, nil, pageQuery(a.Page, a.PerPage, "q", a.Query))
}

func (c *Client) searchRepositories(ctx context.Context, a searchArgs) (any, error) {
	return c.search(ctx, "repositories", a)
}

func (c *Client) searchCode(ctx context.Context, a searchArgs) (any, error) {
	return c.search(ctx, "code", a)
}

func (c *Client) searchIssues(ctx context.Context, a searchArgs) (any, error) {
	return c.search(ctx, "issues", a)
}

func (c *Client) getRepository(ctx context.Context, a repoArgs) (any, error) {
	return c.api.Get(ctx, "/repos/{owner}/{repo}", repoParams(a.Owner, a.Repo), nil)
}

func (c *Client) listBranches(ctx context.Context, a listArgs) (any, error) {
	return c.api.Get(ctx, "/repos/{owner}/{repo}/branches", repoParams(a.Owner, a.Repo), pageQuery(a.Page, a.PerPage))
}

func (c *Client) createBranch(ctx context.Context, a createBranchArgs) (any, error) {
	from := trimRef(a.FromBranch)
	if from == "" {
		def, err := c.defaultBranch(ctx, a.Owner, a.Repo)
		if err != nil {
			return nil, err
		}
		from = def
	}
	sha, err := c.branchSHA(ctx, a.Owner, a.Repo, from)
	if err != nil {
		return nil, err
	}
	body := map[string]string{"ref": "refs/heads/" + trimRef(a.Branch), "sha": sha}
	return c.api.Post(ctx, "/repos/{owner}/{repo}/git/refs", repoParams(a.Owner, a.Repo), nil, body)
}

func contentsRequest(method string, owner, repo, path string) platform.Request {
	return platform.Request{
		Method:        method,
		Path:          "/repos/{owner}/{repo}/contents/{path}",
		PathParams:    repoParams(owner, repo),
		RawPathParams: map[string]string{"path": platform.EscapePath(path)},
	}
}

func (c *Client) getFileContents(ctx context.Context, a fileArgs) (any, error) {
	req := contentsRequest(http.MethodGet, a.Owner, a.Repo, a.Path)
	req.Query = platform.Query("ref", a.Branch)
	return c.api.Do(ctx, req)
}

func (c *Client) createOrUpdateFile(ctx context.Context, a writeFileArgs) (any, error) {
	req := contentsRequest(http.MethodPut, a.Owner, a.Repo, a.Path)
	body := map[string]string{
		"message": a.Message,
		"content": base64.StdEncoding.EncodeToString([]byte(a.Content)),
		"branch":  trimRef(a.Branch),
	}
	if a.SHA != "" {
		body["sha"] = a.SHA
	}
	req.Body = body
	return c.api.Do(ctx, req)
}

func (c *Client) listCommits(ctx context.Context, a commitsArgs) (any, error) {
	return c.api.Get(ctx, "/repos/{owner}/{repo}/commits", repoParams(a.Owner, a.Repo), pageQuery(a.Page, a.PerPage, "sha", a.SHA))
}

func (c *Client) listIssues(ctx context.Context, a listIssuesArgs) (any, error) {
	return c.api.Get(ctx, "/repos/{owner}/{repo}/issues", repoParams(a.Owner, a.Repo),
		pageQuery(a.Page, a.PerPage, "state", a.State, "labels", a.Labels))
}

func issueParams(owner, repo string, number int) map[string]string {
	p := repoParams(owner, repo)
	p["number"] = strconv.Itoa(number)
	return p
}

func (c *Client) getIssue(ctx context.Context, a issueArgs) (any, error) {
	return c.api.Get(ctx, "/repos/{owner}/{repo}/issues/{number}", issueParams(a.Owner, a.Repo, a.IssueNumber), nil)
}

func (c *Client) createIssue(ctx context.Context, a createIssueArgs) (any, error) {
	body := map[string]any{"title": a.Title}
	if a.Body != "" {
		body["body"] = a.Body
	}
	if len(a.Labels) > 0 {
		body["labels"] = a.Labels
	}
	if len(a.Assignees) > 0 {
		body["assignees"] = a.Assignees
	}
	return c.api.Post(ctx, "/repos/{owner}/{repo}/issues", repoParams(a.Owner, a.Repo), nil, body)
}

func (c *Client) addIssueComment(ctx context.Context, a issueCommentArgs) (any, error) {
	return c.api.Post(ctx, "/repos/{owner}/{repo}/issues/{number}/comments",
		issueParams(a.Owner, a.Repo, a.IssueNumber), nil, map[string]string{"body": a.Body})
}

func (c *Client) listPullRequests(ctx context.Context, a listPRArgs) (any, error) {
	return c.api.Get(ctx, "/repos/{owner}/{repo}/pulls", repoParams(a.Owner, a.Repo),
		pageQuery(a.Page, a.PerPage, "state", a.State))
}

func (c *Client) getPullRequest(ctx context.Context, a prArgs) (any, error) {
	return c.api.Get(ctx, "/repos/{owner}/{repo}/pulls/{number}", issueParams(a.Owner, a.Repo, a.PullNumber), nil)
}

func (c *Client) createPullRequest(ctx context.Context, a createPRArgs) (any, error) {
	body := map[string]any{
		"title": a.Title,
		"head":  trimRef(a.Head),
		"base":  trimRef(a.Base),
		"draft": a.Draft,
	}
	if a.Body != "" {
		body["body"] = a.Body
	}
	return c.api.Post(ctx, "/repos/{owner}/{repo}/pulls", repoParams(a.Owner, a.Repo), nil, body)
}

func (c *Client) mergePullRequest(ctx context.Context, a mergePRArgs) (any, error) {
	body := map[string]string{"merge_method": strings.ToLower(a.MergeMethod)}
	if a.CommitTitle != "" {
		body["commit_title"] = a.CommitTitle
	}
	return c.api.Do(ctx, platform.Request{
		Method:     http.MethodPut,
		Path:       "/repos/{owner}/{repo}/pulls/{number}/merge",
		PathParams: issueParams(a.Owner, a.Repo, a.PullNumber),
		Body:       body,
	})
}
