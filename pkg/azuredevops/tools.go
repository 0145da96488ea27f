package azuredevops

import (
	"context"
	"net/http"
	"strconv"

	"github.com/freitascorp/platform-mcp/pkg/platform"
	"github.com/freitascorp/platform-mcp/pkg/tools"
)

type projectArgs struct {
	Project string `json:"project" jsonschema:"Project name or ID"`
}

type repoArgs struct {
	Project string `json:"project" jsonschema:"Project name or ID"`
	Repo    string `json:"repo" jsonschema:"Repository name or ID"`
}

type searchReposArgs struct {
	Project string `json:"project" jsonschema:"Project name or ID"`
	Query   string `json:"query" jsonschema:"Case-insensitive substring of the repository name or description"`
	Page    int    `json:"page,omitempty" jsonschema:"Page number, starting at 1"`
	PerPage int    `json:"perPage,omitempty" jsonschema:"Results per page (max 100)"`
}

type createBranchArgs struct {
	Project    string `json:"project" jsonschema:"Project name or ID"`
	Repo       string `json:"repo" jsonschema:"Repository name or ID"`
	Branch     string `json:"branch" jsonschema:"New branch name"`
	FromBranch string `json:"from_branch,omitempty" jsonschema:"Source branch (defaults to the repository default branch)"`
}

type fileArgs struct {
	Project string `json:"project" jsonschema:"Project name or ID"`
	Repo    string `json:"repo" jsonschema:"Repository name or ID"`
	Path    string `json:"path" jsonschema:"File path in the repository"`
	Branch  string `json:"branch,omitempty" jsonschema:"Branch name (defaults to the default branch)"`
}

type writeFileArgs struct {
	Project       string `json:"project" jsonschema:"Project name or ID"`
	Repo          string `json:"repo" jsonschema:"Repository name or ID"`
	Path          string `json:"path" jsonschema:"File path in the repository"`
	Content       string `json:"content" jsonschema:"Full file content"`
	Branch        string `json:"branch" jsonschema:"Branch to commit to"`
	CommitMessage string `json:"commit_message" jsonschema:"Commit message"`
}

type commitsArgs struct {
	Project string `json:"project" jsonschema:"Project name or ID"`
	Repo    string `json:"repo" jsonschema:"Repository name or ID"`
	Branch  string `json:"branch,omitempty" jsonschema:"Branch name"`
	Top     int    `json:"top,omitempty" jsonschema:"Maximum number of commits"`
}

type listPRArgs struct {
	Project string `json:"project" jsonschema:"Project name or ID"`
	Repo    string `json:"repo" jsonschema:"Repository name or ID"`
	Status  string `json:"status,omitempty" jsonschema:"Pull request status"`
}

type prArgs struct {
	Project       string `json:"project" jsonschema:"Project name or ID"`
	Repo          string `json:"repo" jsonschema:"Repository name or ID"`
	PullRequestID int    `json:"pull_request_id" jsonschema:"Pull request ID"`
}

type createPRArgs struct {
	Project      string `json:"project" jsonschema:"Project name or ID"`
	Repo         string `json:"repo" jsonschema:"Repository name or ID"`
	SourceBranch string `json:"source_branch" jsonschema:"Source branch"`
	TargetBranch string `json:"target_branch" jsonschema:"Target branch"`
	Title        string `json:"title" jsonschema:"Title"`
	Description  string `json:"description,omitempty" jsonschema:"Description"`
}

type prCommentArgs struct {
	Project       string `json:"project" jsonschema:"Project name or ID"`
	Repo          string `json:"repo" jsonschema:"Repository name or ID"`
	PullRequestID int    `json:"pull_request_id" jsonschema:"Pull request ID"`
	Content       string `json:"content" jsonschema:"Comment text"`
}

type workItemArgs struct {
	ID int `json:"id" jsonschema:"Work item ID"`
}

type createWorkItemArgs struct {
	Project     string `json:"project" jsonschema:"Project name or ID"`
	Type        string `json:"type" jsonschema:"Work item type, e.g. Bug, Task, User Story"`
	Title       string `json:"title" jsonschema:"Title"`
	Description string `json:"description,omitempty" jsonschema:"Description (HTML)"`
	AssignedTo  string `json:"assigned_to,omitempty" jsonschema:"Assignee display name or email"`
}

type wiqlArgs struct {
	Project string `json:"project" jsonschema:"Project name or ID"`
	WIQL    string `json:"wiql" jsonschema:"WIQL query text"`
}

type pipelineArgs struct {
	Project    string `json:"project" jsonschema:"Project name or ID"`
	PipelineID int    `json:"pipeline_id" jsonschema:"Pipeline ID"`
	Branch     string `json:"branch,omitempty" jsonschema:"Branch to run on"`
}

type pipelineRunArgs struct {
	Project    string `json:"project" jsonschema:"Project name or ID"`
	PipelineID int    `json:"pipeline_id" jsonschema:"Pipeline ID"`
	RunID      int    `json:"run_id" jsonschema:"Run ID"`
}

// Tools returns the Azure DevOps tool catalog.
func (c *Client) Tools() []tools.Tool {
	return []tools.Tool{
		tools.New("list_projects", "List projects in the organization", c.listProjects),
		tools.New("get_project", "Get project details", c.getProject),
		tools.New("list_repositories", "List Git repositories in a project", c.listRepositories),
		tools.New("get_repository", "Get repository details", c.getRepository),
		tools.New("search_repositories", "Search repositories in a project by name or description (filters the full listing client-side)", c.searchRepositories,
			tools.Defaults(map[string]any{"page": 1, "perPage": platform.DefaultPerPage}),
		),
		tools.New("list_branches", "List branches of a repository", c.listBranches),
		tools.New("create_branch", "Create a branch from from_branch, or from the default branch when omitted", c.createBranch),
		tools.New("get_file_content", "Get the content of a file", c.getFileContent),
		tools.New("create_file", "Create a file with a commit on a branch", c.createFile),
		tools.New("update_file", "Update a file with a commit on a branch", c.updateFile),
		tools.New("list_commits", "List commits of a repository", c.listCommits,
			tools.Default("top", 50),
		),
		tools.New("list_pull_requests", "List pull requests of a repository", c.listPullRequests,
			tools.Enum("status", "active", "abandoned", "completed", "all"),
			tools.Default("status", "active"),
		),
		tools.New("get_pull_request", "Get pull request details", c.getPullRequest),
		tools.New("create_pull_request", "Create a pull request", c.createPullRequest),
		tools.New("add_pull_request_comment", "Add a comment thread to a pull request", c.addPullRequestComment),
		tools.New("get_work_item", "Get a work item with all fields and relations", c.getWorkItem),
		tools.New("create_work_item", "Create a work item", c.createWorkItem),
		tools.New("query_work_items", "Run a WIQL query", c.queryWorkItems),
		tools.New("list_pipelines", "List pipelines in a project", c.listPipelines),
		tools.New("run_pipeline", "Queue a pipeline run", c.runPipeline),
		tools.New("get_pipeline_run", "Get a pipeline run", c.getPipelineRun),
	}
}

func (c *Client) listProjects(ctx context.Context, _ tools.NoArgs) (any, error) {
	return c.api.Get(ctx, "/_apis/projects", nil, nil)
}

func (c *Client) getProject(ctx context.Context, a projectArgs) (any, error) {
	return c.api.Get(ctx, "/_apis/projects/{project}", map[string]string{"project": a.Project}, nil)
}

func (c *Client) listRepositories(ctx context.Context, a projectArgs) (any, error) {
	return c.api.Get(ctx, "/{project}/_apis/git/repositories", map[string]string{"project": a.Project}, nil)
}

func (c *Client) getRepository(ctx context.Context, a repoArgs) (any, error) {
	return c.api.Get(ctx, repoPath(""), repoParams(a.Project, a.Repo), nil)
}

// searchRepositories filters the whole listing before paginating, so page
// boundaries refer to matching repositories only.
func (c *Client) searchRepositories(ctx context.Context, a searchReposArgs) (any, error) {
	body, err := c.api.Get(ctx, "/{project}/_apis/git/repositories", map[string]string{"project": a.Project}, nil)
	if err != nil {
		return nil, err
	}
	matches := platform.FilterByText(platform.Items(body, "value"), a.Query, "name", "description")
	return platform.Paginate(matches, a.Page, a.PerPage), nil
}

func (c *Client) listBranches(ctx context.Context, a repoArgs) (any, error) {
	return c.api.Get(ctx, repoPath("/refs"), repoParams(a.Project, a.Repo), platform.Query("filter", "heads/"))
}

// createBranch runs its lookups strictly in sequence; the ref is only
// written once the source commit is known.
func (c *Client) createBranch(ctx context.Context, a createBranchArgs) (any, error) {
	from := a.FromBranch
	if from == "" {
		def, err := c.defaultBranch(ctx, a.Project, a.Repo)
		if err != nil {
			return nil, err
		}
		from = def
	}
	head, err := c.branchHead(ctx, a.Project, a.Repo, from)
	if err != nil {
		return nil, err
	}
	update := []map[string]string{{
		"name":        refName(a.Branch),
		"oldObjectId": zeroObjectID,
		"newObjectId": head,
	}}
	return c.api.Post(ctx, repoPath("/refs"), repoParams(a.Project, a.Repo), nil, update)
}

func (c *Client) getFileContent(ctx context.Context, a fileArgs) (any, error) {
	q := platform.Query("path", a.Path, "includeContent", "true")
	if a.Branch != "" {
		q.Set("versionDescriptor.version", a.Branch)
		q.Set("versionDescriptor.versionType", "branch")
	}
	return c.api.Get(ctx, repoPath("/items"), repoParams(a.Project, a.Repo), q)
}

func (c *Client) createFile(ctx context.Context, a writeFileArgs) (any, error) {
	return c.push(ctx, a.Project, a.Repo, a.Branch, a.Path, a.Content, a.CommitMessage, "add")
}

func (c *Client) updateFile(ctx context.Context, a writeFileArgs) (any, error) {
	return c.push(ctx, a.Project, a.Repo, a.Branch, a.Path, a.Content, a.CommitMessage, "edit")
}

func (c *Client) listCommits(ctx context.Context, a commitsArgs) (any, error) {
	q := platform.Query("searchCriteria.itemVersion.version", a.Branch)
	if a.Top > 0 {
		q.Set("searchCriteria.$top", strconv.Itoa(a.Top))
	}
	return c.api.Get(ctx, repoPath("/commits"), repoParams(a.Project, a.Repo), q)
}

func (c *Client) listPullRequests(ctx context.Context, a listPRArgs) (any, error) {
	return c.api.Get(ctx, repoPath("/pullrequests"), repoParams(a.Project, a.Repo), platform.Query("searchCriteria.status", a.Status))
}

func (c *Client) getPullRequest(ctx context.Context, a prArgs) (any, error) {
	params := repoParams(a.Project, a.Repo)
	params["id"] = strconv.Itoa(a.PullRequestID)
	return c.api.Get(ctx, repoPath("/pullrequests/{id}"), params, nil)
}

func (c *Client) createPullRequest(ctx context.Context, a createPRArgs) (any, error) {
	body := map[string]any{
		"sourceRefName": refName(a.SourceBranch),
		"targetRefName": refName(a.TargetBranch),
		"title":         a.Title,
		"description":   a.Description,
	}
	return c.api.Post(ctx, repoPath("/pullrequests"), repoParams(a.Project, a.Repo), nil, body)
}

func (c *Client) addPullRequestComment(ctx context.Context, a prCommentArgs) (any, error) {
	params := repoParams(a.Project, a.Repo)
	params["id"] = strconv.Itoa(a.PullRequestID)
	body := map[string]any{
		"comments": []map[string]any{{
			"parentCommentId": 0,
			"content":         a.Content,
			"commentType":     1,
		}},
		"status": 1,
	}
	return c.api.Post(ctx, repoPath("/pullrequests/{id}/threads"), params, nil, body)
}

func (c *Client) getWorkItem(ctx context.Context, a workItemArgs) (any, error) {
	return c.api.Get(ctx, "/_apis/wit/workitems/{id}", map[string]string{"id": strconv.Itoa(a.ID)}, platform.Query("$expand", "all"))
}

func (c *Client) createWorkItem(ctx context.Context, a createWorkItemArgs) (any, error) {
	patch := []map[string]any{fieldPatch("System.Title", a.Title)}
	if a.Description != "" {
		patch = append(patch, fieldPatch("System.Description", a.Description))
	}
	if a.AssignedTo != "" {
		patch = append(patch, fieldPatch("System.AssignedTo", a.AssignedTo))
	}
	return c.api.Do(ctx, platform.Request{
		Method:      http.MethodPost,
		Path:        "/{project}/_apis/wit/workitems/${type}",
		PathParams:  map[string]string{"project": a.Project, "type": a.Type},
		Body:        patch,
		ContentType: "application/json-patch+json",
	})
}

func (c *Client) queryWorkItems(ctx context.Context, a wiqlArgs) (any, error) {
	return c.api.Post(ctx, "/{project}/_apis/wit/wiql", map[string]string{"project": a.Project}, nil, map[string]string{"query": a.WIQL})
}

func (c *Client) listPipelines(ctx context.Context, a projectArgs) (any, error) {
	return c.api.Get(ctx, "/{project}/_apis/pipelines", map[string]string{"project": a.Project}, nil)
}

func (c *Client) runPipeline(ctx context.Context, a pipelineArgs) (any, error) {
	body := map[string]any{}
	if a.Branch != "" {
		body["resources"] = map[string]any{
			"repositories": map[string]any{
				"self": map[string]any{"refName": refName(a.Branch)},
			},
		}
	}
	params := map[string]string{"project": a.Project, "id": strconv.Itoa(a.PipelineID)}
	return c.api.Post(ctx, "/{project}/_apis/pipelines/{id}/runs", params, nil, body)
}

func (c *Client) getPipelineRun(ctx context.Context, a pipelineRunArgs) (any, error) {
	params := map[string]string{"project": a.Project, "id": strconv.Itoa(a.PipelineID), "run": strconv.Itoa(a.RunID)}
	return c.api.Get(ctx, "/{project}/_apis/pipelines/{id}/runs/{run}", params, nil)
}
