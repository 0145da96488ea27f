// Package figma exposes the Figma REST API (files, images, comments and
// team libraries) as MCP tools.
package figma

import (
	"context"
	"strconv"
	"strings"

	"github.com/freitascorp/platform-mcp/pkg/config"
	"github.com/freitascorp/platform-mcp/pkg/platform"
	"github.com/freitascorp/platform-mcp/pkg/tools"
)

const Platform = "Figma"

// Client talks to the Figma API with a personal access token.
type Client struct {
	api *platform.Client
}

func New(cfg config.Figma, opts ...platform.Option) *Client {
	o := platform.Options{
		Platform:     Platform,
		BaseURL:      cfg.APIURL,
		Headers:      map[string]string{"X-Figma-Token": cfg.AccessToken},
		MessagePaths: []string{"message", "err"},
	}.Apply(opts...)
	return &Client{api: platform.NewClient(o)}
}

type fileKeyArgs struct {
	FileKey string `json:"file_key" jsonschema:"File key from the Figma file URL"`
}

type getFileArgs struct {
	FileKey string `json:"file_key" jsonschema:"File key from the Figma file URL"`
	Depth   int    `json:"depth,omitempty" jsonschema:"How deep into the document tree to traverse"`
}

type nodesArgs struct {
	FileKey string   `json:"file_key" jsonschema:"File key from the Figma file URL"`
	IDs     []string `json:"ids" jsonschema:"Node IDs"`
}

type imagesArgs struct {
	FileKey string   `json:"file_key" jsonschema:"File key from the Figma file URL"`
	IDs     []string `json:"ids" jsonschema:"Node IDs"`
	Format  string   `json:"format,omitempty" jsonschema:"Image format"`
	Scale   float64  `json:"scale,omitempty" jsonschema:"Scale factor between 0.01 and 4"`
}

type postCommentArgs struct {
	FileKey string `json:"file_key" jsonschema:"File key from the Figma file URL"`
	Message string `json:"message" jsonschema:"Comment text"`
}

type teamArgs struct {
	TeamID string `json:"team_id" jsonschema:"Team ID"`
}

type projectArgs struct {
	ProjectID string `json:"project_id" jsonschema:"Project ID"`
}

type searchFilesArgs struct {
	ProjectID string `json:"project_id" jsonschema:"Project ID"`
	Query     string `json:"query" jsonschema:"Case-insensitive substring of the file name or description"`
	Page      int    `json:"page,omitempty" jsonschema:"Page number, starting at 1"`
	PerPage   int    `json:"perPage,omitempty" jsonschema:"Results per page (max 100)"`
}

// Tools returns the Figma tool catalog.
func (c *Client) Tools() []tools.Tool {
	return []tools.Tool{
		tools.New("get_me", "Get the authenticated user", c.getMe),
		tools.New("get_file", "Get a file document tree", c.getFile),
		tools.New("get_file_nodes", "Get specific nodes of a file", c.getFileNodes),
		tools.New("get_images", "Render nodes as images", c.getImages,
			tools.Enum("format", "png", "jpg", "svg", "pdf"),
			tools.Default("format", "png"),
		),
		tools.New("get_image_fills", "Get download links for images used as fills", c.getImageFills),
		tools.New("get_file_versions", "List the version history of a file", c.getFileVersions),
		tools.New("get_comments", "List comments on a file", c.getComments),
		tools.New("post_comment", "Post a comment on a file", c.postComment),
		tools.New("list_team_projects", "List projects of a team", c.listTeamProjects),
		tools.New("list_project_files", "List files in a project", c.listProjectFiles),
		tools.New("search_project_files", "Search files in a project by name or description (filters the full listing client-side)", c.searchProjectFiles,
			tools.Defaults(map[string]any{"page": 1, "perPage": platform.DefaultPerPage}),
		),
		tools.New("get_team_components", "List published components of a team", c.getTeamComponents),
		tools.New("get_team_styles", "List published styles of a team", c.getTeamStyles),
	}
}

func fileParams(key string) map[string]string {
	return map[string]string{"key": key}
}

func (c *Client) getMe(ctx context.Context, _ tools.NoArgs) (any, error) {
	return c.api.Get(ctx, "/me", nil, nil)
}

func (c *Client) getFile(ctx context.Context, a getFileArgs) (any, error) {
	q := platform.Query()
	if a.Depth > 0 {
		q.Set("depth", strconv.Itoa(a.Depth))
	}
	return c.api.Get(ctx, "/files/{key}", fileParams(a.FileKey), q)
}

func (c *Client) getFileNodes(ctx context.Context, a nodesArgs) (any, error) {
	return c.api.Get(ctx, "/files/{key}/nodes", fileParams(a.FileKey), platform.Query("ids", strings.Join(a.IDs, ",")))
}

func (c *Client) getImages(ctx context.Context, a imagesArgs) (any, error) {
	q := platform.Query("ids", strings.Join(a.IDs, ","), "format", a.Format)
	if a.Scale > 0 {
		q.Set("scale", strconv.FormatFloat(a.Scale, 'f', -1, 64))
	}
	return c.api.Get(ctx, "/images/{key}", fileParams(a.FileKey), q)
}

func (c *Client) getImageFills(ctx context.Context, a fileKeyArgs) (any, error) {
	return c.api.Get(ctx, "/files/{key}/images", fileParams(a.FileKey), nil)
}

func (c *Client) getFileVersions(ctx context.Context, a fileKeyArgs) (any, error) {
	return c.api.Get(ctx, "/files/{key}/versions", fileParams(a.FileKey), nil)
}

func (c *Client) getComments(ctx context.Context, a fileKeyArgs) (any, error) {
	return c.api.Get(ctx, "/files/{key}/comments", fileParams(a.FileKey), nil)
}

func (c *Client) postComment(ctx context.Context, a postCommentArgs) (any, error) {
	return c.api.Post(ctx, "/files/{key}/comments", fileParams(a.FileKey), nil, map[string]string{"message": a.Message})
}

func (c *Client) listTeamProjects(ctx context.Context, a teamArgs) (any, error) {
	return c.api.Get(ctx, "/teams/{id}/projects", map[string]string{"id": a.TeamID}, nil)
}

func (c *Client) listProjectFiles(ctx context.Context, a projectArgs) (any, error) {
	return c.api.Get(ctx, "/projects/{id}/files", map[string]string{"id": a.ProjectID}, nil)
}

// searchProjectFiles has no server-side counterpart: the whole project
// listing is fetched, filtered by name or description and then paginated.
func (c *Client) searchProjectFiles(ctx context.Context, a searchFilesArgs) (any, error) {
	body, err := c.api.Get(ctx, "/projects/{id}/files", map[string]string{"id": a.ProjectID}, nil)
	if err != nil {
		return nil, err
	}
	matches := platform.FilterByText(platform.Items(body, "files"), a.Query, "name", "description")
	return platform.Paginate(matches, a.Page, a.PerPage), nil
}

func (c *Client) getTeamComponents(ctx context.Context, a teamArgs) (any, error) {
	return c.api.Get(ctx, "/teams/{id}/components", map[string]string{"id": a.TeamID}, nil)
}

func (c *Client) getTeamStyles(ctx context.Context, a teamArgs) (any, error) {
	return c.api.Get(ctx, "/teams/{id}/styles", map[string]string{"id": a.TeamID}, nil)
}
