package gcloud

import (
	"context"
	"strconv"

	"github.com/freitascorp/platform-mcp/pkg/platform"
	"github.com/freitascorp/platform-mcp/pkg/tools"
)

type projectArgs struct {
	Project string `json:"project,omitempty" jsonschema:"Project ID (defaults to the configured project)"`
}

type listObjectsArgs struct {
	Bucket     string `json:"bucket" jsonschema:"Bucket name"`
	Prefix     string `json:"prefix,omitempty" jsonschema:"Only objects whose name starts with prefix"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"Maximum number of objects"`
}

type objectArgs struct {
	Bucket string `json:"bucket" jsonschema:"Bucket name"`
	Object string `json:"object" jsonschema:"Object name"`
}

type instancesArgs struct {
	Zone    string `json:"zone" jsonschema:"Zone, e.g. europe-west1-b"`
	Project string `json:"project,omitempty" jsonschema:"Project ID (defaults to the configured project)"`
}

type logEntriesArgs struct {
	Filter   string `json:"filter,omitempty" jsonschema:"Logging query language filter"`
	PageSize int    `json:"page_size,omitempty" jsonschema:"Maximum number of entries"`
	OrderBy  string `json:"order_by,omitempty" jsonschema:"Sort order"`
	Project  string `json:"project,omitempty" jsonschema:"Project ID (defaults to the configured project)"`
}

type runServicesArgs struct {
	Region  string `json:"region" jsonschema:"Region, e.g. europe-west1"`
	Project string `json:"project,omitempty" jsonschema:"Project ID (defaults to the configured project)"`
}

type clustersArgs struct {
	Location string `json:"location,omitempty" jsonschema:"Zone or region; - for all"`
	Project  string `json:"project,omitempty" jsonschema:"Project ID (defaults to the configured project)"`
}

// Tools returns the Google Cloud tool catalog.
func (c *Client) Tools() []tools.Tool {
	return []tools.Tool{
		tools.New("list_projects", "List projects visible to the credentials", c.listProjects),
		tools.New("list_buckets", "List Cloud Storage buckets", c.listBuckets),
		tools.New("list_objects", "List objects in a bucket", c.listObjects),
		tools.New("get_object_metadata", "Get metadata of an object", c.getObjectMetadata),
		tools.New("list_instances", "List Compute Engine instances in a zone", c.listInstances),
		tools.New("list_log_entries", "Read Cloud Logging entries", c.listLogEntries,
			tools.Enum("order_by", "timestamp desc", "timestamp asc"),
			tools.Defaults(map[string]any{"page_size": 50, "order_by": "timestamp desc"}),
		),
		tools.New("list_cloud_run_services", "List Cloud Run services in a region", c.listCloudRunServices),
		tools.New("list_gke_clusters", "List GKE clusters", c.listGKEClusters,
			tools.Default("location", "-"),
		),
		tools.New("list_pubsub_topics", "List Pub/Sub topics", c.listPubSubTopics),
	}
}

func (c *Client) listProjects(ctx context.Context, _ tools.NoArgs) (any, error) {
	return c.api.Get(ctx, c.url("cloudresourcemanager", "/v1/projects"), nil, nil)
}

func (c *Client) listBuckets(ctx context.Context, a projectArgs) (any, error) {
	return c.api.Get(ctx, c.url("storage", "/storage/v1/b"), nil, platform.Query("project", c.projectOr(a.Project)))
}

func (c *Client) listObjects(ctx context.Context, a listObjectsArgs) (any, error) {
	q := platform.Query("prefix", a.Prefix)
	if a.MaxResults > 0 {
		q.Set("maxResults", strconv.Itoa(a.MaxResults))
	}
	return c.api.Get(ctx, c.url("storage", "/storage/v1/b/{bucket}/o"), map[string]string{"bucket": a.Bucket}, q)
}

// getObjectMetadata escapes the object name as a single segment, slashes
// included.
func (c *Client) getObjectMetadata(ctx context.Context, a objectArgs) (any, error) {
	params := map[string]string{"bucket": a.Bucket, "object": a.Object}
	return c.api.Get(ctx, c.url("storage", "/storage/v1/b/{bucket}/o/{object}"), params, nil)
}

func (c *Client) listInstances(ctx context.Context, a instancesArgs) (any, error) {
	params := map[string]string{"project": c.projectOr(a.Project), "zone": a.Zone}
	return c.api.Get(ctx, c.url("compute", "/compute/v1/projects/{project}/zones/{zone}/instances"), params, nil)
}

func (c *Client) listLogEntries(ctx context.Context, a logEntriesArgs) (any, error) {
	body := map[string]any{
		"resourceNames": []string{"projects/" + c.projectOr(a.Project)},
		"orderBy":       a.OrderBy,
		"pageSize":      a.PageSize,
	}
	if a.Filter != "" {
		body["filter"] = a.Filter
	}
	return c.api.Post(ctx, c.url("logging", "/v2/entries:list"), nil, nil, body)
}

func (c *Client) listCloudRunServices(ctx context.Context, a runServicesArgs) (any, error) {
	params := map[string]string{"project": c.projectOr(a.Project), "region": a.Region}
	return c.api.Get(ctx, c.url("run", "/v2/projects/{project}/locations/{region}/services"), params, nil)
}

func (c *Client) listGKEClusters(ctx context.Context, a clustersArgs) (any, error) {
	params := map[string]string{"project": c.projectOr(a.Project), "location": a.Location}
	return c.api.Get(ctx, c.url("container", "/v1/projects/{project}/locations/{location}/clusters"), params, nil)
}

func (c *Client) listPubSubTopics(ctx context.Context, a projectArgs) (any, error) {
	return c.api.Get(ctx, c.url("pubsub", "/v1/projects/{project}/topics"), map[string]string{"project": c.projectOr(a.Project)}, nil)
}
