package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freitascorp/platform-mcp/pkg/platform"
)

type branchArgs struct {
	Project string   `json:"project" jsonschema:"Project"`
	Repo    string   `json:"repo" jsonschema:"Repository"`
	Top     int      `json:"top,omitempty" jsonschema:"Max results"`
	Draft   bool     `json:"draft,omitempty" jsonschema:"Draft only"`
	Status  string   `json:"status,omitempty" jsonschema:"State"`
	Labels  []string `json:"labels,omitempty" jsonschema:"Labels"`
}

func newBranchTool(handler func(context.Context, branchArgs) (any, error)) *Typed[branchArgs] {
	return New("list_branches", "List branches", handler,
		Enum("status", "active", "completed"),
		Defaults(map[string]any{"top": 50, "status": "active"}),
	)
}

func TestRegistryExecute(t *testing.T) {
	var got branchArgs
	reg := NewToolRegistry()
	reg.Register(newBranchTool(func(_ context.Context, a branchArgs) (any, error) {
		got = a
		return json.RawMessage(`{"b":1,"a":[1,2]}`), nil
	}))

	res, err := reg.Execute(context.Background(), "list_branches", map[string]any{
		"project": "P",
		"repo":    "R",
		"top":     "10",
		"draft":   "true",
		"labels":  []any{"x", "y"},
		"extra":   "dropped",
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "{\n  \"b\": 1,\n  \"a\": [\n    1,\n    2\n  ]\n}", res.ForLLM)
	assert.Equal(t, branchArgs{Project: "P", Repo: "R", Top: 10, Draft: true, Status: "active", Labels: []string{"x", "y"}}, got)
}

func TestRegistryValidationCollectsEveryViolation(t *testing.T) {
	calls := 0
	reg := NewToolRegistry()
	reg.Register(newBranchTool(func(context.Context, branchArgs) (any, error) {
		calls++
		return nil, nil
	}))

	_, err := reg.Execute(context.Background(), "list_branches", map[string]any{
		"top":    1.5,
		"status": "merged",
		"draft":  "maybe",
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"project", "repo"}, verr.Required)
	assert.Equal(t, []string{"project", "repo"}, verr.Missing)
	assert.Len(t, verr.Invalid, 3)
	assert.Contains(t, verr.Error(), "missing required parameters: project, repo")
	assert.Zero(t, calls)
}

func TestRegistryUnknownTool(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(newBranchTool(nil))

	for _, name := range []string{"", "list_branch", "LIST_BRANCHES", "list_branches "} {
		_, err := reg.Execute(context.Background(), name, map[string]any{"project": "P", "repo": "R"})
		assert.ErrorIs(t, err, ErrToolNotFound, name)
	}
}

func TestRegistryErrorKinds(t *testing.T) {
	boom := errors.New("unexpected shape")
	reg := NewToolRegistry()
	reg.Register(
		New("platform_fail", "", func(context.Context, NoArgs) (any, error) {
			return nil, platform.Translator{Platform: "GitHub"}.Translate(&platform.HTTPError{
				StatusCode: 404,
				Body:       []byte(`{"message":"not found"}`),
			})
		}),
		New("fatal", "", func(context.Context, NoArgs) (any, error) {
			return nil, boom
		}),
	)

	res, err := reg.Execute(context.Background(), "platform_fail", nil)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "GitHub API error: not found", res.Text())

	res, err = reg.Execute(context.Background(), "fatal", nil)
	assert.Nil(t, res)
	assert.Same(t, boom, err)
}

func TestRegistryDuplicatePanics(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(newBranchTool(nil))
	assert.Panics(t, func() { reg.Register(newBranchTool(nil)) })
}

func TestDefinitionsKeepOrder(t *testing.T) {
	reg := NewToolRegistry()
	noop := func(context.Context, NoArgs) (any, error) { return nil, nil }
	reg.Register(New("zeta", "z", noop), New("alpha", "a", noop), newBranchTool(nil))

	defs := reg.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "zeta", defs[0].Name)
	assert.Equal(t, "alpha", defs[1].Name)
	assert.Equal(t, "list_branches", defs[2].Name)
	assert.Equal(t, []string{"project", "repo"}, defs[2].InputSchema["required"])
	assert.Equal(t, []string{}, defs[0].InputSchema["required"])

	props := defs[2].InputSchema["properties"].(map[string]any)
	status := props["status"].(map[string]any)
	assert.Equal(t, []any{"active", "completed"}, status["enum"])
	assert.Equal(t, "active", status["default"])
	assert.Equal(t, 3, reg.Count())
}

func TestFormat(t *testing.T) {
	raw := json.RawMessage(`{"z":1,"a":{"k":"v"}}`)
	first, err := Format(raw)
	require.NoError(t, err)
	second, err := Format(json.RawMessage(`{"z":1,"a":{"k":"v"}}`))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Less(t, indexOf(first, `"z"`), indexOf(first, `"a"`))

	text, err := Format([]byte("plain text body"))
	require.NoError(t, err)
	assert.Equal(t, "plain text body", text)

	text, err = Format(map[string]int{"n": 1})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"n\": 1\n}", text)

	text, err = Format(nil)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestSchemaInferredFromArguments(t *testing.T) {
	tool := newBranchTool(nil)
	schema := tool.Parameters()

	assert.Equal(t, TypeObject, schema["type"])
	props := schema["properties"].(map[string]any)
	require.Len(t, props, 6)

	project := props["project"].(map[string]any)
	assert.Equal(t, TypeString, project["type"])
	assert.Equal(t, "Project", project["description"])

	top := props["top"].(map[string]any)
	assert.Equal(t, TypeInteger, top["type"])
	assert.Equal(t, float64(50), top["default"])

	labels := props["labels"].(map[string]any)
	assert.Equal(t, TypeArray, labels["type"])
	assert.Equal(t, TypeString, labels["items"].(map[string]any)["type"])
}

func TestNoArgsSchema(t *testing.T) {
	tool := New("ping", "", func(context.Context, NoArgs) (any, error) { return nil, nil })
	schema := tool.Parameters()
	assert.Equal(t, TypeObject, schema["type"])
	assert.Empty(t, schema["properties"])
	assert.Equal(t, []string{}, schema["required"])

	_, err := tool.Prepare(map[string]any{"ignored": 1})
	assert.NoError(t, err)
}

func TestOptionForUnknownArgumentPanics(t *testing.T) {
	assert.Panics(t, func() {
		New("bad", "", func(context.Context, branchArgs) (any, error) { return nil, nil },
			Enum("state", "open"))
	})
}

func TestValidateCoercesArrayItems(t *testing.T) {
	var got branchArgs
	tool := newBranchTool(func(_ context.Context, a branchArgs) (any, error) {
		got = a
		return nil, nil
	})

	call, err := tool.Prepare(map[string]any{"project": "P", "repo": "R", "labels": []any{"a", 2.0}})
	require.NoError(t, err)
	_, err = call(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "2"}, got.Labels)

	_, err = tool.Prepare(map[string]any{"project": "P", "repo": "R", "labels": "a"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Invalid, 1)
	assert.Contains(t, verr.Invalid[0], "labels")
}
