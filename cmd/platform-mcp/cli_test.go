package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/freitascorp/platform-mcp/pkg/audit"
	"github.com/freitascorp/platform-mcp/pkg/config"
	"github.com/freitascorp/platform-mcp/pkg/mcp"
	"github.com/freitascorp/platform-mcp/pkg/platform/platformtest"
	"github.com/freitascorp/platform-mcp/pkg/tools"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func specFor(t *testing.T, use string) serverSpec {
	t.Helper()
	for _, s := range servers() {
		if s.Use == use {
			return s
		}
	}
	t.Fatalf("no server %q", use)
	return serverSpec{}
}

func TestToolsCommandNeedsNoCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "/nonexistent/creds.json")

	want := map[string]int{
		"azure-devops": 21,
		"github":       17,
		"figma":        13,
		"sonarqube":    10,
		"gcloud":       9,
		"litellm":      8,
	}
	for use, count := range want {
		t.Run(use, func(t *testing.T) {
			out, err := execute(t, use, "tools")
			require.NoError(t, err)

			var defs []tools.Definition
			require.NoError(t, json.Unmarshal([]byte(out), &defs))
			assert.Len(t, defs, count)
			for _, d := range defs {
				assert.NotEmpty(t, d.Description, d.Name)
				assert.Equal(t, "object", d.InputSchema["type"], d.Name)
			}
		})
	}
}

func TestToolsCommandYAML(t *testing.T) {
	out, err := execute(t, "figma", "tools", "--format", "yaml")
	require.NoError(t, err)

	var defs []map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &defs))
	require.NotEmpty(t, defs)
	assert.Equal(t, "get_me", defs[0]["name"])

	_, err = execute(t, "figma", "tools", "--format", "xml")
	assert.ErrorContains(t, err, "unknown --format")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "platform-mcp dev")
}

func newTestCmd(in string) (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader(in))
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetContext(context.Background())
	return cmd, &out
}

func TestRunServerConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		use     string
		environ map[string]string
		want    string
	}{
		{name: "missing token", use: "github", environ: map[string]string{}, want: "GITHUB_TOKEN"},
		{name: "empty pat", use: "azure-devops", environ: map[string]string{
			"AZURE_DEVOPS_ORG_URL": "https://dev.azure.com/acme", "AZURE_DEVOPS_PAT": "",
		}, want: "AZURE_DEVOPS_PAT"},
		{name: "bad transport", use: "figma", environ: map[string]string{
			"FIGMA_ACCESS_TOKEN": "x", "MCP_TRANSPORT": "grpc",
		}, want: "MCP_TRANSPORT"},
		{name: "bad log level", use: "sonarqube", environ: map[string]string{
			"SONARQUBE_URL": "http://localhost:9000", "MCP_LOG_LEVEL": "loud",
		}, want: "MCP_LOG_LEVEL"},
		{name: "unknown audit backend", use: "sonarqube", environ: map[string]string{
			"SONARQUBE_URL": "http://localhost:9000", "AUDIT_BACKEND": "kafka",
		}, want: "unknown audit backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, out := newTestCmd("")
			err := runServer(cmd, specFor(t, tt.use), tt.environ)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Empty(t, out.String())
		})
	}
}

func TestLiteLLMDefaultsToHTTP(t *testing.T) {
	spec := specFor(t, "litellm")

	cfg, err := config.LoadServer(map[string]string{}, spec.Defaults)
	require.NoError(t, err)
	assert.Equal(t, config.TransportHTTP, cfg.Transport)
	assert.Equal(t, 3000, cfg.Port)

	cfg, err = config.LoadServer(map[string]string{"MCP_TRANSPORT": "stdio"}, spec.Defaults)
	require.NoError(t, err)
	assert.Equal(t, config.TransportStdio, cfg.Transport)
}

func TestStdioSessionWithAudit(t *testing.T) {
	sonar := platformtest.NewServer(t)
	sonar.JSON(http.MethodGet, "/api/system/status", http.StatusOK, map[string]any{"status": "UP", "version": "10.4"})

	auditDir := t.TempDir()
	environ := map[string]string{
		"SONARQUBE_URL": sonar.URL,
		"AUDIT_BACKEND": "file",
		"AUDIT_DIR":     auditDir,
	}
	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"get_system_status","arguments":{}}}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"get_issues","arguments":{}}}`,
	}, "\n") + "\n"

	cmd, out := newTestCmd(in)
	require.NoError(t, runServer(cmd, specFor(t, "sonarqube"), environ))

	var responses []mcp.Response
	sc := bufio.NewScanner(out)
	for sc.Scan() {
		var r mcp.Response
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		responses = append(responses, r)
	}
	require.Len(t, responses, 3)

	assert.Nil(t, responses[0].Error)
	info := responses[0].Result.(map[string]any)["serverInfo"].(map[string]any)
	assert.Equal(t, "sonarqube-mcp", info["name"])

	assert.Nil(t, responses[1].Error)
	content := responses[1].Result.(map[string]any)["content"].([]any)
	assert.Contains(t, content[0].(map[string]any)["text"], `"UP"`)

	require.NotNil(t, responses[2].Error)
	assert.Equal(t, mcp.ErrInvalidParams, responses[2].Error.Code)

	store, err := audit.NewFileStore(auditDir)
	require.NoError(t, err)
	defer store.Close()
	events, err := store.Query(context.Background(), audit.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "get_system_status", events[0].Action)
	assert.Equal(t, audit.StatusSuccess, events[0].Result.Status)
	assert.Equal(t, audit.StatusRejected, events[1].Result.Status)
	assert.Equal(t, "sonarqube-mcp", events[0].User)

	t.Setenv("AUDIT_BACKEND", "file")
	t.Setenv("AUDIT_DIR", auditDir)
	listed, err := execute(t, "audit", "list", "--status", "rejected", "--json")
	require.NoError(t, err)
	var rejected []audit.Event
	require.NoError(t, json.Unmarshal([]byte(listed), &rejected))
	require.Len(t, rejected, 1)
	assert.Equal(t, "get_issues", rejected[0].Action)
}

func TestAuditDisabled(t *testing.T) {
	t.Setenv("AUDIT_BACKEND", "none")
	_, err := execute(t, "audit", "export")
	assert.ErrorContains(t, err, "audit log is disabled")
}
