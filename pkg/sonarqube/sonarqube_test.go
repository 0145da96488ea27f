package sonarqube

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freitascorp/platform-mcp/pkg/config"
	"github.com/freitascorp/platform-mcp/pkg/platform/platformtest"
	"github.com/freitascorp/platform-mcp/pkg/tools"
	"github.com/freitascorp/platform-mcp/pkg/tools/toolstest"
)

func newTestRegistry(t *testing.T, token string) (*tools.ToolRegistry, *platformtest.Server) {
	t.Helper()
	srv := platformtest.NewServer(t)
	c := New(config.SonarQube{URL: srv.URL, Token: token})
	reg := tools.NewToolRegistry()
	reg.Register(c.Tools()...)
	return reg, srv
}

func TestCatalog(t *testing.T) {
	srv := platformtest.NewServer(t)
	c := New(config.SonarQube{URL: srv.URL})
	toolstest.CheckCatalog(t, c.Tools(), srv.CallCount)
}

func TestAuthentication(t *testing.T) {
	tests := []struct {
		name  string
		token string
		auth  bool
	}{
		{name: "token as basic user", token: "squ_abc", auth: true},
		{name: "anonymous without token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, srv := newTestRegistry(t, tt.token)
			srv.JSON(http.MethodGet, "/api/system/status", http.StatusOK, map[string]any{"status": "UP"})

			res, err := reg.Execute(context.Background(), "get_system_status", nil)
			require.NoError(t, err)
			require.False(t, res.IsError, res.Text())

			user, pass, ok := (&http.Request{Header: srv.Calls()[0].Header}).BasicAuth()
			assert.Equal(t, tt.auth, ok)
			if tt.auth {
				assert.Equal(t, tt.token, user)
				assert.Empty(t, pass)
			}
		})
	}
}

func TestGetIssuesQuery(t *testing.T) {
	reg, srv := newTestRegistry(t, "")
	srv.JSON(http.MethodGet, "/api/issues/search", http.StatusOK, map[string]any{"total": 0, "issues": []any{}})

	res, err := reg.Execute(context.Background(), "get_issues", map[string]any{
		"project_key": "acme:api", "severities": "BLOCKER,CRITICAL", "pageSize": 1000,
	})
	require.NoError(t, err)
	require.False(t, res.IsError, res.Text())

	q := srv.Calls()[0].Query
	assert.Equal(t, []string{"acme:api"}, q["componentKeys"])
	assert.Equal(t, []string{"BLOCKER,CRITICAL"}, q["severities"])
	assert.Equal(t, []string{"1"}, q["p"])
	assert.Equal(t, []string{"500"}, q["ps"])
	_, hasTypes := q["types"]
	assert.False(t, hasTypes)
}

func TestGetMeasuresJoinsMetricKeys(t *testing.T) {
	reg, srv := newTestRegistry(t, "")
	srv.JSON(http.MethodGet, "/api/measures/component", http.StatusOK, map[string]any{"component": map[string]any{}})

	_, err := reg.Execute(context.Background(), "get_measures", map[string]any{
		"project_key": "acme:api", "metric_keys": []any{"coverage", "bugs"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"coverage,bugs"}, srv.Calls()[0].Query["metricKeys"])
}

func TestErrorsArrayTranslated(t *testing.T) {
	reg, srv := newTestRegistry(t, "")
	srv.JSON(http.MethodGet, "/api/qualitygates/project_status", http.StatusNotFound, map[string]any{
		"errors": []any{map[string]any{"msg": "Project 'nope' not found"}},
	})

	res, err := reg.Execute(context.Background(), "get_quality_gate_status", map[string]any{"project_key": "nope"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "SonarQube API error: Project 'nope' not found", res.Text())
}
