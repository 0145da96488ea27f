package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freitascorp/platform-mcp/pkg/platform/platformtest"
)

func TestTranslatorKnownShapes(t *testing.T) {
	tr := Translator{Platform: "Figma", MessagePaths: []string{"message", "err"}}

	tests := []struct {
		name string
		in   error
		want string
	}{
		{
			name: "body message",
			in:   &HTTPError{StatusCode: 404, Body: []byte(`{"message":"not found"}`)},
			want: "Figma API error: not found",
		},
		{
			name: "secondary path",
			in:   &HTTPError{StatusCode: 403, Body: []byte(`{"status":403,"err":"Invalid token"}`)},
			want: "Figma API error: Invalid token",
		},
		{
			name: "non json body falls back to status",
			in:   &HTTPError{StatusCode: 502, Status: "502 Bad Gateway", Body: []byte("<html>")},
			want: "Figma API error: request failed with status 502 Bad Gateway",
		},
		{
			name: "transport failure",
			in:   &HTTPError{Err: errors.New("dial tcp: connection refused")},
			want: "Figma API error: dial tcp: connection refused",
		},
		{
			name: "wrapped",
			in:   fmt.Errorf("get file: %w", &HTTPError{StatusCode: 400, Body: []byte(`{"message":"bad key"}`)}),
			want: "Figma API error: bad key",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tr.Translate(tt.in)
			var pe *Error
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.want, pe.Error())
		})
	}
}

func TestTranslatorPassesLocalErrorsThrough(t *testing.T) {
	tr := Translator{Platform: "GitHub"}
	local := tr.Errorf("branch %q not found", "dev")

	got := Translator{Platform: "Other"}.Translate(local)
	assert.Same(t, local, got)
	assert.Equal(t, `GitHub API error: branch "dev" not found`, got.Error())
}

func TestTranslatorLeavesUnknownErrorsAlone(t *testing.T) {
	boom := errors.New("unexpected response shape")
	got := Translator{Platform: "GitHub"}.Translate(boom)
	assert.Same(t, boom, got)

	var pe *Error
	assert.False(t, errors.As(got, &pe))
	assert.NoError(t, Translator{}.Translate(nil))
}

func TestClientDo(t *testing.T) {
	srv := platformtest.NewServer(t)
	srv.JSON(http.MethodGet, "/repos/acme%20co/widgets", http.StatusOK, map[string]any{"name": "widgets"})
	srv.JSON(http.MethodPost, "/items", http.StatusCreated, map[string]any{"id": 7})
	srv.Handle(http.MethodDelete, "/items/7", func(w http.ResponseWriter, _ *http.Request, _ []byte) {
		w.WriteHeader(http.StatusNoContent)
	})
	srv.JSON(http.MethodGet, "/broken", http.StatusNotFound, map[string]any{"message": "not found"})

	c := NewClient(Options{
		Platform: "Test",
		BaseURL:  srv.URL + "/",
		Headers:  map[string]string{"X-Test": "1"},
	})
	ctx := context.Background()

	body, err := c.Get(ctx, "/repos/{owner}/{repo}", map[string]string{"owner": "acme co", "repo": "widgets"}, Query("q", "x", "empty", ""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"widgets"}`, string(body))

	calls := srv.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "1", calls[0].Header.Get("X-Test"))
	assert.Equal(t, []string{"x"}, calls[0].Query["q"])
	_, hasEmpty := calls[0].Query["empty"]
	assert.False(t, hasEmpty)

	body, err = c.Post(ctx, "/items", nil, nil, map[string]any{"title": "t"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7}`, string(body))
	assert.Equal(t, "t", srv.Calls()[1].JSON(t)["title"])

	body, err = c.Do(ctx, Request{Method: http.MethodDelete, Path: "/items/7"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":204}`, string(body))

	_, err = c.Get(ctx, "/broken", nil, nil)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "Test API error: not found", pe.Error())
	assert.Equal(t, http.StatusNotFound, pe.StatusCode)
}

func TestClientTransportFailure(t *testing.T) {
	c := NewClient(Options{Platform: "Test", BaseURL: "http://127.0.0.1:1"})
	_, err := c.Get(context.Background(), "/x", nil, nil)

	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Error(), "Test API error: ")

	var he *HTTPError
	require.ErrorAs(t, err, &he)
	assert.NotNil(t, he.Err)
}

func TestEscapePath(t *testing.T) {
	assert.Equal(t, "docs/read%20me.md", EscapePath("/docs/read me.md"))
	assert.Equal(t, "a.txt", EscapePath("a.txt"))
}

func repoList(n int) json.RawMessage {
	items := make([]map[string]any, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, map[string]any{"name": fmt.Sprintf("api-%02d", i), "id": i})
	}
	raw, _ := json.Marshal(map[string]any{"value": items})
	return raw
}

func TestPaginateFilteredSet(t *testing.T) {
	all := Items(repoList(25), "value")
	require.Len(t, all, 25)

	filtered := FilterByText(all, "API", "name", "description")
	page := Paginate(filtered, 2, 10)

	assert.Equal(t, 25, page.TotalCount)
	assert.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 10)

	var first, last struct{ ID int }
	require.NoError(t, json.Unmarshal(page.Items[0], &first))
	require.NoError(t, json.Unmarshal(page.Items[9], &last))
	assert.Equal(t, 11, first.ID)
	assert.Equal(t, 20, last.ID)
}

func TestPaginateEdges(t *testing.T) {
	all := Items(repoList(5), "value")

	p := Paginate(all, 0, 0)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultPerPage, p.PerPage)
	assert.Len(t, p.Items, 5)

	p = Paginate(all, 4, 2)
	assert.Equal(t, 3, p.TotalPages)
	assert.Empty(t, p.Items)
	assert.NotNil(t, p.Items)

	p = Paginate(all, 1, 1000)
	assert.Equal(t, MaxPerPage, p.PerPage)

	none := FilterByText(all, "zzz", "name")
	p = Paginate(none, 1, 10)
	assert.Equal(t, 0, p.TotalPages)
	assert.Empty(t, p.Items)
}

func TestPaginateHugePage(t *testing.T) {
	all := Items(repoList(25), "value")

	for _, page := range []int{math.MaxInt / 2, math.MaxInt} {
		p := Paginate(all, page, 30)
		assert.Equal(t, page, p.Page)
		assert.Equal(t, 25, p.TotalCount)
		assert.Equal(t, 1, p.TotalPages)
		assert.Empty(t, p.Items)
	}

	p := Paginate(nil, math.MaxInt/2, MaxPerPage)
	assert.Equal(t, 0, p.TotalPages)
	assert.Empty(t, p.Items)
}

func TestFilterByTextIgnoresNonStrings(t *testing.T) {
	items := []json.RawMessage{
		json.RawMessage(`{"name":"Design System","description":null}`),
		json.RawMessage(`{"name":42,"description":"system tokens"}`),
		json.RawMessage(`{"name":"Marketing"}`),
	}
	got := FilterByText(items, "system", "name", "description")
	assert.Len(t, got, 2)
	assert.Len(t, FilterByText(items, "  ", "name"), 3)
	assert.Nil(t, Items(json.RawMessage(`{"value":{}}`), "value"))
}
