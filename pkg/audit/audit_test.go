package audit

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactories runs each test against every local backend.
var storeFactories = map[string]func(t *testing.T) Store{
	"file": func(t *testing.T) Store {
		s, err := NewFileStore(t.TempDir())
		require.NoError(t, err)
		return s
	},
	"sqlite": func(t *testing.T) Store {
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "audit.db"))
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	},
}

func forEachStore(t *testing.T, fn func(t *testing.T, store Store)) {
	for name, factory := range storeFactories {
		t.Run(name, func(t *testing.T) { fn(t, factory(t)) })
	}
}

func toolEvent(user, action, status string) *Event {
	return &Event{Type: EventToolCall, User: user, Action: action, Result: &EventResult{Status: status}}
}

func TestStore_AppendAndQuery(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		event := toolEvent("github", "create_branch", StatusSuccess)
		event.Metadata = map[string]any{"platform": "GitHub"}
		require.NoError(t, store.Append(ctx, event))

		assert.NotEmpty(t, event.ID)
		assert.False(t, event.Timestamp.IsZero())

		events, err := store.Query(ctx, QueryOptions{})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, event.ID, events[0].ID)
		assert.Equal(t, "create_branch", events[0].Action)
		assert.Equal(t, "GitHub", events[0].Metadata["platform"])
	})
}

func TestStore_QueryFilters(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		old := toolEvent("github", "get_issue", StatusSuccess)
		old.Timestamp = time.Now().Add(-2 * time.Hour)
		require.NoError(t, store.Append(ctx, old))
		require.NoError(t, store.Append(ctx, toolEvent("github", "get_issue", StatusError)))
		require.NoError(t, store.Append(ctx, toolEvent("figma", "get_file", StatusRejected)))

		cutoff := time.Now().Add(-time.Hour)
		cases := []struct {
			name string
			opts QueryOptions
			want int
		}{
			{"user", QueryOptions{User: "github"}, 2},
			{"action", QueryOptions{Action: "get_file"}, 1},
			{"status", QueryOptions{Status: StatusError}, 1},
			{"type", QueryOptions{Type: EventToolCall}, 3},
			{"since", QueryOptions{Since: cutoff}, 2},
			{"until", QueryOptions{Until: cutoff}, 1},
			{"limit", QueryOptions{Limit: 2}, 2},
			{"combined", QueryOptions{User: "github", Since: cutoff}, 1},
		}
		for _, tc := range cases {
			events, err := store.Query(ctx, tc.opts)
			require.NoError(t, err, tc.name)
			assert.Len(t, events, tc.want, tc.name)
		}

		exported, err := store.Export(ctx, cutoff)
		require.NoError(t, err)
		assert.Len(t, exported, 2)
	})
}

func TestStore_LimitKeepsLatest(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		base := time.Now().Add(-time.Hour)
		for i, action := range []string{"a", "b", "c", "d", "e"} {
			e := toolEvent("github", action, StatusSuccess)
			e.Timestamp = base.Add(time.Duration(i) * time.Minute)
			require.NoError(t, store.Append(ctx, e))
		}

		events, err := store.Query(ctx, QueryOptions{Limit: 2})
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "d", events[0].Action)
		assert.Equal(t, "e", events[1].Action)

		events, err = store.Query(ctx, QueryOptions{Limit: 10})
		require.NoError(t, err)
		require.Len(t, events, 5)
		assert.Equal(t, "a", events[0].Action)
	})
}

func TestStore_Empty(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		events, err := store.Query(context.Background(), QueryOptions{})
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}

func TestStore_ConcurrentAppend(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		const n = 30
		var wg sync.WaitGroup
		wg.Add(n)
		for i := 0; i < n; i++ {
			go func() {
				defer wg.Done()
				assert.NoError(t, store.Append(ctx, toolEvent("concurrent", "ping", StatusSuccess)))
			}()
		}
		wg.Wait()

		events, err := store.Query(ctx, QueryOptions{})
		require.NoError(t, err)
		assert.Len(t, events, n)
	})
}

func TestStore_CustomID(t *testing.T) {
	forEachStore(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		event := toolEvent("github", "get_issue", StatusSuccess)
		event.ID = "custom-123"
		require.NoError(t, store.Append(ctx, event))

		events, err := store.Query(ctx, QueryOptions{})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "custom-123", events[0].ID)
	})
}

func TestFileStore_MalformedLines(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, toolEvent("a", "x", StatusSuccess)))

	f, err := os.OpenFile(filepath.Join(dir, "audit.jsonl"), os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, _ = f.Write([]byte("not-valid-json\n"))
	require.NoError(t, f.Close())

	require.NoError(t, store.Append(ctx, toolEvent("b", "y", StatusSuccess)))

	events, err := store.Query(ctx, QueryOptions{})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestLogger_LogToolCall(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	l := NewLogger(store, "azure-devops", "Azure DevOps")
	err = l.LogToolCall(ctx, ToolCall{
		Tool:     "update_file",
		Args:     map[string]any{"repo": "R", "content": "secret body", "project": "P"},
		Status:   StatusError,
		Duration: 1500 * time.Millisecond,
		Err:      "Azure DevOps API error: conflict",
	})
	require.NoError(t, err)

	events, err := store.Query(ctx, QueryOptions{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, EventToolCall, e.Type)
	assert.Equal(t, "azure-devops", e.User)
	assert.Equal(t, "update_file", e.Action)
	assert.Equal(t, StatusError, e.Result.Status)
	assert.Equal(t, int64(1500), e.Result.DurationMS)
	assert.Equal(t, "Azure DevOps", e.Metadata["platform"])
	assert.Equal(t, []any{"content", "project", "repo"}, e.Metadata["arguments"])

	raw, err := os.ReadFile(store.path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret body")
}

func TestNewStore(t *testing.T) {
	dir := t.TempDir()

	s, err := NewStore(StoreConfig{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = NewStore(StoreConfig{Backend: "file", Dir: dir})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = NewStore(StoreConfig{Backend: "sqlite", Dir: dir})
	require.NoError(t, err)
	assert.IsType(t, &SQLStore{}, s)
	require.NoError(t, s.Close())
	assert.FileExists(t, filepath.Join(dir, "audit.db"))

	_, err = NewStore(StoreConfig{Backend: "file"})
	assert.Error(t, err)
	_, err = NewStore(StoreConfig{Backend: "postgres"})
	assert.Error(t, err)
	_, err = NewStore(StoreConfig{Backend: "mongo"})
	assert.ErrorContains(t, err, "unknown audit backend")
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?", dialectSQLite.placeholder(3))
	assert.Equal(t, "$3", dialectPostgres.placeholder(3))
}
