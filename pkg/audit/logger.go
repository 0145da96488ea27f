package audit

import (
	"context"
	"sort"
	"time"
)

// ToolCall describes one finished invocation.
type ToolCall struct {
	Tool     string
	Args     map[string]any
	Status   string
	Duration time.Duration
	Err      string
}

// Logger writes tool call events for one server.
type Logger struct {
	store    Store
	user     string
	platform string
}

// NewLogger creates an audit logger. user identifies the server process
// and platform the wrapped platform.
func NewLogger(store Store, user, platform string) *Logger {
	return &Logger{store: store, user: user, platform: platform}
}

// LogToolCall records a tool invocation. Argument values are discarded.
func (l *Logger) LogToolCall(ctx context.Context, call ToolCall) error {
	keys := make([]string, 0, len(call.Args))
	for k := range call.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return l.store.Append(ctx, &Event{
		Type:   EventToolCall,
		User:   l.user,
		Action: call.Tool,
		Result: &EventResult{
			Status:     call.Status,
			DurationMS: call.Duration.Milliseconds(),
			Error:      call.Err,
		},
		Metadata: map[string]any{
			"platform":  l.platform,
			"arguments": keys,
		},
	})
}
