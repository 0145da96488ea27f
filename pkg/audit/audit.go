// Package audit records every tool invocation as an immutable structured
// event. Only argument names are kept, never their values, so credentials
// and file contents passed to tools do not end up in the log.
package audit

import (
	"context"
	"time"
)

// EventType categorizes audit events.
type EventType string

const EventToolCall EventType = "tool.call"

// Result statuses of a tool call.
const (
	StatusSuccess  = "success"
	StatusError    = "error"
	StatusRejected = "rejected"
	StatusFailed   = "failed"
)

// Event is a single immutable audit record.
type Event struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"ts"`
	Type      EventType      `json:"type"`
	User      string         `json:"user"`
	Action    string         `json:"action"`
	Result    *EventResult   `json:"result,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// EventResult captures the outcome of the action.
type EventResult struct {
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// QueryOptions filters audit log queries. Zero values match everything.
type QueryOptions struct {
	User   string
	Type   EventType
	Action string
	Status string
	Since  time.Time
	Until  time.Time
	// Limit keeps only the most recent matches; results stay oldest first.
	Limit int
}

func (o QueryOptions) match(e *Event) bool {
	if o.User != "" && e.User != o.User {
		return false
	}
	if o.Type != "" && e.Type != o.Type {
		return false
	}
	if o.Action != "" && e.Action != o.Action {
		return false
	}
	if o.Status != "" && (e.Result == nil || e.Result.Status != o.Status) {
		return false
	}
	if !o.Since.IsZero() && e.Timestamp.Before(o.Since) {
		return false
	}
	if !o.Until.IsZero() && e.Timestamp.After(o.Until) {
		return false
	}
	return true
}

// Store is the persistence interface for the audit log.
type Store interface {
	// Append writes an event. ID and Timestamp are filled in when empty.
	Append(ctx context.Context, event *Event) error
	// Query returns matching events, oldest first.
	Query(ctx context.Context, opts QueryOptions) ([]*Event, error)
	// Export returns every event since the given time.
	Export(ctx context.Context, since time.Time) ([]*Event, error)
	Close() error
}
