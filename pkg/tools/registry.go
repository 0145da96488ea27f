package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/freitascorp/platform-mcp/pkg/logger"
	"github.com/freitascorp/platform-mcp/pkg/platform"
)

// Definition is the catalog entry advertised to clients.
type Definition struct {
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	InputSchema map[string]any `json:"inputSchema" yaml:"inputSchema"`
}

// ToolRegistry is an insertion-ordered tool catalog.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]Tool)}
}

// Register adds tools to the catalog. A duplicate name is a programming
// error and panics.
func (r *ToolRegistry) Register(tools ...Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tools {
		name := t.Name()
		if _, dup := r.tools[name]; dup {
			panic(fmt.Sprintf("tools: duplicate tool %q", name))
		}
		r.tools[name] = t
		r.order = append(r.order, name)
	}
}

func (r *ToolRegistry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns the tools in registration order.
func (r *ToolRegistry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

func (r *ToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func (r *ToolRegistry) Definitions() []Definition {
	list := r.List()
	defs := make([]Definition, 0, len(list))
	for _, t := range list {
		schema := t.Parameters()
		if schema == nil {
			schema = map[string]any{"type": TypeObject, "properties": map[string]any{}, "required": []string{}}
		}
		defs = append(defs, Definition{Name: t.Name(), Description: t.Description(), InputSchema: schema})
	}
	return defs
}

// Execute runs one invocation. Platform failures come back as an error
// result; a nil result with an error means the invocation was rejected
// (ErrToolNotFound, *ValidationError) or failed outright.
func (r *ToolRegistry) Execute(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	call, err := t.Prepare(args)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	payload, err := call(ctx)
	if err != nil {
		var pe *platform.Error
		if errors.As(err, &pe) {
			logger.WarnCF("tools", "Platform error", map[string]any{
				"tool":     name,
				"status":   pe.StatusCode,
				"error":    pe.Error(),
				"duration": time.Since(start).String(),
			})
			return ErrorResult(pe.Error()), nil
		}
		return nil, err
	}

	text, err := Format(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: format result: %w", name, err)
	}
	logger.DebugCF("tools", "Tool executed", map[string]any{
		"tool":     name,
		"bytes":    len(text),
		"duration": time.Since(start).String(),
	})
	return NewToolResult(text), nil
}

// Format renders a handler payload. Raw platform JSON is re-indented with
// its key order preserved; bodies that are not JSON are returned as text.
func Format(v any) (string, error) {
	switch p := v.(type) {
	case nil:
		return "", nil
	case string:
		return p, nil
	case json.RawMessage:
		return indent(p), nil
	case []byte:
		return indent(p), nil
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func indent(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
