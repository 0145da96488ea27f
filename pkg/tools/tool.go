// Package tools holds the tool catalog: typed tool definitions, the single
// pass argument validator and the registry that dispatches invocations.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Tool is one operation a server exposes.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	// Prepare validates args and returns a ready-to-run invocation. It
	// never performs I/O.
	Prepare(args map[string]any) (Call, error)
}

// Call is a validated invocation bound to its typed arguments.
type Call func(ctx context.Context) (any, error)

// ErrToolNotFound is returned for names missing from the catalog.
var ErrToolNotFound = errors.New("tool not found")

// ValidationError lists every argument problem found for one invocation.
type ValidationError struct {
	Tool     string   `json:"-"`
	Required []string `json:"required"`
	Missing  []string `json:"missing,omitempty"`
	Invalid  []string `json:"invalid,omitempty"`
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required parameters: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid parameters: "+strings.Join(e.Invalid, "; "))
	}
	return fmt.Sprintf("%s: %s (required: %s)", e.Tool, strings.Join(parts, "; "), strings.Join(e.Required, ", "))
}

// NoArgs is the argument type of tools without parameters.
type NoArgs struct{}

// Typed is a Tool whose handler receives a decoded argument struct. Its
// input schema is inferred from A: json tags name the arguments, fields
// without omitempty are required, jsonschema tags are descriptions.
type Typed[A any] struct {
	name        string
	description string
	schema      *inputSchema
	handler     func(context.Context, A) (any, error)
}

// New declares a tool. A schema that cannot be inferred from A, or an
// option naming an unknown argument, is a programming error and panics.
func New[A any](name, description string, handler func(context.Context, A) (any, error), opts ...SchemaOption) *Typed[A] {
	schema, err := compileSchema[A](opts)
	if err != nil {
		panic(fmt.Sprintf("tools: %s: input schema: %v", name, err))
	}
	return &Typed[A]{
		name:        name,
		description: description,
		schema:      schema,
		handler:     handler,
	}
}

func (t *Typed[A]) Name() string        { return t.name }
func (t *Typed[A]) Description() string { return t.description }

func (t *Typed[A]) Parameters() map[string]any {
	return t.schema.wire
}

func (t *Typed[A]) Prepare(args map[string]any) (Call, error) {
	values, err := t.schema.validate(t.name, args)
	if err != nil {
		return nil, err
	}
	var a A
	if err := bind(values, &a); err != nil {
		return nil, fmt.Errorf("%s: bind arguments: %w", t.name, err)
	}
	return func(ctx context.Context) (any, error) {
		return t.handler(ctx, a)
	}, nil
}

func bind(values map[string]any, dst any) error {
	raw, err := json.Marshal(values)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
