package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// JSON schema types an argument can have.
const (
	TypeString  = "string"
	TypeInteger = "integer"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
)

// SchemaOption refines the input schema inferred from a tool's argument
// struct with what Go types cannot express.
type SchemaOption func(*jsonschema.Schema) error

// Enum restricts the accepted values of prop.
func Enum(prop string, values ...any) SchemaOption {
	return func(s *jsonschema.Schema) error {
		p, err := property(s, prop)
		if err != nil {
			return err
		}
		p.Enum = values
		return nil
	}
}

// Default is applied when prop is absent.
func Default(prop string, v any) SchemaOption {
	return func(s *jsonschema.Schema) error {
		p, err := property(s, prop)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("default for %q: %w", prop, err)
		}
		p.Default = raw
		return nil
	}
}

// Defaults is Default for several properties at once.
func Defaults(values map[string]any) SchemaOption {
	return func(s *jsonschema.Schema) error {
		for prop, v := range values {
			if err := Default(prop, v)(s); err != nil {
				return err
			}
		}
		return nil
	}
}

func property(s *jsonschema.Schema, name string) (*jsonschema.Schema, error) {
	p, ok := s.Properties[name]
	if !ok {
		return nil, fmt.Errorf("no property %q", name)
	}
	return p, nil
}

// argument is one top-level property of an input schema, resolved for
// validation.
type argument struct {
	name     string
	schema   *jsonschema.Schema
	resolved *jsonschema.Resolved
	required bool
	def      any
}

// inputSchema is the compiled form of a tool's argument type.
type inputSchema struct {
	args     []argument
	required []string
	wire     map[string]any
}

func compileSchema[A any](opts []SchemaOption) (*inputSchema, error) {
	s, err := jsonschema.For[A](nil)
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	required := make(map[string]bool, len(s.Required))
	for _, r := range s.Required {
		required[r] = true
	}
	out := &inputSchema{required: append([]string{}, s.Required...)}
	for _, name := range fieldOrder(reflect.TypeFor[A](), s) {
		ps := s.Properties[name]
		rs, err := ps.Resolve(nil)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
		arg := argument{name: name, schema: ps, resolved: rs, required: required[name]}
		if len(ps.Default) > 0 {
			if err := json.Unmarshal(ps.Default, &arg.def); err != nil {
				return nil, fmt.Errorf("property %q: default: %w", name, err)
			}
		}
		out.args = append(out.args, arg)
	}

	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &out.wire); err != nil {
		return nil, err
	}
	if _, ok := out.wire["properties"]; !ok {
		out.wire["properties"] = map[string]any{}
	}
	out.wire["required"] = out.required
	return out, nil
}

// fieldOrder lists the schema properties in struct field order; anything
// the struct walk misses is appended sorted.
func fieldOrder(t reflect.Type, s *jsonschema.Schema) []string {
	seen := make(map[string]bool, len(s.Properties))
	var order []string
	if t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
			if _, ok := s.Properties[name]; ok && !seen[name] {
				seen[name] = true
				order = append(order, name)
			}
		}
	}
	var rest []string
	for name := range s.Properties {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(order, rest...)
}

// validate checks args in a single pass and returns the normalised
// values: declared arguments only, coerced to their declared type, with
// defaults filled in. Presence and loose coercion happen here; type, enum
// and item constraints are checked by the resolved schema of each
// argument. Every violation is collected before returning.
func (in *inputSchema) validate(tool string, args map[string]any) (map[string]any, error) {
	values := make(map[string]any, len(in.args))
	verr := &ValidationError{Tool: tool, Required: in.required}

	for _, a := range in.args {
		v, ok := args[a.name]
		if !ok || v == nil {
			if a.required {
				verr.Missing = append(verr.Missing, a.name)
			} else if a.def != nil {
				values[a.name] = a.def
			}
			continue
		}
		cv, err := coerce(a.schema, v)
		if err != nil {
			verr.Invalid = append(verr.Invalid, a.name+": "+err.Error())
			continue
		}
		if err := a.resolved.Validate(cv); err != nil {
			verr.Invalid = append(verr.Invalid, a.name+": "+err.Error())
			continue
		}
		values[a.name] = cv
	}

	if len(verr.Missing) > 0 || len(verr.Invalid) > 0 {
		return nil, verr
	}
	return values, nil
}

// schemaType is the single non-null type of s, or "" when unconstrained.
func schemaType(s *jsonschema.Schema) string {
	if s.Type != "" {
		return s.Type
	}
	for _, t := range s.Types {
		if t != "null" {
			return t
		}
	}
	return ""
}

// coerce converts loosely typed client input (numbers sent as strings and
// the like) into the JSON value the schema declares.
func coerce(s *jsonschema.Schema, v any) (any, error) {
	typ := schemaType(s)
	switch typ {
	case TypeString:
		switch x := v.(type) {
		case string:
			return x, nil
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), nil
		case int:
			return strconv.Itoa(x), nil
		case int64:
			return strconv.FormatInt(x, 10), nil
		case bool:
			return strconv.FormatBool(x), nil
		}
	case TypeInteger:
		switch x := v.(type) {
		case int:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case float64:
			if x == math.Trunc(x) && !math.IsInf(x, 0) {
				return x, nil
			}
		case string:
			if n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64); err == nil {
				return float64(n), nil
			}
		}
	case TypeNumber:
		switch x := v.(type) {
		case float64:
			return x, nil
		case int:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
				return f, nil
			}
		}
	case TypeBoolean:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			if b, err := strconv.ParseBool(strings.TrimSpace(x)); err == nil {
				return b, nil
			}
		}
	case TypeArray:
		var items []any
		switch x := v.(type) {
		case []any:
			items = x
		case []string:
			items = make([]any, len(x))
			for i, s := range x {
				items[i] = s
			}
		default:
			return nil, fmt.Errorf("expected %s", typ)
		}
		if s.Items == nil {
			return items, nil
		}
		out := make([]any, len(items))
		for i, it := range items {
			cv, err := coerce(s.Items, it)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out[i] = cv
		}
		return out, nil
	case TypeObject:
		if m, ok := v.(map[string]any); ok {
			return m, nil
		}
	default:
		return v, nil
	}
	return nil, fmt.Errorf("expected %s", typ)
}
