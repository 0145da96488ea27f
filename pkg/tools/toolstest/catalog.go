// Package toolstest checks a tool catalog's validation contract.
package toolstest

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/freitascorp/platform-mcp/pkg/tools"
)

// SampleArgs returns a value for every required parameter of t, chosen to
// satisfy its declared type and enum.
func SampleArgs(t tools.Tool) map[string]any {
	schema := t.Parameters()
	props, _ := schema["properties"].(map[string]any)
	args := map[string]any{}
	for _, name := range Required(t) {
		prop, _ := props[name].(map[string]any)
		args[name] = sample(prop)
	}
	return args
}

// Required lists the required parameter names of t, sorted.
func Required(t tools.Tool) []string {
	var out []string
	switch req := t.Parameters()["required"].(type) {
	case []string:
		out = append(out, req...)
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
	}
	sort.Strings(out)
	return out
}

func sample(prop map[string]any) any {
	if enum, ok := prop["enum"].([]any); ok && len(enum) > 0 {
		return enum[0]
	}
	switch propType(prop) {
	case tools.TypeInteger, tools.TypeNumber:
		return float64(1)
	case tools.TypeBoolean:
		return true
	case tools.TypeArray:
		items, _ := prop["items"].(map[string]any)
		return []any{sample(items)}
	case tools.TypeObject:
		return map[string]any{}
	default:
		return "x"
	}
}

// propType is the declared type of prop; nullable types list "null"
// alongside it.
func propType(prop map[string]any) string {
	switch typ := prop["type"].(type) {
	case string:
		return typ
	case []any:
		for _, v := range typ {
			if s, ok := v.(string); ok && s != "null" {
				return s
			}
		}
	}
	return ""
}

// CheckCatalog asserts, for every tool in catalog, that sample arguments
// pass validation and that dropping any single required argument is
// rejected as invalid params without a single outbound call.
func CheckCatalog(t *testing.T, catalog []tools.Tool, calls func() int) {
	t.Helper()
	reg := tools.NewToolRegistry()
	reg.Register(catalog...)

	for _, tool := range catalog {
		t.Run(tool.Name(), func(t *testing.T) {
			if _, err := tool.Prepare(SampleArgs(tool)); err != nil {
				t.Fatalf("sample arguments rejected: %v", err)
			}
			for _, name := range Required(tool) {
				args := SampleArgs(tool)
				delete(args, name)
				before := calls()

				res, err := reg.Execute(context.Background(), tool.Name(), args)
				var verr *tools.ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("without %q: got result %v, err %v; want validation error", name, res, err)
				}
				if len(verr.Missing) != 1 || verr.Missing[0] != name {
					t.Errorf("without %q: missing = %v", name, verr.Missing)
				}
				if n := calls() - before; n != 0 {
					t.Errorf("without %q: %d outbound calls made", name, n)
				}
			}
		})
	}

	_, err := reg.Execute(context.Background(), "no_such_tool", SampleArgs(catalog[0]))
	if !errors.Is(err, tools.ErrToolNotFound) {
		t.Errorf("unknown tool: err = %v, want ErrToolNotFound", err)
	}
}
