package module

import (
	"strconv"
	"strings"

	"github.com/jonwraymond/toolcompile/code"
)

// InputSchema builds a JSON Schema object for the parameters of ep. Every
// parameter is required; a variadic parameter is an array.
func InputSchema(ep code.EntryPoint) map[string]any {
	props := make(map[string]any, len(ep.Params))
	required := make([]any, 0, len(ep.Params))
	for i, typ := range ep.Params {
		name := paramName(ep, i)
		props[name] = typeSchema(typ)
		if ep.Variadic && i == len(ep.Params)-1 {
			continue
		}
		required = append(required, name)
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// OutputSchema describes the single non-error result of ep, or nil when the
// entry point returns nothing or several values.
func OutputSchema(ep code.EntryPoint) map[string]any {
	results := ep.Results
	if n := len(results); n > 0 && results[n-1] == "error" {
		results = results[:n-1]
	}
	if len(results) != 1 {
		return nil
	}
	return typeSchema(results[0])
}

func typeSchema(typ string) map[string]any {
	switch {
	case strings.HasPrefix(typ, "[]"):
		return map[string]any{"type": "array", "items": typeSchema(typ[2:])}
	case strings.HasPrefix(typ, "map[string]"):
		return map[string]any{"type": "object", "additionalProperties": typeSchema(strings.TrimPrefix(typ, "map[string]"))}
	case typ == "string":
		return map[string]any{"type": "string"}
	case typ == "bool":
		return map[string]any{"type": "boolean"}
	case typ == "float32" || typ == "float64":
		return map[string]any{"type": "number"}
	case strings.HasPrefix(typ, "int") || strings.HasPrefix(typ, "uint") || typ == "byte" || typ == "rune":
		return map[string]any{"type": "integer"}
	default:
		return map[string]any{}
	}
}

func paramName(ep code.EntryPoint, i int) string {
	if i < len(ep.ParamNames) && ep.ParamNames[i] != "" {
		return ep.ParamNames[i]
	}
	return "arg" + strconv.Itoa(i)
}
