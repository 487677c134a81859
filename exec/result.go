package exec

import (
	"time"

	"github.com/jonwraymond/tooldiscovery/index"

	"github.com/jonwraymond/toolcompile/code"
)

// Result represents the outcome of a single tool call.
type Result struct {
	// Value is the return value of the entry point.
	Value any

	// Output is what the entry point wrote to its sink.
	Output string

	// ToolID is the ID of the called tool.
	ToolID string

	// Duration is how long the call took.
	Duration time.Duration

	// Error is non-nil if the call failed. It matches the code.Err*
	// sentinels.
	Error error
}

// OK returns true if the result has no error.
func (r Result) OK() bool {
	return r.Error == nil
}

// ToolSummary is an alias to index.Summary for search results.
type ToolSummary = index.Summary

func toResult(toolID string, v any, d time.Duration, err error) (Result, error) {
	res := Result{ToolID: toolID, Duration: d, Error: err}
	if err != nil {
		return res, err
	}
	if ir, ok := v.(code.InvocationResult); ok {
		res.Value = ir.Value
		res.Output = ir.Output
		return res, nil
	}
	res.Value = v
	return res, nil
}
