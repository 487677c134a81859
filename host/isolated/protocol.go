package isolated

import (
	"encoding/json"
	"fmt"

	"github.com/jonwraymond/toolcompile/code"
)

// Operations understood by a worker.
const (
	opLoad   = "load"
	opInvoke = "invoke"
	opUnload = "unload"
)

// request is one newline-delimited JSON message from host to worker.
type request struct {
	ID     uint64          `json:"id"`
	Op     string          `json:"op"`
	Name   string          `json:"name,omitempty"`
	Kind   code.OutputKind `json:"kind,omitempty"`
	Image  []byte          `json:"image,omitempty"`
	Invoke *invocation     `json:"invoke,omitempty"`
}

type invocation struct {
	TypeName   string            `json:"typeName,omitempty"`
	MethodName string            `json:"methodName"`
	Arguments  []json.RawMessage `json:"arguments,omitempty"`
}

// response answers the request with the same ID.
type response struct {
	ID          uint64                 `json:"id"`
	Error       string                 `json:"error,omitempty"`
	EntryPoints []code.EntryPoint      `json:"entryPoints,omitempty"`
	Result      *code.InvocationResult `json:"result,omitempty"`
}

func encodeInvocation(req code.InvocationRequest) (*invocation, error) {
	inv := &invocation{TypeName: req.TypeName, MethodName: req.MethodName}
	for i, a := range req.Arguments {
		raw, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		inv.Arguments = append(inv.Arguments, raw)
	}
	return inv, nil
}

func (inv *invocation) request() (code.InvocationRequest, error) {
	req := code.InvocationRequest{TypeName: inv.TypeName, MethodName: inv.MethodName}
	for i, raw := range inv.Arguments {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return req, fmt.Errorf("argument %d: %w", i, err)
		}
		req.Arguments = append(req.Arguments, v)
	}
	return req, nil
}

// portable replaces a result value that cannot cross the process boundary
// with its printed form.
func portable(v any) any {
	if v == nil {
		return nil
	}
	if _, err := json.Marshal(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return v
}
