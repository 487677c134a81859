// Package module exposes the entry points of a loaded module as tools.
package module

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonwraymond/toolfoundation/model"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jonwraymond/toolcompile/backend"
	"github.com/jonwraymond/toolcompile/code"
)

// Kind is the backend kind of module backends.
const Kind = "module"

// Config configures a Backend.
type Config struct {
	// Name is the backend name and tool namespace. Required.
	Name string

	// Host is the host that loaded Module. Required.
	Host code.Host

	// Module is the loaded module. Required.
	Module code.Module

	// Timeout bounds each invocation. Zero means no bound beyond the
	// caller's context.
	Timeout time.Duration

	// Tags are attached to every tool.
	Tags []string
}

// Backend implements backend.StreamingBackend over one loaded module.
type Backend struct {
	name    string
	host    code.Host
	mod     code.Module
	timeout time.Duration
	tags    []string
	entries map[string]code.EntryPoint
	order   []string

	mu      sync.RWMutex
	enabled bool
	stopped bool
}

// New creates a module backend.
func New(cfg Config) (*Backend, error) {
	switch {
	case cfg.Name == "":
		return nil, fmt.Errorf("%w: backend name is required", code.ErrConfiguration)
	case cfg.Host == nil:
		return nil, fmt.Errorf("%w: host is required", code.ErrConfiguration)
	case cfg.Module == nil:
		return nil, fmt.Errorf("%w: module is required", code.ErrConfiguration)
	}

	b := &Backend{
		name:    cfg.Name,
		host:    cfg.Host,
		mod:     cfg.Module,
		timeout: cfg.Timeout,
		tags:    append([]string{"compiled"}, cfg.Tags...),
		entries: make(map[string]code.EntryPoint),
		enabled: true,
	}
	for _, ep := range cfg.Module.EntryPoints() {
		b.entries[ep.Key()] = ep
		b.order = append(b.order, ep.Key())
	}
	return b, nil
}

// Kind returns the backend kind.
func (b *Backend) Kind() string { return Kind }

// Name returns the backend instance name.
func (b *Backend) Name() string { return b.name }

// Module returns the underlying module.
func (b *Backend) Module() code.Module { return b.mod }

// Enabled returns whether the backend accepts calls.
func (b *Backend) Enabled() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.enabled && !b.stopped
}

// SetEnabled enables or disables the backend.
func (b *Backend) SetEnabled(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enabled = enabled
}

// ListTools returns one tool per entry point, in manifest order.
func (b *Backend) ListTools(_ context.Context) ([]model.Tool, error) {
	out := make([]model.Tool, 0, len(b.order))
	for _, key := range b.order {
		out = append(out, b.tool(b.entries[key]))
	}
	return out, nil
}

// tool describes one entry point.
func (b *Backend) tool(ep code.EntryPoint) model.Tool {
	desc := ep.Doc
	if desc == "" {
		desc = ep.Signature()
	}
	closedWorld := false
	t := model.Tool{
		Tool: mcp.Tool{
			Name:        ep.Key(),
			Title:       ep.Signature(),
			Description: desc,
			InputSchema: InputSchema(ep),
			Annotations: &mcp.ToolAnnotations{
				Title:         ep.Signature(),
				OpenWorldHint: &closedWorld,
			},
		},
		Namespace: b.name,
		Tags:      model.NormalizeTags(b.tags),
	}
	if out := OutputSchema(ep); out != nil {
		t.OutputSchema = out
	}
	return t
}

// Execute invokes the entry point named tool. args are matched to parameters
// by name. On success the full code.InvocationResult is returned; failures are
// returned as errors matching the code.Err* sentinels.
func (b *Backend) Execute(ctx context.Context, tool string, args map[string]any) (any, error) {
	res, err := b.invoke(ctx, tool, args, nil)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ExecuteStream invokes tool, sending sink output as string chunks while it
// is produced and then the code.InvocationResult or an error. A consumer that
// stops reading does not stall the invocation past its timeout.
func (b *Backend) ExecuteStream(ctx context.Context, tool string, args map[string]any) (<-chan any, error) {
	if err := b.ready(tool); err != nil {
		return nil, err
	}
	ch := make(chan any, 16)
	go func() {
		defer close(ch)
		var last any
		res, err := b.invoke(ctx, tool, args, ch)
		if err != nil {
			last = err
		} else {
			last = res
		}
		select {
		case ch <- last:
		case <-ctx.Done():
		}
	}()
	return ch, nil
}

func (b *Backend) ready(tool string) error {
	b.mu.RLock()
	enabled, stopped := b.enabled, b.stopped
	b.mu.RUnlock()

	switch {
	case stopped || !b.mod.Loaded():
		return fmt.Errorf("%w: %s is stopped", backend.ErrBackendUnavailable, b.name)
	case !enabled:
		return backend.ErrBackendDisabled
	}
	if _, ok := b.entries[tool]; !ok {
		return fmt.Errorf("%w: %s", backend.ErrToolNotFound, tool)
	}
	return nil
}

// invoke runs tool. When stream is non-nil, sink output is forwarded to it
// until the invocation deadline.
func (b *Backend) invoke(ctx context.Context, tool string, args map[string]any, stream chan<- any) (code.InvocationResult, error) {
	if err := b.ready(tool); err != nil {
		return code.InvocationResult{}, err
	}
	ep := b.entries[tool]
	positional, err := Positional(ep, args)
	if err != nil {
		return code.InvocationResult{}, err
	}

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	req := code.InvocationRequest{
		TypeName:   ep.Type,
		MethodName: ep.Method,
		Arguments:  positional,
	}
	if stream != nil {
		req.Sink = chanWriter{ctx: ctx, ch: stream}
	}
	res := b.host.Invoke(ctx, b.mod, req)
	if !res.OK() {
		return res, res.Err()
	}
	return res, nil
}

// Positional orders named args by the parameter names of ep. A variadic
// parameter accepts a list, or may be omitted.
func Positional(ep code.EntryPoint, args map[string]any) ([]any, error) {
	out := make([]any, 0, len(ep.Params))
	used := 0
	for i := range ep.Params {
		name := paramName(ep, i)
		v, ok := args[name]
		last := ep.Variadic && i == len(ep.Params)-1
		if !ok {
			if last {
				continue
			}
			return nil, fmt.Errorf("%w: missing argument %q", code.ErrArgumentMismatch, name)
		}
		used++
		if last {
			list, ok := v.([]any)
			if !ok {
				return nil, fmt.Errorf("%w: argument %q must be a list", code.ErrArgumentMismatch, name)
			}
			out = append(out, list...)
			continue
		}
		out = append(out, v)
	}
	if used != len(args) {
		return nil, fmt.Errorf("%w: %s takes %d arguments, got %d", code.ErrArgumentMismatch, ep.Key(), used, len(args))
	}
	return out, nil
}

// Start verifies the module is still resident.
func (b *Backend) Start(_ context.Context) error {
	if !b.mod.Loaded() {
		return fmt.Errorf("%w: module %s is not loaded", backend.ErrBackendUnavailable, b.mod.Name())
	}
	return nil
}

// Stop unloads the module. Stopping twice is a no-op.
func (b *Backend) Stop() error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil
	}
	b.stopped = true
	b.mu.Unlock()

	if !b.mod.Loaded() {
		return nil
	}
	return b.host.Unload(b.mod)
}

// chanWriter forwards writes as string chunks. Writes give up once ctx ends.
type chanWriter struct {
	ctx context.Context
	ch  chan<- any
}

func (w chanWriter) Write(p []byte) (int, error) {
	select {
	case w.ch <- string(p):
		return len(p), nil
	case <-w.ctx.Done():
		return 0, w.ctx.Err()
	}
}

var _ backend.StreamingBackend = (*Backend)(nil)
