// Package host loads artifact images into per-module interpreters and invokes
// their entry points.
//
// Every module gets its own interpreter instance, bound to exactly the host
// symbol tables its image references, and its own sink dispatcher. Nothing is
// shared between modules, so unloading a module releases everything it owns.
//
// Load stops waiting for package initialization when its context ends and
// never registers the half-built module. Invocation timeouts are enforced at
// the invocation boundary: when the context expires the host returns
// FailureInvocationTimeout at once and force-unloads the module. Interpreted code that never yields keeps its goroutine until it
// returns; use package isolated when a hard kill is required.
package host

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing/fstest"
	"time"

	"github.com/traefik/yaegi/interp"

	"github.com/jonwraymond/toolcompile/artifact"
	"github.com/jonwraymond/toolcompile/code"
	"github.com/jonwraymond/toolcompile/reference"
	"github.com/jonwraymond/toolcompile/sink"
)

// Config configures a Host.
type Config struct {
	// Environment supplies the host symbol tables modules bind to. Required.
	Environment *reference.Environment

	// MaxOutputBytes caps the sink output captured per invocation. Zero
	// selects sink.DefaultMaxBytes.
	MaxOutputBytes int

	// Logger receives load and unload events. Optional.
	Logger code.Logger
}

// Host implements code.Host in-process.
type Host struct {
	env       *reference.Environment
	maxOutput int
	logger    code.Logger

	mu       sync.Mutex
	resident map[*Module]struct{}
}

// New creates a Host.
func New(cfg Config) (*Host, error) {
	if cfg.Environment == nil {
		return nil, fmt.Errorf("%w: host environment is required", code.ErrConfiguration)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = code.NopLogger()
	}
	return &Host{
		env:       cfg.Environment,
		maxOutput: cfg.MaxOutputBytes,
		logger:    logger,
		resident:  make(map[*Module]struct{}),
	}, nil
}

// Resident returns the number of loaded modules.
func (h *Host) Resident() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.resident)
}

// Load decodes art, binds it to the referenced host symbol tables and
// resolves every entry point in its manifest.
func (h *Host) Load(ctx context.Context, art *code.Artifact) (code.Module, error) {
	if art == nil {
		return nil, &code.LoadError{Reason: "artifact is nil"}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	img, err := artifact.Decode(art.Image)
	if err != nil {
		return nil, &code.LoadError{Artifact: art.Name, Reason: "decoding image", Err: err}
	}

	exports, missing := h.env.Exports(img.Paths())
	if len(missing) > 0 {
		return nil, &code.LoadError{
			Artifact: art.Name,
			Reason:   "referenced symbol tables are not available: " + strings.Join(missing, ", "),
		}
	}

	d := sink.NewDispatcher(h.maxOutput)
	if _, ok := exports[sink.Key]; ok {
		exports[sink.Key] = sink.Exports(d)
	}

	i := interp.New(interp.Options{
		Stdin:                strings.NewReader(""),
		Stdout:               d,
		Stderr:               d,
		SourcecodeFilesystem: fstest.MapFS{},
	})
	if err := i.Use(exports); err != nil {
		return nil, &code.LoadError{Artifact: art.Name, Reason: "binding references", Err: err}
	}

	type evaluated struct {
		table map[string]reflect.Value
		err   error
	}
	done := make(chan evaluated, 1)
	go func() {
		table, err := evaluate(ctx, i, img)
		done <- evaluated{table, err}
	}()

	var table map[string]reflect.Value
	select {
	case ev := <-done:
		if ev.err != nil {
			return nil, &code.LoadError{Artifact: art.Name, Reason: "evaluating image", Err: ev.err}
		}
		table = ev.table
	case <-ctx.Done():
		h.logger.Warn("module initialization abandoned", "module", img.Name, "cause", ctx.Err())
		return nil, &code.LoadError{
			Artifact: art.Name,
			Reason:   "initialization did not finish before the deadline",
			Err:      ctx.Err(),
		}
	}

	m := &Module{
		host:    h,
		name:    img.Name,
		entries: img.EntryPoints,
		table:   table,
		sink:    d,
	}
	m.loaded.Store(true)

	h.mu.Lock()
	h.resident[m] = struct{}{}
	h.mu.Unlock()

	h.logger.Info("module loaded", "module", m.name, "entryPoints", len(m.entries))
	return m, nil
}

// evaluate runs the image source through the interpreter and builds the entry
// point lookup table. Panics raised by package initialization become errors.
func evaluate(ctx context.Context, i *interp.Interpreter, img artifact.Image) (table map[string]reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during initialization: %v", r)
		}
	}()

	if _, err := i.EvalWithContext(ctx, string(img.Source)); err != nil {
		return nil, err
	}
	table = make(map[string]reflect.Value, len(img.EntryPoints))
	for _, ep := range img.EntryPoints {
		v, err := i.EvalWithContext(ctx, ep.Expr)
		if err != nil {
			return nil, fmt.Errorf("entry point %s: %w", ep.Key(), err)
		}
		if !v.IsValid() || v.Kind() != reflect.Func {
			return nil, fmt.Errorf("entry point %s is not callable", ep.Key())
		}
		table[ep.Key()] = v
	}
	return table, nil
}

// Invoke calls the entry point named by req. Invocations on one module are
// serialized.
func (h *Host) Invoke(ctx context.Context, mod code.Module, req code.InvocationRequest) code.InvocationResult {
	m, ok := mod.(*Module)
	if !ok || m == nil || m.host != h {
		return code.Failed(code.FailureInvalidHandle, "module was not loaded by this host")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded.Load() {
		return code.Failed(code.FailureInvalidHandle, "module %s is not loaded", m.name)
	}
	fn, ok := m.table[req.Key()]
	if !ok {
		return code.Failed(code.FailureMemberNotFound, "%s has no entry point %s (available: %s)",
			m.name, req.Key(), strings.Join(m.keys(), ", "))
	}
	args, err := convertArgs(fn.Type(), req.Arguments)
	if err != nil {
		return code.Failed(code.FailureArgumentMismatch, "%s: %v", req.Key(), err)
	}
	if err := ctx.Err(); err != nil {
		return h.abort(m, req, err, 0)
	}

	start := time.Now()
	m.sink.Begin(req.Sink)
	done := make(chan outcome, 1)
	go func() {
		done <- call(fn, args)
	}()

	select {
	case out := <-done:
		output, truncated := m.sink.End()
		res := out.result()
		res.Output = output
		res.DurationMs = time.Since(start).Milliseconds()
		if truncated {
			h.logger.Warn("invocation output truncated", "module", m.name, "entry", req.Key())
		}
		return res

	case <-ctx.Done():
		output, _ := m.sink.End()
		res := h.abort(m, req, ctx.Err(), time.Since(start))
		res.Output = output
		return res
	}
}

// abort force-unloads m after its invocation context ended. Caller holds m.mu.
func (h *Host) abort(m *Module, req code.InvocationRequest, cause error, elapsed time.Duration) code.InvocationResult {
	h.drop(m)
	h.logger.Warn("invocation aborted, module unloaded", "module", m.name, "entry", req.Key(), "cause", cause)

	var res code.InvocationResult
	if errors.Is(cause, context.DeadlineExceeded) {
		res = code.Failed(code.FailureInvocationTimeout, "%s did not return before the deadline", req.Key())
	} else {
		res = code.Failed(code.FailureInvocationFault, "%s canceled: %v", req.Key(), cause)
	}
	res.DurationMs = elapsed.Milliseconds()
	return res
}

// Unload releases m. Unloading twice returns ErrInvalidHandle.
func (h *Host) Unload(mod code.Module) error {
	m, ok := mod.(*Module)
	if !ok || m == nil || m.host != h {
		return fmt.Errorf("%w: module was not loaded by this host", code.ErrInvalidHandle)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded.Load() {
		return fmt.Errorf("%w: module %s is already unloaded", code.ErrInvalidHandle, m.name)
	}
	h.drop(m)
	h.logger.Info("module unloaded", "module", m.name)
	return nil
}

// drop removes m from the resident set and releases its interpreter.
// Caller holds m.mu.
func (h *Host) drop(m *Module) {
	m.loaded.Store(false)
	m.table = nil

	h.mu.Lock()
	delete(h.resident, m)
	h.mu.Unlock()
}

func (m *Module) keys() []string {
	keys := make([]string, 0, len(m.table))
	for k := range m.table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ code.Host = (*Host)(nil)
