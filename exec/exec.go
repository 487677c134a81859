package exec

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/toolfoundation/model"
	"go.uber.org/zap"

	"github.com/jonwraymond/toolcompile/backend"
	"github.com/jonwraymond/toolcompile/code"
	"github.com/jonwraymond/toolcompile/compile"
	"github.com/jonwraymond/toolcompile/host"
	"github.com/jonwraymond/toolcompile/host/isolated"
	"github.com/jonwraymond/toolcompile/reference"
)

// Exec is the unified facade for compiling and running source.
// It wires a resolver, a compiler and a host behind one API and keeps the
// modules of open sessions reachable as tools.
type Exec struct {
	resolver *reference.Resolver
	compiler *compile.Compiler
	host     code.Host
	executor *code.DefaultExecutor
	registry *backend.Registry
	agg      *backend.Aggregator
	logger   *zap.Logger
	opts     Options
}

// New creates a new Exec instance with the given options.
func New(opts Options) (*Exec, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts.applyDefaults()
	logger := code.NewZapLogger(opts.Logger)

	resolver, err := reference.New(reference.Config{
		Catalog:       opts.Catalog,
		Environment:   opts.Environment,
		AllowRawPaths: opts.AllowRawPaths,
	})
	if err != nil {
		return nil, err
	}
	compiler, err := compile.New(compile.Config{
		Environment:    opts.Environment,
		MaxSourceBytes: opts.MaxSourceBytes,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	var h code.Host
	switch opts.Isolation {
	case IsolationProcess:
		h, err = isolated.New(isolated.Config{
			Command: opts.WorkerCommand,
			Env:     opts.WorkerEnv,
			Logger:  logger,
		})
	default:
		h, err = host.New(host.Config{
			Environment:    opts.Environment,
			MaxOutputBytes: opts.MaxOutputBytes,
			Logger:         logger,
		})
	}
	if err != nil {
		return nil, err
	}

	executor, err := code.NewDefaultExecutor(code.Config{
		Resolver:            resolver,
		Compiler:            compiler,
		Host:                h,
		DefaultKind:         opts.DefaultKind,
		DefaultTimeout:      opts.DefaultTimeout,
		DefaultCapabilities: opts.DefaultCapabilities,
		MaxConcurrent:       opts.MaxConcurrent,
		Logger:              logger,
		Metrics:             opts.Metrics,
	})
	if err != nil {
		return nil, err
	}

	registry := backend.NewRegistry()
	return &Exec{
		resolver: resolver,
		compiler: compiler,
		host:     h,
		executor: executor,
		registry: registry,
		agg:      backend.NewAggregator(registry),
		logger:   opts.Logger,
		opts:     opts,
	}, nil
}

// Run compiles, loads and invokes one submission. The module is unloaded
// before Run returns.
func (e *Exec) Run(ctx context.Context, sub code.Submission) code.Report {
	return e.executor.Run(ctx, sub)
}

// RunAll runs independent submissions concurrently. Reports are returned in
// submission order.
func (e *Exec) RunAll(ctx context.Context, subs []code.Submission) []code.Report {
	return e.executor.RunAll(ctx, subs)
}

// RunSource is a convenience wrapper around Run for a single function call.
func (e *Exec) RunSource(ctx context.Context, name, source string, capabilities []string, typeName, method string, args ...any) code.Report {
	return e.Run(ctx, code.Submission{
		Unit:         code.NewSourceUnit(name, source),
		Capabilities: capabilities,
		Invocation: code.InvocationRequest{
			TypeName:   typeName,
			MethodName: method,
			Arguments:  args,
		},
	})
}

// Capability describes one resolvable capability.
type Capability struct {
	Name  string   `json:"name"`
	Paths []string `json:"paths"`
}

// Capabilities lists the capabilities this host can resolve, sorted by name.
func (e *Exec) Capabilities() []Capability {
	cat := e.resolver.Catalog()
	out := make([]Capability, 0, len(cat))
	for _, name := range cat.Names() {
		out = append(out, Capability{Name: name, Paths: cat[name]})
	}
	return out
}

// Host returns the host modules are loaded into.
func (e *Exec) Host() code.Host { return e.host }

// ListTools returns the tools of every open session.
func (e *Exec) ListTools(ctx context.Context) ([]model.Tool, error) {
	return e.agg.ListAllTools(ctx)
}

// CallTool invokes a tool of any open session by its full ID
// ("session:Type.Method").
func (e *Exec) CallTool(ctx context.Context, toolID string, args map[string]any) (Result, error) {
	start := time.Now()
	v, err := e.agg.Execute(ctx, toolID, args)
	return toResult(toolID, v, time.Since(start), err)
}

// Sessions returns the names of open sessions.
func (e *Exec) Sessions() []string {
	return e.registry.Names()
}

// Close closes every open session, unloading their modules.
func (e *Exec) Close() error {
	if err := e.registry.StopAll(); err != nil {
		return fmt.Errorf("closing sessions: %w", err)
	}
	return nil
}
