package exec

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonwraymond/tooldiscovery/index"
	"github.com/jonwraymond/tooldiscovery/search"
	"github.com/jonwraymond/tooldiscovery/tooldoc"
	"github.com/jonwraymond/toolfoundation/model"
	"go.uber.org/zap"

	"github.com/jonwraymond/toolcompile/backend"
	modulebackend "github.com/jonwraymond/toolcompile/backend/module"
	"github.com/jonwraymond/toolcompile/code"
)

// ErrSessionClosed is returned by calls on a closed session.
var ErrSessionClosed = errors.New("session closed")

// OpenRequest describes a module to keep loaded.
type OpenRequest struct {
	// Unit is the source to compile.
	Unit code.SourceUnit

	// Capabilities are requested in addition to Options.DefaultCapabilities.
	Capabilities []string

	// Kind selects the output kind. If empty, Options.DefaultKind is used.
	Kind code.OutputKind
}

// Session is a loaded module kept resident for repeated calls. Its entry
// points are indexed for search and documented as tools. A Session is safe
// for concurrent use; calls into its module are serialized by the host.
type Session struct {
	id          string
	name        string
	exec        *Exec
	backend     *modulebackend.Backend
	index       index.Index
	docs        *tooldoc.InMemoryStore
	diagnostics []code.Diagnostic
	references  []code.Reference
	closed      atomic.Bool
}

// Open resolves, compiles and loads req and keeps the module resident until
// Close. Compilation failures are returned as *code.CompileError.
func (e *Exec) Open(ctx context.Context, req OpenRequest) (*Session, error) {
	kind := req.Kind
	if kind == "" {
		kind = e.opts.DefaultKind
	}
	caps := append(append([]string(nil), e.opts.DefaultCapabilities...), req.Capabilities...)

	refs, err := e.resolver.Resolve(caps)
	if err != nil {
		return nil, err
	}
	res, err := e.compiler.Compile(ctx, req.Unit, refs, kind)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return nil, &code.CompileError{Diagnostics: res.Diagnostics}
	}
	mod, err := e.load(ctx, res.Artifact)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	s := &Session{
		id:          id,
		name:        sessionName(req.Unit.Name(), id),
		exec:        e,
		diagnostics: res.Diagnostics,
		references:  refs.References(),
	}
	if err := s.attach(ctx, mod); err != nil {
		if mod.Loaded() {
			_ = e.host.Unload(mod)
		}
		return nil, err
	}

	e.logger.Info("session opened",
		zap.String("session", s.name),
		zap.Int("tools", len(mod.EntryPoints())),
		zap.Int("warnings", len(code.FilterSeverity(res.Diagnostics, code.SeverityWarning))))
	return s, nil
}

// load loads art, bounding package initialization by the default timeout.
func (e *Exec) load(ctx context.Context, art *code.Artifact) (code.Module, error) {
	if d := e.opts.DefaultTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	mod, err := e.host.Load(ctx, art)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %w", code.ErrLoadTimeout, err)
	}
	return mod, err
}

// attach registers the module as a backend and indexes its tools.
func (s *Session) attach(ctx context.Context, mod code.Module) error {
	b, err := modulebackend.New(modulebackend.Config{
		Name:    s.name,
		Host:    s.exec.host,
		Module:  mod,
		Timeout: s.exec.opts.DefaultTimeout,
	})
	if err != nil {
		return err
	}

	s.index = index.NewInMemoryIndex(index.IndexOptions{
		Searcher: search.NewBM25Searcher(search.BM25Config{}),
	})
	s.docs = tooldoc.NewInMemoryStore(tooldoc.StoreOptions{Index: s.index})

	tools, err := b.ListTools(ctx)
	if err != nil {
		return err
	}
	entries := make(map[string]code.EntryPoint, len(tools))
	for _, ep := range mod.EntryPoints() {
		entries[ep.Key()] = ep
	}
	for _, tool := range tools {
		if err := s.index.RegisterTool(tool, model.NewLocalBackend(s.name)); err != nil {
			return fmt.Errorf("indexing %s: %w", tool.Name, err)
		}
		ep := entries[tool.Name]
		entry := tooldoc.DocEntry{Summary: ep.Signature(), Notes: ep.Doc}
		if err := s.docs.RegisterDoc(backend.FormatToolID(s.name, tool.Name), entry); err != nil {
			return fmt.Errorf("documenting %s: %w", tool.Name, err)
		}
	}

	if err := s.exec.registry.Register(b); err != nil {
		return err
	}
	s.backend = b
	return nil
}

// ID returns the unique session ID.
func (s *Session) ID() string { return s.id }

// Name returns the session name, which is also the tool namespace.
func (s *Session) Name() string { return s.name }

// Diagnostics returns the warnings produced while compiling the module.
func (s *Session) Diagnostics() []code.Diagnostic { return s.diagnostics }

// References returns the references the module was compiled against.
func (s *Session) References() []code.Reference { return s.references }

// EntryPoints returns the module's entry points.
func (s *Session) EntryPoints() []code.EntryPoint { return s.backend.Module().EntryPoints() }

// Tools returns the module's entry points as tools.
func (s *Session) Tools(ctx context.Context) ([]model.Tool, error) {
	return s.backend.ListTools(ctx)
}

// Search finds tools of this session matching query.
func (s *Session) Search(_ context.Context, query string, limit int) ([]ToolSummary, error) {
	return s.index.Search(query, limit)
}

// Describe returns documentation for a tool. toolID may omit the session
// namespace.
func (s *Session) Describe(_ context.Context, toolID string, level tooldoc.DetailLevel) (tooldoc.ToolDoc, error) {
	return s.docs.DescribeTool(s.qualify(toolID), level)
}

// Invoke calls an entry point directly. The default timeout applies unless
// ctx carries an earlier deadline.
func (s *Session) Invoke(ctx context.Context, req code.InvocationRequest) code.InvocationResult {
	if s.closed.Load() {
		return code.Failed(code.FailureInvalidHandle, "session %s is closed", s.name)
	}
	if d := s.exec.opts.DefaultTimeout; d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	start := time.Now()
	res := s.exec.host.Invoke(ctx, s.backend.Module(), req)
	if res.DurationMs == 0 {
		res.DurationMs = time.Since(start).Milliseconds()
	}
	return res
}

// Call invokes a tool with named arguments. toolID may omit the session
// namespace.
func (s *Session) Call(ctx context.Context, toolID string, args map[string]any) (Result, error) {
	id := s.qualify(toolID)
	if s.closed.Load() {
		return toResult(id, nil, 0, fmt.Errorf("%w: %s", ErrSessionClosed, s.name))
	}
	return s.exec.CallTool(ctx, id, args)
}

// Stream invokes a tool and streams its sink output. See
// backend.StreamingBackend for the channel protocol.
func (s *Session) Stream(ctx context.Context, toolID string, args map[string]any) (<-chan any, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("%w: %s", ErrSessionClosed, s.name)
	}
	return s.exec.agg.ExecuteStream(ctx, s.qualify(toolID), args)
}

// Close unloads the module. Closing twice is a no-op.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	err := s.exec.registry.Unregister(s.name)
	s.exec.logger.Info("session closed", zap.String("session", s.name))
	return err
}

func (s *Session) qualify(toolID string) string {
	if strings.Contains(toolID, ":") {
		return toolID
	}
	return backend.FormatToolID(s.name, toolID)
}

var unsafeName = regexp.MustCompile(`[^a-z0-9_-]+`)

// sessionName derives a tool namespace from the unit name and session ID.
func sessionName(unit, id string) string {
	base := strings.Trim(unsafeName.ReplaceAllString(strings.ToLower(unit), "-"), "-")
	if base == "" {
		base = "unit"
	}
	return base + "-" + id[:8]
}
