package code

import (
	"context"
	"sync"
	"sync/atomic"
)

// mockResolver implements Resolver for testing.
type mockResolver struct {
	mu sync.Mutex

	// Configurable returns
	refs ReferenceSet
	err  error

	// Call tracking
	calls [][]string
}

func (m *mockResolver) Resolve(capabilities []string) (ReferenceSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, append([]string(nil), capabilities...))
	return m.refs, m.err
}

func (m *mockResolver) lastCall() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1]
}

// mockCompiler implements Compiler for testing.
type mockCompiler struct {
	mu sync.Mutex

	// Configurable returns
	result CompileResult
	err    error

	// Call tracking
	kinds []OutputKind
	units []SourceUnit
}

func (m *mockCompiler) Compile(ctx context.Context, unit SourceUnit, _ ReferenceSet, kind OutputKind) (CompileResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kinds = append(m.kinds, kind)
	m.units = append(m.units, unit)
	if err := ctx.Err(); err != nil {
		return CompileResult{}, err
	}
	if m.err != nil {
		return CompileResult{}, m.err
	}
	res := m.result
	if res.Artifact == nil && !HasErrors(res.Diagnostics) {
		res.Artifact = &Artifact{Name: unit.Name(), Kind: kind, Image: []byte(unit.Text())}
	}
	return res, nil
}

// mockModule implements Module for testing.
type mockModule struct {
	name    string
	entries []EntryPoint
	loaded  atomic.Bool
}

func (m *mockModule) Name() string              { return m.name }
func (m *mockModule) EntryPoints() []EntryPoint { return m.entries }
func (m *mockModule) Loaded() bool              { return m.loaded.Load() }

// mockHost implements Host for testing. loadFn and invokeFn, when set,
// replace the configured returns.
type mockHost struct {
	mu sync.Mutex

	// Configurable returns
	loadErr  error
	loadFn   func(ctx context.Context) error
	result   InvocationResult
	invokeFn func(ctx context.Context, req InvocationRequest) InvocationResult

	// Call tracking
	loads    int
	unloads  int
	requests []InvocationRequest
	resident int
}

func (m *mockHost) Load(ctx context.Context, artifact *Artifact) (Module, error) {
	m.mu.Lock()
	m.loads++
	fn := m.loadFn
	m.mu.Unlock()

	if fn != nil {
		if err := fn(ctx); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	mod := &mockModule{name: artifact.Name}
	mod.loaded.Store(true)
	m.resident++
	return mod, nil
}

func (m *mockHost) Invoke(ctx context.Context, module Module, req InvocationRequest) InvocationResult {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	fn := m.invokeFn
	res := m.result
	m.mu.Unlock()

	if fn != nil {
		res = fn(ctx, req)
	}
	if res.Failure != nil && res.Failure.Kind == FailureInvocationTimeout {
		// Hosts force unload on timeout.
		m.drop(module.(*mockModule))
	}
	return res
}

func (m *mockHost) Unload(module Module) error {
	mod := module.(*mockModule)
	if !mod.Loaded() {
		return ErrInvalidHandle
	}
	m.mu.Lock()
	m.unloads++
	m.mu.Unlock()
	m.drop(mod)
	return nil
}

func (m *mockHost) drop(mod *mockModule) {
	if mod.loaded.Swap(false) {
		m.mu.Lock()
		m.resident--
		m.mu.Unlock()
	}
}

func (m *mockHost) stats() (loads, unloads, resident int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads, m.unloads, m.resident
}

// recordingLogger implements Logger and keeps every message.
type recordingLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *recordingLogger) record(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, level+": "+msg)
}

func (l *recordingLogger) Info(msg string, _ ...any)  { l.record("info", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.record("warn", msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.record("error", msg) }

func (l *recordingLogger) has(entry string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.messages {
		if m == entry {
			return true
		}
	}
	return false
}

func testRefs() ReferenceSet {
	return NewReferenceSet(
		Reference{Capability: "core", Path: "errors"},
		Reference{Capability: "core", Path: "fmt"},
	)
}

func newTestExecutor(t interface{ Fatalf(string, ...any) }, c *mockCompiler, h *mockHost) *DefaultExecutor {
	exec, err := NewDefaultExecutor(Config{
		Resolver: &mockResolver{refs: testRefs()},
		Compiler: c,
		Host:     h,
	})
	if err != nil {
		t.Fatalf("NewDefaultExecutor() error = %v", err)
	}
	return exec
}
