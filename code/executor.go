package code

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// CodeUnresolvedCapability is the diagnostic code reported when capability
// resolution fails before compilation starts.
const CodeUnresolvedCapability = "REF001"

// Submission is one compile-load-invoke request.
type Submission struct {
	// Unit is the source to compile.
	Unit SourceUnit

	// Capabilities are the capabilities the source requires, in addition
	// to Config.DefaultCapabilities.
	Capabilities []string

	// Kind selects the output kind. If empty, Config.DefaultKind is used.
	Kind OutputKind

	// Invocation names the entry point to run and its arguments.
	Invocation InvocationRequest

	// Timeout bounds the load step and the invocation step, each on its
	// own. If zero, Config.DefaultTimeout is used.
	Timeout time.Duration
}

// Report is the outcome of one session.
type Report struct {
	// SessionID uniquely identifies the session.
	SessionID string `json:"sessionId"`

	// State is the terminal state.
	State State `json:"state"`

	// Transitions is every state the session passed through, in order.
	Transitions []State `json:"transitions"`

	// References are the resolved references.
	References []Reference `json:"references,omitempty"`

	// Diagnostics are all compiler diagnostics, warnings included.
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`

	// EntryPoints lists the members the compiled module exposes.
	EntryPoints []EntryPoint `json:"entryPoints,omitempty"`

	// Result is the invocation result, nil if the session never invoked.
	Result *InvocationResult `json:"result,omitempty"`

	// Err is the typed error of a failed session.
	Err error `json:"-"`

	// Error is Err rendered as text.
	Error string `json:"error,omitempty"`

	CompileMs int64 `json:"compileMs"`
	LoadMs    int64 `json:"loadMs"`
	InvokeMs  int64 `json:"invokeMs"`
}

// OK reports whether the session completed.
func (r Report) OK() bool { return r.State == StateCompleted }

// Warnings returns the warning diagnostics.
func (r Report) Warnings() []Diagnostic {
	return FilterSeverity(r.Diagnostics, SeverityWarning)
}

// Executor is the main entry point for running sessions.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use; every
// session owns its artifact and module exclusively.
// - Context: cancellation aborts the current stage. A load deadline yields
// StateLoadFailed with ErrLoadTimeout; an invocation deadline yields
// StateInvocationFailed with ErrInvocationTimeout.
// - Errors: failures are reported in Report, never panicked. No module is
// left resident after Run returns.
type Executor interface {
	Run(ctx context.Context, sub Submission) Report
	RunAll(ctx context.Context, subs []Submission) []Report
}

// DefaultExecutor is the standard implementation of Executor.
type DefaultExecutor struct {
	cfg Config
}

// NewDefaultExecutor creates a new DefaultExecutor with the given configuration.
// Returns ErrConfiguration if any required field is missing.
func NewDefaultExecutor(cfg Config) (*DefaultExecutor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &DefaultExecutor{cfg: cfg}, nil
}

// session carries per-run bookkeeping.
type session struct {
	report Report
	life   *lifecycle
	log    Logger
}

func (s *session) to(next State) {
	if err := s.life.to(next); err != nil {
		s.log.Error("session state machine violation", "session", s.report.SessionID, "error", err)
	}
}

func (s *session) fail(state State, err error) Report {
	s.to(state)
	s.report.Err = err
	if err != nil {
		s.report.Error = err.Error()
	}
	return s.finish()
}

func (s *session) finish() Report {
	s.report.State = s.life.current
	s.report.Transitions = s.life.path()
	return s.report
}

// Run executes one session: resolve, compile, load, invoke, unload.
func (e *DefaultExecutor) Run(ctx context.Context, sub Submission) Report {
	s := &session{
		report: Report{SessionID: uuid.NewString()},
		life:   newLifecycle(),
		log:    e.cfg.Logger,
	}
	rep := e.run(ctx, s, sub)
	e.cfg.Metrics.session(rep.State)
	e.cfg.Metrics.diagnostics(rep.Diagnostics)

	if rep.OK() {
		e.cfg.Logger.Info("session completed",
			"session", rep.SessionID,
			"unit", sub.Unit.Name(),
			"compileMs", rep.CompileMs,
			"loadMs", rep.LoadMs,
			"invokeMs", rep.InvokeMs)
	} else {
		e.cfg.Logger.Warn("session failed",
			"session", rep.SessionID,
			"unit", sub.Unit.Name(),
			"state", rep.State,
			"error", rep.Error)
	}
	return rep
}

func (e *DefaultExecutor) run(ctx context.Context, s *session, sub Submission) Report {
	kind := sub.Kind
	if kind == "" {
		kind = e.cfg.DefaultKind
	}
	timeout := sub.Timeout
	if timeout == 0 {
		timeout = e.cfg.DefaultTimeout
	}

	s.to(StateCompiling)
	if !kind.IsValid() {
		return s.fail(StateCompileFailed, fmt.Errorf("%w: unknown output kind %q", ErrConfiguration, kind))
	}

	caps := make([]string, 0, len(e.cfg.DefaultCapabilities)+len(sub.Capabilities))
	caps = append(caps, e.cfg.DefaultCapabilities...)
	caps = append(caps, sub.Capabilities...)

	refs, err := e.cfg.Resolver.Resolve(caps)
	if err != nil {
		s.report.Diagnostics = []Diagnostic{{
			Code:     CodeUnresolvedCapability,
			Severity: SeverityError,
			Message:  err.Error(),
		}}
		return s.fail(StateCompileFailed, err)
	}
	s.report.References = refs.References()

	start := time.Now()
	res, err := e.cfg.Compiler.Compile(ctx, sub.Unit, refs, kind)
	compileTime := time.Since(start)
	s.report.CompileMs = compileTime.Milliseconds()
	e.cfg.Metrics.stage("compile", compileTime)
	s.report.Diagnostics = res.Diagnostics
	if err != nil {
		return s.fail(StateCompileFailed, err)
	}
	if !res.OK() {
		return s.fail(StateCompileFailed, &CompileError{Diagnostics: res.Diagnostics})
	}
	s.report.EntryPoints = res.EntryPoints
	s.to(StateCompiled)

	s.to(StateLoading)
	start = time.Now()
	mod, err := e.load(ctx, res.Artifact, timeout)
	loadTime := time.Since(start)
	s.report.LoadMs = loadTime.Milliseconds()
	e.cfg.Metrics.stage("load", loadTime)
	if err != nil {
		return s.fail(StateLoadFailed, err)
	}
	defer e.release(s, mod)
	s.to(StateLoaded)

	s.to(StateInvoking)
	ictx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ictx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start = time.Now()
	result := e.cfg.Host.Invoke(ictx, mod, sub.Invocation)
	invokeTime := time.Since(start)
	s.report.InvokeMs = invokeTime.Milliseconds()
	e.cfg.Metrics.stage("invoke", invokeTime)
	if result.DurationMs == 0 {
		result.DurationMs = s.report.InvokeMs
	}
	s.report.Result = &result

	if !result.OK() {
		err := result.Err()
		if result.Failure.Kind == FailureInvocationTimeout {
			err = fmt.Errorf("%w: after %v", result.Failure, timeout)
		}
		return s.fail(StateInvocationFailed, err)
	}

	s.to(StateCompleted)
	return s.finish()
}

// load loads art, bounding package initialization by timeout. Errors always
// match ErrLoadFailure; a missed deadline also matches ErrLoadTimeout.
func (e *DefaultExecutor) load(ctx context.Context, art *Artifact, timeout time.Duration) (Module, error) {
	lctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		lctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	mod, err := e.cfg.Host.Load(lctx, art)
	if err == nil {
		return mod, nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		reason := "initialization did not finish before the deadline"
		if timeout > 0 {
			reason = fmt.Sprintf("initialization did not finish within %v", timeout)
		}
		return nil, &LoadError{
			Artifact: art.Name,
			Reason:   reason,
			Err:      fmt.Errorf("%w: %w", ErrLoadTimeout, context.DeadlineExceeded),
		}
	}
	if !errors.Is(err, ErrLoadFailure) {
		err = &LoadError{Artifact: art.Name, Reason: err.Error(), Err: err}
	}
	return nil, err
}

// release unloads mod unless the host already did (timeouts force unload).
func (e *DefaultExecutor) release(s *session, mod Module) {
	if !mod.Loaded() {
		return
	}
	if err := e.cfg.Host.Unload(mod); err != nil {
		e.cfg.Logger.Error("unload failed", "session", s.report.SessionID, "module", mod.Name(), "error", err)
	}
}

// RunAll runs independent sessions concurrently, at most
// Config.MaxConcurrent at a time. Reports are returned in submission order.
func (e *DefaultExecutor) RunAll(ctx context.Context, subs []Submission) []Report {
	reports := make([]Report, len(subs))

	var g errgroup.Group
	g.SetLimit(e.cfg.MaxConcurrent)
	for i := range subs {
		g.Go(func() error {
			reports[i] = e.Run(ctx, subs[i])
			return nil
		})
	}
	_ = g.Wait()

	return reports
}

var _ Executor = (*DefaultExecutor)(nil)
