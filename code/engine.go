package code

import "context"

// Resolver maps requested capabilities to the references a compiler needs.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use without
// external locking; lookups are read-only.
// - Determinism: the same capabilities and host environment yield the same
// ReferenceSet in the same order.
// - Errors: unknown capabilities return an error matching ErrUnresolvedCapability.
type Resolver interface {
	// Resolve returns the references for capabilities, always including the
	// core runtime surface.
	Resolve(capabilities []string) (ReferenceSet, error)
}

// Compiler turns a SourceUnit into an in-memory Artifact.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation and return ctx.Err() when canceled.
// - Errors: syntax and binding problems are reported as Error diagnostics in
// the CompileResult, never as the returned error. The returned error is
// reserved for cancellation and internal failures.
// - Ownership: the returned Artifact is owned by the caller's session.
type Compiler interface {
	Compile(ctx context.Context, unit SourceUnit, refs ReferenceSet, kind OutputKind) (CompileResult, error)
}

// Module is a loaded artifact handle.
//
// Contract:
// - A Module belongs to exactly one session and is never shared.
// - After unload, Loaded returns false and every invoke fails with
// FailureInvalidHandle.
type Module interface {
	// Name returns the artifact name the module was loaded from.
	Name() string

	// EntryPoints returns the invocable members, in manifest order.
	EntryPoints() []EntryPoint

	// Loaded reports whether the module is still resident.
	Loaded() bool
}

// Host loads artifacts, invokes entry points and unloads modules.
//
// Contract:
// - Concurrency: Load/Unload/Invoke on distinct modules may run concurrently;
// invocations on one module are serialized.
// - Context: Load must return within a bounded grace period after the context
// ends, with an error wrapping ctx.Err(). Invoke must return
// FailureInvocationTimeout within a bounded grace period after the context
// deadline and leave the module unloaded.
// - Errors: Load failures match ErrLoadFailure. Invoke never panics and never
// returns faults from invoked code other than as a Failure.
// - Isolation: Unload is a hard release point; no image remains resident.
type Host interface {
	Load(ctx context.Context, artifact *Artifact) (Module, error)
	Invoke(ctx context.Context, module Module, req InvocationRequest) InvocationResult
	Unload(module Module) error
}
