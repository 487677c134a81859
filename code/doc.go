// Package code defines the data model and the session orchestrator for
// compiling and running fragments of Go source inside the host process.
//
// A session follows the fixed call sequence resolve -> compile -> load ->
// invoke -> unload. Each step is provided by a pluggable component:
//
//   - [Resolver]: maps requested capabilities (named host facilities such as
//     "json" or "sink") to a [ReferenceSet] of host symbol tables.
//
//   - [Compiler]: parses and binds a [SourceUnit] against a ReferenceSet and
//     emits an in-memory [Artifact], or returns [Diagnostic] values.
//
//   - [Host]: loads an Artifact into an isolated [Module], invokes entry
//     points by name and unloads the module.
//
//   - [Executor]: the orchestrator that drives the components through the
//     session state machine and produces a [Report].
//
// # State Machine
//
// Sessions move one way through
//
//	idle -> compiling -> {compile_failed | compiled} -> loading ->
//	{load_failed | loaded} -> invoking -> {invocation_failed | completed}
//
// There are no automatic retries; a caller who wants one submits again.
// Whatever the terminal state, no module stays resident after
// [DefaultExecutor.Run] returns.
//
// # Errors
//
// Compile problems are diagnostics, not errors: a failed compilation yields
// [StateCompileFailed] and a [*CompileError] matching [ErrCompilation].
// Execution problems are [Failure] values whose kind maps onto the sentinels
// [ErrMemberNotFound], [ErrArgumentMismatch], [ErrInvocationFault],
// [ErrInvocationTimeout] and [ErrInvalidHandle]. Use errors.Is to classify.
// Package initialization that outlives the session timeout yields
// [StateLoadFailed] with an error matching both [ErrLoadFailure] and
// [ErrLoadTimeout].
package code
