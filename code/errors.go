package code

import (
	"errors"
	"fmt"
)

// Sentinel errors for error classification.
var (
	// ErrUnresolvedCapability indicates a requested capability has no
	// artifact mapping on this host.
	ErrUnresolvedCapability = errors.New("unresolved capability")

	// ErrCompilation indicates compilation produced error diagnostics.
	ErrCompilation = errors.New("compilation failed")

	// ErrLoadFailure indicates an artifact image could not be loaded, either
	// because it is malformed or because it references symbols absent at
	// load time.
	ErrLoadFailure = errors.New("load failure")

	// ErrLoadTimeout indicates package initialization did not finish before
	// the session timeout. It is always reported together with
	// ErrLoadFailure.
	ErrLoadTimeout = errors.New("load timeout")

	// ErrMemberNotFound indicates the requested type or method does not exist
	// in the loaded module.
	ErrMemberNotFound = errors.New("member not found")

	// ErrArgumentMismatch indicates arity or argument types are incompatible.
	ErrArgumentMismatch = errors.New("argument mismatch")

	// ErrInvocationFault indicates the invoked code raised an unhandled fault.
	ErrInvocationFault = errors.New("invocation fault")

	// ErrInvocationTimeout indicates the invocation exceeded its deadline.
	ErrInvocationTimeout = errors.New("invocation timeout")

	// ErrInvalidHandle indicates a module handle that was unloaded or never
	// produced by this host.
	ErrInvalidHandle = errors.New("invalid module handle")

	// ErrConfiguration indicates an invalid or incomplete configuration.
	ErrConfiguration = errors.New("configuration error")
)

// CompileError carries the diagnostics of a failed compilation.
type CompileError struct {
	Diagnostics []Diagnostic
}

// Error summarizes the error diagnostics.
func (e *CompileError) Error() string {
	errs := FilterSeverity(e.Diagnostics, SeverityError)
	switch len(errs) {
	case 0:
		return ErrCompilation.Error()
	case 1:
		return fmt.Sprintf("%s: %s", ErrCompilation, errs[0])
	default:
		return fmt.Sprintf("%s: %s (and %d more errors)", ErrCompilation, errs[0], len(errs)-1)
	}
}

// Is matches ErrCompilation.
func (e *CompileError) Is(target error) bool {
	return target == ErrCompilation
}

// LoadError is returned by hosts when an artifact cannot be loaded.
type LoadError struct {
	// Artifact is the logical name of the artifact.
	Artifact string

	// Reason describes what failed.
	Reason string

	// Err is the underlying error, if any.
	Err error
}

// Error returns the error message.
func (e *LoadError) Error() string {
	if e.Artifact != "" {
		return fmt.Sprintf("%s: %s: %s", ErrLoadFailure, e.Artifact, e.Reason)
	}
	return fmt.Sprintf("%s: %s", ErrLoadFailure, e.Reason)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error { return e.Err }

// Is matches ErrLoadFailure.
func (e *LoadError) Is(target error) bool {
	return target == ErrLoadFailure
}
