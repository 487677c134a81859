package backend

import (
	"context"
	"errors"

	"github.com/jonwraymond/toolfoundation/model"
)

// Common errors for backend operations.
var (
	ErrBackendNotFound    = errors.New("backend not found")
	ErrBackendDisabled    = errors.New("backend disabled")
	ErrToolNotFound       = errors.New("tool not found in backend")
	ErrBackendUnavailable = errors.New("backend unavailable")
)

// Backend is a named source of invocable tools. The module backend exposes
// the entry points of one loaded module.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods must honor cancellation/deadlines.
// - Errors: use ErrBackendNotFound/ErrBackendDisabled/ErrToolNotFound/ErrBackendUnavailable where applicable.
// - Lifecycle: after Stop, Execute returns ErrBackendUnavailable.
type Backend interface {
	// Kind returns the backend type (e.g., "module").
	Kind() string

	// Name returns the unique instance name for this backend.
	Name() string

	// Enabled returns whether this backend is currently enabled.
	Enabled() bool

	// ListTools returns all tools available from this backend.
	ListTools(ctx context.Context) ([]model.Tool, error)

	// Execute invokes a tool on this backend.
	Execute(ctx context.Context, tool string, args map[string]any) (any, error)

	// Start prepares the backend for use.
	Start(ctx context.Context) error

	// Stop releases everything the backend holds.
	Stop() error
}

// StreamingBackend delivers output as it is produced.
//
// Contract:
// - If ExecuteStream returns nil error, the channel must be non-nil.
// - The channel carries output chunks as strings followed by exactly one
// final item: the tool result, or an error. It is closed afterwards.
type StreamingBackend interface {
	Backend

	ExecuteStream(ctx context.Context, tool string, args map[string]any) (<-chan any, error)
}
