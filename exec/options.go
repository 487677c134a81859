package exec

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jonwraymond/toolcompile/code"
	"github.com/jonwraymond/toolcompile/reference"
)

// Default configuration values.
const (
	DefaultTimeout       = 30 * time.Second
	DefaultMaxConcurrent = code.DefaultMaxConcurrent
)

// Isolation selects where modules run.
type Isolation string

const (
	// IsolationNone runs modules in the calling process.
	IsolationNone Isolation = "none"

	// IsolationProcess runs every module in its own worker process, so a
	// timeout kills the module outright.
	IsolationProcess Isolation = "process"
)

// Options configures an Exec instance. The zero value is usable.
type Options struct {
	// Catalog maps capability names to host paths.
	// Default: reference.DefaultCatalog()
	Catalog reference.Catalog

	// Environment is the host symbol environment offered to compiled code.
	// Default: reference.DefaultEnvironment()
	Environment *reference.Environment

	// AllowRawPaths lets a capability name a host path directly.
	AllowRawPaths bool

	// Isolation selects the host implementation.
	// Default: IsolationNone
	Isolation Isolation

	// WorkerCommand is the worker command line for IsolationProcess.
	// Default: the running executable with argument "worker".
	WorkerCommand []string

	// WorkerEnv is the worker environment for IsolationProcess.
	// Default: inherited.
	WorkerEnv []string

	// DefaultKind is the output kind for submissions that name none.
	// Default: code.OutputLibrary
	DefaultKind code.OutputKind

	// DefaultCapabilities are added to every submission.
	DefaultCapabilities []string

	// DefaultTimeout bounds each load and each invocation.
	// Default: 30s
	DefaultTimeout time.Duration

	// MaxConcurrent bounds RunAll parallelism.
	// Default: 4
	MaxConcurrent int

	// MaxSourceBytes bounds the size of a source unit.
	// Default: compile.DefaultMaxSourceBytes
	MaxSourceBytes int

	// MaxOutputBytes bounds sink output captured per invocation.
	// Default: sink.DefaultMaxBytes
	MaxOutputBytes int

	// Logger receives structured events.
	// Default: no logging.
	Logger *zap.Logger

	// Metrics records session metrics. Optional.
	Metrics *code.Metrics
}

// validate checks option values.
func (o *Options) validate() error {
	switch o.Isolation {
	case "", IsolationNone, IsolationProcess:
	default:
		return fmt.Errorf("%w: unknown isolation %q", code.ErrConfiguration, o.Isolation)
	}
	if o.DefaultKind != "" && !o.DefaultKind.IsValid() {
		return fmt.Errorf("%w: unknown output kind %q", code.ErrConfiguration, o.DefaultKind)
	}
	if o.DefaultTimeout < 0 {
		return fmt.Errorf("%w: DefaultTimeout must not be negative", code.ErrConfiguration)
	}
	if o.MaxConcurrent < 0 {
		return fmt.Errorf("%w: MaxConcurrent must not be negative", code.ErrConfiguration)
	}
	return nil
}

// applyDefaults sets default values for unset optional fields.
func (o *Options) applyDefaults() {
	if o.Catalog == nil {
		o.Catalog = reference.DefaultCatalog()
	}
	if o.Environment == nil {
		o.Environment = reference.DefaultEnvironment()
	}
	if o.Isolation == "" {
		o.Isolation = IsolationNone
	}
	if o.DefaultKind == "" {
		o.DefaultKind = code.OutputLibrary
	}
	if o.DefaultTimeout == 0 {
		o.DefaultTimeout = DefaultTimeout
	}
	if o.MaxConcurrent == 0 {
		o.MaxConcurrent = DefaultMaxConcurrent
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}
