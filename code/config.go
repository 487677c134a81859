package code

import (
	"fmt"
	"strings"
	"time"
)

// DefaultMaxConcurrent bounds RunAll parallelism when Config leaves it unset.
const DefaultMaxConcurrent = 4

// Config holds the configuration for a session executor.
type Config struct {
	// Resolver maps capabilities to references.
	// Required.
	Resolver Resolver

	// Compiler produces artifacts.
	// Required.
	Compiler Compiler

	// Host loads and invokes artifacts.
	// Required.
	Host Host

	// DefaultKind is used when a Submission leaves Kind empty.
	// Defaults to OutputLibrary.
	DefaultKind OutputKind

	// DefaultTimeout bounds the load and invocation steps when a
	// Submission leaves Timeout zero. If zero, no default timeout is applied.
	DefaultTimeout time.Duration

	// DefaultCapabilities are requested for every submission in addition
	// to the submission's own.
	DefaultCapabilities []string

	// MaxConcurrent bounds the number of sessions RunAll runs at once.
	// Defaults to DefaultMaxConcurrent.
	MaxConcurrent int

	// Logger is an optional logger for observability.
	Logger Logger

	// Metrics optionally records session outcomes.
	Metrics *Metrics
}

// Validate checks that all required fields are set.
// Returns ErrConfiguration if any required field is missing.
func (c *Config) Validate() error {
	var missing []string

	if c.Resolver == nil {
		missing = append(missing, "Resolver")
	}
	if c.Compiler == nil {
		missing = append(missing, "Compiler")
	}
	if c.Host == nil {
		missing = append(missing, "Host")
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required fields: %s",
			ErrConfiguration, strings.Join(missing, ", "))
	}
	if c.DefaultKind != "" && !c.DefaultKind.IsValid() {
		return fmt.Errorf("%w: unknown output kind %q", ErrConfiguration, c.DefaultKind)
	}
	if c.DefaultTimeout < 0 {
		return fmt.Errorf("%w: negative default timeout", ErrConfiguration)
	}
	return nil
}

// applyDefaults sets default values for optional fields.
func (c *Config) applyDefaults() {
	if c.DefaultKind == "" {
		c.DefaultKind = OutputLibrary
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.Logger == nil {
		c.Logger = nopLogger{}
	}
}
