package reference

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/jonwraymond/toolcompile/code"
)

// Config configures a Resolver.
type Config struct {
	// Catalog maps capability names to paths. If nil, DefaultCatalog is used.
	Catalog Catalog

	// Environment is the host symbol environment. If nil,
	// DefaultEnvironment is used.
	Environment *Environment

	// AllowRawPaths lets callers name an environment path directly as a
	// capability (for example "encoding/xml").
	AllowRawPaths bool
}

// Resolver maps capability names to a ReferenceSet. It holds no mutable
// state, so one Resolver may serve any number of concurrent sessions.
type Resolver struct {
	catalog Catalog
	env     *Environment
	raw     bool
}

// New creates a Resolver. It returns ErrConfiguration if the environment
// cannot satisfy the core references.
func New(cfg Config) (*Resolver, error) {
	if cfg.Catalog == nil {
		cfg.Catalog = DefaultCatalog()
	}
	if cfg.Environment == nil {
		cfg.Environment = DefaultEnvironment()
	}
	for _, p := range Core {
		if !cfg.Environment.Has(p) {
			return nil, fmt.Errorf("%w: environment lacks core path %q", code.ErrConfiguration, p)
		}
	}
	return &Resolver{
		catalog: cfg.Catalog,
		env:     cfg.Environment,
		raw:     cfg.AllowRawPaths,
	}, nil
}

// Environment returns the environment references resolve against.
func (r *Resolver) Environment() *Environment { return r.env }

// Catalog returns the capabilities that resolve on this host.
func (r *Resolver) Catalog() Catalog { return r.catalog.Available(r.env) }

// Resolve returns the core references followed by the references for
// capabilities, sorted by path. The result depends only on the set of
// capabilities, not their order or repetition. Every unknown capability is
// reported, each wrapping code.ErrUnresolvedCapability.
func (r *Resolver) Resolve(capabilities []string) (code.ReferenceSet, error) {
	refs := make([]code.Reference, 0, len(Core))
	for _, p := range Core {
		refs = append(refs, code.Reference{Capability: CoreCapability, Path: p})
	}

	var (
		errs  *multierror.Error
		extra []code.Reference
		seen  = make(map[string]bool, len(capabilities))
	)
	for _, c := range capabilities {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true

		paths, ok := r.catalog[c]
		if !ok {
			if r.raw && r.env.Has(c) {
				paths = []string{c}
			} else {
				errs = multierror.Append(errs, fmt.Errorf("%w: %q", code.ErrUnresolvedCapability, c))
				continue
			}
		}
		for _, p := range paths {
			if !r.env.Has(p) {
				errs = multierror.Append(errs, fmt.Errorf("%w: %q needs %q, which this host does not provide", code.ErrUnresolvedCapability, c, p))
				continue
			}
			extra = append(extra, code.Reference{Capability: c, Path: p})
		}
	}
	if errs != nil {
		errs.ErrorFormat = joinErrors
		return code.ReferenceSet{}, errs.ErrorOrNil()
	}

	sort.SliceStable(extra, func(i, j int) bool {
		if extra[i].Path != extra[j].Path {
			return extra[i].Path < extra[j].Path
		}
		return extra[i].Capability < extra[j].Capability
	})
	return code.NewReferenceSet(append(refs, extra...)...), nil
}

func joinErrors(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

var _ code.Resolver = (*Resolver)(nil)
