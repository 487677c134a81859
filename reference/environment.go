package reference

import (
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/jonwraymond/toolcompile/sink"
)

// DeniedPaths are host packages never offered to compiled code because they
// reach outside the process sandbox.
var DeniedPaths = []string{
	"os",
	"os/exec",
	"os/signal",
	"os/user",
	"syscall",
	"unsafe",
	"plugin",
	"net",
	"net/http",
	"runtime",
	"runtime/debug",
	"io/ioutil",
	"path/filepath",
}

// Environment is the set of host symbol tables available to compiled code,
// keyed by import path. It is immutable after construction and safe to share
// across goroutines without locking.
type Environment struct {
	tables map[string]map[string]reflect.Value
	names  map[string]string
	paths  []string
}

// NewEnvironment builds an environment from interpreter-style export tables,
// whose keys have the form "import/path/pkgname".
func NewEnvironment(exports ...interp.Exports) *Environment {
	env := &Environment{
		tables: make(map[string]map[string]reflect.Value),
		names:  make(map[string]string),
	}
	for _, ex := range exports {
		for key, syms := range ex {
			path, name := splitKey(key)
			if path == "" {
				continue
			}
			table := make(map[string]reflect.Value, len(syms))
			for k, v := range syms {
				table[k] = v
			}
			env.tables[path] = table
			env.names[path] = name
		}
	}
	env.paths = make([]string, 0, len(env.tables))
	for p := range env.tables {
		env.paths = append(env.paths, p)
	}
	sort.Strings(env.paths)
	return env
}

// DefaultEnvironment returns the interpreter standard library minus
// DeniedPaths, plus the sink package.
func DefaultEnvironment() *Environment {
	denied := make(map[string]bool, len(DeniedPaths))
	for _, p := range DeniedPaths {
		denied[p] = true
	}
	std := make(interp.Exports, len(stdlib.Symbols))
	for key, syms := range stdlib.Symbols {
		path, _ := splitKey(key)
		if denied[path] {
			continue
		}
		std[key] = syms
	}
	return NewEnvironment(std, interp.Exports{sink.Key: sink.Prototype()})
}

// Has reports whether path is available.
func (e *Environment) Has(path string) bool {
	_, ok := e.tables[path]
	return ok
}

// Paths returns every available path, sorted.
func (e *Environment) Paths() []string {
	out := make([]string, len(e.paths))
	copy(out, e.paths)
	return out
}

// PackageName returns the package name declared at path.
func (e *Environment) PackageName(path string) string {
	if n, ok := e.names[path]; ok {
		return n
	}
	return guessName(path)
}

// Symbols returns the symbol table for path. The returned map must not be
// modified.
func (e *Environment) Symbols(path string) (map[string]reflect.Value, bool) {
	t, ok := e.tables[path]
	return t, ok
}

// Exports returns the interpreter export tables for paths. Paths that are not
// available are reported in missing, in input order.
func (e *Environment) Exports(paths []string) (ex interp.Exports, missing []string) {
	ex = make(interp.Exports, len(paths))
	for _, p := range paths {
		t, ok := e.tables[p]
		if !ok {
			missing = append(missing, p)
			continue
		}
		ex[p+"/"+e.names[p]] = t
	}
	return ex, missing
}

func splitKey(key string) (path, name string) {
	i := strings.LastIndex(key, "/")
	if i <= 0 || i == len(key)-1 {
		return "", ""
	}
	return key[:i], key[i+1:]
}

var majorVersion = regexp.MustCompile(`^v[0-9]+$`)

// guessName derives a package name from an import path, skipping a trailing
// major version element.
func guessName(path string) string {
	parts := strings.Split(path, "/")
	name := parts[len(parts)-1]
	if majorVersion.MatchString(name) && len(parts) > 1 {
		name = parts[len(parts)-2]
	}
	return strings.ReplaceAll(name, "-", "_")
}
