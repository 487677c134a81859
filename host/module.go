package host

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/jonwraymond/toolcompile/code"
	"github.com/jonwraymond/toolcompile/sink"
)

// Module is a loaded artifact. It implements code.Module.
type Module struct {
	host    *Host
	name    string
	entries []code.EntryPoint
	sink    *sink.Dispatcher

	mu     sync.Mutex
	table  map[string]reflect.Value
	loaded atomic.Bool
}

// Name returns the artifact name.
func (m *Module) Name() string { return m.name }

// EntryPoints returns the manifest entries in order.
func (m *Module) EntryPoints() []code.EntryPoint {
	out := make([]code.EntryPoint, len(m.entries))
	copy(out, m.entries)
	return out
}

// Loaded reports whether the module is resident.
func (m *Module) Loaded() bool { return m.loaded.Load() }

var _ code.Module = (*Module)(nil)
