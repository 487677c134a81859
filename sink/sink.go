// Package sink provides the explicit output channel handed to dynamically
// compiled code in place of the process console.
//
// Source code reaches it with
//
//	import "sink"
//
//	sink.Println("hello")
//	sink.Emit("total", 42)
//
// Each loaded module owns one [Dispatcher]. The host points the dispatcher at
// a fresh buffer (and an optional caller writer) for every invocation, so
// output never leaks between invocations or onto a shared stream.
package sink

import (
	"bytes"
	"fmt"
	"io"
	"reflect"
	"sync"
)

// Path is the import path of the sink package as seen by compiled code.
const Path = "sink"

// Key is the symbol table key for Path, in interpreter export form.
const Key = Path + "/" + Path

// DefaultMaxBytes caps the output captured for a single invocation.
const DefaultMaxBytes = 1 << 20

// Dispatcher routes writes to the active invocation. Writes made while no
// invocation is active are discarded.
type Dispatcher struct {
	mu        sync.Mutex
	active    bool
	buf       bytes.Buffer
	tee       io.Writer
	max       int
	truncated bool
}

// NewDispatcher creates a dispatcher that captures at most maxBytes per
// invocation. A non-positive maxBytes selects DefaultMaxBytes.
func NewDispatcher(maxBytes int) *Dispatcher {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Dispatcher{max: maxBytes}
}

// Begin starts capturing for a new invocation. tee, if non-nil, also receives
// every write as it happens.
func (d *Dispatcher) Begin(tee io.Writer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buf.Reset()
	d.tee = tee
	d.active = true
	d.truncated = false
}

// End stops capturing and returns what was written since Begin.
func (d *Dispatcher) End() (output string, truncated bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	output = d.buf.String()
	truncated = d.truncated
	d.buf.Reset()
	d.tee = nil
	d.active = false
	return output, truncated
}

// Write implements io.Writer. It never fails; output beyond the cap is
// dropped and reported by End. The tee is written under the lock, so End
// waits for a blocked tee and no write reaches it afterwards.
func (d *Dispatcher) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.active {
		return len(p), nil
	}
	room := d.max - d.buf.Len()
	if room < len(p) {
		d.truncated = true
		if room > 0 {
			d.buf.Write(p[:room])
		}
	} else {
		d.buf.Write(p)
	}
	if d.tee != nil {
		_, _ = d.tee.Write(p)
	}
	return len(p), nil
}

// Exports returns the symbol table of the sink package bound to w.
func Exports(w io.Writer) map[string]reflect.Value {
	return map[string]reflect.Value{
		"Print": reflect.ValueOf(func(a ...any) {
			fmt.Fprint(w, a...)
		}),
		"Println": reflect.ValueOf(func(a ...any) {
			fmt.Fprintln(w, a...)
		}),
		"Printf": reflect.ValueOf(func(format string, a ...any) {
			fmt.Fprintf(w, format, a...)
		}),
		"Emit": reflect.ValueOf(func(key string, value any) {
			fmt.Fprintf(w, "%s=%v\n", key, value)
		}),
		"Writer": reflect.ValueOf(func() io.Writer {
			return w
		}),
	}
}

// Prototype returns the sink symbol table bound to io.Discard. Compilers use
// it for type information; hosts bind a real Dispatcher at load time.
func Prototype() map[string]reflect.Value {
	return Exports(io.Discard)
}
