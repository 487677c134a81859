// Package isolated runs each loaded module in its own worker process.
//
// The parent talks to the worker over the worker's stdin and stdout using
// newline-delimited JSON. Because a module lives in a separate process, an
// invocation that overruns its deadline is stopped by killing the process,
// which releases every resource the module held.
//
// A worker is any program that calls [Serve] with its standard streams; the
// toolcompile binary provides one as "toolcompile worker".
package isolated

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonwraymond/toolcompile/code"
)

// DefaultKillGrace is how long Unload waits for a worker to exit on its own.
const DefaultKillGrace = 2 * time.Second

// Config configures a Host.
type Config struct {
	// Command is the worker command line. If empty, the running executable
	// is started with the single argument "worker".
	Command []string

	// Env is the worker environment. If nil, the parent's is inherited.
	Env []string

	// KillGrace bounds how long Unload waits before killing the worker.
	KillGrace time.Duration

	// Logger receives lifecycle events. Optional.
	Logger code.Logger
}

// Host implements code.Host with one worker process per module.
type Host struct {
	cmd    []string
	env    []string
	grace  time.Duration
	logger code.Logger

	mu       sync.Mutex
	resident map[*Module]struct{}
}

// New creates a Host.
func New(cfg Config) (*Host, error) {
	if len(cfg.Command) == 0 {
		self, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("%w: locating worker executable: %v", code.ErrConfiguration, err)
		}
		cfg.Command = []string{self, "worker"}
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = DefaultKillGrace
	}
	logger := cfg.Logger
	if logger == nil {
		logger = code.NopLogger()
	}
	return &Host{
		cmd:      cfg.Command,
		env:      cfg.Env,
		grace:    cfg.KillGrace,
		logger:   logger,
		resident: make(map[*Module]struct{}),
	}, nil
}

// Resident returns the number of live worker processes.
func (h *Host) Resident() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.resident)
}

// Module is a module loaded in a worker process.
type Module struct {
	host    *Host
	name    string
	entries []code.EntryPoint

	mu     sync.Mutex
	proc   *exec.Cmd
	stdin  io.WriteCloser
	lines  *bufio.Scanner
	enc    *json.Encoder
	nextID uint64
	exited chan struct{}
	loaded atomic.Bool
}

// Name returns the artifact name.
func (m *Module) Name() string { return m.name }

// EntryPoints returns the manifest entries the worker reported.
func (m *Module) EntryPoints() []code.EntryPoint {
	out := make([]code.EntryPoint, len(m.entries))
	copy(out, m.entries)
	return out
}

// Loaded reports whether the worker is alive and holds the module.
func (m *Module) Loaded() bool { return m.loaded.Load() }

// Load starts a worker and loads art into it.
func (h *Host) Load(ctx context.Context, art *code.Artifact) (code.Module, error) {
	if art == nil {
		return nil, &code.LoadError{Reason: "artifact is nil"}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	proc := exec.Command(h.cmd[0], h.cmd[1:]...)
	proc.Env = h.env
	proc.Stderr = io.Discard
	stdin, err := proc.StdinPipe()
	if err != nil {
		return nil, &code.LoadError{Artifact: art.Name, Reason: "opening worker stdin", Err: err}
	}
	stdout, err := proc.StdoutPipe()
	if err != nil {
		return nil, &code.LoadError{Artifact: art.Name, Reason: "opening worker stdout", Err: err}
	}
	if err := proc.Start(); err != nil {
		return nil, &code.LoadError{Artifact: art.Name, Reason: "starting worker", Err: err}
	}

	lines := bufio.NewScanner(stdout)
	lines.Buffer(make([]byte, 0, 64<<10), maxMessageBytes)
	m := &Module{
		host:   h,
		name:   art.Name,
		proc:   proc,
		stdin:  stdin,
		lines:  lines,
		enc:    json.NewEncoder(stdin),
		exited: make(chan struct{}),
	}
	go func() {
		_ = proc.Wait()
		close(m.exited)
	}()

	resp, err := m.roundTrip(ctx, request{Op: opLoad, Name: art.Name, Kind: art.Kind, Image: art.Image})
	if err != nil {
		m.kill()
		return nil, &code.LoadError{Artifact: art.Name, Reason: "worker did not answer", Err: err}
	}
	if resp.Error != "" {
		m.kill()
		return nil, &code.LoadError{Artifact: art.Name, Reason: resp.Error}
	}

	m.entries = resp.EntryPoints
	m.loaded.Store(true)
	h.mu.Lock()
	h.resident[m] = struct{}{}
	h.mu.Unlock()

	h.logger.Info("worker module loaded", "module", m.name, "pid", proc.Process.Pid)
	return m, nil
}

// Invoke forwards req to the worker. When ctx ends first the worker is
// killed and the module is unloaded.
func (h *Host) Invoke(ctx context.Context, mod code.Module, req code.InvocationRequest) code.InvocationResult {
	m, ok := mod.(*Module)
	if !ok || m == nil || m.host != h {
		return code.Failed(code.FailureInvalidHandle, "module was not loaded by this host")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded.Load() {
		return code.Failed(code.FailureInvalidHandle, "module %s is not loaded", m.name)
	}
	inv, err := encodeInvocation(req)
	if err != nil {
		return code.Failed(code.FailureArgumentMismatch, "%s: %v", req.Key(), err)
	}

	start := time.Now()
	resp, err := m.roundTrip(ctx, request{Op: opInvoke, Invoke: inv})
	elapsed := time.Since(start)
	if err != nil {
		h.drop(m)
		m.kill()

		var res code.InvocationResult
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			res = code.Failed(code.FailureInvocationTimeout, "%s did not return before the deadline", req.Key())
		case errors.Is(err, context.Canceled):
			res = code.Failed(code.FailureInvocationFault, "%s canceled: %v", req.Key(), err)
		default:
			res = code.Failed(code.FailureInvocationFault, "worker failed: %v", err)
		}
		res.DurationMs = elapsed.Milliseconds()
		h.logger.Warn("worker killed", "module", m.name, "entry", req.Key(), "cause", err)
		return res
	}
	if resp.Result == nil {
		return code.Failed(code.FailureInvocationFault, "worker returned no result")
	}

	res := *resp.Result
	if req.Sink != nil && res.Output != "" {
		_, _ = io.WriteString(req.Sink, res.Output)
	}
	if res.DurationMs == 0 {
		res.DurationMs = elapsed.Milliseconds()
	}
	return res
}

// Unload asks the worker to exit, killing it after the grace period.
func (h *Host) Unload(mod code.Module) error {
	m, ok := mod.(*Module)
	if !ok || m == nil || m.host != h {
		return fmt.Errorf("%w: module was not loaded by this host", code.ErrInvalidHandle)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.loaded.Load() {
		return fmt.Errorf("%w: module %s is already unloaded", code.ErrInvalidHandle, m.name)
	}
	h.drop(m)

	ctx, cancel := context.WithTimeout(context.Background(), h.grace)
	defer cancel()
	if _, err := m.roundTrip(ctx, request{Op: opUnload}); err != nil {
		h.logger.Warn("worker did not acknowledge unload", "module", m.name, "error", err)
	}
	_ = m.stdin.Close()

	select {
	case <-m.exited:
	case <-time.After(h.grace):
		m.kill()
	}
	h.logger.Info("worker module unloaded", "module", m.name)
	return nil
}

func (h *Host) drop(m *Module) {
	m.loaded.Store(false)
	h.mu.Lock()
	delete(h.resident, m)
	h.mu.Unlock()
}

// roundTrip sends req and waits for the matching response, the worker's exit
// or the end of ctx. Caller holds m.mu, or has exclusive access during Load.
func (m *Module) roundTrip(ctx context.Context, req request) (response, error) {
	m.nextID++
	req.ID = m.nextID
	if err := m.enc.Encode(req); err != nil {
		return response{}, fmt.Errorf("sending %s: %w", req.Op, err)
	}

	type reply struct {
		resp response
		err  error
	}
	ch := make(chan reply, 1)
	go func() {
		for m.lines.Scan() {
			var resp response
			if err := json.Unmarshal(m.lines.Bytes(), &resp); err != nil {
				ch <- reply{err: fmt.Errorf("decoding response: %w", err)}
				return
			}
			if resp.ID == req.ID {
				ch <- reply{resp: resp}
				return
			}
		}
		err := m.lines.Err()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		ch <- reply{err: fmt.Errorf("worker exited: %w", err)}
	}()

	select {
	case r := <-ch:
		return r.resp, r.err
	case <-ctx.Done():
		return response{}, ctx.Err()
	}
}

// kill terminates the worker and waits for it to be reaped.
func (m *Module) kill() {
	if m.proc.Process != nil {
		_ = m.proc.Process.Kill()
	}
	_ = m.stdin.Close()
	<-m.exited
}

var (
	_ code.Host   = (*Host)(nil)
	_ code.Module = (*Module)(nil)
)
