package code

import "fmt"

// State is a session lifecycle state.
type State string

const (
	StateIdle             State = "idle"
	StateCompiling        State = "compiling"
	StateCompileFailed    State = "compile_failed"
	StateCompiled         State = "compiled"
	StateLoading          State = "loading"
	StateLoadFailed       State = "load_failed"
	StateLoaded           State = "loaded"
	StateInvoking         State = "invoking"
	StateInvocationFailed State = "invocation_failed"
	StateCompleted        State = "completed"
)

// IsTerminal reports whether s ends a session.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompileFailed, StateLoadFailed, StateInvocationFailed, StateCompleted:
		return true
	default:
		return false
	}
}

// IsFailed reports whether s is a failed terminal state.
func (s State) IsFailed() bool {
	return s.IsTerminal() && s != StateCompleted
}

func isAllowedTransition(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateCompiling
	case StateCompiling:
		return to == StateCompileFailed || to == StateCompiled
	case StateCompiled:
		return to == StateLoading
	case StateLoading:
		return to == StateLoadFailed || to == StateLoaded
	case StateLoaded:
		return to == StateInvoking
	case StateInvoking:
		return to == StateInvocationFailed || to == StateCompleted
	default:
		return false
	}
}

// lifecycle records the one-directional path a session takes.
type lifecycle struct {
	current State
	history []State
}

func newLifecycle() *lifecycle {
	return &lifecycle{current: StateIdle, history: []State{StateIdle}}
}

// to moves the session to next. Disallowed transitions are programming
// errors in the orchestrator and are reported, not applied.
func (l *lifecycle) to(next State) error {
	if !isAllowedTransition(l.current, next) {
		return fmt.Errorf("disallowed transition: %s -> %s", l.current, next)
	}
	l.current = next
	l.history = append(l.history, next)
	return nil
}

func (l *lifecycle) path() []State {
	out := make([]State, len(l.history))
	copy(out, l.history)
	return out
}
