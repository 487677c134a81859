package code

import (
	"fmt"
	"io"
	"strings"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/unicode/norm"
)

// SourceUnit is an immutable unit of source text plus the logical name it is
// compiled under. Construct it with NewSourceUnit.
type SourceUnit struct {
	name string
	text string
}

// NewSourceUnit creates a SourceUnit. Line endings are normalized to "\n" and
// the text is converted to Unicode NFC so that equivalent submissions produce
// identical artifacts.
func NewSourceUnit(name, text string) SourceUnit {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return SourceUnit{
		name: strings.TrimSpace(name),
		text: norm.NFC.String(text),
	}
}

// Name returns the logical name of the unit.
func (u SourceUnit) Name() string { return u.name }

// Text returns the normalized source text.
func (u SourceUnit) Text() string { return u.text }

// IsZero reports whether the unit carries no source text.
func (u SourceUnit) IsZero() bool { return strings.TrimSpace(u.text) == "" }

// Digest returns a stable 64-bit digest of the normalized text.
func (u SourceUnit) Digest() uint64 { return xxhash.Sum64String(u.text) }

// Reference is a single resolved capability: the capability name that was
// requested and the host symbol table path that satisfies it.
type Reference struct {
	// Capability is the requested capability name.
	Capability string `json:"capability"`

	// Path is the opaque locator of the host symbol table, which is also
	// the import path source code uses to reach it.
	Path string `json:"path"`
}

// ReferenceSet is an ordered, de-duplicated sequence of references.
// The zero value is an empty set.
type ReferenceSet struct {
	refs []Reference
}

// NewReferenceSet builds a set preserving the given order. Later references
// whose Path was already seen are dropped.
func NewReferenceSet(refs ...Reference) ReferenceSet {
	seen := make(map[string]struct{}, len(refs))
	out := make([]Reference, 0, len(refs))
	for _, r := range refs {
		if r.Path == "" {
			continue
		}
		if _, ok := seen[r.Path]; ok {
			continue
		}
		seen[r.Path] = struct{}{}
		out = append(out, r)
	}
	return ReferenceSet{refs: out}
}

// Len returns the number of references in the set.
func (s ReferenceSet) Len() int { return len(s.refs) }

// References returns a copy of the references in order.
func (s ReferenceSet) References() []Reference {
	out := make([]Reference, len(s.refs))
	copy(out, s.refs)
	return out
}

// Paths returns the reference paths in order.
func (s ReferenceSet) Paths() []string {
	out := make([]string, len(s.refs))
	for i, r := range s.refs {
		out[i] = r.Path
	}
	return out
}

// Contains reports whether path is part of the set.
func (s ReferenceSet) Contains(path string) bool {
	_, ok := s.Lookup(path)
	return ok
}

// Lookup returns the reference for path.
func (s ReferenceSet) Lookup(path string) (Reference, bool) {
	for _, r := range s.refs {
		if r.Path == path {
			return r, true
		}
	}
	return Reference{}, false
}

// OutputKind selects what the compiler produces.
type OutputKind string

const (
	// OutputLibrary produces a module whose exported functions and methods
	// are entry points.
	OutputLibrary OutputKind = "library"

	// OutputExecutable produces a module whose single entry point is main.
	OutputExecutable OutputKind = "executable"
)

// IsValid reports whether k is a known output kind.
func (k OutputKind) IsValid() bool {
	return k == OutputLibrary || k == OutputExecutable
}

// Artifact is an in-memory compiled binary image plus the logical name it was
// produced under. It is owned by a single session and never written to disk.
type Artifact struct {
	// Name is the logical name of the artifact.
	Name string

	// Kind is the output kind the artifact was compiled as.
	Kind OutputKind

	// Image is the encoded binary image.
	Image []byte
}

// Size returns the image size in bytes.
func (a *Artifact) Size() int {
	if a == nil {
		return 0
	}
	return len(a.Image)
}

// Severity classifies a diagnostic.
type Severity int

const (
	// SeverityWarning diagnostics are informational and never block execution.
	SeverityWarning Severity = iota + 1

	// SeverityError diagnostics block artifact production.
	SeverityError
)

// String returns the lower-case severity name.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(b []byte) error {
	switch string(b) {
	case "warning":
		*s = SeverityWarning
	case "error":
		*s = SeverityError
	default:
		return fmt.Errorf("unknown severity %q", b)
	}
	return nil
}

// Diagnostic is a structured compiler message.
type Diagnostic struct {
	// Code is a stable identifier such as "SYN001".
	Code string `json:"code"`

	// Severity is Warning or Error.
	Severity Severity `json:"severity"`

	// Message describes the problem.
	Message string `json:"message"`

	// Line is the 1-based line number. Zero means unknown.
	Line int `json:"line,omitempty"`

	// Column is the 1-based column number. Zero means unknown.
	Column int `json:"column,omitempty"`
}

// String formats the diagnostic as "CODE severity: message (line L, col C)".
func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("%s %s: %s (line %d, col %d)", d.Code, d.Severity, d.Message, d.Line, d.Column)
	}
	return fmt.Sprintf("%s %s: %s", d.Code, d.Severity, d.Message)
}

// HasErrors reports whether any diagnostic has Error severity.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// FilterSeverity returns the diagnostics with the given severity, in order.
func FilterSeverity(diags []Diagnostic, sev Severity) []Diagnostic {
	var out []Diagnostic
	for _, d := range diags {
		if d.Severity == sev {
			out = append(out, d)
		}
	}
	return out
}

// CompileResult is the outcome of a compilation. Exactly one of the following
// holds: Artifact is non-nil and Diagnostics holds only warnings, or Artifact
// is nil and Diagnostics holds at least one error.
type CompileResult struct {
	Artifact    *Artifact
	Diagnostics []Diagnostic
	EntryPoints []EntryPoint
}

// OK reports whether compilation produced an artifact.
func (r CompileResult) OK() bool {
	return r.Artifact != nil && !HasErrors(r.Diagnostics)
}

// EntryPoint describes one invocable member of a compiled module.
type EntryPoint struct {
	// Type is the receiver type name, empty for package-level functions.
	Type string `json:"type,omitempty"`

	// Method is the function or method name.
	Method string `json:"method"`

	// Params are the parameter type strings in declaration order.
	Params []string `json:"params,omitempty"`

	// ParamNames are the declared parameter names; unnamed parameters get
	// positional names (arg0, arg1, ...).
	ParamNames []string `json:"paramNames,omitempty"`

	// Results are the result type strings.
	Results []string `json:"results,omitempty"`

	// Variadic reports whether the final parameter is variadic.
	Variadic bool `json:"variadic,omitempty"`

	// Doc is the declaration's doc comment.
	Doc string `json:"doc,omitempty"`

	// Expr is the expression the host evaluates to obtain a callable.
	Expr string `json:"expr"`
}

// Key returns "Type.Method", or just "Method" for functions.
func (e EntryPoint) Key() string {
	return EntryKey(e.Type, e.Method)
}

// Signature renders the entry point as a Go-like signature.
func (e EntryPoint) Signature() string {
	params := make([]string, len(e.Params))
	for i, p := range e.Params {
		name := ""
		if i < len(e.ParamNames) {
			name = e.ParamNames[i] + " "
		}
		if e.Variadic && i == len(e.Params)-1 {
			p = "..." + strings.TrimPrefix(p, "[]")
		}
		params[i] = name + p
	}
	sig := fmt.Sprintf("%s(%s)", e.Key(), strings.Join(params, ", "))
	switch len(e.Results) {
	case 0:
	case 1:
		sig += " " + e.Results[0]
	default:
		sig += " (" + strings.Join(e.Results, ", ") + ")"
	}
	return sig
}

// EntryKey builds the lookup key for a type and method name.
func EntryKey(typeName, method string) string {
	if typeName == "" {
		return method
	}
	return typeName + "." + method
}

// InvocationRequest names the member to invoke and the arguments to pass.
type InvocationRequest struct {
	// TypeName is the receiver type; empty selects a package-level function.
	TypeName string `json:"typeName,omitempty"`

	// MethodName is the function or method name.
	MethodName string `json:"methodName"`

	// Arguments are passed positionally.
	Arguments []any `json:"arguments,omitempty"`

	// Sink optionally receives output written by the invoked code as it is
	// produced. Output is also returned in InvocationResult.Output.
	Sink io.Writer `json:"-"`
}

// Key returns the entry key the request resolves against.
func (r InvocationRequest) Key() string {
	return EntryKey(r.TypeName, r.MethodName)
}

// FailureKind classifies an invocation failure.
type FailureKind string

const (
	FailureMemberNotFound    FailureKind = "MemberNotFound"
	FailureArgumentMismatch  FailureKind = "ArgumentMismatch"
	FailureInvocationFault   FailureKind = "InvocationFault"
	FailureInvocationTimeout FailureKind = "InvocationTimeout"
	FailureInvalidHandle     FailureKind = "InvalidHandle"
)

// Failure is the failed variant of an InvocationResult.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// Error implements error.
func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Is matches the sentinel error for the failure's kind.
func (f *Failure) Is(target error) bool {
	return target == f.Kind.sentinel()
}

func (k FailureKind) sentinel() error {
	switch k {
	case FailureMemberNotFound:
		return ErrMemberNotFound
	case FailureArgumentMismatch:
		return ErrArgumentMismatch
	case FailureInvocationFault:
		return ErrInvocationFault
	case FailureInvocationTimeout:
		return ErrInvocationTimeout
	case FailureInvalidHandle:
		return ErrInvalidHandle
	default:
		return nil
	}
}

// InvocationResult is either a success carrying Value, or a Failure.
type InvocationResult struct {
	// Value is the returned value on success. Functions without results
	// yield nil; functions with several non-error results yield []any.
	Value any `json:"value,omitempty"`

	// Output is everything the invoked code wrote to its sink.
	Output string `json:"output,omitempty"`

	// Failure is non-nil when the invocation failed.
	Failure *Failure `json:"failure,omitempty"`

	// DurationMs is the wall time of the invocation.
	DurationMs int64 `json:"durationMs"`
}

// Succeeded builds a success result.
func Succeeded(value any) InvocationResult {
	return InvocationResult{Value: value}
}

// Failed builds a failure result.
func Failed(kind FailureKind, format string, args ...any) InvocationResult {
	return InvocationResult{Failure: &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}}
}

// OK reports whether the invocation succeeded.
func (r InvocationResult) OK() bool { return r.Failure == nil }

// Err returns the failure as an error, or nil on success.
func (r InvocationResult) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}
