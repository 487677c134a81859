package compile

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/jonwraymond/toolcompile/artifact"
	"github.com/jonwraymond/toolcompile/code"
	"github.com/jonwraymond/toolcompile/reference"
)

const calcSource = `package calc

import "strings"

// Add returns the sum of a and b.
func Add(a, b int) int { return a + b }

func Upper(s string) string { return strings.ToUpper(s) }

func helper() {}

// Acc accumulates values.
type Acc struct{ total int }

// Push adds v and returns the running total.
func (a *Acc) Push(v int) int {
	a.total += v
	return a.total
}

func (a Acc) Total() int { return a.total }
`

type fixture struct {
	resolver *reference.Resolver
	compiler *Compiler
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	env := reference.DefaultEnvironment()
	r, err := reference.New(reference.Config{Environment: env})
	if err != nil {
		t.Fatalf("reference.New() error = %v", err)
	}
	c, err := New(Config{Environment: env})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return fixture{resolver: r, compiler: c}
}

func (f fixture) compile(t *testing.T, name, src string, kind code.OutputKind, caps ...string) code.CompileResult {
	t.Helper()
	refs, err := f.resolver.Resolve(caps)
	if err != nil {
		t.Fatalf("Resolve(%v) error = %v", caps, err)
	}
	res, err := f.compiler.Compile(context.Background(), code.NewSourceUnit(name, src), refs, kind)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return res
}

func codes(diags []code.Diagnostic) []string {
	out := make([]string, len(diags))
	for i, d := range diags {
		out[i] = d.Code
	}
	return out
}

func TestCompile_Library(t *testing.T) {
	f := newFixture(t)
	res := f.compile(t, "calc", calcSource, code.OutputLibrary, "strings")

	if !res.OK() {
		t.Fatalf("Compile() diagnostics = %v", res.Diagnostics)
	}

	keys := make([]string, len(res.EntryPoints))
	for i, ep := range res.EntryPoints {
		keys[i] = ep.Key()
	}
	want := []string{"Acc.Push", "Acc.Total", "Add", "Upper"}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("entry points mismatch (-want +got):\n%s", diff)
	}

	add := res.EntryPoints[2]
	if add.Expr != "calc.Add" || add.Doc != "Add returns the sum of a and b." {
		t.Errorf("Add = %+v", add)
	}
	if diff := cmp.Diff([]string{"a", "b"}, add.ParamNames); diff != "" {
		t.Errorf("Add params mismatch (-want +got):\n%s", diff)
	}
	push := res.EntryPoints[0]
	if push.Expr != "new(calc.Acc).Push" {
		t.Errorf("Push.Expr = %q", push.Expr)
	}

	img, err := artifact.Decode(res.Artifact.Image)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if img.Package != "calc" || img.Kind != code.OutputLibrary {
		t.Errorf("image package/kind = %s/%s", img.Package, img.Kind)
	}
	if diff := cmp.Diff(res.EntryPoints, img.EntryPoints); diff != "" {
		t.Errorf("image manifest mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"errors", "fmt", "strconv", "strings", "unicode", "unicode/utf8"}, img.Paths()); diff != "" {
		t.Errorf("image references mismatch (-want +got):\n%s", diff)
	}
}

func TestCompile_SyntaxError(t *testing.T) {
	f := newFixture(t)
	res := f.compile(t, "broken", "package broken\n\nfunc F() int {\n\treturn 1\n", code.OutputLibrary)

	if res.Artifact != nil {
		t.Fatal("artifact produced for invalid source")
	}
	errs := code.FilterSeverity(res.Diagnostics, code.SeverityError)
	if len(errs) == 0 || errs[0].Code != CodeSyntax {
		t.Fatalf("diagnostics = %v, want %s", res.Diagnostics, CodeSyntax)
	}
	if errs[0].Line == 0 {
		t.Error("syntax diagnostic has no position")
	}
}

func TestCompile_BindingErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		kind code.OutputKind
		caps []string
		want string
	}{
		{
			name: "unreferenced import",
			src:  "package p\n\nimport \"strings\"\n\nfunc F() string { return strings.ToUpper(\"x\") }\n",
			want: CodeUnresolvedImport,
		},
		{
			name: "denied import",
			src:  "package p\n\nimport \"os\"\n\nfunc F() { os.Exit(1) }\n",
			want: CodeUnresolvedImport,
		},
		{
			name: "undefined identifier",
			src:  "package p\n\nfunc F() int { return missing }\n",
			want: CodeBinding,
		},
		{
			name: "type mismatch",
			src:  "package p\n\nfunc F() int { return \"s\" }\n",
			want: CodeBinding,
		},
		{
			name: "unknown member",
			src:  "package p\n\nimport \"strings\"\n\nfunc F() string { return strings.NoSuchThing(\"x\") }\n",
			caps: []string{"strings"},
			want: CodeBinding,
		},
		{
			name: "library declares main",
			src:  "package main\n\nfunc main() {}\n",
			want: CodePackageClause,
		},
		{
			name: "package collides with reference",
			src:  "package fmt\n\nfunc F() {}\n",
			want: CodePackageClause,
		},
		{
			name: "executable not main",
			src:  "package p\n\nfunc main() {}\n",
			kind: code.OutputExecutable,
			want: CodePackageClause,
		},
		{
			name: "executable without main",
			src:  "package main\n\nfunc Run() {}\n",
			kind: code.OutputExecutable,
			want: CodeEntryPoint,
		},
		{
			name: "executable declares Main",
			src:  "package main\n\nfunc Main() {}\n\nfunc main() { Main() }\n",
			kind: code.OutputExecutable,
			want: CodeEntryPoint,
		},
	}
	f := newFixture(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind := tt.kind
			if kind == "" {
				kind = code.OutputLibrary
			}
			res := f.compile(t, "p", tt.src, kind, tt.caps...)
			if res.Artifact != nil {
				t.Fatal("artifact produced for invalid source")
			}
			got := codes(code.FilterSeverity(res.Diagnostics, code.SeverityError))
			found := false
			for _, c := range got {
				if c == tt.want {
					found = true
				}
			}
			if !found {
				t.Errorf("error codes = %v, want %s", got, tt.want)
			}
		})
	}
}

func TestCompile_Warnings(t *testing.T) {
	tests := []struct {
		name string
		src  string
		caps []string
		want []string
	}{
		{
			name: "unused capability",
			src:  "package p\n\nfunc F() int { return 1 }\n",
			caps: []string{"time", "json"},
			want: []string{CodeUnusedCapability, CodeUnusedCapability},
		},
		{
			name: "console builtins",
			src:  "package p\n\nfunc F() { println(\"x\"); print(1) }\n",
			want: []string{CodeConsoleOutput, CodeConsoleOutput},
		},
		{
			name: "no entry points",
			src:  "package p\n\nfunc helper() int { return 1 }\n",
			want: []string{CodeNoEntryPoints},
		},
		{
			name: "clean",
			src:  "package p\n\nimport \"sink\"\n\nfunc F() { sink.Println(\"x\") }\n",
			caps: []string{"sink"},
		},
	}
	f := newFixture(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.compile(t, "p", tt.src, code.OutputLibrary, tt.caps...)
			if !res.OK() {
				t.Fatalf("warnings blocked the artifact: %v", res.Diagnostics)
			}
			if diff := cmp.Diff(tt.want, codes(res.Diagnostics), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("diagnostic codes mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCompile_UnusedCapabilityMessagesSorted(t *testing.T) {
	f := newFixture(t)
	res := f.compile(t, "p", "package p\n\nfunc F() {}\n", code.OutputLibrary, "time", "json")

	warns := code.FilterSeverity(res.Diagnostics, code.SeverityWarning)
	if len(warns) != 2 {
		t.Fatalf("warnings = %v", warns)
	}
	if !strings.Contains(warns[0].Message, `"json"`) || !strings.Contains(warns[1].Message, `"time"`) {
		t.Errorf("warnings out of order: %v", warns)
	}
}

func TestCompile_Executable(t *testing.T) {
	const src = `package main

import "sink"

func greet() { sink.Println("hi") }

// main says hello.
func main() { greet() }
`
	f := newFixture(t)
	res := f.compile(t, "hello", src, code.OutputExecutable, "sink")
	if !res.OK() {
		t.Fatalf("Compile() diagnostics = %v", res.Diagnostics)
	}
	if len(res.EntryPoints) != 1 {
		t.Fatalf("entry points = %v, want main only", res.EntryPoints)
	}
	ep := res.EntryPoints[0]
	if ep.Key() != "main" || ep.Expr != "program.Main" || ep.Doc != "main says hello." {
		t.Errorf("entry = %+v", ep)
	}

	img, err := artifact.Decode(res.Artifact.Image)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if img.Package != executablePackage {
		t.Errorf("image package = %q", img.Package)
	}
	if !bytes.Contains(img.Source, []byte("package program")) || !bytes.Contains(img.Source, []byte("func Main()")) {
		t.Errorf("source not rebound:\n%s", img.Source)
	}
	if bytes.Contains(img.Source, []byte("func main()")) {
		t.Error("bound source still declares main")
	}
}

func TestCompile_Deterministic(t *testing.T) {
	f := newFixture(t)
	a := f.compile(t, "calc", calcSource, code.OutputLibrary, "strings")
	b := f.compile(t, "calc", strings.ReplaceAll(calcSource, "\n", "\r\n"), code.OutputLibrary, "strings")

	if !a.OK() || !b.OK() {
		t.Fatalf("diagnostics = %v / %v", a.Diagnostics, b.Diagnostics)
	}
	if !bytes.Equal(a.Artifact.Image, b.Artifact.Image) {
		t.Error("identical units produced different images")
	}
}

func TestCompile_ReferenceMonotonic(t *testing.T) {
	f := newFixture(t)
	src := "package p\n\nimport \"strings\"\n\nfunc F() string { return strings.ToUpper(\"x\") }\n"

	small := f.compile(t, "p", src, code.OutputLibrary, "strings")
	large := f.compile(t, "p", src, code.OutputLibrary, "strings", "json", "time")

	if !small.OK() {
		t.Fatalf("small set failed: %v", small.Diagnostics)
	}
	if !large.OK() {
		t.Errorf("adding references broke compilation: %v", large.Diagnostics)
	}
}

func TestCompile_UnnamedUnit(t *testing.T) {
	f := newFixture(t)
	res := f.compile(t, "", "package p\n\nfunc F() {}\n", code.OutputLibrary)
	if !res.OK() {
		t.Fatalf("diagnostics = %v", res.Diagnostics)
	}
	if !strings.HasPrefix(res.Artifact.Name, "unit-") {
		t.Errorf("artifact name = %q, want generated unit- name", res.Artifact.Name)
	}
}

func TestCompile_SourceLimit(t *testing.T) {
	env := reference.DefaultEnvironment()
	c, _ := New(Config{Environment: env, MaxSourceBytes: 16})
	refs, _ := reference.New(reference.Config{Environment: env})
	set, _ := refs.Resolve(nil)

	res, err := c.Compile(context.Background(), code.NewSourceUnit("p", "package p\n\nfunc F() {}\n"), set, code.OutputLibrary)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if res.OK() || res.Diagnostics[0].Code != CodeSyntax {
		t.Errorf("diagnostics = %v, want size rejection", res.Diagnostics)
	}
}

func TestCompile_Canceled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	set, _ := f.resolver.Resolve(nil)

	_, err := f.compiler.Compile(ctx, code.NewSourceUnit("p", "package p"), set, code.OutputLibrary)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Compile() error = %v, want context.Canceled", err)
	}
}

func TestNew_RequiresEnvironment(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, code.ErrConfiguration) {
		t.Errorf("New() error = %v, want ErrConfiguration", err)
	}
}
