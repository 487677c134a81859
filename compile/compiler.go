// Package compile binds Go source against a ReferenceSet and produces
// loadable artifacts.
//
// Compilation parses the unit with go/parser, type-checks it with go/types
// against type information synthesized from the host environment, builds the
// entry point manifest and encodes everything into an artifact image. Only
// packages named by the ReferenceSet are importable.
package compile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/scanner"
	"go/token"
	"go/types"
	"strconv"

	"github.com/google/uuid"

	"github.com/jonwraymond/toolcompile/artifact"
	"github.com/jonwraymond/toolcompile/code"
	"github.com/jonwraymond/toolcompile/reference"
)

// Diagnostic codes.
const (
	CodeSyntax           = "SYN001"
	CodeBinding          = "BND001"
	CodeUnresolvedImport = "BND002"
	CodePackageClause    = "BND003"
	CodeEntryPoint       = "BND004"
	CodeUnusedCapability = "WRN001"
	CodeConsoleOutput    = "WRN002"
	CodeNoEntryPoints    = "WRN003"
)

// DefaultMaxSourceBytes bounds the size of a single source unit.
const DefaultMaxSourceBytes = 1 << 20

// executablePackage is the package name executables are rebound to, so that
// loading them never runs main.
const executablePackage = "program"

// Config configures a Compiler.
type Config struct {
	// Environment supplies type information for referenced paths. Required.
	Environment *reference.Environment

	// MaxSourceBytes rejects larger units. Zero selects
	// DefaultMaxSourceBytes.
	MaxSourceBytes int

	// Logger receives compilation events. Optional.
	Logger code.Logger
}

// Compiler implements code.Compiler. It keeps no state between calls and is
// safe for concurrent use.
type Compiler struct {
	env    *reference.Environment
	max    int
	logger code.Logger
}

// New creates a Compiler.
func New(cfg Config) (*Compiler, error) {
	if cfg.Environment == nil {
		return nil, fmt.Errorf("%w: compiler environment is required", code.ErrConfiguration)
	}
	if cfg.MaxSourceBytes <= 0 {
		cfg.MaxSourceBytes = DefaultMaxSourceBytes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = code.NopLogger()
	}
	return &Compiler{env: cfg.Environment, max: cfg.MaxSourceBytes, logger: logger}, nil
}

// unit holds the state of one compilation.
type unit struct {
	name  string
	kind  code.OutputKind
	refs  code.ReferenceSet
	fset  *token.FileSet
	file  *ast.File
	pkg   *types.Package
	info  *types.Info
	diags []code.Diagnostic
}

func (u *unit) report(id string, sev code.Severity, pos token.Position, format string, args ...any) {
	u.diags = append(u.diags, newDiagnostic(id, sev, pos, fmt.Sprintf(format, args...)))
}

func (u *unit) failed() bool { return code.HasErrors(u.diags) }

func (u *unit) result() code.CompileResult {
	return code.CompileResult{Diagnostics: u.diags}
}

// Compile parses, binds and encodes unit. Syntax and binding problems are
// returned as diagnostics; the error is reserved for cancellation.
func (c *Compiler) Compile(ctx context.Context, su code.SourceUnit, refs code.ReferenceSet, kind code.OutputKind) (code.CompileResult, error) {
	if err := ctx.Err(); err != nil {
		return code.CompileResult{}, err
	}
	if !kind.IsValid() {
		return code.CompileResult{}, fmt.Errorf("%w: unknown output kind %q", code.ErrConfiguration, kind)
	}

	name := su.Name()
	if name == "" {
		name = "unit-" + uuid.NewString()
	}
	u := &unit{
		name: name,
		kind: kind,
		refs: refs,
		fset: token.NewFileSet(),
	}

	if len(su.Text()) > c.max {
		u.report(CodeSyntax, code.SeverityError, token.Position{}, "source is %d bytes, limit is %d", len(su.Text()), c.max)
		return u.result(), nil
	}

	c.parse(u, su.Text())
	if u.failed() {
		return u.result(), nil
	}
	c.checkClause(u)
	c.checkImports(u)
	if u.failed() {
		return u.result(), nil
	}
	if err := ctx.Err(); err != nil {
		return code.CompileResult{}, err
	}

	c.bind(u)
	if u.failed() {
		return u.result(), nil
	}

	lint(u)

	entries := c.entryPoints(u)
	if u.failed() {
		return u.result(), nil
	}
	if u.kind == code.OutputLibrary && len(entries) == 0 {
		u.report(CodeNoEntryPoints, code.SeverityWarning, token.Position{}, "library %q exports no invocable functions or methods", u.file.Name.Name)
	}

	pkgName := u.file.Name.Name
	if u.kind == code.OutputExecutable {
		rebindMain(u)
		pkgName = executablePackage
	}

	var src bytes.Buffer
	if err := format.Node(&src, u.fset, u.file); err != nil {
		return code.CompileResult{}, fmt.Errorf("rendering bound source: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return code.CompileResult{}, err
	}

	art := artifact.New(artifact.Image{
		Name:        u.name,
		Kind:        u.kind,
		Package:     pkgName,
		Source:      src.Bytes(),
		References:  refs.References(),
		EntryPoints: entries,
	})
	c.logger.Info("compiled unit",
		"unit", u.name,
		"kind", string(u.kind),
		"entryPoints", len(entries),
		"imageBytes", art.Size(),
		"warnings", len(u.diags))

	return code.CompileResult{
		Artifact:    art,
		Diagnostics: u.diags,
		EntryPoints: entries,
	}, nil
}

func (c *Compiler) parse(u *unit, text string) {
	f, err := parser.ParseFile(u.fset, u.name+".go", text, parser.ParseComments|parser.AllErrors)
	if err == nil {
		u.file = f
		return
	}
	var list scanner.ErrorList
	if errors.As(err, &list) {
		list.Sort()
		for _, e := range list {
			u.report(CodeSyntax, code.SeverityError, e.Pos, "%s", e.Msg)
		}
		return
	}
	u.report(CodeSyntax, code.SeverityError, token.Position{}, "%v", err)
}

// checkClause enforces the package clause each output kind requires.
func (c *Compiler) checkClause(u *unit) {
	name := u.file.Name.Name
	pos := u.fset.Position(u.file.Name.Pos())
	switch u.kind {
	case code.OutputLibrary:
		if name == "main" {
			u.report(CodePackageClause, code.SeverityError, pos, "library output cannot use package main")
		}
	case code.OutputExecutable:
		if name != "main" {
			u.report(CodePackageClause, code.SeverityError, pos, "executable output requires package main, found %q", name)
		}
	}
	for _, p := range u.refs.Paths() {
		if c.env.PackageName(p) == name {
			u.report(CodePackageClause, code.SeverityError, pos, "package name %q collides with referenced package %q", name, p)
		}
	}
}

// checkImports rejects imports outside the ReferenceSet.
func (c *Compiler) checkImports(u *unit) {
	for _, imp := range u.file.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		pos := u.fset.Position(imp.Path.Pos())
		if err != nil {
			u.report(CodeSyntax, code.SeverityError, pos, "malformed import path %s", imp.Path.Value)
			continue
		}
		if !u.refs.Contains(path) {
			u.report(CodeUnresolvedImport, code.SeverityError, pos, "import %q is not provided by any requested capability", path)
		}
	}
}

// bind type-checks the file against the referenced symbol tables.
func (c *Compiler) bind(u *unit) {
	u.info = &types.Info{
		Types: make(map[ast.Expr]types.TypeAndValue),
		Defs:  make(map[*ast.Ident]types.Object),
		Uses:  make(map[*ast.Ident]types.Object),
	}
	conf := types.Config{
		Importer: c.env.Importer(u.refs),
		Error: func(err error) {
			var te types.Error
			if errors.As(err, &te) {
				u.report(CodeBinding, code.SeverityError, te.Fset.Position(te.Pos), "%s", te.Msg)
				return
			}
			u.report(CodeBinding, code.SeverityError, token.Position{}, "%v", err)
		},
	}
	pkg, _ := conf.Check(u.file.Name.Name, u.fset, []*ast.File{u.file}, u.info)
	u.pkg = pkg
}

func newDiagnostic(id string, sev code.Severity, pos token.Position, msg string) code.Diagnostic {
	return code.Diagnostic{
		Code:     id,
		Severity: sev,
		Message:  msg,
		Line:     pos.Line,
		Column:   pos.Column,
	}
}

var _ code.Compiler = (*Compiler)(nil)
