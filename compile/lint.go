package compile

import (
	"go/ast"
	"go/token"
	"go/types"
	"sort"
	"strconv"

	"golang.org/x/tools/go/ast/inspector"

	"github.com/jonwraymond/toolcompile/code"
	"github.com/jonwraymond/toolcompile/reference"
)

// lint reports warnings on a successfully bound unit. Warnings never block
// artifact production.
func lint(u *unit) {
	insp := inspector.New([]*ast.File{u.file})
	consoleOutput(u, insp)
	unusedCapabilities(u)
}

// consoleOutput flags the print and println builtins, which write to the
// host's standard error instead of the sink.
func consoleOutput(u *unit, insp *inspector.Inspector) {
	insp.Preorder([]ast.Node{(*ast.CallExpr)(nil)}, func(n ast.Node) {
		call := n.(*ast.CallExpr)
		id, ok := ast.Unparen(call.Fun).(*ast.Ident)
		if !ok {
			return
		}
		b, ok := u.info.Uses[id].(*types.Builtin)
		if !ok {
			return
		}
		if b.Name() == "print" || b.Name() == "println" {
			u.report(CodeConsoleOutput, code.SeverityWarning, u.fset.Position(id.Pos()),
				"builtin %s writes to the host console; use the sink package", b.Name())
		}
	})
}

// unusedCapabilities flags requested capabilities none of whose paths are
// imported. The core capability is always present and never flagged.
func unusedCapabilities(u *unit) {
	imported := make(map[string]bool, len(u.file.Imports))
	for _, imp := range u.file.Imports {
		if p, err := strconv.Unquote(imp.Path.Value); err == nil {
			imported[p] = true
		}
	}

	used := make(map[string]bool)
	for _, r := range u.refs.References() {
		if _, ok := used[r.Capability]; !ok {
			used[r.Capability] = false
		}
		if imported[r.Path] {
			used[r.Capability] = true
		}
	}

	names := make([]string, 0, len(used))
	for c, ok := range used {
		if !ok && c != reference.CoreCapability {
			names = append(names, c)
		}
	}
	sort.Strings(names)
	for _, c := range names {
		u.report(CodeUnusedCapability, code.SeverityWarning, token.Position{},
			"capability %q was requested but none of its packages are imported", c)
	}
}
