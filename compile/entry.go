package compile

import (
	"fmt"
	"go/ast"
	"go/types"
	"strings"

	"github.com/jonwraymond/toolcompile/code"
)

// entryPoints builds the invocation manifest in scope order: exported
// functions, then the exported methods of each exported named type.
func (c *Compiler) entryPoints(u *unit) []code.EntryPoint {
	if u.kind == code.OutputExecutable {
		return c.mainEntry(u)
	}

	docs := collectDocs(u.file)
	pkgName := u.file.Name.Name
	qual := types.RelativeTo(u.pkg)
	scope := u.pkg.Scope()

	var entries []code.EntryPoint
	for _, name := range scope.Names() {
		obj := scope.Lookup(name)
		if !obj.Exported() {
			continue
		}
		switch obj := obj.(type) {
		case *types.Func:
			sig := obj.Type().(*types.Signature)
			if sig.TypeParams().Len() > 0 {
				continue
			}
			ep := describe(sig, qual)
			ep.Method = name
			ep.Doc = docs[name]
			ep.Expr = pkgName + "." + name
			entries = append(entries, ep)

		case *types.TypeName:
			if obj.IsAlias() {
				continue
			}
			named, ok := obj.Type().(*types.Named)
			if !ok || named.TypeParams().Len() > 0 {
				continue
			}
			if _, isIface := named.Underlying().(*types.Interface); isIface {
				continue
			}
			mset := types.NewMethodSet(types.NewPointer(named))
			for i := 0; i < mset.Len(); i++ {
				fn, ok := mset.At(i).Obj().(*types.Func)
				if !ok || !fn.Exported() {
					continue
				}
				ep := describe(fn.Type().(*types.Signature), qual)
				ep.Type = name
				ep.Method = fn.Name()
				ep.Doc = docs[code.EntryKey(name, fn.Name())]
				ep.Expr = fmt.Sprintf("new(%s.%s).%s", pkgName, name, fn.Name())
				entries = append(entries, ep)
			}
		}
	}
	return entries
}

// mainEntry validates func main and returns its manifest entry.
func (c *Compiler) mainEntry(u *unit) []code.EntryPoint {
	obj := u.pkg.Scope().Lookup("main")
	fn, ok := obj.(*types.Func)
	if !ok {
		u.report(CodeEntryPoint, code.SeverityError, u.fset.Position(u.file.Name.Pos()), "executable output requires func main")
		return nil
	}
	if clash := u.pkg.Scope().Lookup("Main"); clash != nil {
		u.report(CodeEntryPoint, code.SeverityError, u.fset.Position(clash.Pos()), "executable output cannot declare Main alongside main")
		return nil
	}
	ep := describe(fn.Type().(*types.Signature), types.RelativeTo(u.pkg))
	ep.Method = "main"
	ep.Doc = collectDocs(u.file)["main"]
	ep.Expr = executablePackage + ".Main"
	return []code.EntryPoint{ep}
}

// rebindMain renames the package to executablePackage and main to Main, so
// evaluating the image declares main without running it.
func rebindMain(u *unit) {
	entry := u.pkg.Scope().Lookup("main")
	for id, obj := range u.info.Defs {
		if obj == entry {
			id.Name = "Main"
		}
	}
	for id, obj := range u.info.Uses {
		if obj == entry {
			id.Name = "Main"
		}
	}
	u.file.Name.Name = executablePackage
}

func describe(sig *types.Signature, qual types.Qualifier) code.EntryPoint {
	var ep code.EntryPoint
	params := sig.Params()
	for i := 0; i < params.Len(); i++ {
		p := params.At(i)
		ep.Params = append(ep.Params, types.TypeString(p.Type(), qual))
		name := p.Name()
		if name == "" || name == "_" {
			name = fmt.Sprintf("arg%d", i)
		}
		ep.ParamNames = append(ep.ParamNames, name)
	}
	results := sig.Results()
	for i := 0; i < results.Len(); i++ {
		ep.Results = append(ep.Results, types.TypeString(results.At(i).Type(), qual))
	}
	ep.Variadic = sig.Variadic()
	return ep
}

// collectDocs maps entry keys to declaration doc comments.
func collectDocs(f *ast.File) map[string]string {
	docs := make(map[string]string)
	for _, decl := range f.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Doc == nil {
			continue
		}
		docs[code.EntryKey(receiverName(fd), fd.Name.Name)] = strings.TrimSpace(fd.Doc.Text())
	}
	return docs
}

func receiverName(fd *ast.FuncDecl) string {
	if fd.Recv == nil || len(fd.Recv.List) == 0 {
		return ""
	}
	t := fd.Recv.List[0].Type
	if star, ok := t.(*ast.StarExpr); ok {
		t = star.X
	}
	switch t := t.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		if id, ok := t.X.(*ast.Ident); ok {
			return id.Name
		}
	case *ast.IndexListExpr:
		if id, ok := t.X.(*ast.Ident); ok {
			return id.Name
		}
	}
	return ""
}
