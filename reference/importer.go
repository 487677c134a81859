package reference

import (
	"fmt"
	"go/constant"
	"go/token"
	"go/types"
	"reflect"
	"sort"
	"strings"

	"github.com/jonwraymond/toolcompile/code"
)

// ErrNotReferenced is returned by an importer for a path outside its
// ReferenceSet.
var ErrNotReferenced = fmt.Errorf("package is not referenced")

// Importer returns a types.Importer that synthesizes type information for the
// paths in refs from the environment's symbol tables. Every call returns an
// independent importer, so concurrent compilations share nothing.
func (e *Environment) Importer(refs code.ReferenceSet) types.Importer {
	allowed := make(map[string]bool, refs.Len())
	for _, p := range refs.Paths() {
		allowed[p] = true
	}
	return &importer{
		env:      e,
		allowed:  allowed,
		pkgs:     make(map[string]*types.Package),
		named:    make(map[reflect.Type]*types.Named),
		complete: make(map[string]bool),
	}
}

type importer struct {
	env      *Environment
	allowed  map[string]bool
	pkgs     map[string]*types.Package
	named    map[reflect.Type]*types.Named
	complete map[string]bool
}

var (
	errorType    = reflect.TypeOf((*error)(nil)).Elem()
	constantType = reflect.TypeOf((*constant.Value)(nil)).Elem()
)

func (im *importer) Import(path string) (*types.Package, error) {
	if !im.allowed[path] {
		return nil, fmt.Errorf("%w: %q", ErrNotReferenced, path)
	}
	syms, ok := im.env.Symbols(path)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not available on this host", ErrNotReferenced, path)
	}
	pkg := im.pkg(path)
	if im.complete[path] {
		return pkg, nil
	}

	names := make([]string, 0, len(syms))
	for name := range syms {
		if name == "" || strings.HasPrefix(name, "_") || !token.IsExported(name) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	scope := pkg.Scope()
	for _, name := range names {
		if scope.Lookup(name) != nil {
			continue
		}
		if obj := im.object(pkg, name, syms[name]); obj != nil {
			scope.Insert(obj)
		}
	}
	pkg.MarkComplete()
	im.complete[path] = true
	return pkg, nil
}

func (im *importer) pkg(path string) *types.Package {
	if p, ok := im.pkgs[path]; ok {
		return p
	}
	p := types.NewPackage(path, im.env.PackageName(path))
	im.pkgs[path] = p
	return p
}

// object classifies one exported symbol. Type declarations are exported as
// typed nil pointers, variables as addressable values and untyped constants
// as constant.Value.
func (im *importer) object(pkg *types.Package, name string, v reflect.Value) types.Object {
	if !v.IsValid() {
		return nil
	}
	t := v.Type()

	switch {
	case t.Implements(constantType) && !v.CanAddr():
		cv, ok := v.Interface().(constant.Value)
		if !ok || cv == nil {
			return nil
		}
		return types.NewConst(token.NoPos, pkg, name, untyped(cv.Kind()), cv)

	case t.Kind() == reflect.Func && !v.CanAddr():
		sig, ok := im.typeOf(t).(*types.Signature)
		if !ok {
			return nil
		}
		return types.NewFunc(token.NoPos, pkg, name, sig)

	case v.CanAddr():
		return types.NewVar(token.NoPos, pkg, name, im.typeOf(t))

	case t.Kind() == reflect.Ptr && v.IsNil():
		elem := t.Elem()
		typ := im.typeOf(elem)
		if n, ok := typ.(*types.Named); ok && elem.PkgPath() == pkg.Path() && elem.Name() == name {
			return n.Obj()
		}
		return types.NewTypeName(token.NoPos, pkg, name, typ)

	default:
		if cv, ok := constantOf(v); ok {
			return types.NewConst(token.NoPos, pkg, name, im.typeOf(t), cv)
		}
		return types.NewVar(token.NoPos, pkg, name, im.typeOf(t))
	}
}

func (im *importer) typeOf(t reflect.Type) types.Type {
	if t == errorType {
		return types.Universe.Lookup("error").Type()
	}
	if t.Name() != "" {
		if t.PkgPath() != "" {
			return im.namedOf(t)
		}
		if b := basicOf(t.Kind()); b != nil && b.Name() == t.Name() {
			return b
		}
	}
	return im.structural(t, nil)
}

func (im *importer) namedOf(t reflect.Type) *types.Named {
	if n, ok := im.named[t]; ok {
		return n
	}
	pkg := im.pkg(t.PkgPath())
	obj := types.NewTypeName(token.NoPos, pkg, t.Name(), nil)
	n := types.NewNamed(obj, nil, nil)
	im.named[t] = n

	n.SetUnderlying(im.structural(t, pkg))

	if t.Kind() != reflect.Interface && t.Kind() != reflect.Ptr {
		pt := reflect.PointerTo(t)
		for i := 0; i < pt.NumMethod(); i++ {
			m := pt.Method(i)
			if m.PkgPath != "" {
				continue
			}
			var recv types.Type = types.NewPointer(n)
			if _, ok := t.MethodByName(m.Name); ok {
				recv = n
			}
			sig := im.signature(m.Type, 1, types.NewVar(token.NoPos, pkg, "", recv))
			n.AddMethod(types.NewFunc(token.NoPos, pkg, m.Name, sig))
		}
	}
	return n
}

// structural converts the shape of t, ignoring its name.
func (im *importer) structural(t reflect.Type, owner *types.Package) types.Type {
	switch t.Kind() {
	case reflect.Array:
		return types.NewArray(im.typeOf(t.Elem()), int64(t.Len()))
	case reflect.Slice:
		return types.NewSlice(im.typeOf(t.Elem()))
	case reflect.Ptr:
		return types.NewPointer(im.typeOf(t.Elem()))
	case reflect.Map:
		return types.NewMap(im.typeOf(t.Key()), im.typeOf(t.Elem()))
	case reflect.Chan:
		dir := types.SendRecv
		switch t.ChanDir() {
		case reflect.SendDir:
			dir = types.SendOnly
		case reflect.RecvDir:
			dir = types.RecvOnly
		}
		return types.NewChan(dir, im.typeOf(t.Elem()))
	case reflect.Func:
		return im.signature(t, 0, nil)
	case reflect.Struct:
		fields := make([]*types.Var, 0, t.NumField())
		tags := make([]string, 0, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			fpkg := owner
			if f.PkgPath != "" {
				fpkg = im.pkg(f.PkgPath)
			}
			fields = append(fields, types.NewField(token.NoPos, fpkg, f.Name, im.typeOf(f.Type), f.Anonymous))
			tags = append(tags, string(f.Tag))
		}
		return types.NewStruct(fields, tags)
	case reflect.Interface:
		methods := make([]*types.Func, 0, t.NumMethod())
		for i := 0; i < t.NumMethod(); i++ {
			m := t.Method(i)
			mpkg := owner
			if m.PkgPath != "" {
				mpkg = im.pkg(m.PkgPath)
			}
			methods = append(methods, types.NewFunc(token.NoPos, mpkg, m.Name, im.signature(m.Type, 0, nil)))
		}
		iface := types.NewInterfaceType(methods, nil)
		iface.Complete()
		return iface
	default:
		if b := basicOf(t.Kind()); b != nil {
			return b
		}
		return types.Typ[types.Invalid]
	}
}

// signature converts a func type, skipping the first skip inputs (the
// receiver of a method expression).
func (im *importer) signature(t reflect.Type, skip int, recv *types.Var) *types.Signature {
	params := make([]*types.Var, 0, t.NumIn())
	for i := skip; i < t.NumIn(); i++ {
		params = append(params, types.NewParam(token.NoPos, nil, "", im.typeOf(t.In(i))))
	}
	results := make([]*types.Var, 0, t.NumOut())
	for i := 0; i < t.NumOut(); i++ {
		results = append(results, types.NewParam(token.NoPos, nil, "", im.typeOf(t.Out(i))))
	}
	return types.NewSignatureType(recv, nil, nil, types.NewTuple(params...), types.NewTuple(results...), t.IsVariadic())
}

func basicOf(k reflect.Kind) *types.Basic {
	switch k {
	case reflect.Bool:
		return types.Typ[types.Bool]
	case reflect.Int:
		return types.Typ[types.Int]
	case reflect.Int8:
		return types.Typ[types.Int8]
	case reflect.Int16:
		return types.Typ[types.Int16]
	case reflect.Int32:
		return types.Typ[types.Int32]
	case reflect.Int64:
		return types.Typ[types.Int64]
	case reflect.Uint:
		return types.Typ[types.Uint]
	case reflect.Uint8:
		return types.Typ[types.Uint8]
	case reflect.Uint16:
		return types.Typ[types.Uint16]
	case reflect.Uint32:
		return types.Typ[types.Uint32]
	case reflect.Uint64:
		return types.Typ[types.Uint64]
	case reflect.Uintptr:
		return types.Typ[types.Uintptr]
	case reflect.Float32:
		return types.Typ[types.Float32]
	case reflect.Float64:
		return types.Typ[types.Float64]
	case reflect.Complex64:
		return types.Typ[types.Complex64]
	case reflect.Complex128:
		return types.Typ[types.Complex128]
	case reflect.String:
		return types.Typ[types.String]
	case reflect.UnsafePointer:
		return types.Typ[types.UnsafePointer]
	}
	return nil
}

func untyped(k constant.Kind) types.Type {
	switch k {
	case constant.Bool:
		return types.Typ[types.UntypedBool]
	case constant.String:
		return types.Typ[types.UntypedString]
	case constant.Float:
		return types.Typ[types.UntypedFloat]
	case constant.Complex:
		return types.Typ[types.UntypedComplex]
	default:
		return types.Typ[types.UntypedInt]
	}
}

// constantOf returns the constant value of a typed constant symbol.
func constantOf(v reflect.Value) (constant.Value, bool) {
	switch v.Kind() {
	case reflect.Bool:
		return constant.MakeBool(v.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return constant.MakeInt64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return constant.MakeUint64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return constant.MakeFloat64(v.Float()), true
	case reflect.String:
		return constant.MakeString(v.String()), true
	}
	return nil, false
}
