package artifact

import (
	"fmt"

	"github.com/tinylib/msgp/msgp"

	"github.com/jonwraymond/toolcompile/code"
)

// Field counts of the fixed-layout msgpack arrays.
const (
	imageFields     = 7
	referenceFields = 2
	entryFields     = 8
)

func appendImage(b []byte, img Image) []byte {
	b = msgp.AppendArrayHeader(b, imageFields)
	b = msgp.AppendString(b, img.Name)
	b = msgp.AppendString(b, string(img.Kind))
	b = msgp.AppendString(b, img.Package)
	b = msgp.AppendBytes(b, img.Source)

	b = msgp.AppendArrayHeader(b, uint32(len(img.References)))
	for _, r := range img.References {
		b = msgp.AppendArrayHeader(b, referenceFields)
		b = msgp.AppendString(b, r.Capability)
		b = msgp.AppendString(b, r.Path)
	}

	b = msgp.AppendArrayHeader(b, uint32(len(img.EntryPoints)))
	for _, e := range img.EntryPoints {
		b = appendEntry(b, e)
	}

	b = msgp.AppendUint64(b, img.Digest)
	return b
}

func appendEntry(b []byte, e code.EntryPoint) []byte {
	b = msgp.AppendArrayHeader(b, entryFields)
	b = msgp.AppendString(b, e.Type)
	b = msgp.AppendString(b, e.Method)
	b = appendStrings(b, e.Params)
	b = appendStrings(b, e.ParamNames)
	b = appendStrings(b, e.Results)
	b = msgp.AppendBool(b, e.Variadic)
	b = msgp.AppendString(b, e.Doc)
	b = msgp.AppendString(b, e.Expr)
	return b
}

func appendStrings(b []byte, ss []string) []byte {
	b = msgp.AppendArrayHeader(b, uint32(len(ss)))
	for _, s := range ss {
		b = msgp.AppendString(b, s)
	}
	return b
}

func readImage(b []byte) (img Image, err error) {
	if b, err = expectArray(b, imageFields); err != nil {
		return img, err
	}
	var kind string
	if img.Name, b, err = msgp.ReadStringBytes(b); err != nil {
		return img, err
	}
	if kind, b, err = msgp.ReadStringBytes(b); err != nil {
		return img, err
	}
	img.Kind = code.OutputKind(kind)
	if img.Package, b, err = msgp.ReadStringBytes(b); err != nil {
		return img, err
	}
	if img.Source, b, err = msgp.ReadBytesBytes(b, nil); err != nil {
		return img, err
	}

	var n uint32
	if n, b, err = readArray(b); err != nil {
		return img, err
	}
	img.References = make([]code.Reference, 0, n)
	for i := uint32(0); i < n; i++ {
		var r code.Reference
		if b, err = expectArray(b, referenceFields); err != nil {
			return img, err
		}
		if r.Capability, b, err = msgp.ReadStringBytes(b); err != nil {
			return img, err
		}
		if r.Path, b, err = msgp.ReadStringBytes(b); err != nil {
			return img, err
		}
		img.References = append(img.References, r)
	}

	if n, b, err = readArray(b); err != nil {
		return img, err
	}
	img.EntryPoints = make([]code.EntryPoint, 0, n)
	for i := uint32(0); i < n; i++ {
		var e code.EntryPoint
		if e, b, err = readEntry(b); err != nil {
			return img, err
		}
		img.EntryPoints = append(img.EntryPoints, e)
	}

	if img.Digest, b, err = msgp.ReadUint64Bytes(b); err != nil {
		return img, err
	}
	if len(b) != 0 {
		return img, fmt.Errorf("%d trailing bytes", len(b))
	}
	return img, nil
}

func readEntry(b []byte) (e code.EntryPoint, o []byte, err error) {
	if b, err = expectArray(b, entryFields); err != nil {
		return e, b, err
	}
	if e.Type, b, err = msgp.ReadStringBytes(b); err != nil {
		return e, b, err
	}
	if e.Method, b, err = msgp.ReadStringBytes(b); err != nil {
		return e, b, err
	}
	if e.Params, b, err = readStrings(b); err != nil {
		return e, b, err
	}
	if e.ParamNames, b, err = readStrings(b); err != nil {
		return e, b, err
	}
	if e.Results, b, err = readStrings(b); err != nil {
		return e, b, err
	}
	if e.Variadic, b, err = msgp.ReadBoolBytes(b); err != nil {
		return e, b, err
	}
	if e.Doc, b, err = msgp.ReadStringBytes(b); err != nil {
		return e, b, err
	}
	if e.Expr, b, err = msgp.ReadStringBytes(b); err != nil {
		return e, b, err
	}
	return e, b, nil
}

func readStrings(b []byte) (ss []string, o []byte, err error) {
	var n uint32
	if n, b, err = readArray(b); err != nil {
		return nil, b, err
	}
	if n == 0 {
		return nil, b, nil
	}
	ss = make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		var s string
		if s, b, err = msgp.ReadStringBytes(b); err != nil {
			return nil, b, err
		}
		ss = append(ss, s)
	}
	return ss, b, nil
}

// readArray reads an array header, rejecting lengths the remaining input
// cannot possibly hold.
func readArray(b []byte) (uint32, []byte, error) {
	n, o, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return 0, o, err
	}
	if int(n) > len(o) {
		return 0, o, fmt.Errorf("array of %d elements exceeds %d remaining bytes", n, len(o))
	}
	return n, o, nil
}

func expectArray(b []byte, want uint32) ([]byte, error) {
	n, o, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return o, err
	}
	if n != want {
		return o, fmt.Errorf("expected %d fields, found %d", want, n)
	}
	return o, nil
}
