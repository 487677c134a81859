package artifact

import (
	"bytes"
	"errors"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/jonwraymond/toolcompile/code"
)

func testImage() Image {
	src := []byte("package calc\n\nfunc Add(a, b int) int { return a + b }\n")
	return Image{
		Name:    "calc",
		Kind:    code.OutputLibrary,
		Package: "calc",
		Source:  src,
		References: []code.Reference{
			{Capability: "core", Path: "errors"},
			{Capability: "core", Path: "fmt"},
		},
		EntryPoints: []code.EntryPoint{
			{
				Method:     "Add",
				Params:     []string{"int", "int"},
				ParamNames: []string{"a", "b"},
				Results:    []string{"int"},
				Expr:       "calc.Add",
			},
			{
				Type:   "Acc",
				Method: "Reset",
				Doc:    "Reset clears the accumulator.",
				Expr:   "new(calc.Acc).Reset",
			},
		},
		Digest: xxhash.Sum64(src),
	}
}

func TestEncodeDecode(t *testing.T) {
	img := testImage()

	got, err := Decode(Encode(img))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if diff := cmp.Diff(img, got, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Decode(Encode()) mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"errors", "fmt"}, got.Paths()); diff != "" {
		t.Errorf("Paths() mismatch (-want +got):\n%s", diff)
	}
}

func TestEncode_Deterministic(t *testing.T) {
	a := Encode(testImage())
	b := Encode(testImage())
	if !bytes.Equal(a, b) {
		t.Error("Encode is not deterministic")
	}
	if string(a[:len(Magic)]) != Magic || a[len(Magic)] != Version {
		t.Errorf("header = %q", a[:headerLen])
	}
}

func TestNew_SetsDigest(t *testing.T) {
	img := testImage()
	img.Digest = 0

	art := New(img)
	if art.Name != "calc" || art.Kind != code.OutputLibrary {
		t.Errorf("artifact = %s/%s", art.Name, art.Kind)
	}
	got, err := Decode(art.Image)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if got.Digest != xxhash.Sum64(img.Source) {
		t.Error("New did not set the source digest")
	}
	if art.Size() != len(art.Image) {
		t.Errorf("Size() = %d, want %d", art.Size(), len(art.Image))
	}
}

func TestDecode_Malformed(t *testing.T) {
	good := Encode(testImage())

	flip := func(i int) []byte {
		b := append([]byte(nil), good...)
		b[i] ^= 0xff
		return b
	}
	badDigest := testImage()
	badDigest.Digest++

	tests := []struct {
		name  string
		image []byte
	}{
		{"empty", nil},
		{"short", good[:6]},
		{"magic", flip(0)},
		{"version", flip(len(Magic))},
		{"body", flip(headerLen + 2)},
		{"checksum", flip(len(good) - 1)},
		{"truncated", good[:len(good)-3]},
		{"source digest", Encode(badDigest)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.image)
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("Decode() error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestReadImage_RejectsTrailingBytes(t *testing.T) {
	body := appendImage(nil, testImage())
	body = append(body, 0xc0)
	if _, err := readImage(body); err == nil {
		t.Error("readImage accepted trailing bytes")
	}
}

func TestReadArray_RejectsOversizedLength(t *testing.T) {
	b := []byte{0xdd, 0x7f, 0xff, 0xff, 0xff} // array32 header, ~2^31 elements
	if _, _, err := readArray(b); err == nil {
		t.Error("readArray accepted a length larger than the input")
	}
}
