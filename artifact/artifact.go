// Package artifact encodes compiled modules as self-contained binary images.
//
// An image is laid out as
//
//	magic "TCAI" | version | snappy(msgpack body) | xxhash64(compressed body)
//
// The body carries everything a host needs to load the module without the
// compiler: the bound source, the package name, the reference paths the
// module was compiled against and the entry point manifest.
package artifact

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/golang/snappy"

	"github.com/jonwraymond/toolcompile/code"
)

const (
	// Magic prefixes every image.
	Magic = "TCAI"

	// Version is the current image format version.
	Version byte = 1

	headerLen = len(Magic) + 1
	sumLen    = 8
)

// ErrMalformed is returned for images that fail to decode.
var ErrMalformed = errors.New("malformed artifact image")

// Image is the decoded content of an artifact.
type Image struct {
	// Name is the artifact name.
	Name string

	// Kind is the output kind the image was built as.
	Kind code.OutputKind

	// Package is the package name the source declares.
	Package string

	// Source is the bound, canonically formatted source.
	Source []byte

	// References are the references the module was compiled against.
	References []code.Reference

	// EntryPoints is the invocation manifest.
	EntryPoints []code.EntryPoint

	// Digest is the xxhash64 of Source.
	Digest uint64
}

// Paths returns the reference paths in order.
func (img Image) Paths() []string {
	out := make([]string, len(img.References))
	for i, r := range img.References {
		out[i] = r.Path
	}
	return out
}

// Encode serializes img. The output is a deterministic function of img.
func Encode(img Image) []byte {
	body := appendImage(nil, img)
	packed := snappy.Encode(nil, body)

	out := make([]byte, 0, headerLen+len(packed)+sumLen)
	out = append(out, Magic...)
	out = append(out, Version)
	out = append(out, packed...)
	out = binary.LittleEndian.AppendUint64(out, xxhash.Sum64(packed))
	return out
}

// Decode parses an image produced by Encode.
func Decode(b []byte) (Image, error) {
	if len(b) < headerLen+sumLen {
		return Image{}, fmt.Errorf("%w: %d bytes is too short", ErrMalformed, len(b))
	}
	if string(b[:len(Magic)]) != Magic {
		return Image{}, fmt.Errorf("%w: bad magic", ErrMalformed)
	}
	if v := b[len(Magic)]; v != Version {
		return Image{}, fmt.Errorf("%w: unsupported version %d", ErrMalformed, v)
	}
	packed := b[headerLen : len(b)-sumLen]
	if want, got := binary.LittleEndian.Uint64(b[len(b)-sumLen:]), xxhash.Sum64(packed); want != got {
		return Image{}, fmt.Errorf("%w: checksum mismatch", ErrMalformed)
	}
	body, err := snappy.Decode(nil, packed)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	img, err := readImage(body)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if xxhash.Sum64(img.Source) != img.Digest {
		return Image{}, fmt.Errorf("%w: source digest mismatch", ErrMalformed)
	}
	return img, nil
}

// New builds a code.Artifact around an encoded image.
func New(img Image) *code.Artifact {
	img.Digest = xxhash.Sum64(img.Source)
	return &code.Artifact{
		Name:  img.Name,
		Kind:  img.Kind,
		Image: Encode(img),
	}
}
