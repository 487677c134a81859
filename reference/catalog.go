package reference

import (
	"sort"
)

// CoreCapability names the baseline references every compilation receives.
const CoreCapability = "core"

// Core lists the paths included in every resolved set, in order.
var Core = []string{"errors", "fmt"}

// Catalog maps capability names to the host paths that satisfy them.
type Catalog map[string][]string

// DefaultCatalog returns the capabilities offered out of the box.
func DefaultCatalog() Catalog {
	return Catalog{
		CoreCapability: Core,
		"bytes":        {"bytes"},
		"collections":  {"container/heap", "container/list", "container/ring", "sort"},
		"crypto":       {"crypto/md5", "crypto/sha1", "crypto/sha256", "crypto/sha512", "encoding/hex"},
		"encoding":     {"encoding/base64", "encoding/binary", "encoding/csv", "encoding/hex"},
		"json":         {"encoding/json"},
		"math":         {"math", "math/big", "math/bits"},
		"rand":         {"math/rand"},
		"regexp":       {"regexp"},
		"sink":         {"sink"},
		"sort":         {"sort"},
		"strings":      {"strings", "strconv", "unicode", "unicode/utf8"},
		"text":         {"strings", "strconv", "text/tabwriter", "text/template", "unicode", "unicode/utf8"},
		"time":         {"time"},
	}
}

// Names returns the capability names, sorted.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for n := range c {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Available returns a copy of c restricted to capabilities whose paths all
// exist in env.
func (c Catalog) Available(env *Environment) Catalog {
	out := make(Catalog, len(c))
	for name, paths := range c {
		ok := true
		for _, p := range paths {
			if !env.Has(p) {
				ok = false
				break
			}
		}
		if ok {
			out[name] = append([]string(nil), paths...)
		}
	}
	return out
}
