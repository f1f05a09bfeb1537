package pysrc

import (
	"sort"

	"github.com/pyrite-lang/pyrite/pkg/token"
)

// CapturePrefix is prepended to a captured identifier to form its
// placeholder name in reconstructed source. The prefix is the stable
// wire contract between reconstruction, generated code, and the
// interpreter driver; it is kept verbatim from the system this tool
// stays compatible with.
const CapturePrefix = "_RUST_"

// Captures maps placeholder names to the original host identifier
// tokens they were rewritten from. Insertion is idempotent by name:
// the first occurrence wins and later occurrences reuse the entry.
type Captures struct {
	byName map[string]*token.Ident
}

// NewCaptures creates an empty capture registry.
func NewCaptures() *Captures {
	return &Captures{byName: make(map[string]*token.Ident)}
}

// Add registers the identifier under the placeholder name. An existing
// entry is kept untouched.
func (c *Captures) Add(placeholder string, id *token.Ident) {
	if _, ok := c.byName[placeholder]; !ok {
		c.byName[placeholder] = id
	}
}

// Get returns the identifier registered under the placeholder name.
func (c *Captures) Get(placeholder string) (*token.Ident, bool) {
	id, ok := c.byName[placeholder]
	return id, ok
}

// Len returns the number of registered captures.
func (c *Captures) Len() int {
	return len(c.byName)
}

// Names returns all placeholder names in lexicographic order. Binding
// operations iterate in this order, so generated code and test output
// are reproducible.
func (c *Captures) Names() []string {
	names := make([]string, 0, len(c.byName))
	for name := range c.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Binding pairs a placeholder name with the host identifier it
// captures.
type Binding struct {
	Placeholder string
	Ident       *token.Ident
}

// Bindings returns all captures in lexicographic placeholder order.
func (c *Captures) Bindings() []Binding {
	names := c.Names()
	bindings := make([]Binding, 0, len(names))
	for _, name := range names {
		bindings = append(bindings, Binding{Placeholder: name, Ident: c.byName[name]})
	}
	return bindings
}
