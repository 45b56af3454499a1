package config

import (
	"github.com/hashicorp/hcl/v2"
)

// BlockKind is the recognized block vocabulary. Unknown kinds are kept as
// opaque blocks rather than dropped, so downstream consumers can ignore
// them without the parser having to enumerate every provider extension.
type BlockKind string

const (
	KindResource BlockKind = "resource"
	KindModule   BlockKind = "module"
	KindVariable BlockKind = "variable"
	KindLocals   BlockKind = "locals"
	KindOutput   BlockKind = "output"
	KindData     BlockKind = "data"
	KindProvider BlockKind = "provider"
	KindUnknown  BlockKind = "unknown"
)

// Attr is one attribute of a block: the declared name and its expression,
// parsed once and never re-parsed from text.
type Attr struct {
	Name  string
	Expr  hcl.Expression
	Range hcl.Range
}

// Nested is a nested configuration block inside a resource body, such as an
// `ingress` block inside a security group. Repeated nested blocks of the
// same type are kept as separate entries in declaration order.
type Nested struct {
	Type   string
	Labels []string
	Attrs  []Attr
	Nested []*Nested
}

// Block is one typed unit of configuration.
type Block struct {
	Kind BlockKind
	// Type is the resource or data source type for resource/data kinds,
	// the provider name for provider kind, and the raw block type for
	// unknown kinds. Empty otherwise.
	Type string
	// Name is the instance name for resource/data kinds, the variable,
	// output or module call name for those kinds. Empty for locals and
	// provider blocks.
	Name     string
	Module   ModulePath
	File     string
	DefRange hcl.Range
	// Attrs holds the block body's attributes in declaration order.
	Attrs []Attr
	// Nested holds the block body's nested blocks in declaration order.
	Nested []*Nested
}

// Attr returns the named attribute's expression, or false if the block does
// not declare it.
func (b *Block) Attr(name string) (hcl.Expression, bool) {
	for _, a := range b.Attrs {
		if a.Name == name {
			return a.Expr, true
		}
	}
	return nil, false
}
