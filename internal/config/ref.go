package config

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// RefStep is one step of a reference traversal after the root: either an
// attribute access or an index/key access.
type RefStep struct {
	// Name is set for attribute steps.
	Name string
	// Index is the rendered index or key for index steps.
	Index string
	// IsIndex distinguishes index steps from attribute steps.
	IsIndex bool
}

// Ref is a reference expression that survived substitution because it names
// something outside the value world: a resource, a data source, or a module
// output. The graph builder turns Refs into edges.
type Ref struct {
	// Root is the traversal root name: a resource type, "data", "module",
	// "var", "local", "count" or "each".
	Root  string
	Steps []RefStep
	// Src is the canonical traversal text, used for display and as a
	// stable map key.
	Src string
}

// RefFromTraversal converts an hcl traversal into a Ref.
func RefFromTraversal(t hcl.Traversal) Ref {
	ref := Ref{Root: t.RootName(), Src: TraversalKey(t)}
	for _, step := range t[1:] {
		switch s := step.(type) {
		case hcl.TraverseAttr:
			ref.Steps = append(ref.Steps, RefStep{Name: s.Name})
		case hcl.TraverseIndex:
			ref.Steps = append(ref.Steps, RefStep{Index: indexString(s.Key), IsIndex: true})
		}
	}
	return ref
}

// AttrSteps returns the names of the leading attribute steps, stopping at
// the first index step.
func (r Ref) AttrSteps() []string {
	var names []string
	for _, s := range r.Steps {
		if s.IsIndex {
			break
		}
		names = append(names, s.Name)
	}
	return names
}

// IndexAfter returns the index step immediately following the first n
// attribute steps, if one exists. This is how `aws_instance.web[1].id` is
// told apart from the indexless `aws_instance.web.id`.
func (r Ref) IndexAfter(n int) (string, bool) {
	if n < len(r.Steps) && r.Steps[n].IsIndex {
		return r.Steps[n].Index, true
	}
	return "", false
}

func (r Ref) String() string { return r.Src }

// TraversalKey generates a stable, canonical string representation for an
// hcl.Traversal, suitable for use as a map key.
func TraversalKey(t hcl.Traversal) string {
	return string(hclwrite.TokensForTraversal(t).Bytes())
}

func indexString(key cty.Value) string {
	if key.IsNull() || !key.IsKnown() {
		return "?"
	}
	str, err := convert.Convert(key, cty.String)
	if err != nil {
		return "?"
	}
	return str.AsString()
}
