package resolver

import (
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/tfgraph/internal/config"
)

// Result is the outcome of evaluating one expression against a scope. It
// mirrors the closed value variant: exactly one of Known, Refs or Missing
// describes the expression.
type Result struct {
	// Known is true when the expression reduced to a literal.
	Known bool
	Value cty.Value
	// Refs is non-empty when the expression names resources, data sources
	// or reference-valued scope entries. Such expressions never reduce.
	Refs []config.Ref
	// Missing lists the names that prevented resolution.
	Missing []string
}

// Unresolved reports whether the expression could neither be reduced nor
// classified as a reference.
func (r Result) Unresolved() bool {
	return !r.Known && len(r.Refs) == 0
}

// iteration carries the per-instance symbols (count.index, each.key,
// each.value) the conditional expander injects during re-substitution.
type iteration map[string]cty.Value

// EvalExpr evaluates an expression in the scope of the given module path.
// Only the reference-resolution subset of the source language is
// implemented: traversals into var/local/module symbols reduce to literals,
// traversals that name resources stay references, and everything the subset
// cannot compute (unknown functions included) comes back as Missing rather
// than an error.
func (s *Set) EvalExpr(expr hcl.Expression, path config.ModulePath, extra map[string]cty.Value) Result {
	scope := s.Scope(path)
	if scope == nil {
		return Result{Missing: []string{"module " + path.String()}}
	}

	var refs []config.Ref
	var missing []string
	seenRefs := make(map[string]struct{})

	addRef := func(r config.Ref) {
		if _, ok := seenRefs[r.Src]; ok {
			return
		}
		seenRefs[r.Src] = struct{}{}
		refs = append(refs, r)
	}

	for _, traversal := range expr.Variables() {
		ref := config.RefFromTraversal(traversal)
		switch ref.Root {
		case "var":
			name := firstStep(ref)
			switch {
			case name == "":
				missing = append(missing, ref.Src)
			case hasKey(scope.VarRefs, name):
				addRef(ref)
			case hasCty(scope.Vars, name):
				// literal, eval context covers it
			default:
				missing = append(missing, "var."+name)
			}
		case "local":
			name := firstStep(ref)
			switch {
			case name == "":
				missing = append(missing, ref.Src)
			case hasKey(scope.LocalRefs, name):
				addRef(ref)
			case hasCty(scope.Locals, name):
			default:
				missing = append(missing, "local."+name)
			}
		case "module":
			child, out := firstTwoSteps(ref)
			if child == "" || out == "" {
				missing = append(missing, ref.Src)
				continue
			}
			childScope := s.Scope(path.Child(child))
			switch {
			case childScope == nil:
				missing = append(missing, "module."+child)
			case hasKey(childScope.OutputRefs, out):
				addRef(ref)
			case hasCty(childScope.Outputs, out):
			default:
				missing = append(missing, "module."+child+"."+out)
			}
		case "count":
			if _, ok := extra["count.index"]; !ok {
				missing = append(missing, "count.index")
			}
		case "each":
			if _, ok := extra["each.key"]; !ok {
				missing = append(missing, "each."+firstStep(ref))
			}
		case "path", "terraform":
			// Outside the supported subset; visible as unresolved, not
			// as an error.
			missing = append(missing, ref.Src)
		default:
			// A bare resource type, or "data": a reference to another
			// resource instance.
			addRef(ref)
		}
	}

	if len(refs) > 0 {
		return Result{Refs: refs, Missing: dedupeSorted(missing)}
	}
	if len(missing) > 0 {
		return Result{Missing: dedupeSorted(missing)}
	}

	val, diags := expr.Value(s.evalContext(path, extra))
	if diags.HasErrors() {
		return Result{Missing: []string{diags[0].Summary}}
	}
	if !val.IsWhollyKnown() {
		return Result{Missing: []string{"unknown value"}}
	}
	return Result{Known: true, Value: val}
}

// evalContext assembles the hcl evaluation context for a module scope. Only
// literal symbols are present; reference-valued and unresolved names are
// classified before evaluation and never reach the context. No functions
// are exposed: the subset resolves names, it does not compute.
func (s *Set) evalContext(path config.ModulePath, extra map[string]cty.Value) *hcl.EvalContext {
	scope := s.Scope(path)

	vars := map[string]cty.Value{
		"var":   cty.ObjectVal(scope.Vars),
		"local": cty.ObjectVal(scope.Locals),
	}

	children := make(map[string]cty.Value)
	if s.tree != nil {
		for _, m := range s.tree.Modules() {
			if len(m.Path) != len(path)+1 || m.Path.Parent().String() != path.String() {
				continue
			}
			childScope := s.Scope(m.Path)
			if childScope == nil {
				continue
			}
			children[m.Path[len(m.Path)-1]] = cty.ObjectVal(childScope.Outputs)
		}
	}
	if len(children) > 0 {
		vars["module"] = cty.ObjectVal(children)
	}

	if idx, ok := extra["count.index"]; ok {
		vars["count"] = cty.ObjectVal(map[string]cty.Value{"index": idx})
	}
	if key, ok := extra["each.key"]; ok {
		each := map[string]cty.Value{"key": key}
		if v, ok := extra["each.value"]; ok {
			each["value"] = v
		}
		vars["each"] = cty.ObjectVal(each)
	}

	return &hcl.EvalContext{Variables: vars}
}

func firstStep(r config.Ref) string {
	steps := r.AttrSteps()
	if len(steps) == 0 {
		return ""
	}
	return steps[0]
}

func firstTwoSteps(r config.Ref) (string, string) {
	steps := r.AttrSteps()
	if len(steps) < 2 {
		if len(steps) == 1 {
			return steps[0], ""
		}
		return "", ""
	}
	return steps[0], steps[1]
}

func hasCty(m map[string]cty.Value, key string) bool {
	_, ok := m[key]
	return ok
}

func hasKey(m map[string][]config.Ref, key string) bool {
	_, ok := m[key]
	return ok
}

func dedupeSorted(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(names))
	var out []string
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
