package resolver

import (
	"context"
	"sort"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/tfgraph/internal/config"
	"github.com/vk/tfgraph/internal/ctxlog"
	"github.com/vk/tfgraph/internal/diag"
)

// DefaultMaxPasses bounds the whole-tree resolution fixpoint. Two passes
// cover the common parent-then-child flow; deeper output-to-argument chains
// need one pass per level.
const DefaultMaxPasses = 8

// Options configures resolution.
type Options struct {
	// Overrides is the highest-precedence tier, supplied by the command
	// line or a test harness.
	Overrides map[string]cty.Value
	// VarFileValues is the merged variable-file tier, later files already
	// having overridden earlier ones.
	VarFileValues map[string]cty.Value
	// EnvValues is the environment tier (TF_VAR_ style), consulted after
	// the call-site argument and before the declared default.
	EnvValues map[string]cty.Value
	// MaxPasses bounds the fixpoint loop; zero means DefaultMaxPasses.
	MaxPasses int
}

// Resolve computes a frozen scope for every module path in the tree.
// Scoped failures (cyclic locals, non-convergence) land in the sink; the
// returned set is always complete over the tree's module paths.
func Resolve(ctx context.Context, tree *config.Tree, opts Options, sink *diag.Sink) *Set {
	logger := ctxlog.FromContext(ctx)

	set := &Set{tree: tree, scopes: make(map[string]*Scope)}
	for _, m := range tree.Modules() {
		set.ensure(m.Path)
	}

	maxPasses := opts.MaxPasses
	if maxPasses <= 0 {
		maxPasses = DefaultMaxPasses
	}

	for pass := 0; pass < maxPasses; pass++ {
		changed := resolvePass(tree, set, opts, sink, pass == 0)
		logger.Debug("resolution pass complete", "pass", pass, "changed", changed)
		if !changed {
			return set
		}
		if pass == maxPasses-1 {
			sink.Errorf("", nil, "variable resolution did not converge after %d passes", maxPasses)
		}
	}
	return set
}

// resolvePass runs one full resolution sweep, parents strictly before
// children. Modules resolve sequentially within a pass: a sibling's
// call-site arguments may read another sibling's outputs (through the
// shared parent scope), so sibling concurrency would race on scope maps.
// The tree order already guarantees parent-before-child.
func resolvePass(tree *config.Tree, set *Set, opts Options, sink *diag.Sink, firstPass bool) bool {
	changed := false
	for _, m := range tree.Modules() {
		if resolveScope(tree, set, m, opts, sink, firstPass) {
			changed = true
		}
	}
	return changed
}

// resolveScope recomputes one module's scope and reports whether anything
// changed relative to the previous pass.
func resolveScope(tree *config.Tree, set *Set, mod *config.Module, opts Options, sink *diag.Sink, firstPass bool) bool {
	scope := set.Scope(mod.Path)
	changed := false

	for _, b := range mod.BlocksOfKind(config.KindVariable) {
		if resolveVariable(tree, set, scope, b, opts) {
			changed = true
		}
	}
	if resolveLocals(set, scope, mod, sink, firstPass) {
		changed = true
	}
	for _, b := range mod.BlocksOfKind(config.KindOutput) {
		if resolveOutput(set, scope, b) {
			changed = true
		}
	}
	return changed
}

// resolveVariable applies the precedence tiers to one variable declaration.
func resolveVariable(tree *config.Tree, set *Set, scope *Scope, b *config.Block, opts Options) bool {
	name := b.Name

	if v, ok := opts.Overrides[name]; ok {
		return setLiteral(scope.Vars, scope.VarRefs, scope.UnresolvedVars, name, v)
	}
	if v, ok := opts.VarFileValues[name]; ok {
		return setLiteral(scope.Vars, scope.VarRefs, scope.UnresolvedVars, name, v)
	}

	// Parent call-site argument. Its presence shadows the default even
	// while still unresolved: falling back to the default would resolve
	// the variable to a value the configuration explicitly replaced.
	if !scope.Path.IsRoot() {
		parent := tree.Module(scope.Path.Parent())
		if call := findModuleCall(parent, scope.Path[len(scope.Path)-1]); call != nil {
			if expr, ok := call.Attr(name); ok {
				res := set.EvalExpr(expr, scope.Path.Parent(), nil)
				switch {
				case res.Known:
					return setLiteral(scope.Vars, scope.VarRefs, scope.UnresolvedVars, name, res.Value)
				case len(res.Refs) > 0:
					return setRefs(scope.Vars, scope.VarRefs, scope.UnresolvedVars, name, res.Refs)
				default:
					return setUnresolved(scope.Vars, scope.VarRefs, scope.UnresolvedVars, name)
				}
			}
		}
	}

	if v, ok := opts.EnvValues[name]; ok {
		return setLiteral(scope.Vars, scope.VarRefs, scope.UnresolvedVars, name, v)
	}

	if expr, ok := b.Attr("default"); ok {
		res := set.EvalExpr(expr, scope.Path, nil)
		if res.Known {
			return setLiteral(scope.Vars, scope.VarRefs, scope.UnresolvedVars, name, res.Value)
		}
	}

	return setUnresolved(scope.Vars, scope.VarRefs, scope.UnresolvedVars, name)
}

// resolveLocals resolves the module's locals by repeated substitution until
// a fixpoint, so declaration order never matters. Locals left over whose
// missing inputs are exclusively each other form a cycle.
func resolveLocals(set *Set, scope *Scope, mod *config.Module, sink *diag.Sink, firstPass bool) bool {
	if scope.Broken {
		return false
	}

	pending := make(map[string]config.Attr)
	var order []string
	for _, b := range mod.BlocksOfKind(config.KindLocals) {
		for _, a := range b.Attrs {
			if _, dup := pending[a.Name]; dup && firstPass {
				sink.Warnf(scope.Path.String(), &a.Range, "duplicate local %q, the later declaration wins", a.Name)
			}
			if _, dup := pending[a.Name]; !dup {
				order = append(order, a.Name)
			}
			pending[a.Name] = a
		}
	}

	changed := false
	missingByName := make(map[string][]string)

	for {
		progress := false
		for _, name := range order {
			a, ok := pending[name]
			if !ok {
				continue
			}
			res := set.EvalExpr(a.Expr, scope.Path, nil)
			switch {
			case res.Known:
				if setLiteral(scope.Locals, scope.LocalRefs, scope.UnresolvedLocals, name, res.Value) {
					changed = true
				}
				delete(pending, name)
				progress = true
			case len(res.Refs) > 0:
				if setRefs(scope.Locals, scope.LocalRefs, scope.UnresolvedLocals, name, res.Refs) {
					changed = true
				}
				delete(pending, name)
				progress = true
			default:
				missingByName[name] = res.Missing
			}
		}
		if !progress {
			break
		}
	}

	for name := range pending {
		if setUnresolved(scope.Locals, scope.LocalRefs, scope.UnresolvedLocals, name) {
			changed = true
		}
	}

	if cycle := localsCycle(pending, missingByName); len(cycle) > 0 {
		scope.Broken = true
		err := &diag.CyclicLocalsError{Module: scope.Path.String(), Names: cycle}
		sink.Errorf(scope.Path.String(), nil, "%s", err.Error())
		changed = true
	}
	return changed
}

// localsCycle returns the names of leftover locals that depend only on each
// other, i.e. a genuine cycle rather than locals blocked on outside inputs.
// The candidate set shrinks until stable: a local escapes the set as soon as
// any of its missing inputs is not itself a candidate.
func localsCycle(pending map[string]config.Attr, missingByName map[string][]string) []string {
	candidates := make(map[string]struct{})
	for name := range pending {
		candidates[name] = struct{}{}
	}

	for {
		shrunk := false
		for name := range candidates {
			for _, miss := range missingByName[name] {
				dep, isLocal := strings.CutPrefix(miss, "local.")
				if !isLocal {
					delete(candidates, name)
					shrunk = true
					break
				}
				if _, ok := candidates[dep]; !ok {
					delete(candidates, name)
					shrunk = true
					break
				}
			}
		}
		if !shrunk {
			break
		}
	}

	names := make([]string, 0, len(candidates))
	for name := range candidates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func resolveOutput(set *Set, scope *Scope, b *config.Block) bool {
	expr, ok := b.Attr("value")
	if !ok {
		return setUnresolved(scope.Outputs, scope.OutputRefs, scope.UnresolvedOutputs, b.Name)
	}
	res := set.EvalExpr(expr, scope.Path, nil)
	switch {
	case res.Known:
		return setLiteral(scope.Outputs, scope.OutputRefs, scope.UnresolvedOutputs, b.Name, res.Value)
	case len(res.Refs) > 0:
		return setRefs(scope.Outputs, scope.OutputRefs, scope.UnresolvedOutputs, b.Name, res.Refs)
	default:
		return setUnresolved(scope.Outputs, scope.OutputRefs, scope.UnresolvedOutputs, b.Name)
	}
}

func findModuleCall(parent *config.Module, name string) *config.Block {
	if parent == nil {
		return nil
	}
	for _, b := range parent.BlocksOfKind(config.KindModule) {
		if b.Name == name {
			return b
		}
	}
	return nil
}

// setLiteral, setRefs and setUnresolved move a name into exactly one of the
// three state families and report whether that changed anything.

func setLiteral(vals map[string]cty.Value, refs map[string][]config.Ref, unresolved map[string]struct{}, name string, v cty.Value) bool {
	prev, had := vals[name]
	if had && prev.RawEquals(v) {
		return false
	}
	vals[name] = v
	delete(refs, name)
	delete(unresolved, name)
	return true
}

func setRefs(vals map[string]cty.Value, refs map[string][]config.Ref, unresolved map[string]struct{}, name string, rs []config.Ref) bool {
	if prev, had := refs[name]; had && refKey(prev) == refKey(rs) {
		return false
	}
	refs[name] = rs
	delete(vals, name)
	delete(unresolved, name)
	return true
}

func setUnresolved(vals map[string]cty.Value, refs map[string][]config.Ref, unresolved map[string]struct{}, name string) bool {
	if _, had := unresolved[name]; had {
		return false
	}
	if _, had := vals[name]; had {
		// A name never downgrades from resolved to unresolved within a
		// run; the earlier value stands.
		return false
	}
	if _, had := refs[name]; had {
		return false
	}
	unresolved[name] = struct{}{}
	return true
}

func refKey(refs []config.Ref) string {
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = r.Src
	}
	return strings.Join(parts, "\x00")
}
