package resolver

import (
	"sort"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/tfgraph/internal/config"
)

// Scope is the frozen symbol table of one module path. Values live in three
// families: literals (cty values), reference-valued names (names whose
// definition points at resources and therefore cannot reduce to a literal),
// and unresolved names.
type Scope struct {
	Path config.ModulePath

	// Vars holds resolved variable literals.
	Vars map[string]cty.Value
	// VarRefs holds variables whose call-site argument referenced
	// resources; the refs flow through to whatever consumes the variable.
	VarRefs map[string][]config.Ref
	// UnresolvedVars holds declared variables with no value from any tier.
	UnresolvedVars map[string]struct{}

	Locals           map[string]cty.Value
	LocalRefs        map[string][]config.Ref
	UnresolvedLocals map[string]struct{}

	Outputs           map[string]cty.Value
	OutputRefs        map[string][]config.Ref
	UnresolvedOutputs map[string]struct{}

	// Broken is set when the module's locals form a cycle. The module's
	// resources stay visible, but its locals never resolve.
	Broken bool
}

func newScope(path config.ModulePath) *Scope {
	return &Scope{
		Path:              path,
		Vars:              make(map[string]cty.Value),
		VarRefs:           make(map[string][]config.Ref),
		UnresolvedVars:    make(map[string]struct{}),
		Locals:            make(map[string]cty.Value),
		LocalRefs:         make(map[string][]config.Ref),
		UnresolvedLocals:  make(map[string]struct{}),
		Outputs:           make(map[string]cty.Value),
		OutputRefs:        make(map[string][]config.Ref),
		UnresolvedOutputs: make(map[string]struct{}),
	}
}

// DeclaredVarNames returns the names of all variables the scope knows about
// in any state, sorted. Used for did-you-mean suggestions.
func (s *Scope) DeclaredVarNames() []string {
	names := make(map[string]struct{})
	for n := range s.Vars {
		names[n] = struct{}{}
	}
	for n := range s.VarRefs {
		names[n] = struct{}{}
	}
	for n := range s.UnresolvedVars {
		names[n] = struct{}{}
	}
	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Set is the tree of frozen scopes keyed by module path.
type Set struct {
	tree   *config.Tree
	scopes map[string]*Scope
}

// Scope returns the scope for a module path, nil if the path is unknown.
func (s *Set) Scope(path config.ModulePath) *Scope {
	return s.scopes[path.String()]
}

// Tree returns the config tree the scopes were resolved against.
func (s *Set) Tree() *config.Tree { return s.tree }

func (s *Set) ensure(path config.ModulePath) *Scope {
	key := path.String()
	if sc, ok := s.scopes[key]; ok {
		return sc
	}
	sc := newScope(path)
	s.scopes[key] = sc
	return sc
}
