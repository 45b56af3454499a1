package graph

import (
	"context"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/tfgraph/internal/addr"
	"github.com/vk/tfgraph/internal/config"
	"github.com/vk/tfgraph/internal/ctxlog"
	"github.com/vk/tfgraph/internal/diag"
	"github.com/vk/tfgraph/internal/expand"
	"github.com/vk/tfgraph/internal/metadata"
	"github.com/vk/tfgraph/internal/resolver"
)

// Edge is one dependency: From depends on To.
type Edge struct {
	From addr.Address
	To   addr.Address
}

// Graph is the final artifact: every expanded instance as a node plus the
// dependency edges between them. Nodes and edges are sorted, so rendering
// the same configuration twice produces identical bytes.
type Graph struct {
	Nodes []*expand.Instance
	Edges []Edge

	byID map[string]*expand.Instance
}

// Node looks up an instance by its identity string, nil if absent.
func (g *Graph) Node(id string) *expand.Instance {
	return g.byID[id]
}

// Build links expanded instances into a dependency graph. The record list
// must be the same one the instances were expanded from: records whose
// expansion produced zero instances still mark their resource as known, so
// references to them dissolve silently instead of warning.
func Build(ctx context.Context, set *resolver.Set, records []*metadata.Record, instances []*expand.Instance, sink *diag.Sink) *Graph {
	logger := ctxlog.FromContext(ctx)

	b := &builder{
		set:        set,
		sink:       sink,
		byID:       make(map[string]*expand.Instance, len(instances)),
		byBase:     make(map[string][]*expand.Instance),
		knownBases: make(map[string]bool, len(records)),
		warned:     make(map[string]struct{}),
		edgeSeen:   make(map[string]struct{}),
	}

	// Pass one: register nodes.
	for _, rec := range records {
		b.knownBases[rec.Addr.Base().String()] = true
	}
	for _, inst := range instances {
		b.byID[inst.Addr.String()] = inst
		base := inst.Addr.Base().String()
		b.byBase[base] = append(b.byBase[base], inst)
	}

	// Pass two: resolve references into edges.
	for _, inst := range instances {
		b.link(inst)
	}

	g := &Graph{
		Nodes: append([]*expand.Instance(nil), instances...),
		Edges: b.edges,
		byID:  b.byID,
	}
	sort.Slice(g.Nodes, func(i, j int) bool { return g.Nodes[i].Addr.Less(g.Nodes[j].Addr) })
	sort.Slice(g.Edges, func(i, j int) bool {
		if !g.Edges[i].From.Equal(g.Edges[j].From) {
			return g.Edges[i].From.Less(g.Edges[j].From)
		}
		return g.Edges[i].To.Less(g.Edges[j].To)
	})

	b.warnCycles(g)
	logger.Debug("graph built", "nodes", len(g.Nodes), "edges", len(g.Edges))
	return g
}

type builder struct {
	set        *resolver.Set
	sink       *diag.Sink
	byID       map[string]*expand.Instance
	byBase     map[string][]*expand.Instance
	knownBases map[string]bool
	warned     map[string]struct{}
	edgeSeen   map[string]struct{}
	edges      []Edge
}

func (b *builder) link(inst *expand.Instance) {
	mod := inst.Meta.Block.Module

	var refs []config.Ref
	for _, a := range inst.Attrs {
		refs = a.Value.CollectRefs(refs)
	}
	refs = append(refs, inst.Meta.DependsOn...)
	refs = append(refs, inst.Meta.ExtraRefs...)
	if inst.Meta.Cond.Expr != nil {
		refs = append(refs, exprRefs(inst.Meta.Cond.Expr)...)
	}

	for _, ref := range refs {
		for _, target := range b.resolveRef(mod, ref, make(map[string]struct{})) {
			b.addEdge(inst.Addr, target)
		}
	}
}

func (b *builder) addEdge(from, to addr.Address) {
	if from.Equal(to) {
		return
	}
	key := from.String() + "\x00" + to.String()
	if _, ok := b.edgeSeen[key]; ok {
		return
	}
	b.edgeSeen[key] = struct{}{}
	b.edges = append(b.edges, Edge{From: from, To: to})
}

// resolveRef chases one reference down to resource instance addresses.
// var, local and module roots recurse through the scope's reference-valued
// entries; the visited set cuts reference chains that loop.
func (b *builder) resolveRef(mod config.ModulePath, ref config.Ref, visited map[string]struct{}) []addr.Address {
	seen := mod.String() + "\x00" + ref.Src
	if _, ok := visited[seen]; ok {
		return nil
	}
	visited[seen] = struct{}{}

	scope := b.set.Scope(mod)
	if scope == nil {
		return nil
	}

	switch ref.Root {
	case "var":
		// Call-site arguments are written in the parent module, so their
		// reference targets resolve there.
		name := firstAttr(ref)
		var out []addr.Address
		for _, inner := range scope.VarRefs[name] {
			out = append(out, b.resolveRef(mod.Parent(), inner, visited)...)
		}
		return out
	case "local":
		name := firstAttr(ref)
		var out []addr.Address
		for _, inner := range scope.LocalRefs[name] {
			out = append(out, b.resolveRef(mod, inner, visited)...)
		}
		return out
	case "module":
		child, output := firstTwoAttrs(ref)
		childScope := b.set.Scope(mod.Child(child))
		if childScope == nil {
			b.warnOnce(mod, ref, "reference %s names an unknown module", ref.Src)
			return nil
		}
		var out []addr.Address
		for _, inner := range childScope.OutputRefs[output] {
			out = append(out, b.resolveRef(mod.Child(child), inner, visited)...)
		}
		return out
	case "count", "each", "path", "terraform":
		return nil
	case "data":
		steps := ref.AttrSteps()
		if len(steps) < 2 {
			return nil
		}
		base := addr.New(mod, true, steps[0], steps[1])
		key, hasKey := ref.IndexAfter(2)
		return b.targets(mod, ref, base, key, hasKey)
	default:
		steps := ref.AttrSteps()
		if len(steps) < 1 {
			return nil
		}
		base := addr.New(mod, false, ref.Root, steps[0])
		key, hasKey := ref.IndexAfter(1)
		return b.targets(mod, ref, base, key, hasKey)
	}
}

// targets maps a resolved base address onto concrete instances. Indexed
// references bind to one instance, falling back to the placeholder when
// expansion could not enumerate keys. Indexless references fan out.
func (b *builder) targets(mod config.ModulePath, ref config.Ref, base addr.Address, key string, hasKey bool) []addr.Address {
	instances := b.byBase[base.String()]

	if !hasKey {
		if len(instances) == 0 && !b.knownBases[base.String()] {
			b.warnOnce(mod, ref, "reference %s does not match any resource", ref.Src)
		}
		out := make([]addr.Address, len(instances))
		for i, inst := range instances {
			out[i] = inst.Addr
		}
		return out
	}

	want := base.WithKey(key)
	for _, inst := range instances {
		if inst.Addr.Equal(want) {
			return []addr.Address{inst.Addr}
		}
	}
	marker := base.WithKey(addr.UnknownKey)
	for _, inst := range instances {
		if inst.Addr.Equal(marker) {
			return []addr.Address{inst.Addr}
		}
	}
	if b.knownBases[base.String()] {
		if len(instances) > 0 {
			b.warnOnce(mod, ref, "reference %s names an instance key that was not created", ref.Src)
		}
		return nil
	}
	b.warnOnce(mod, ref, "reference %s does not match any resource", ref.Src)
	return nil
}

func (b *builder) warnOnce(mod config.ModulePath, ref config.Ref, format string, args ...any) {
	key := mod.String() + "\x00" + ref.Src
	if _, ok := b.warned[key]; ok {
		return
	}
	b.warned[key] = struct{}{}
	b.sink.Warnf(mod.String(), nil, format, args...)
}

// warnCycles runs a depth-first search over the finished edge set and
// reports each cycle once. Cycles are legal output here, unlike in an
// execution plan, so they stay warnings.
func (b *builder) warnCycles(g *Graph) {
	adj := make(map[string][]string, len(g.Nodes))
	for _, e := range g.Edges {
		adj[e.From.String()] = append(adj[e.From.String()], e.To.String())
	}

	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(g.Nodes))
	var stack []string

	var visit func(id string)
	visit = func(id string) {
		state[id] = inStack
		stack = append(stack, id)
		for _, next := range adj[id] {
			switch state[next] {
			case unvisited:
				visit(next)
			case inStack:
				start := 0
				for i, s := range stack {
					if s == next {
						start = i
						break
					}
				}
				cycle := append(append([]string(nil), stack[start:]...), next)
				b.sink.Warnf("", nil, "dependency cycle: %s", strings.Join(cycle, " -> "))
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
	}

	for _, n := range g.Nodes {
		if state[n.Addr.String()] == unvisited {
			visit(n.Addr.String())
		}
	}
}

func exprRefs(expr hcl.Expression) []config.Ref {
	var refs []config.Ref
	for _, t := range expr.Variables() {
		refs = append(refs, config.RefFromTraversal(t))
	}
	return refs
}

func firstAttr(r config.Ref) string {
	steps := r.AttrSteps()
	if len(steps) == 0 {
		return ""
	}
	return steps[0]
}

func firstTwoAttrs(r config.Ref) (string, string) {
	steps := r.AttrSteps()
	switch len(steps) {
	case 0:
		return "", ""
	case 1:
		return steps[0], ""
	}
	return steps[0], steps[1]
}
