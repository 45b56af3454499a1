package metadata

import (
	"context"
	"strings"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/tfgraph/internal/addr"
	"github.com/vk/tfgraph/internal/config"
	"github.com/vk/tfgraph/internal/ctxlog"
	"github.com/vk/tfgraph/internal/diag"
	"github.com/vk/tfgraph/internal/resolver"
)

// ConditionKind classifies how a record's existence is decided.
type ConditionKind int

const (
	// CondStatic resources exist exactly once.
	CondStatic ConditionKind = iota
	// CondCount resources expand to N instances, or act as a boolean
	// gate when the expression resolves to a bool.
	CondCount
	// CondForEach resources expand to one instance per collection key.
	CondForEach
)

// Condition is the record's existence descriptor. The expression is
// evaluated by the conditional expander, which owns the fail-open policy
// for unresolved cardinality.
type Condition struct {
	Kind ConditionKind
	Expr hcl.Expression
}

// AttrValue is one substituted attribute.
type AttrValue struct {
	Name  string
	Value config.Value
}

// Record is the flattened, substitution-complete view of one resource or
// data block.
type Record struct {
	Addr  addr.Address
	Block *config.Block
	Attrs []AttrValue
	// DependsOn carries the block's explicit dependency references.
	DependsOn []config.Ref
	// ExtraRefs carries overlay-injected connections.
	ExtraRefs []config.Ref
	Cond      Condition
	// PerInstance is set when any attribute references count.index or
	// each.*, requiring re-substitution per expanded instance.
	PerInstance bool
}

// metaArgs never appear in a record's attribute mapping; they steer
// expansion and linking instead.
var metaArgs = map[string]struct{}{
	"count":      {},
	"for_each":   {},
	"depends_on": {},
	"provider":   {},
	"lifecycle":  {},
}

// Extract builds one Record per resource/data block in the tree, in module
// then declaration order. Unresolved references that are actually consumed
// by an attribute are reported as warnings, once per name per module.
func Extract(ctx context.Context, set *resolver.Set, sink *diag.Sink) []*Record {
	logger := ctxlog.FromContext(ctx)

	e := &extractor{set: set, sink: sink, warned: make(map[string]struct{})}
	var records []*Record
	for _, mod := range set.Tree().Modules() {
		for _, b := range mod.Blocks() {
			if b.Kind != config.KindResource && b.Kind != config.KindData {
				continue
			}
			records = append(records, e.extract(b))
		}
	}
	logger.Debug("metadata extracted", "records", len(records))
	return records
}

type extractor struct {
	set    *resolver.Set
	sink   *diag.Sink
	warned map[string]struct{}
}

func (e *extractor) extract(b *config.Block) *Record {
	rec := &Record{
		Addr:  addr.New(b.Module, b.Kind == config.KindData, b.Type, b.Name),
		Block: b,
		Cond:  Condition{Kind: CondStatic},
	}

	countExpr, hasCount := b.Attr("count")
	forEachExpr, hasForEach := b.Attr("for_each")
	if hasCount && hasForEach {
		e.sink.Errorf(b.Module.String(), &b.DefRange,
			"%s declares both count and for_each; count wins, for_each ignored", rec.Addr)
		hasForEach = false
	}
	switch {
	case hasCount:
		rec.Cond = Condition{Kind: CondCount, Expr: countExpr}
	case hasForEach:
		rec.Cond = Condition{Kind: CondForEach, Expr: forEachExpr}
	}

	for _, a := range b.Attrs {
		if _, meta := metaArgs[a.Name]; meta {
			continue
		}
		if usesIteration(a.Expr) {
			rec.PerInstance = true
		}
		val := e.substitute(a.Expr, b, a.Name, nil)
		rec.Attrs = append(rec.Attrs, AttrValue{Name: a.Name, Value: val})
	}

	for _, nested := range groupNested(b.Nested) {
		if nestedUsesIteration(nested.blocks) {
			rec.PerInstance = true
		}
		rec.Attrs = append(rec.Attrs, AttrValue{
			Name:  nested.name,
			Value: e.nestedValue(nested.blocks, b, nil),
		})
	}

	if expr, ok := b.Attr("depends_on"); ok {
		rec.DependsOn = explicitDeps(expr)
	}

	return rec
}

// nestedGroup keeps repeated nested blocks of one type together, in first-
// occurrence order.
type nestedGroup struct {
	name   string
	blocks []*config.Nested
}

func groupNested(nested []*config.Nested) []nestedGroup {
	var groups []nestedGroup
	index := make(map[string]int)
	for _, nb := range nested {
		if i, ok := index[nb.Type]; ok {
			groups[i].blocks = append(groups[i].blocks, nb)
			continue
		}
		index[nb.Type] = len(groups)
		groups = append(groups, nestedGroup{name: nb.Type, blocks: []*config.Nested{nb}})
	}
	return groups
}

// nestedValue renders a group of same-typed nested blocks as a list of
// maps, the shape the structured listing uses for repeated blocks.
func (e *extractor) nestedValue(blocks []*config.Nested, owner *config.Block, extra iterationValues) config.Value {
	var elems []config.Value
	for _, nb := range blocks {
		var entries []config.MapEntry
		for _, a := range nb.Attrs {
			entries = append(entries, config.MapEntry{
				Key:   a.Name,
				Value: e.substitute(a.Expr, owner, nb.Type+"."+a.Name, extra),
			})
		}
		for _, inner := range groupNested(nb.Nested) {
			entries = append(entries, config.MapEntry{
				Key:   inner.name,
				Value: e.nestedValue(inner.blocks, owner, extra),
			})
		}
		elems = append(elems, config.MapVal(entries))
	}
	return config.ListVal(elems)
}

// explicitDeps decodes a depends_on list of absolute traversals.
func explicitDeps(expr hcl.Expression) []config.Ref {
	items, diags := hcl.ExprList(expr)
	if diags.HasErrors() {
		return nil
	}
	var refs []config.Ref
	for _, item := range items {
		traversal, diags := hcl.AbsTraversalForExpr(item)
		if diags.HasErrors() {
			continue
		}
		refs = append(refs, config.RefFromTraversal(traversal))
	}
	return refs
}

func usesIteration(expr hcl.Expression) bool {
	for _, t := range expr.Variables() {
		root := t.RootName()
		if root == "count" || root == "each" {
			return true
		}
	}
	return false
}

func nestedUsesIteration(blocks []*config.Nested) bool {
	for _, nb := range blocks {
		for _, a := range nb.Attrs {
			if usesIteration(a.Expr) {
				return true
			}
		}
		if nestedUsesIteration(nb.Nested) {
			return true
		}
	}
	return false
}

// iterationSilent lists unresolved names substitution must not warn about:
// they are expected to be absent until per-instance re-substitution.
func iterationSilent(name string) bool {
	return name == "count.index" || strings.HasPrefix(name, "each.")
}

// warnUnresolved reports a consumed unresolved reference, once per name and
// module, with a did-you-mean suggestion for undeclared variables.
func (e *extractor) warnUnresolved(missing []string, b *config.Block, attrName string, subject *hcl.Range) {
	for _, name := range missing {
		if iterationSilent(name) {
			continue
		}
		if !strings.HasPrefix(name, "var.") && !strings.HasPrefix(name, "local.") && !strings.HasPrefix(name, "module.") {
			continue
		}
		key := b.Module.String() + "\x00" + name
		if _, done := e.warned[key]; done {
			continue
		}
		e.warned[key] = struct{}{}

		detail := "consumed by " + b.Type + "." + b.Name + " attribute " + attrName
		if varName, ok := strings.CutPrefix(name, "var."); ok {
			scope := e.set.Scope(b.Module)
			declared := scope.DeclaredVarNames()
			if !contains(declared, varName) {
				if suggestion := resolver.NameSuggestion(varName, declared); suggestion != "" {
					detail += "; did you mean \"var." + suggestion + "\"?"
				}
			}
		}
		e.sink.Warnf(b.Module.String(), subject, "unresolved reference %s: %s", name, detail)
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
