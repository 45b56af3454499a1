package metadata

import (
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/tfgraph/internal/config"
	"github.com/vk/tfgraph/internal/diag"
	"github.com/vk/tfgraph/internal/resolver"
)

// iterationValues carries the per-instance symbols injected during
// conditional expansion: count.index, each.key, each.value.
type iterationValues map[string]cty.Value

// substitute rewrites one attribute expression into the closed value
// variant. Object and tuple constructors recurse so nested structures keep
// their shape and sibling order; everything else evaluates as a unit
// against the owning scope.
func (e *extractor) substitute(expr hcl.Expression, owner *config.Block, attrName string, extra iterationValues) config.Value {
	switch ex := expr.(type) {
	case *hclsyntax.ObjectConsExpr:
		var entries []config.MapEntry
		for _, item := range ex.Items {
			entries = append(entries, config.MapEntry{
				Key:   e.objectKey(item.KeyExpr, owner, extra),
				Value: e.substitute(item.ValueExpr, owner, attrName, extra),
			})
		}
		return config.MapVal(entries)
	case *hclsyntax.TupleConsExpr:
		var elems []config.Value
		for _, item := range ex.Exprs {
			elems = append(elems, e.substitute(item, owner, attrName, extra))
		}
		return config.ListVal(elems)
	}

	res := e.set.EvalExpr(expr, owner.Module, extra)
	switch {
	case res.Known:
		return config.FromCty(res.Value, exprSrc(expr, nil, nil))
	case len(res.Refs) > 0:
		e.warnUnresolved(res.Missing, owner, attrName, expr.Range().Ptr())
		return config.RefVal(res.Refs, exprSrc(expr, res.Refs, nil))
	default:
		e.warnUnresolved(res.Missing, owner, attrName, expr.Range().Ptr())
		return config.UnresolvedVal(res.Missing, exprSrc(expr, nil, res.Missing))
	}
}

// objectKey renders an object constructor key: a bare keyword, a literal,
// or — failing both — the key expression's source position.
func (e *extractor) objectKey(keyExpr hcl.Expression, owner *config.Block, extra iterationValues) string {
	if kw := hcl.ExprAsKeyword(keyExpr); kw != "" {
		return kw
	}
	// hclsyntax wraps object keys; unwrap before evaluating.
	if wrapped, ok := keyExpr.(*hclsyntax.ObjectConsKeyExpr); ok {
		keyExpr = wrapped.Wrapped
	}
	res := e.set.EvalExpr(keyExpr, owner.Module, extra)
	if res.Known && res.Value.Type() == cty.String {
		return res.Value.AsString()
	}
	return keyExpr.Range().String()
}

// exprSrc produces the display text of a non-literal value: the reference
// traversals or missing names when known, otherwise the source position.
func exprSrc(expr hcl.Expression, refs []config.Ref, missing []string) string {
	if len(refs) > 0 {
		parts := make([]string, len(refs))
		for i, r := range refs {
			parts[i] = r.Src
		}
		return strings.Join(parts, ", ")
	}
	if len(missing) > 0 {
		return strings.Join(missing, ", ")
	}
	return expr.Range().String()
}

// Resubstitute re-runs substitution of a record's attributes with the
// iteration symbols of one expanded instance, so expressions referencing
// count.index or each.* resolve per instance.
func Resubstitute(set *resolver.Set, sink *diag.Sink, rec *Record, extra map[string]cty.Value) []AttrValue {
	e := &extractor{set: set, sink: sink, warned: make(map[string]struct{})}
	b := rec.Block

	var attrs []AttrValue
	for _, a := range b.Attrs {
		if _, meta := metaArgs[a.Name]; meta {
			continue
		}
		attrs = append(attrs, AttrValue{Name: a.Name, Value: e.substitute(a.Expr, b, a.Name, extra)})
	}
	for _, nested := range groupNested(b.Nested) {
		attrs = append(attrs, AttrValue{
			Name:  nested.name,
			Value: e.nestedValue(nested.blocks, b, extra),
		})
	}
	return attrs
}
