package expand

import (
	"context"
	"math/big"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/tfgraph/internal/addr"
	"github.com/vk/tfgraph/internal/ctxlog"
	"github.com/vk/tfgraph/internal/diag"
	"github.com/vk/tfgraph/internal/metadata"
	"github.com/vk/tfgraph/internal/resolver"
)

// Instance is one concrete occurrence of a resource after expansion.
type Instance struct {
	Addr addr.Address
	Meta *metadata.Record
	// Attrs is the instance's attribute view: shared with the record for
	// static resources, re-substituted when the record references
	// count.index or each.*.
	Attrs []metadata.AttrValue
}

// Expand evaluates every record's condition descriptor and produces the
// concrete instance list, in record order with indexes/keys ascending.
func Expand(ctx context.Context, set *resolver.Set, records []*metadata.Record, sink *diag.Sink) []*Instance {
	logger := ctxlog.FromContext(ctx)

	var instances []*Instance
	for _, rec := range records {
		instances = append(instances, expandRecord(set, rec, sink)...)
	}
	logger.Debug("expansion complete", "records", len(records), "instances", len(instances))
	return instances
}

func expandRecord(set *resolver.Set, rec *metadata.Record, sink *diag.Sink) []*Instance {
	switch rec.Cond.Kind {
	case metadata.CondCount:
		return expandCount(set, rec, sink)
	case metadata.CondForEach:
		return expandForEach(set, rec, sink)
	default:
		return []*Instance{{Addr: rec.Addr, Meta: rec, Attrs: rec.Attrs}}
	}
}

// expandCount handles both numeric repetition and the boolean gate form
// (count = <condition>), where true means one instance and false means
// none. Anything unresolved keeps the resource visible via the marker
// instance.
func expandCount(set *resolver.Set, rec *metadata.Record, sink *diag.Sink) []*Instance {
	mod := rec.Block.Module
	res := set.EvalExpr(rec.Cond.Expr, mod, nil)
	if !res.Known {
		sink.Warnf(mod.String(), rangeOf(rec), "count of %s could not be resolved, keeping one placeholder instance", rec.Addr)
		return []*Instance{unknownInstance(rec)}
	}

	n, ok := countValue(res.Value)
	if !ok {
		sink.Warnf(mod.String(), rangeOf(rec), "count of %s is not a whole number or bool, keeping one placeholder instance", rec.Addr)
		return []*Instance{unknownInstance(rec)}
	}
	if n < 0 {
		sink.Errorf(mod.String(), rangeOf(rec), "count of %s is negative", rec.Addr)
		return nil
	}

	instances := make([]*Instance, 0, n)
	for i := 0; i < n; i++ {
		inst := &Instance{
			Addr:  rec.Addr.WithIndex(i),
			Meta:  rec,
			Attrs: rec.Attrs,
		}
		if rec.PerInstance {
			inst.Attrs = metadata.Resubstitute(set, sink, rec, map[string]cty.Value{
				"count.index": cty.NumberIntVal(int64(i)),
			})
		}
		instances = append(instances, inst)
	}
	return instances
}

func expandForEach(set *resolver.Set, rec *metadata.Record, sink *diag.Sink) []*Instance {
	mod := rec.Block.Module
	res := set.EvalExpr(rec.Cond.Expr, mod, nil)
	if !res.Known {
		sink.Warnf(mod.String(), rangeOf(rec), "for_each of %s could not be resolved, keeping one placeholder instance", rec.Addr)
		return []*Instance{unknownInstance(rec)}
	}

	keys, values, ok := forEachEntries(res.Value)
	if !ok {
		sink.Errorf(mod.String(), rangeOf(rec), "for_each of %s must be a map or a set of strings", rec.Addr)
		return []*Instance{unknownInstance(rec)}
	}

	instances := make([]*Instance, 0, len(keys))
	for i, key := range keys {
		if key == addr.UnknownKey {
			sink.Errorf(mod.String(), rangeOf(rec), "for_each key %q of %s collides with the unknown-count marker", key, rec.Addr)
			continue
		}
		inst := &Instance{
			Addr:  rec.Addr.WithKey(key),
			Meta:  rec,
			Attrs: rec.Attrs,
		}
		if rec.PerInstance {
			inst.Attrs = metadata.Resubstitute(set, sink, rec, map[string]cty.Value{
				"each.key":   cty.StringVal(key),
				"each.value": values[i],
			})
		}
		instances = append(instances, inst)
	}
	return instances
}

func unknownInstance(rec *metadata.Record) *Instance {
	return &Instance{
		Addr:  rec.Addr.WithKey(addr.UnknownKey),
		Meta:  rec,
		Attrs: rec.Attrs,
	}
}

// countValue interprets a resolved count: whole numbers count, booleans
// gate (true is one, false is zero).
func countValue(v cty.Value) (int, bool) {
	if v.IsNull() {
		return 0, false
	}
	switch v.Type() {
	case cty.Bool:
		if v.True() {
			return 1, true
		}
		return 0, true
	case cty.Number:
		bf := v.AsBigFloat()
		if !bf.IsInt() {
			return 0, false
		}
		n, acc := bf.Int64()
		if acc != big.Exact {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

// forEachEntries lists a for_each collection's keys and per-key values in
// iteration order (sorted for maps and objects, element order for lists).
func forEachEntries(v cty.Value) (keys []string, values []cty.Value, ok bool) {
	if v.IsNull() {
		return nil, nil, false
	}
	ty := v.Type()
	switch {
	case ty.IsMapType() || ty.IsObjectType():
		for it := v.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			keys = append(keys, k.AsString())
			values = append(values, ev)
		}
		return keys, values, true
	case ty.IsSetType() || ty.IsListType() || ty.IsTupleType():
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			if ev.IsNull() || ev.Type() != cty.String {
				return nil, nil, false
			}
			keys = append(keys, ev.AsString())
			values = append(values, ev)
		}
		return keys, values, true
	}
	return nil, nil, false
}

func rangeOf(rec *metadata.Record) *hcl.Range {
	if rec.Block == nil {
		return nil
	}
	return &rec.Block.DefRange
}
