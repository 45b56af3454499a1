package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// ValueKind tags the closed value variant. Substituted attribute values are
// always exactly one of these; there is no "raw text" escape hatch, so
// consumers can distinguish "no value" from "string value" exhaustively.
type ValueKind int

const (
	// KindScalar is a resolved literal: string, number, bool or null.
	KindScalar ValueKind = iota
	// KindList is an ordered sequence of values.
	KindList
	// KindMap is a key-ordered mapping of values. Sibling key order is
	// preserved from the source.
	KindMap
	// KindReference is a value that names resources, data sources or
	// module outputs and therefore cannot reduce to a literal.
	KindReference
	// KindUnresolved is a value whose inputs were not known at analysis
	// time.
	KindUnresolved
)

// MapEntry is one key of a KindMap value.
type MapEntry struct {
	Key   string
	Value Value
}

// Value is the substitution-complete form of an attribute value.
type Value struct {
	kind    ValueKind
	scalar  cty.Value
	list    []Value
	entries []MapEntry
	refs    []Ref
	src     string
	missing []string
}

// ScalarVal wraps a resolved cty literal.
func ScalarVal(v cty.Value) Value {
	return Value{kind: KindScalar, scalar: v}
}

// ListVal wraps an ordered sequence.
func ListVal(elems []Value) Value {
	return Value{kind: KindList, list: elems}
}

// MapVal wraps an ordered mapping.
func MapVal(entries []MapEntry) Value {
	return Value{kind: KindMap, entries: entries}
}

// RefVal marks a value that references resources or module outputs. src is
// the expression's source text, refs the traversals it names.
func RefVal(refs []Ref, src string) Value {
	return Value{kind: KindReference, refs: refs, src: src}
}

// UnresolvedVal marks a value whose inputs are unknown. missing lists the
// names that failed to resolve, e.g. "var.region".
func UnresolvedVal(missing []string, src string) Value {
	return Value{kind: KindUnresolved, missing: missing, src: src}
}

func (v Value) Kind() ValueKind     { return v.kind }
func (v Value) Scalar() cty.Value   { return v.scalar }
func (v Value) List() []Value       { return v.list }
func (v Value) Entries() []MapEntry { return v.entries }
func (v Value) Refs() []Ref         { return v.refs }
func (v Value) Src() string         { return v.src }
func (v Value) Missing() []string   { return v.missing }

// FromCty converts an evaluated cty value into the closed variant. Unknown
// values (and unknowns nested inside collections) become KindUnresolved so
// later stages never mistake them for literals.
func FromCty(v cty.Value, src string) Value {
	if !v.IsKnown() {
		return UnresolvedVal(nil, src)
	}
	if v.IsNull() {
		return ScalarVal(v)
	}
	ty := v.Type()
	switch {
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		var elems []Value
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			elems = append(elems, FromCty(ev, src))
		}
		return ListVal(elems)
	case ty.IsObjectType() || ty.IsMapType():
		var entries []MapEntry
		for it := v.ElementIterator(); it.Next(); {
			k, ev := it.Element()
			entries = append(entries, MapEntry{Key: k.AsString(), Value: FromCty(ev, src)})
		}
		return MapVal(entries)
	default:
		return ScalarVal(v)
	}
}

// ContainsUnresolved reports whether the value, or anything nested in it,
// is unresolved.
func (v Value) ContainsUnresolved() bool {
	switch v.kind {
	case KindUnresolved:
		return true
	case KindList:
		for _, e := range v.list {
			if e.ContainsUnresolved() {
				return true
			}
		}
	case KindMap:
		for _, e := range v.entries {
			if e.Value.ContainsUnresolved() {
				return true
			}
		}
	}
	return false
}

// CollectRefs appends every Ref nested anywhere in the value, in source
// order.
func (v Value) CollectRefs(into []Ref) []Ref {
	switch v.kind {
	case KindReference:
		into = append(into, v.refs...)
	case KindList:
		for _, e := range v.list {
			into = e.CollectRefs(into)
		}
	case KindMap:
		for _, e := range v.entries {
			into = e.Value.CollectRefs(into)
		}
	}
	return into
}

// MarshalJSON renders the value for the structured-listing collaborator.
// Scalars render natively, references as {"$ref": [...]}, unresolved as
// {"$unresolved": "<source text>"}. Map key order is preserved.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindScalar:
		return ctyjson.SimpleJSONValue{Value: v.scalar}.MarshalJSON()
	case KindList:
		elems := v.list
		if elems == nil {
			elems = []Value{}
		}
		return json.Marshal(elems)
	case KindMap:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, e := range v.entries {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(e.Key)
			if err != nil {
				return nil, err
			}
			val, err := json.Marshal(e.Value)
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteByte(':')
			buf.Write(val)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	case KindReference:
		refs := make([]string, len(v.refs))
		for i, r := range v.refs {
			refs[i] = r.String()
		}
		return json.Marshal(map[string][]string{"$ref": refs})
	case KindUnresolved:
		return json.Marshal(map[string]string{"$unresolved": v.src})
	}
	return nil, fmt.Errorf("unknown value kind %d", v.kind)
}
