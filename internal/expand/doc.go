// Package expand turns substitution-complete resource metadata into
// concrete resource instances by evaluating each record's condition
// descriptor: plain records yield one instance, count N yields N indexed
// instances, for_each yields one instance per key, and a count of zero (or
// a false boolean gate) yields none.
//
// The policy for unresolved cardinality is deliberately fail-open: a record
// whose count or for_each cannot be resolved yields exactly one instance
// carrying the unknown-count marker key, so the resource stays visible in
// the graph instead of silently vanishing.
package expand
