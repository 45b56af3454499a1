// Package resolver builds the per-module symbol tables (scopes) the rest of
// the pipeline substitutes from.
//
// Variable precedence, highest first: explicit override, user-supplied
// variable file, the parent module call's argument for a declared input,
// the variable's own declared default. A declared variable with no value
// from any tier stays unresolved; that only becomes a warning if something
// observable consumes it.
//
// Locals resolve after variables and may reference each other in any
// declaration order, so they are resolved by repeated substitution until a
// fixpoint; a genuine cycle is a CyclicLocals error scoped to its module.
//
// Module-call arguments may themselves contain references that only settle
// once the parent's scope is complete, so the whole tree is resolved in
// repeated passes until no scope changes, bounded by Options.MaxPasses.
// Within one pass parents resolve before children. Passes are sequential:
// call-site arguments can read a sibling module's outputs through the
// shared parent scope, so sibling concurrency would race.
package resolver
