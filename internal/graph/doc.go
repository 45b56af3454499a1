// Package graph assembles the dependency graph over expanded resource
// instances. Building runs in two passes: the first registers every
// instance as a node, the second resolves references into edges, so link
// resolution never depends on declaration order.
//
// References that point at variables, locals or module outputs are chased
// through the frozen scopes until they bottom out at resource instances.
// An indexed reference links to the one matching instance; an indexless
// reference to an expanded resource fans out to all of its instances.
// Dependency cycles are reported as warnings, not failures, since the
// graph is a description of the configuration rather than an execution
// plan.
package graph
