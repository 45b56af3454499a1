// Package addr defines the identity of resource instances produced by the
// pipeline. An identity is a dotted path: the module path (empty for the
// root module), the resource type, the instance name, and, for expanded
// resources, an index or key segment. Identities are stable across runs for
// identical input and are the externally visible keys of the graph.
package addr
