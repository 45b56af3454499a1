// Package render serializes a built graph. Two formats are supported: a
// Graphviz dot digraph for visualisation and a JSON document carrying the
// full resolved metadata for machine consumers. Both renderers walk the
// graph's already-sorted nodes and edges, so the same graph always
// serializes to identical bytes.
package render
