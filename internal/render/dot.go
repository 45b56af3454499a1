package render

import (
	"strings"

	"github.com/vk/tfgraph/internal/graph"
)

// Dot renders the graph as a Graphviz digraph. Every node is declared even
// when no edge touches it, so isolated resources stay visible.
func Dot(g *graph.Graph) string {
	var sb strings.Builder
	sb.WriteString("digraph {\n")
	sb.WriteString("\trankdir = \"LR\";\n")
	for _, n := range g.Nodes {
		sb.WriteString("\t\"")
		sb.WriteString(n.Addr.String())
		sb.WriteString("\";\n")
	}
	for _, e := range g.Edges {
		sb.WriteString("\t\"")
		sb.WriteString(e.From.String())
		sb.WriteString("\" -> \"")
		sb.WriteString(e.To.String())
		sb.WriteString("\";\n")
	}
	sb.WriteString("}\n")
	return sb.String()
}
