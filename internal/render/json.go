package render

import (
	"bytes"
	"encoding/json"

	"github.com/vk/tfgraph/internal/diag"
	"github.com/vk/tfgraph/internal/expand"
	"github.com/vk/tfgraph/internal/graph"
)

type jsonDocument struct {
	Resources   []jsonResource   `json:"resources"`
	Edges       []jsonEdge       `json:"edges"`
	Diagnostics []jsonDiagnostic `json:"diagnostics"`
}

type jsonResource struct {
	ID         string          `json:"id"`
	Module     string          `json:"module,omitempty"`
	Type       string          `json:"type"`
	Name       string          `json:"name"`
	Key        string          `json:"key,omitempty"`
	Data       bool            `json:"data,omitempty"`
	Attributes json.RawMessage `json:"attributes"`
}

type jsonEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type jsonDiagnostic struct {
	Severity string `json:"severity"`
	Module   string `json:"module,omitempty"`
	Summary  string `json:"summary"`
}

// JSON renders the graph and its diagnostics as an indented JSON document.
// Attribute order follows declaration order, never map iteration order.
func JSON(g *graph.Graph, diags []diag.Diagnostic) ([]byte, error) {
	doc := jsonDocument{
		Resources:   make([]jsonResource, 0, len(g.Nodes)),
		Edges:       make([]jsonEdge, 0, len(g.Edges)),
		Diagnostics: make([]jsonDiagnostic, 0, len(diags)),
	}

	for _, n := range g.Nodes {
		attrs, err := attributesJSON(n)
		if err != nil {
			return nil, err
		}
		doc.Resources = append(doc.Resources, jsonResource{
			ID:         n.Addr.String(),
			Module:     modulePath(n.Addr.Module),
			Type:       n.Addr.Type,
			Name:       n.Addr.Name,
			Key:        n.Addr.Key,
			Data:       n.Addr.Data,
			Attributes: attrs,
		})
	}
	for _, e := range g.Edges {
		doc.Edges = append(doc.Edges, jsonEdge{From: e.From.String(), To: e.To.String()})
	}
	for _, d := range diags {
		doc.Diagnostics = append(doc.Diagnostics, jsonDiagnostic{
			Severity: d.Severity.String(),
			Module:   d.Module,
			Summary:  d.Summary,
		})
	}

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// attributesJSON builds the instance's attribute object by hand so that
// declaration order survives; encoding/json would sort a map's keys.
func attributesJSON(inst *expand.Instance) (json.RawMessage, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, a := range inst.Attrs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(a.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(a.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func modulePath(segments []string) string {
	if len(segments) == 0 {
		return ""
	}
	out := segments[0]
	for _, s := range segments[1:] {
		out += "." + s
	}
	return out
}
