package metadata

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"

	"github.com/vk/tfgraph/internal/config"
	"github.com/vk/tfgraph/internal/diag"
)

// Overlay is the user-supplied annotation document applied to records after
// substitution and before expansion. Targets are matched by the record's
// identity string, with or without the module path prefix.
//
//	resources:
//	  aws_instance.web:
//	    attrs:
//	      team: platform
//	    connect:
//	      - aws_s3_bucket.assets
type Overlay struct {
	Resources map[string]OverlayEntry `yaml:"resources"`
}

// OverlayEntry overrides or augments one resource's metadata.
type OverlayEntry struct {
	// Attrs override same-named attributes and append new ones.
	Attrs map[string]any `yaml:"attrs"`
	// Connect adds dependency references the configuration itself does
	// not express, e.g. out-of-band relationships worth rendering.
	Connect []string `yaml:"connect"`
}

// ParseOverlay decodes an annotation document.
func ParseOverlay(src []byte) (*Overlay, error) {
	var o Overlay
	if err := yaml.Unmarshal(src, &o); err != nil {
		return nil, fmt.Errorf("invalid annotation overlay: %w", err)
	}
	return &o, nil
}

// Apply rewrites records in place. Overlay targets that match no record are
// reported as warnings so typos do not vanish silently.
func (o *Overlay) Apply(records []*Record, sink *diag.Sink) {
	if o == nil || len(o.Resources) == 0 {
		return
	}

	matched := make(map[string]bool, len(o.Resources))
	for target := range o.Resources {
		matched[target] = false
	}

	for _, rec := range records {
		full := rec.Addr.String()
		short := rec.Addr.Type + "." + rec.Addr.Name
		if rec.Addr.Data {
			short = "data." + short
		}
		for _, target := range []string{full, short} {
			entry, ok := o.Resources[target]
			if !ok {
				continue
			}
			matched[target] = true
			applyEntry(rec, entry, sink)
			break
		}
	}

	targets := make([]string, 0, len(matched))
	for target := range matched {
		targets = append(targets, target)
	}
	sort.Strings(targets)
	for _, target := range targets {
		if !matched[target] {
			sink.Warnf("", nil, "annotation target %q matches no resource", target)
		}
	}
}

func applyEntry(rec *Record, entry OverlayEntry, sink *diag.Sink) {
	keys := make([]string, 0, len(entry.Attrs))
	for k := range entry.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		setAttr(rec, k, yamlValue(entry.Attrs[k]))
	}

	for _, raw := range entry.Connect {
		traversal, diags := hclsyntax.ParseTraversalAbs([]byte(raw), "<annotation>", hcl.InitialPos)
		if diags.HasErrors() {
			sink.Warnf(config.ModulePath(rec.Addr.Module).String(), nil, "annotation connect %q on %s is not a valid reference", raw, rec.Addr)
			continue
		}
		rec.ExtraRefs = append(rec.ExtraRefs, config.RefFromTraversal(traversal))
	}
}

func setAttr(rec *Record, name string, val config.Value) {
	for i, a := range rec.Attrs {
		if a.Name == name {
			rec.Attrs[i].Value = val
			return
		}
	}
	rec.Attrs = append(rec.Attrs, AttrValue{Name: name, Value: val})
}

// yamlValue converts a decoded yaml node into the closed value variant.
// Map keys are sorted: yaml mappings carry no usable order through
// interface decoding, and output must stay deterministic.
func yamlValue(v any) config.Value {
	switch t := v.(type) {
	case nil:
		return config.ScalarVal(cty.NullVal(cty.DynamicPseudoType))
	case bool:
		return config.ScalarVal(cty.BoolVal(t))
	case int:
		return config.ScalarVal(cty.NumberIntVal(int64(t)))
	case int64:
		return config.ScalarVal(cty.NumberIntVal(t))
	case float64:
		return config.ScalarVal(cty.NumberFloatVal(t))
	case string:
		return config.ScalarVal(cty.StringVal(t))
	case []any:
		var elems []config.Value
		for _, e := range t {
			elems = append(elems, yamlValue(e))
		}
		return config.ListVal(elems)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var entries []config.MapEntry
		for _, k := range keys {
			entries = append(entries, config.MapEntry{Key: k, Value: yamlValue(t[k])})
		}
		return config.MapVal(entries)
	default:
		return config.ScalarVal(cty.StringVal(fmt.Sprintf("%v", t)))
	}
}
