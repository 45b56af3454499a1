package resolver

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/tfgraph/internal/diag"
	"github.com/vk/tfgraph/internal/source"
)

// ParseVarFiles merges user-supplied variable files into one value map.
// Files apply in argument order, later files overriding earlier ones. A
// variable file that does not parse is malformed configuration and fatal.
func ParseVarFiles(varFiles []source.VarFile) (map[string]cty.Value, error) {
	merged := make(map[string]cty.Value)
	for _, vf := range varFiles {
		f, diags := hclsyntax.ParseConfig(vf.Src, vf.Path, hcl.InitialPos)
		if diags.HasErrors() {
			return nil, varFileError(vf.Path, diags)
		}
		attrs, diags := f.Body.JustAttributes()
		if diags.HasErrors() {
			return nil, varFileError(vf.Path, diags)
		}
		for name, attr := range attrs {
			val, diags := attr.Expr.Value(nil)
			if diags.HasErrors() {
				return nil, varFileError(vf.Path, diags)
			}
			merged[name] = val
		}
	}
	return merged, nil
}

// ParseOverrides converts `name=value` override strings into cty values.
// Values are parsed as expressions when possible (numbers, bools, lists)
// and fall back to plain strings, so `--var count=3` and `--var name=web`
// both do what they look like.
func ParseOverrides(pairs []string) (map[string]cty.Value, error) {
	out := make(map[string]cty.Value, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := cutAssignment(pair)
		if !ok {
			return nil, fmt.Errorf("invalid variable override %q, expected name=value", pair)
		}
		expr, diags := hclsyntax.ParseExpression([]byte(raw), "<override>", hcl.InitialPos)
		if !diags.HasErrors() {
			if val, diags := expr.Value(nil); !diags.HasErrors() && val.IsWhollyKnown() {
				out[name] = val
				continue
			}
		}
		out[name] = cty.StringVal(raw)
	}
	return out, nil
}

func cutAssignment(pair string) (name, value string, ok bool) {
	for i := 0; i < len(pair); i++ {
		if pair[i] == '=' {
			if i == 0 {
				return "", "", false
			}
			return pair[:i], pair[i+1:], true
		}
	}
	return "", "", false
}

func varFileError(path string, diags hcl.Diagnostics) error {
	pos := hcl.InitialPos
	if diags[0].Subject != nil {
		pos = diags[0].Subject.Start
	}
	return &diag.MalformedConfigError{File: path, Position: pos, Diags: diags}
}
