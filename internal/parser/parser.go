package parser

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"golang.org/x/sync/errgroup"

	"github.com/vk/tfgraph/internal/config"
	"github.com/vk/tfgraph/internal/ctxlog"
	"github.com/vk/tfgraph/internal/diag"
	"github.com/vk/tfgraph/internal/source"
)

// knownKinds maps block type names to the recognized vocabulary. Anything
// else becomes an opaque KindUnknown block.
var knownKinds = map[string]config.BlockKind{
	"resource": config.KindResource,
	"module":   config.KindModule,
	"variable": config.KindVariable,
	"locals":   config.KindLocals,
	"output":   config.KindOutput,
	"data":     config.KindData,
	"provider": config.KindProvider,
}

// labelCounts is the required label arity per recognized kind.
var labelCounts = map[config.BlockKind]int{
	config.KindResource: 2,
	config.KindData:     2,
	config.KindModule:   1,
	config.KindVariable: 1,
	config.KindOutput:   1,
	config.KindProvider: 1,
	config.KindLocals:   0,
}

// Parse builds the module tree from the merged file set. The root module is
// the set of .tf files at the tree root; child modules are discovered by
// following module blocks whose source is a local relative path. Module
// calls with remote sources are kept as opaque calls and reported as a
// warning, since only root-level locators are fetched.
func Parse(ctx context.Context, files *source.FileSet, sink *diag.Sink) (*config.Tree, error) {
	logger := ctxlog.FromContext(ctx)

	tree := config.NewTree()
	if err := parseModule(ctx, files, tree, config.RootModule, "", nil, sink); err != nil {
		return nil, err
	}
	logger.Debug("parse complete", "modules", tree.Len())
	return tree, nil
}

// parseModule parses the files directly inside dir into one module, then
// recurses into local module calls. dirStack guards against module source
// cycles.
func parseModule(ctx context.Context, files *source.FileSet, tree *config.Tree, modPath config.ModulePath, dir string, dirStack []string, sink *diag.Sink) error {
	names := filesInDir(files, dir)

	mod := &config.Module{Path: modPath, Dir: dir}
	parsed := make([]*config.File, len(names))

	var g errgroup.Group
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			src, _ := files.Read(name)
			f, err := parseFile(name, src, modPath)
			if err != nil {
				return err
			}
			parsed[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	mod.Files = parsed

	if err := tree.Add(mod); err != nil {
		return err
	}

	// Recurse into local module calls, in deterministic block order.
	seen := make(map[string]struct{})
	for _, call := range mod.BlocksOfKind(config.KindModule) {
		if _, dup := seen[call.Name]; dup {
			sink.Warnf(modPath.String(), &call.DefRange, "duplicate module call %q, keeping the first declaration", call.Name)
			continue
		}
		seen[call.Name] = struct{}{}

		srcDir, ok := localModuleSource(call)
		if !ok {
			sink.Warnf(modPath.String(), &call.DefRange, "module %q has a non-local source, its contents are not analyzed", call.Name)
			continue
		}
		childDir := path.Join(dir, srcDir)
		if cyclic(dirStack, childDir) || childDir == dir {
			sink.Warnf(modPath.String(), &call.DefRange, "module %q source %q forms a cycle, not descending", call.Name, srcDir)
			continue
		}
		childPath := modPath.Child(call.Name)
		if err := parseModule(ctx, files, tree, childPath, childDir, append(dirStack, dir), sink); err != nil {
			return err
		}
	}
	return nil
}

// filesInDir returns the file-set names directly inside dir, sorted.
func filesInDir(files *source.FileSet, dir string) []string {
	var names []string
	for _, name := range files.Names() {
		if path.Dir(name) == dirKey(dir) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func dirKey(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}

// localModuleSource extracts a module call's source when it is a literal
// local relative path.
func localModuleSource(call *config.Block) (string, bool) {
	expr, ok := call.Attr("source")
	if !ok {
		return "", false
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() || !val.IsKnown() || val.Type() != cty.String {
		return "", false
	}
	src := val.AsString()
	if strings.HasPrefix(src, "./") || strings.HasPrefix(src, "../") {
		return src, true
	}
	return "", false
}

func cyclic(stack []string, dir string) bool {
	for _, d := range stack {
		if d == dir {
			return true
		}
	}
	return false
}

// parseFile parses one file's raw bytes into typed blocks.
func parseFile(name string, src []byte, modPath config.ModulePath) (*config.File, error) {
	hclFile, diags := hclsyntax.ParseConfig(src, name, hcl.InitialPos)
	if diags.HasErrors() {
		return nil, malformed(name, diags)
	}
	body, ok := hclFile.Body.(*hclsyntax.Body)
	if !ok {
		return nil, malformed(name, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "unexpected body type",
		}})
	}

	f := &config.File{Path: name}
	for _, raw := range body.Blocks {
		block, err := convertBlock(raw, name, modPath)
		if err != nil {
			return nil, err
		}
		f.Blocks = append(f.Blocks, block)
	}
	return f, nil
}

// convertBlock maps one hclsyntax block into the typed Block model.
func convertBlock(raw *hclsyntax.Block, file string, modPath config.ModulePath) (*config.Block, error) {
	kind, recognized := knownKinds[raw.Type]
	if !recognized {
		kind = config.KindUnknown
	}

	block := &config.Block{
		Kind:     kind,
		Module:   modPath,
		File:     file,
		DefRange: raw.DefRange(),
		Attrs:    bodyAttrs(raw.Body),
		Nested:   nestedBlocks(raw.Body),
	}

	if !recognized {
		block.Type = raw.Type
		if len(raw.Labels) > 0 {
			block.Name = raw.Labels[0]
		}
		return block, nil
	}

	if want := labelCounts[kind]; len(raw.Labels) != want {
		defRange := raw.DefRange()
		return nil, malformed(file, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  fmt.Sprintf("%s block requires %d labels, got %d", raw.Type, want, len(raw.Labels)),
			Subject:  &defRange,
		}})
	}

	switch kind {
	case config.KindResource, config.KindData:
		block.Type = raw.Labels[0]
		block.Name = raw.Labels[1]
	case config.KindModule, config.KindVariable, config.KindOutput:
		block.Name = raw.Labels[0]
	case config.KindProvider:
		block.Type = raw.Labels[0]
	}
	return block, nil
}

// bodyAttrs returns a body's attributes in declaration order. hclsyntax
// stores attributes in a map, so order is recovered from source positions.
func bodyAttrs(body *hclsyntax.Body) []config.Attr {
	attrs := make([]config.Attr, 0, len(body.Attributes))
	for _, a := range body.Attributes {
		attrs = append(attrs, config.Attr{Name: a.Name, Expr: a.Expr, Range: a.SrcRange})
	}
	sort.Slice(attrs, func(i, j int) bool {
		return attrs[i].Range.Start.Byte < attrs[j].Range.Start.Byte
	})
	return attrs
}

func nestedBlocks(body *hclsyntax.Body) []*config.Nested {
	var out []*config.Nested
	for _, nb := range body.Blocks {
		out = append(out, &config.Nested{
			Type:   nb.Type,
			Labels: nb.Labels,
			Attrs:  bodyAttrs(nb.Body),
			Nested: nestedBlocks(nb.Body),
		})
	}
	return out
}

func malformed(file string, diags hcl.Diagnostics) error {
	pos := hcl.InitialPos
	if len(diags) > 0 && diags[0].Subject != nil {
		pos = diags[0].Subject.Start
	}
	return &diag.MalformedConfigError{File: file, Position: pos, Diags: diags}
}
