package config

import (
	"fmt"
	"strings"
)

// ModulePath locates a module within the tree: the chain of module call
// names from the root. The root module has the empty path.
type ModulePath []string

// RootModule is the path of the root module.
var RootModule = ModulePath{}

// String renders the path dotted, empty for the root module.
func (p ModulePath) String() string {
	return strings.Join(p, ".")
}

// IsRoot reports whether the path names the root module.
func (p ModulePath) IsRoot() bool { return len(p) == 0 }

// Child returns the path of a module called name declared within p.
func (p ModulePath) Child(name string) ModulePath {
	child := make(ModulePath, 0, len(p)+1)
	child = append(child, p...)
	return append(child, name)
}

// Parent returns the path of the calling module. The root module is its own
// parent.
func (p ModulePath) Parent() ModulePath {
	if len(p) == 0 {
		return p
	}
	return p[:len(p)-1]
}

// File is one parsed configuration file belonging to a module.
type File struct {
	// Path is the file's path relative to the merged source root.
	Path string
	// Blocks holds the file's blocks in declaration order.
	Blocks []*Block
}

// Module is the set of parsed files sharing one module path.
type Module struct {
	Path ModulePath
	// Dir is the module's directory relative to the merged source root.
	Dir   string
	Files []*File
}

// Blocks returns all blocks of the module across its files, file order
// first, declaration order within each file.
func (m *Module) Blocks() []*Block {
	var out []*Block
	for _, f := range m.Files {
		out = append(out, f.Blocks...)
	}
	return out
}

// BlocksOfKind returns the module's blocks of one kind, in order.
func (m *Module) BlocksOfKind(kind BlockKind) []*Block {
	var out []*Block
	for _, b := range m.Blocks() {
		if b.Kind == kind {
			out = append(out, b)
		}
	}
	return out
}

// Tree is the ordered mapping from module path to parsed module. Modules
// are stored parents before children, which is also the order scopes must
// be resolved in.
type Tree struct {
	modules []*Module
	byPath  map[string]*Module
}

// NewTree returns an empty tree.
func NewTree() *Tree {
	return &Tree{byPath: make(map[string]*Module)}
}

// Add inserts a module. Every path except the root must have its parent
// already present; violating that is a programmer error in the parser.
func (t *Tree) Add(m *Module) error {
	if !m.Path.IsRoot() {
		if _, ok := t.byPath[m.Path.Parent().String()]; !ok {
			return fmt.Errorf("module %q added before its parent %q", m.Path, m.Path.Parent())
		}
	}
	if _, ok := t.byPath[m.Path.String()]; ok {
		return fmt.Errorf("module %q added twice", m.Path)
	}
	t.modules = append(t.modules, m)
	t.byPath[m.Path.String()] = m
	return nil
}

// Module looks up a module by path, nil if absent.
func (t *Tree) Module(path ModulePath) *Module {
	return t.byPath[path.String()]
}

// Modules returns all modules, parents before children.
func (t *Tree) Modules() []*Module {
	return t.modules
}

// Len returns the number of modules in the tree.
func (t *Tree) Len() int { return len(t.modules) }
