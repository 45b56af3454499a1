// Package testutil provides shared fixtures for pipeline tests: inline
// configuration maps parsed into trees without touching the real loader.
package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/tfgraph/internal/config"
	"github.com/vk/tfgraph/internal/diag"
	"github.com/vk/tfgraph/internal/parser"
	"github.com/vk/tfgraph/internal/source"
)

// FileSet builds an in-memory file set from relative path to contents.
func FileSet(files map[string]string) *source.FileSet {
	fs := source.NewFileSet()
	for name, contents := range files {
		fs.Put(name, []byte(contents))
	}
	return fs
}

// ParseTree parses inline configuration into a module tree, failing the
// test on fatal parse errors. The returned sink carries any non-fatal
// findings from parsing.
func ParseTree(t *testing.T, files map[string]string) (*config.Tree, *diag.Sink) {
	t.Helper()
	sink := diag.NewSink()
	tree, err := parser.Parse(context.Background(), FileSet(files), sink)
	require.NoError(t, err)
	return tree, sink
}
