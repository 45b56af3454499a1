package app_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/tfgraph/internal/app"
	"github.com/vk/tfgraph/internal/diag"
	"github.com/vk/tfgraph/internal/render"
)

func writeSource(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for path, contents := range files {
		full := filepath.Join(dir, filepath.FromSlash(path))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(contents), 0o644))
	}
	return dir
}

func newApp(t *testing.T) *app.App {
	t.Helper()
	settings, err := app.LoadSettings("", nil)
	require.NoError(t, err)
	return app.New(io.Discard, settings)
}

func TestRunEndToEnd(t *testing.T) {
	dir := writeSource(t, map[string]string{
		"main.tf": `
variable "replicas" {
  default = 2
}

resource "aws_subnet" "main" {}

resource "aws_instance" "web" {
  count     = var.replicas
  subnet_id = aws_subnet.main.id
}

module "dns" {
  source = "./dns"
  zone   = "example.com"
}
`,
		"dns/main.tf": `
variable "zone" {}

resource "aws_route53_zone" "this" {
  name = var.zone
}
`,
	})

	result, err := newApp(t).Run(context.Background(), &app.Config{Sources: []string{dir}})
	require.NoError(t, err)

	var ids []string
	for _, n := range result.Graph.Nodes {
		ids = append(ids, n.Addr.String())
	}
	assert.Equal(t, []string{
		"aws_instance.web.0",
		"aws_instance.web.1",
		"aws_subnet.main",
		"dns.aws_route53_zone.this",
	}, ids)
	assert.Len(t, result.Graph.Edges, 2)
	assert.Empty(t, result.Diags)
}

func TestInstanceAccounting(t *testing.T) {
	dir := writeSource(t, map[string]string{
		"main.tf": `
resource "aws_instance" "static" {}

resource "aws_instance" "counted" {
  count = 3
}

resource "aws_subnet" "mapped" {
  for_each = {
    a = "10.0.1.0/24"
    b = "10.0.2.0/24"
  }
}

resource "aws_instance" "gated_off" {
  count = false
}
`,
	})

	result, err := newApp(t).Run(context.Background(), &app.Config{Sources: []string{dir}})
	require.NoError(t, err)

	require.Len(t, result.Graph.Nodes, 6, "1 static + 3 counted + 2 mapped + 0 gated")
	seen := make(map[string]bool)
	for _, n := range result.Graph.Nodes {
		id := n.Addr.String()
		assert.False(t, seen[id], "instance %s appears twice", id)
		seen[id] = true
	}
}

func TestOutputIsIdempotent(t *testing.T) {
	files := map[string]string{
		"main.tf": `
resource "aws_vpc" "main" {}

resource "aws_subnet" "a" {
  count  = 2
  vpc_id = aws_vpc.main.id
  tags = {
    Name = "subnet-${count.index}"
  }
}
`,
	}

	run := func() []byte {
		t.Helper()
		dir := writeSource(t, files)
		result, err := newApp(t).Run(context.Background(), &app.Config{Sources: []string{dir}})
		require.NoError(t, err)
		out, err := render.JSON(result.Graph, result.Diags)
		require.NoError(t, err)
		return out
	}

	assert.Equal(t, run(), run(), "identical input produces identical bytes")
}

func TestPartialFailureIsolation(t *testing.T) {
	dir := writeSource(t, map[string]string{
		"main.tf": `
resource "aws_vpc" "main" {}

module "broken" {
  source = "./broken"
}
`,
		"broken/main.tf": `
locals {
  a = local.b
  b = local.a
}

resource "aws_instance" "inside" {
  tag = local.a
}
`,
	})

	result, err := newApp(t).Run(context.Background(), &app.Config{Sources: []string{dir}})
	require.NoError(t, err, "a broken module does not abort the run")

	var cyclic bool
	for _, d := range result.Diags {
		if d.Severity == diag.SevError && d.Module == "broken" {
			cyclic = true
		}
	}
	assert.True(t, cyclic, "the cycle is reported against its module")

	assert.NotNil(t, result.Graph.Node("aws_vpc.main"), "clean modules stay in the graph")
	assert.NotNil(t, result.Graph.Node("broken.aws_instance.inside"),
		"resources of the broken module stay visible")
}

func TestMissingSourceIsFatal(t *testing.T) {
	result, err := newApp(t).Run(context.Background(), &app.Config{
		Sources: []string{filepath.Join(t.TempDir(), "does-not-exist", "x")},
	})

	require.Error(t, err)
	assert.Nil(t, result, "no partial graph on fatal errors")
	var srcErr *diag.SourceUnavailableError
	assert.True(t, errors.As(err, &srcErr))
}

func TestVariablePrecedence(t *testing.T) {
	dir := writeSource(t, map[string]string{
		"main.tf": `
variable "env" {
  default = "dev"
}

resource "aws_instance" "web" {
  name = "web-${var.env}"
}
`,
	})
	varFile := filepath.Join(t.TempDir(), "prod.tfvars")
	require.NoError(t, os.WriteFile(varFile, []byte("env = \"prod\"\n"), 0o644))

	t.Run("var file beats default", func(t *testing.T) {
		result, err := newApp(t).Run(context.Background(), &app.Config{
			Sources:  []string{dir},
			VarFiles: []string{varFile},
		})
		require.NoError(t, err)
		assert.Contains(t, attrJSON(t, result), "web-prod")
	})

	t.Run("override beats var file", func(t *testing.T) {
		result, err := newApp(t).Run(context.Background(), &app.Config{
			Sources:  []string{dir},
			VarFiles: []string{varFile},
			Vars:     []string{"env=staging"},
		})
		require.NoError(t, err)
		assert.Contains(t, attrJSON(t, result), "web-staging")
	})

	t.Run("environment beats default, loses to var file", func(t *testing.T) {
		t.Setenv(app.VarEnvPrefix+"env", "qa")

		result, err := newApp(t).Run(context.Background(), &app.Config{Sources: []string{dir}})
		require.NoError(t, err)
		assert.Contains(t, attrJSON(t, result), "web-qa")

		result, err = newApp(t).Run(context.Background(), &app.Config{
			Sources:  []string{dir},
			VarFiles: []string{varFile},
		})
		require.NoError(t, err)
		assert.Contains(t, attrJSON(t, result), "web-prod")
	})
}

func TestAnnotationsOverlay(t *testing.T) {
	dir := writeSource(t, map[string]string{
		"main.tf": `
resource "aws_instance" "web" {}

resource "aws_s3_bucket" "assets" {}
`,
	})
	annotations := filepath.Join(t.TempDir(), "annotations.yaml")
	require.NoError(t, os.WriteFile(annotations, []byte(`
resources:
  aws_instance.web:
    attrs:
      team: platform
    connect:
      - aws_s3_bucket.assets
`), 0o644))

	result, err := newApp(t).Run(context.Background(), &app.Config{
		Sources:         []string{dir},
		AnnotationsPath: annotations,
	})
	require.NoError(t, err)

	assert.Contains(t, attrJSON(t, result), `"team": "platform"`)
	require.Len(t, result.Graph.Edges, 1)
	assert.Equal(t, "aws_s3_bucket.assets", result.Graph.Edges[0].To.String())
}

func attrJSON(t *testing.T, result *app.Result) string {
	t.Helper()
	out, err := render.JSON(result.Graph, nil)
	require.NoError(t, err)
	return string(out)
}
