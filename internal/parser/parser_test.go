package parser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/tfgraph/internal/config"
	"github.com/vk/tfgraph/internal/diag"
	"github.com/vk/tfgraph/internal/source"
)

func fileSet(files map[string]string) *source.FileSet {
	fs := source.NewFileSet()
	for name, contents := range files {
		fs.Put(name, []byte(contents))
	}
	return fs
}

func TestParseRootBlocks(t *testing.T) {
	fs := fileSet(map[string]string{
		"main.tf": `
variable "region" {
  default = "eu-west-1"
}

locals {
  name = "web"
}

resource "aws_instance" "web" {
  ami           = "ami-123"
  instance_type = "t3.micro"
}

data "aws_ami" "ubuntu" {
  most_recent = true
}

output "ip" {
  value = aws_instance.web.private_ip
}

provider "aws" {
  region = var.region
}
`,
	})

	sink := diag.NewSink()
	tree, err := Parse(context.Background(), fs, sink)
	require.NoError(t, err)
	require.Equal(t, 1, tree.Len())

	root := tree.Module(config.RootModule)
	require.NotNil(t, root)

	kinds := map[config.BlockKind]int{}
	for _, b := range root.Blocks() {
		kinds[b.Kind]++
	}
	assert.Equal(t, 1, kinds[config.KindVariable])
	assert.Equal(t, 1, kinds[config.KindLocals])
	assert.Equal(t, 1, kinds[config.KindResource])
	assert.Equal(t, 1, kinds[config.KindData])
	assert.Equal(t, 1, kinds[config.KindOutput])
	assert.Equal(t, 1, kinds[config.KindProvider])

	res := root.BlocksOfKind(config.KindResource)[0]
	assert.Equal(t, "aws_instance", res.Type)
	assert.Equal(t, "web", res.Name)
	require.Len(t, res.Attrs, 2)
	assert.Equal(t, "ami", res.Attrs[0].Name, "attribute declaration order is preserved")
	assert.Equal(t, "instance_type", res.Attrs[1].Name)
}

func TestParseUnknownBlockKept(t *testing.T) {
	fs := fileSet(map[string]string{
		"main.tf": `
terraform {
  required_version = ">= 1.0"
}

moved {
  from = aws_instance.a
  to   = aws_instance.b
}
`,
	})

	sink := diag.NewSink()
	tree, err := Parse(context.Background(), fs, sink)
	require.NoError(t, err)

	unknown := tree.Module(config.RootModule).BlocksOfKind(config.KindUnknown)
	require.Len(t, unknown, 2)
	assert.Equal(t, "terraform", unknown[0].Type)
	assert.Equal(t, "moved", unknown[1].Type)
}

func TestParseMalformed(t *testing.T) {
	t.Run("syntax error", func(t *testing.T) {
		fs := fileSet(map[string]string{
			"broken.tf": `resource "aws_instance" "web" {`,
		})
		_, err := Parse(context.Background(), fs, diag.NewSink())
		require.Error(t, err)

		var mc *diag.MalformedConfigError
		require.True(t, errors.As(err, &mc))
		assert.Equal(t, "broken.tf", mc.File)
		assert.NotZero(t, mc.Position.Line)
	})

	t.Run("wrong label count", func(t *testing.T) {
		fs := fileSet(map[string]string{
			"bad.tf": `resource "aws_instance" {}`,
		})
		_, err := Parse(context.Background(), fs, diag.NewSink())
		var mc *diag.MalformedConfigError
		require.True(t, errors.As(err, &mc))
		assert.Equal(t, "bad.tf", mc.File)
	})
}

func TestParseModuleRecursion(t *testing.T) {
	fs := fileSet(map[string]string{
		"main.tf": `
module "app" {
  source = "./modules/app"
  name   = "demo"
}
`,
		"modules/app/main.tf": `
resource "aws_instance" "svc" {}

module "db" {
  source = "../db"
}
`,
		"modules/db/main.tf": `
resource "aws_rds_cluster" "main" {}
`,
	})

	sink := diag.NewSink()
	tree, err := Parse(context.Background(), fs, sink)
	require.NoError(t, err)
	require.Equal(t, 3, tree.Len())

	app := tree.Module(config.ModulePath{"app"})
	require.NotNil(t, app)
	assert.Equal(t, "modules/app", app.Dir)
	assert.Len(t, app.BlocksOfKind(config.KindResource), 1)

	db := tree.Module(config.ModulePath{"app", "db"})
	require.NotNil(t, db)
	assert.Equal(t, "modules/db", db.Dir)

	t.Run("every module has a parent in the tree", func(t *testing.T) {
		for _, m := range tree.Modules() {
			if m.Path.IsRoot() {
				continue
			}
			assert.NotNil(t, tree.Module(m.Path.Parent()), "parent of %s", m.Path)
		}
	})
}

func TestParseRemoteModuleSourceWarns(t *testing.T) {
	fs := fileSet(map[string]string{
		"main.tf": `
module "vpc" {
  source  = "terraform-aws-modules/vpc/aws"
  version = "5.0.0"
}
`,
	})

	sink := diag.NewSink()
	tree, err := Parse(context.Background(), fs, sink)
	require.NoError(t, err)
	assert.Equal(t, 1, tree.Len(), "remote module is not descended into")

	diags := sink.All()
	require.Len(t, diags, 1)
	assert.Equal(t, diag.SevWarning, diags[0].Severity)
	assert.Contains(t, diags[0].Summary, "non-local source")
}

func TestParseModuleSourceCycle(t *testing.T) {
	fs := fileSet(map[string]string{
		"a/main.tf": `
module "b" {
  source = "../b"
}
`,
		"b/main.tf": `
module "a" {
  source = "../a"
}
`,
		"main.tf": `
module "a" {
  source = "./a"
}
`,
	})

	sink := diag.NewSink()
	tree, err := Parse(context.Background(), fs, sink)
	require.NoError(t, err)
	// root, a, a.b — then the cycle back into a is cut with a warning.
	assert.Equal(t, 3, tree.Len())

	var warned bool
	for _, d := range sink.All() {
		if d.Severity == diag.SevWarning {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestParseNestedBlocks(t *testing.T) {
	fs := fileSet(map[string]string{
		"main.tf": `
resource "aws_security_group" "fw" {
  name = "fw"

  ingress {
    from_port = 80
    to_port   = 80
  }

  ingress {
    from_port = 443
    to_port   = 443
  }
}
`,
	})

	tree, err := Parse(context.Background(), fs, diag.NewSink())
	require.NoError(t, err)

	res := tree.Module(config.RootModule).BlocksOfKind(config.KindResource)[0]
	require.Len(t, res.Nested, 2)
	assert.Equal(t, "ingress", res.Nested[0].Type)
	assert.Equal(t, "from_port", res.Nested[0].Attrs[0].Name)
}
