package metadata_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/tfgraph/internal/config"
	"github.com/vk/tfgraph/internal/diag"
	"github.com/vk/tfgraph/internal/metadata"
	"github.com/vk/tfgraph/internal/resolver"
	"github.com/vk/tfgraph/internal/testutil"
)

func extract(t *testing.T, files map[string]string, opts resolver.Options) ([]*metadata.Record, *diag.Sink) {
	t.Helper()
	tree, sink := testutil.ParseTree(t, files)
	set := resolver.Resolve(context.Background(), tree, opts, sink)
	return metadata.Extract(context.Background(), set, sink), sink
}

func attrOf(t *testing.T, rec *metadata.Record, name string) config.Value {
	t.Helper()
	for _, a := range rec.Attrs {
		if a.Name == name {
			return a.Value
		}
	}
	t.Fatalf("attribute %q not found on %s", name, rec.Addr)
	return config.Value{}
}

func TestSubstitution(t *testing.T) {
	records, sink := extract(t, map[string]string{
		"main.tf": `
variable "ami" {
  default = "ami-123"
}

locals {
  type = "t3.micro"
}

resource "aws_instance" "web" {
  ami           = var.ami
  instance_type = local.type
  subnet_id     = aws_subnet.main.id
  tags = {
    Name = "web-${var.ami}"
    Tier = "frontend"
  }
}

resource "aws_subnet" "main" {}
`,
	}, resolver.Options{})

	require.False(t, sink.HasErrors())
	require.Len(t, records, 2)

	web := records[0]
	assert.Equal(t, "aws_instance.web", web.Addr.String())

	assert.Equal(t, "ami-123", attrOf(t, web, "ami").Scalar().AsString())
	assert.Equal(t, "t3.micro", attrOf(t, web, "instance_type").Scalar().AsString())

	subnet := attrOf(t, web, "subnet_id")
	require.Equal(t, config.KindReference, subnet.Kind())
	assert.Equal(t, "aws_subnet.main.id", subnet.Refs()[0].String())

	tags := attrOf(t, web, "tags")
	require.Equal(t, config.KindMap, tags.Kind())
	require.Len(t, tags.Entries(), 2)
	assert.Equal(t, "Name", tags.Entries()[0].Key, "sibling key order preserved")
	assert.Equal(t, "web-ami-123", tags.Entries()[0].Value.Scalar().AsString())
}

func TestUnresolvedConsumedWarns(t *testing.T) {
	t.Run("consumed unresolved reference warns", func(t *testing.T) {
		_, sink := extract(t, map[string]string{
			"main.tf": `
variable "unset" {}

resource "aws_instance" "web" {
  ami = var.unset
}
`,
		}, resolver.Options{})

		var warnings []string
		for _, d := range sink.All() {
			if d.Severity == diag.SevWarning {
				warnings = append(warnings, d.Summary)
			}
		}
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], "var.unset")
	})

	t.Run("unused unresolved variable stays silent", func(t *testing.T) {
		_, sink := extract(t, map[string]string{
			"main.tf": `
variable "unset" {}

resource "aws_instance" "web" {
  ami = "ami-123"
}
`,
		}, resolver.Options{})
		assert.Empty(t, sink.All())
	})

	t.Run("typo gets a suggestion", func(t *testing.T) {
		_, sink := extract(t, map[string]string{
			"main.tf": `
variable "region" {
  default = "eu-west-1"
}

resource "aws_instance" "web" {
  availability_zone = var.regon
}
`,
		}, resolver.Options{})

		var found bool
		for _, d := range sink.All() {
			if strings.Contains(d.Summary, "var.regon") {
				found = true
				assert.Contains(t, d.Summary, `did you mean "var.region"`)
			}
		}
		assert.True(t, found)
	})
}

func TestUnresolvedIsTypedPlaceholder(t *testing.T) {
	records, _ := extract(t, map[string]string{
		"main.tf": `
variable "unset" {}

resource "aws_instance" "web" {
  ami = var.unset
}
`,
	}, resolver.Options{})

	ami := attrOf(t, records[0], "ami")
	assert.Equal(t, config.KindUnresolved, ami.Kind())
	assert.Contains(t, ami.Missing(), "var.unset")
}

func TestConditionDescriptor(t *testing.T) {
	records, sink := extract(t, map[string]string{
		"main.tf": `
resource "aws_instance" "plain" {}

resource "aws_instance" "counted" {
  count = 3
}

resource "aws_subnet" "mapped" {
  for_each = { a = 1 }
}

resource "aws_instance" "conflicted" {
  count    = 1
  for_each = { a = 1 }
}
`,
	}, resolver.Options{})

	byName := map[string]*metadata.Record{}
	for _, r := range records {
		byName[r.Addr.Name] = r
	}
	assert.Equal(t, metadata.CondStatic, byName["plain"].Cond.Kind)
	assert.Equal(t, metadata.CondCount, byName["counted"].Cond.Kind)
	assert.Equal(t, metadata.CondForEach, byName["mapped"].Cond.Kind)

	assert.Equal(t, metadata.CondCount, byName["conflicted"].Cond.Kind)
	assert.True(t, sink.HasErrors(), "count together with for_each is reported")
}

func TestPerInstanceDetection(t *testing.T) {
	records, _ := extract(t, map[string]string{
		"main.tf": `
resource "aws_instance" "counted" {
  count = 2
  name  = "web-${count.index}"
}

resource "aws_instance" "static_attrs" {
  count = 2
  name  = "same-for-all"
}
`,
	}, resolver.Options{})

	byName := map[string]*metadata.Record{}
	for _, r := range records {
		byName[r.Addr.Name] = r
	}
	assert.True(t, byName["counted"].PerInstance)
	assert.False(t, byName["static_attrs"].PerInstance)
}

func TestNestedBlocksBecomeListsOfMaps(t *testing.T) {
	records, _ := extract(t, map[string]string{
		"main.tf": `
resource "aws_security_group" "fw" {
  ingress {
    from_port = 80
  }
  ingress {
    from_port = 443
  }
}
`,
	}, resolver.Options{})

	ingress := attrOf(t, records[0], "ingress")
	require.Equal(t, config.KindList, ingress.Kind())
	require.Len(t, ingress.List(), 2)
	first := ingress.List()[0]
	require.Equal(t, config.KindMap, first.Kind())
	assert.Equal(t, "from_port", first.Entries()[0].Key)
}

func TestExplicitDependsOn(t *testing.T) {
	records, _ := extract(t, map[string]string{
		"main.tf": `
resource "aws_instance" "web" {
  depends_on = [aws_s3_bucket.assets, aws_iam_role.web]
}

resource "aws_s3_bucket" "assets" {}
resource "aws_iam_role" "web" {}
`,
	}, resolver.Options{})

	web := records[0]
	require.Len(t, web.DependsOn, 2)
	assert.Equal(t, "aws_s3_bucket.assets", web.DependsOn[0].String())
	assert.Equal(t, "aws_iam_role.web", web.DependsOn[1].String())
}

func TestOverlay(t *testing.T) {
	records, sink := extract(t, map[string]string{
		"main.tf": `
resource "aws_instance" "web" {
  ami = "ami-123"
}

resource "aws_s3_bucket" "assets" {}
`,
	}, resolver.Options{})

	overlay, err := metadata.ParseOverlay([]byte(`
resources:
  aws_instance.web:
    attrs:
      ami: ami-override
      team: platform
    connect:
      - aws_s3_bucket.assets
  aws_db_instance.nope:
    attrs:
      x: y
`))
	require.NoError(t, err)
	overlay.Apply(records, sink)

	web := records[0]
	assert.Equal(t, "ami-override", attrOf(t, web, "ami").Scalar().AsString())
	assert.Equal(t, "platform", attrOf(t, web, "team").Scalar().AsString())
	require.Len(t, web.ExtraRefs, 1)
	assert.Equal(t, "aws_s3_bucket.assets", web.ExtraRefs[0].String())

	var unmatched bool
	for _, d := range sink.All() {
		if strings.Contains(d.Summary, "aws_db_instance.nope") {
			unmatched = true
		}
	}
	assert.True(t, unmatched, "unmatched overlay targets warn")
}
