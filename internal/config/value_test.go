package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestFromCty(t *testing.T) {
	t.Run("scalar", func(t *testing.T) {
		v := FromCty(cty.StringVal("hi"), "")
		assert.Equal(t, KindScalar, v.Kind())
		assert.Equal(t, "hi", v.Scalar().AsString())
	})

	t.Run("unknown becomes unresolved", func(t *testing.T) {
		v := FromCty(cty.UnknownVal(cty.String), "var.x")
		assert.Equal(t, KindUnresolved, v.Kind())
		assert.Equal(t, "var.x", v.Src())
	})

	t.Run("nested unknown inside tuple", func(t *testing.T) {
		v := FromCty(cty.TupleVal([]cty.Value{
			cty.NumberIntVal(1),
			cty.UnknownVal(cty.String),
		}), "expr")
		assert.Equal(t, KindList, v.Kind())
		assert.True(t, v.ContainsUnresolved())
	})

	t.Run("object becomes ordered map", func(t *testing.T) {
		v := FromCty(cty.ObjectVal(map[string]cty.Value{
			"b": cty.True,
			"a": cty.NumberIntVal(2),
		}), "")
		require.Equal(t, KindMap, v.Kind())
		require.Len(t, v.Entries(), 2)
		// cty object iteration is sorted by key, so the order is stable.
		assert.Equal(t, "a", v.Entries()[0].Key)
		assert.Equal(t, "b", v.Entries()[1].Key)
	})
}

func TestMarshalJSON(t *testing.T) {
	t.Run("map preserves entry order", func(t *testing.T) {
		v := MapVal([]MapEntry{
			{Key: "zebra", Value: ScalarVal(cty.NumberIntVal(1))},
			{Key: "apple", Value: ScalarVal(cty.StringVal("x"))},
		})
		out, err := json.Marshal(v)
		require.NoError(t, err)
		assert.JSONEq(t, `{"zebra":1,"apple":"x"}`, string(out))
		// Order matters for byte-identical output across runs.
		assert.Equal(t, `{"zebra":1,"apple":"x"}`, string(out))
	})

	t.Run("reference and unresolved are typed placeholders", func(t *testing.T) {
		ref := RefVal([]Ref{{Root: "aws_instance", Src: "aws_instance.web.id"}}, "aws_instance.web.id")
		out, err := json.Marshal(ref)
		require.NoError(t, err)
		assert.JSONEq(t, `{"$ref":["aws_instance.web.id"]}`, string(out))

		un := UnresolvedVal([]string{"var.x"}, "var.x")
		out, err = json.Marshal(un)
		require.NoError(t, err)
		assert.JSONEq(t, `{"$unresolved":"var.x"}`, string(out))
	})
}

func TestCollectRefs(t *testing.T) {
	inner := RefVal([]Ref{{Root: "aws_subnet", Src: "aws_subnet.a.id"}}, "aws_subnet.a.id")
	v := MapVal([]MapEntry{
		{Key: "subnet", Value: inner},
		{Key: "tags", Value: ListVal([]Value{
			RefVal([]Ref{{Root: "aws_vpc", Src: "aws_vpc.main.id"}}, "aws_vpc.main.id"),
		})},
	})
	refs := v.CollectRefs(nil)
	require.Len(t, refs, 2)
	assert.Equal(t, "aws_subnet.a.id", refs[0].String())
	assert.Equal(t, "aws_vpc.main.id", refs[1].String())
}

func TestModulePath(t *testing.T) {
	root := RootModule
	assert.True(t, root.IsRoot())
	assert.Equal(t, "", root.String())

	child := root.Child("app").Child("db")
	assert.Equal(t, "app.db", child.String())
	assert.Equal(t, "app", child.Parent().String())
}

func TestTreeInvariants(t *testing.T) {
	tr := NewTree()
	require.NoError(t, tr.Add(&Module{Path: RootModule}))

	t.Run("child requires parent", func(t *testing.T) {
		err := tr.Add(&Module{Path: ModulePath{"a", "b"}})
		assert.Error(t, err)

		require.NoError(t, tr.Add(&Module{Path: ModulePath{"a"}}))
		require.NoError(t, tr.Add(&Module{Path: ModulePath{"a", "b"}}))
	})

	t.Run("duplicate rejected", func(t *testing.T) {
		err := tr.Add(&Module{Path: ModulePath{"a"}})
		assert.Error(t, err)
	})

	t.Run("ordered parents first", func(t *testing.T) {
		mods := tr.Modules()
		require.Len(t, mods, 3)
		assert.Equal(t, "", mods[0].Path.String())
		assert.Equal(t, "a", mods[1].Path.String())
		assert.Equal(t, "a.b", mods[2].Path.String())
	})
}
