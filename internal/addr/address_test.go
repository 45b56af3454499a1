package addr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	t.Run("root module resource", func(t *testing.T) {
		a := New(nil, false, "aws_instance", "web")
		assert.Equal(t, "aws_instance.web", a.String())
	})

	t.Run("nested module resource", func(t *testing.T) {
		a := New([]string{"app", "db"}, false, "aws_rds_cluster", "main")
		assert.Equal(t, "app.db.aws_rds_cluster.main", a.String())
	})

	t.Run("data source", func(t *testing.T) {
		a := New(nil, true, "aws_ami", "ubuntu")
		assert.Equal(t, "data.aws_ami.ubuntu", a.String())
	})

	t.Run("count index key", func(t *testing.T) {
		a := New(nil, false, "aws_instance", "web").WithIndex(2)
		assert.Equal(t, "aws_instance.web.2", a.String())
	})

	t.Run("for_each key", func(t *testing.T) {
		a := New([]string{"net"}, false, "aws_subnet", "private").WithKey("eu-west-1a")
		assert.Equal(t, "net.aws_subnet.private.eu-west-1a", a.String())
	})

	t.Run("unknown count marker", func(t *testing.T) {
		a := New(nil, false, "aws_instance", "maybe").WithKey(UnknownKey)
		assert.Equal(t, "aws_instance.maybe.*", a.String())
	})
}

func TestBaseAndEqual(t *testing.T) {
	a := New(nil, false, "aws_instance", "web").WithIndex(1)
	assert.Equal(t, "aws_instance.web", a.Base().String())
	assert.True(t, a.Equal(New(nil, false, "aws_instance", "web").WithIndex(1)))
	assert.False(t, a.Equal(a.Base()))
}

func TestLess(t *testing.T) {
	base := New(nil, false, "aws_instance", "web")

	t.Run("numeric keys sort numerically", func(t *testing.T) {
		assert.True(t, base.WithIndex(2).Less(base.WithIndex(10)))
		assert.False(t, base.WithIndex(10).Less(base.WithIndex(2)))
	})

	t.Run("different bases sort lexically", func(t *testing.T) {
		other := New(nil, false, "aws_subnet", "a")
		assert.True(t, base.Less(other))
	})

	t.Run("string keys sort lexically", func(t *testing.T) {
		assert.True(t, base.WithKey("a").Less(base.WithKey("b")))
	})
}
