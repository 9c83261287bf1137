package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/save-garden-go/internal/save/tree"
)

type vec2 struct{ X, Y float64 }

type color struct{ R, G, B uint8 }

func vec2Codec(name string) *FuncCodec {
	return &FuncCodec{
		Type: vec2{},
		Name: name,
		EncodeFunc: func(v any) (any, error) {
			vec := v.(vec2)
			return tree.Tuple{vec.X, vec.Y}, nil
		},
		DecodeFunc: func(items []tree.Item) (any, error) {
			return vec2{}, nil
		},
	}
}

func TestFuncCodecDefaults(t *testing.T) {
	c := &FuncCodec{Type: vec2{}}

	assert.Equal(t, "vec2", c.TypeName())
	assert.True(t, c.Matches("vec2"))
	assert.False(t, c.Matches("vec3"))
	assert.True(t, c.MatchesValue(vec2{X: 1}))
	assert.False(t, c.MatchesValue(color{}))
	assert.False(t, c.MatchesValue(&vec2{}), "pointer type is a different runtime type")

	_, err := c.Encode(vec2{})
	assert.Error(t, err, "missing EncodeFunc must be reported")
	_, err = c.Decode(nil)
	assert.Error(t, err, "missing DecodeFunc must be reported")
}

func TestRegisterAndLookup(t *testing.T) {
	r := New()
	require.Equal(t, 0, r.Len())

	r.Register(vec2Codec("vec2"))
	r.Register(&FuncCodec{Type: color{}})
	require.Equal(t, 2, r.Len())

	c, ok := r.LookupEncode(vec2{X: 3})
	require.True(t, ok)
	assert.Equal(t, "vec2", c.TypeName())

	c, ok = r.LookupDecode("color")
	require.True(t, ok)
	assert.Equal(t, "color", c.TypeName())

	_, ok = r.LookupEncode("just a string")
	assert.False(t, ok)
	_, ok = r.LookupDecode("Widget")
	assert.False(t, ok)
}

func TestRegisterReplaceKeepsOrder(t *testing.T) {
	r := New()

	// 两个 Codec 都认领 "shared" 标签，注册顺序决定优先级。
	first := &FuncCodec{
		Type:      vec2{},
		Name:      "vec2",
		MatchFunc: func(tag string) bool { return tag == "shared" || tag == "vec2" },
	}
	second := &FuncCodec{
		Type:      color{},
		Name:      "color",
		MatchFunc: func(tag string) bool { return tag == "shared" || tag == "color" },
	}
	r.Register(first)
	r.Register(second)

	c, ok := r.LookupDecode("shared")
	require.True(t, ok)
	assert.Equal(t, "vec2", c.TypeName(), "registration order defines priority")

	// 同名覆盖：保留原有顺序位置，使用新实现。
	replacement := &FuncCodec{
		Type:      vec2{},
		Name:      "vec2",
		MatchFunc: func(tag string) bool { return tag == "shared" || tag == "vec2" },
		EncodeFunc: func(v any) (any, error) {
			return "replaced", nil
		},
	}
	r.Register(replacement)
	require.Equal(t, 2, r.Len())

	c, ok = r.LookupDecode("shared")
	require.True(t, ok)
	rep, err := c.Encode(vec2{})
	require.NoError(t, err)
	assert.Equal(t, "replaced", rep)
}

func TestSubclassMatch(t *testing.T) {
	r := New()
	r.Register(&FuncCodec{
		Type: vec2{},
		Name: "Vec2",
		MatchFunc: func(tag string) bool {
			// 宿主声明：所有以 Vec2 结尾的派生类型名都由本 Codec 还原。
			return tag == "Vec2" || tag == "SpawnVec2"
		},
	})

	_, ok := r.LookupDecode("SpawnVec2")
	assert.True(t, ok)
	_, ok = r.LookupDecode("Vec3")
	assert.False(t, ok)
}

func TestReset(t *testing.T) {
	r := New()
	r.Register(vec2Codec("vec2"))
	require.Equal(t, 1, r.Len())

	r.Reset()
	assert.Equal(t, 0, r.Len())
	_, ok := r.LookupDecode("vec2")
	assert.False(t, ok)

	// Reset 之后可以继续注册。
	r.Register(vec2Codec("vec2"))
	assert.Equal(t, 1, r.Len())
}
