package encoder

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/save-garden-go/internal/save/registry"
	"github.com/lk2023060901/save-garden-go/internal/save/tree"
	"github.com/lk2023060901/save-garden-go/pkg/util/merr"
)

func newTestEncoder(t *testing.T, opts Options) *Encoder {
	if opts.Registry == nil {
		opts.Registry = registry.New()
	}
	e, err := New(opts)
	require.NoError(t, err)
	return e
}

func leafOf(t *testing.T, n *tree.Node) string {
	require.Equal(t, 1, n.Len())
	require.False(t, n.Items[0].IsNode())
	return n.Items[0].Leaf
}

func TestNewRequiresRegistry(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
	assert.ErrorIs(t, err, merr.ErrParameterMissing)
}

func TestEncodePrimitives(t *testing.T) {
	e := newTestEncoder(t, Options{})

	cases := []struct {
		name    string
		input   any
		typeTag string
		leaf    string
	}{
		{"int", 42, tree.TypeInt, "42"},
		{"negative int", int64(-7), tree.TypeInt, "-7"},
		{"uint", uint16(65535), tree.TypeInt, "65535"},
		{"float", 1.5, tree.TypeFloat, "1.5"},
		{"float exact", 0.1, tree.TypeFloat, "0.1"},
		{"float32", float32(2.25), tree.TypeFloat, "2.25"},
		{"bool true", true, tree.TypeBool, "true"},
		{"bool false", false, tree.TypeBool, "false"},
		{"string", "hello", tree.TypeStr, "hello"},
		{"string with newline", "a\nb", tree.TypeStr, `a\nb`},
		{"bytes", []byte{0x00, 0x41}, tree.TypeBytes, `\x00A`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n, err := e.Encode(tree.Directive{}, tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.typeTag, n.Type)
			assert.Equal(t, tc.leaf, leafOf(t, n))
		})
	}
}

func TestEncodeUintOutOfRange(t *testing.T) {
	e := newTestEncoder(t, Options{})

	n, err := e.Encode(tree.Directive{}, uint64(math.MaxInt64))
	require.NoError(t, err)
	assert.Equal(t, "9223372036854775807", n.Items[0].Leaf)

	// int 装不下的无符号值读不回来，编码侧直接拒绝。
	_, err = e.Encode(tree.Directive{}, uint64(math.MaxInt64)+1)
	assert.ErrorIs(t, err, merr.ErrParameterTooLarge)

	_, err = e.Encode(tree.Directive{}, []any{uint64(math.MaxUint64)})
	assert.ErrorIs(t, err, merr.ErrParameterTooLarge)
}

func TestEncodeNil(t *testing.T) {
	e := newTestEncoder(t, Options{})

	n, err := e.Encode(tree.Assign("slot"), nil)
	require.NoError(t, err)
	assert.Equal(t, tree.TypeNone, n.Type)
	assert.Equal(t, tree.Assign("slot"), n.Directive)

	var p *int
	n, err = e.Encode(tree.Directive{}, p)
	require.NoError(t, err)
	assert.Equal(t, tree.TypeNone, n.Type, "nil pointer encodes as none")
}

func TestEncodeListKeepsOrder(t *testing.T) {
	e := newTestEncoder(t, Options{})

	n, err := e.Encode(tree.Directive{}, []any{int64(3), "b", int64(1)})
	require.NoError(t, err)
	require.Equal(t, tree.TypeList, n.Type)
	require.Equal(t, 3, n.Len())

	assert.Equal(t, tree.TypeInt, n.Items[0].Node.Type)
	assert.Equal(t, "3", n.Items[0].Node.Items[0].Leaf)
	assert.Equal(t, tree.TypeStr, n.Items[1].Node.Type)
	assert.Equal(t, tree.TypeInt, n.Items[2].Node.Type)
	assert.Equal(t, "1", n.Items[2].Node.Items[0].Leaf)
}

func TestEncodeTuple(t *testing.T) {
	e := newTestEncoder(t, Options{})

	n, err := e.Encode(tree.Directive{}, tree.Tuple{int64(1), "x"})
	require.NoError(t, err)
	assert.Equal(t, tree.TypeTuple, n.Type)
	assert.Equal(t, 2, n.Len())
}

func TestEncodeDictDeterministic(t *testing.T) {
	e := newTestEncoder(t, Options{})

	m := map[string]int64{"banana": 2, "apple": 1, "cherry": 3}

	first, err := e.Encode(tree.Directive{}, m)
	require.NoError(t, err)
	require.Equal(t, tree.TypeDict, first.Type)
	require.Equal(t, 3, first.Len())

	// 多次编码必须产出完全一致的树，map 迭代顺序不能泄漏到存档。
	for i := 0; i < 8; i++ {
		again, err := e.Encode(tree.Directive{}, m)
		require.NoError(t, err)
		assert.Equal(t, first.String(), again.String())
	}

	keys := make([]string, 0, 3)
	for _, it := range first.Items {
		pair := it.Node
		require.Equal(t, tree.TypeTuple, pair.Type)
		require.Equal(t, 2, pair.Len())
		keys = append(keys, pair.Items[0].Node.Items[0].Leaf)
	}
	assert.Equal(t, []string{"apple", "banana", "cherry"}, keys)
}

func TestEncodeNodePassthrough(t *testing.T) {
	e := newTestEncoder(t, Options{})

	sub := tree.NewNode("Monster").AppendLeaf("grue")
	n, err := e.Encode(tree.Invoke("spawn"), sub)
	require.NoError(t, err)

	assert.Equal(t, "Monster", n.Type)
	assert.Equal(t, tree.Invoke("spawn"), n.Directive)
	assert.Equal(t, "grue", leafOf(t, n))
}

type vec2 struct{ X, Y float64 }

func TestEncodeRegisteredType(t *testing.T) {
	reg := registry.New()
	reg.Register(&registry.FuncCodec{
		Type: vec2{},
		Name: "Vec2",
		EncodeFunc: func(v any) (any, error) {
			vec := v.(vec2)
			return tree.Tuple{vec.X, vec.Y}, nil
		},
	})
	e := newTestEncoder(t, Options{Registry: reg})

	n, err := e.Encode(tree.Assign("pos"), vec2{X: 1.5, Y: -2})
	require.NoError(t, err)

	assert.Equal(t, "Vec2", n.Type)
	assert.Equal(t, tree.Assign("pos"), n.Directive)
	require.Equal(t, 1, n.Len())

	rep := n.Items[0].Node
	require.Equal(t, tree.TypeTuple, rep.Type)
	require.Equal(t, 2, rep.Len())
	assert.Equal(t, "1.5", rep.Items[0].Node.Items[0].Leaf)
	assert.Equal(t, "-2", rep.Items[1].Node.Items[0].Leaf)
}

func TestEncodeNilPointerOfRegisteredType(t *testing.T) {
	reg := registry.New()
	called := false
	reg.Register(&registry.FuncCodec{
		Type: &vec2{},
		Name: "Vec2",
		EncodeFunc: func(v any) (any, error) {
			called = true
			vec := v.(*vec2)
			return tree.Tuple{vec.X, vec.Y}, nil
		},
	})
	e := newTestEncoder(t, Options{Registry: reg})

	// 字段未赋值时是带类型的空指针，必须按 none 编码，而不是交给 Codec。
	var p *vec2
	n, err := e.Encode(tree.Assign("pos"), p)
	require.NoError(t, err)
	assert.Equal(t, tree.TypeNone, n.Type)
	assert.False(t, called)

	n, err = e.Encode(tree.Directive{}, &vec2{X: 1})
	require.NoError(t, err)
	assert.Equal(t, "Vec2", n.Type)
	assert.True(t, called)
}

func TestEncodeRegisteredTypeError(t *testing.T) {
	reg := registry.New()
	reg.Register(&registry.FuncCodec{
		Type: vec2{},
		EncodeFunc: func(v any) (any, error) {
			return nil, merr.WrapErrParameterInvalid("finite", "NaN")
		},
	})
	e := newTestEncoder(t, Options{Registry: reg})

	_, err := e.Encode(tree.Directive{}, vec2{})
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)
}

func TestEncodeFuncRejected(t *testing.T) {
	e := newTestEncoder(t, Options{})

	_, err := e.Encode(tree.Directive{}, func() {})
	require.Error(t, err)
	assert.ErrorIs(t, err, merr.ErrSaveEncodeFunc)

	// 容器内部的函数值同样拒绝。
	_, err = e.Encode(tree.Directive{}, []any{1, func() {}})
	assert.ErrorIs(t, err, merr.ErrSaveEncodeFunc)
}

func TestEncodeUnknownTypeFallback(t *testing.T) {
	type opaque struct{ n int }
	e := newTestEncoder(t, Options{})

	n, err := e.Encode(tree.Directive{}, opaque{n: 5})
	require.NoError(t, err)
	assert.Equal(t, "opaque", n.Type)
	assert.Equal(t, 1, n.Len())
}

func TestEncodeCycleDetected(t *testing.T) {
	e := newTestEncoder(t, Options{})

	m := map[string]any{}
	m["self"] = m
	_, err := e.Encode(tree.Directive{}, m)
	assert.ErrorIs(t, err, merr.ErrSaveCycleDetected)

	s := make([]any, 1)
	s[0] = s
	_, err = e.Encode(tree.Directive{}, s)
	assert.ErrorIs(t, err, merr.ErrSaveCycleDetected)
}

func TestEncodeAliasedPrefixSliceIsNotACycle(t *testing.T) {
	e := newTestEncoder(t, Options{})

	// 前缀切片与外层切片共享底层数组指针，但遍历会正常收敛。
	s := make([]any, 2)
	s[0] = "head"
	s[1] = s[:1]

	n, err := e.Encode(tree.Directive{}, s)
	require.NoError(t, err)
	require.Equal(t, 2, n.Len())
	inner := n.Items[1].Node
	assert.Equal(t, tree.TypeList, inner.Type)
	require.Equal(t, 1, inner.Len())
	assert.Equal(t, tree.TypeStr, inner.Items[0].Node.Type)

	// 真正经由前缀切片构成的环仍然要报错。
	c := make([]any, 2)
	c[0] = c[:1]
	c[1] = "tail"
	_, err = e.Encode(tree.Directive{}, c)
	assert.ErrorIs(t, err, merr.ErrSaveCycleDetected)
}

func TestEncodeSharedSubtreeIsNotACycle(t *testing.T) {
	e := newTestEncoder(t, Options{})

	shared := []any{int64(1), int64(2)}
	n, err := e.Encode(tree.Directive{}, []any{shared, shared})
	require.NoError(t, err)
	assert.Equal(t, 2, n.Len())
}

func TestEncodeDepthExceeded(t *testing.T) {
	e := newTestEncoder(t, Options{MaxDepth: 4})

	v := any("bottom")
	for i := 0; i < 16; i++ {
		v = []any{v}
	}
	_, err := e.Encode(tree.Directive{}, v)
	assert.ErrorIs(t, err, merr.ErrSaveDepthExceeded)
}

func TestEncodePointerDeref(t *testing.T) {
	e := newTestEncoder(t, Options{})

	x := int64(9)
	n, err := e.Encode(tree.Directive{}, &x)
	require.NoError(t, err)
	assert.Equal(t, tree.TypeInt, n.Type)
	assert.Equal(t, "9", leafOf(t, n))
}
