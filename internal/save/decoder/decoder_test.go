package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/save-garden-go/internal/save/encoder"
	"github.com/lk2023060901/save-garden-go/internal/save/registry"
	"github.com/lk2023060901/save-garden-go/internal/save/tree"
	"github.com/lk2023060901/save-garden-go/pkg/util/merr"
)

func newCodecPair(t *testing.T, reg *registry.Registry) (*encoder.Encoder, *Decoder) {
	if reg == nil {
		reg = registry.New()
	}
	enc, err := encoder.New(encoder.Options{Registry: reg})
	require.NoError(t, err)
	dec, err := New(Options{Registry: reg})
	require.NoError(t, err)
	return enc, dec
}

func leafNode(typeTag, leaf string) *tree.Node {
	return tree.NewNode(typeTag).AppendLeaf(leaf)
}

func TestNewRequiresRegistry(t *testing.T) {
	_, err := New(Options{})
	assert.ErrorIs(t, err, merr.ErrParameterMissing)
}

func TestDecodeRoundTrip(t *testing.T) {
	enc, dec := newCodecPair(t, nil)

	cases := []struct {
		name  string
		value any
	}{
		{"int", int64(42)},
		{"negative int", int64(-1)},
		{"float", 1.5},
		{"float exact", 0.1},
		{"bool", true},
		{"string", "hello world"},
		{"string with newline", "line one\nline two"},
		{"string unicode", "存档数据"},
		{"bytes", []byte{0x00, 0xff, 0x41}},
		{"nil", nil},
		{"list", []any{int64(1), "two", 3.0}},
		{"tuple", tree.Tuple{int64(1), int64(2)}},
		{"nested list", []any{[]any{int64(1)}, []any{}}},
		{"dict", map[any]any{"hp": int64(100), "name": "hero"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n, err := enc.Encode(tree.Directive{}, tc.value)
			require.NoError(t, err)
			got, err := dec.Decode(n)
			require.NoError(t, err)
			assert.Equal(t, tc.value, got)
		})
	}
}

func TestDecodeBool(t *testing.T) {
	_, dec := newCodecPair(t, nil)

	cases := []struct {
		leaf string
		want bool
	}{
		{"true", true},
		{"True", true},
		{"TRUE", true},
		{"1", true},
		{"false", false},
		{"False", false},
		{"0", false},
		{"yes", false},
		{"", false},
	}
	for _, tc := range cases {
		got, err := dec.Decode(leafNode(tree.TypeBool, tc.leaf))
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "leaf %q", tc.leaf)
	}
}

func TestDecodeIntFloatInvalid(t *testing.T) {
	_, dec := newCodecPair(t, nil)

	_, err := dec.Decode(leafNode(tree.TypeInt, "not-a-number"))
	assert.ErrorIs(t, err, merr.ErrSaveFormatMalformed)

	_, err = dec.Decode(leafNode(tree.TypeFloat, "x"))
	assert.ErrorIs(t, err, merr.ErrSaveFormatMalformed)
}

func TestDecodeNilNode(t *testing.T) {
	_, dec := newCodecPair(t, nil)
	_, err := dec.Decode(nil)
	assert.ErrorIs(t, err, merr.ErrParameterMissing)
}

func TestDecodeUnknownTag(t *testing.T) {
	_, dec := newCodecPair(t, nil)

	_, err := dec.Decode(leafNode("Widget", "whatever"))
	require.Error(t, err)
	assert.ErrorIs(t, err, merr.ErrSaveTypeUnrecognized)
}

func TestDecodeFuncTag(t *testing.T) {
	_, dec := newCodecPair(t, nil)

	_, err := dec.Decode(leafNode(tree.TypeFunc, "main.onLoad"))
	assert.ErrorIs(t, err, merr.ErrSaveDecodeFunc)

	_, err = dec.Decode(leafNode(tree.TypeMethod, "Player.Heal"))
	assert.ErrorIs(t, err, merr.ErrSaveDecodeFunc)
}

func TestDecodeOpaqueNode(t *testing.T) {
	_, dec := newCodecPair(t, nil)

	n := tree.NewNode(tree.TypeNode)
	n.Directive = tree.Assign("raw")
	n.AppendNode(leafNode(tree.TypeInt, "7"))

	got, err := dec.Decode(n)
	require.NoError(t, err)

	sub, ok := got.(*tree.Node)
	require.True(t, ok, "node tag decodes back into a subtree")
	assert.Equal(t, tree.TypeNode, sub.Type)
	assert.True(t, sub.Directive.IsNone(), "outer directive is not part of the payload")
	require.Equal(t, 1, sub.Len())
	assert.Equal(t, tree.TypeInt, sub.Items[0].Node.Type)
}

func TestDecodeRegisteredTypeWins(t *testing.T) {
	reg := registry.New()
	reg.Register(&registry.FuncCodec{
		Type: struct{}{},
		Name: "int", // 故意抢占内建标签，注册表优先级必须高于内建分发。
		DecodeFunc: func(items []tree.Item) (any, error) {
			return "intercepted", nil
		},
	})
	_, dec := newCodecPair(t, reg)

	got, err := dec.Decode(leafNode(tree.TypeInt, "42"))
	require.NoError(t, err)
	assert.Equal(t, "intercepted", got)
}

func TestDecodeDictLastWriteWins(t *testing.T) {
	_, dec := newCodecPair(t, nil)

	pair := func(key, val string) *tree.Node {
		p := tree.NewNode(tree.TypeTuple)
		p.AppendNode(leafNode(tree.TypeStr, key))
		p.AppendNode(leafNode(tree.TypeStr, val))
		return p
	}
	n := tree.NewNode(tree.TypeDict)
	n.AppendNode(pair("k", "first"))
	n.AppendNode(pair("k", "second"))

	got, err := dec.Decode(n)
	require.NoError(t, err)
	m, ok := got.(map[any]any)
	require.True(t, ok)
	assert.Equal(t, map[any]any{"k": "second"}, m)
}

func TestDecodeDictUnhashableKey(t *testing.T) {
	_, dec := newCodecPair(t, nil)

	pair := tree.NewNode(tree.TypeTuple)
	list := tree.NewNode(tree.TypeList)
	list.AppendNode(leafNode(tree.TypeInt, "1"))
	pair.AppendNode(list)
	pair.AppendNode(leafNode(tree.TypeStr, "v"))

	n := tree.NewNode(tree.TypeDict)
	n.AppendNode(pair)

	_, err := dec.Decode(n)
	assert.ErrorIs(t, err, merr.ErrSaveKeyUnhashable)
}

func TestDecodeDictMalformedEntry(t *testing.T) {
	_, dec := newCodecPair(t, nil)

	n := tree.NewNode(tree.TypeDict)
	n.AppendNode(leafNode(tree.TypeInt, "1")) // 不是键值对。

	_, err := dec.Decode(n)
	assert.ErrorIs(t, err, merr.ErrSaveFormatMalformed)
}

// recordingTarget 记录 Apply 路由到的字段赋值与处理方法调用。
type recordingTarget struct {
	fields   map[string]any
	handlers map[string]any
	lastCtx  any
}

func newRecordingTarget() *recordingTarget {
	return &recordingTarget{
		fields:   make(map[string]any),
		handlers: make(map[string]any),
	}
}

func (r *recordingTarget) ApplyField(name string, value any) error {
	r.fields[name] = value
	return nil
}

func (r *recordingTarget) ApplyHandler(name string, value any, ctx any) error {
	r.handlers[name] = value
	r.lastCtx = ctx
	return nil
}

func TestApplyRoutesDirectives(t *testing.T) {
	_, dec := newCodecPair(t, nil)

	record := tree.NewNode("Player")
	hp := leafNode(tree.TypeInt, "100")
	hp.Directive = tree.Assign("hp")
	record.AppendNode(hp)

	spawn := leafNode(tree.TypeStr, "cave")
	spawn.Directive = tree.Invoke("onSpawn")
	record.AppendNode(spawn)

	// 无指令的子节点应跳过，不报错。
	record.AppendNode(leafNode(tree.TypeInt, "0"))

	target := newRecordingTarget()
	env := "world-ref"
	err := dec.Apply(target, record, env)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"hp": int64(100)}, target.fields)
	assert.Equal(t, map[string]any{"onSpawn": "cave"}, target.handlers)
	assert.Equal(t, env, target.lastCtx)
}

func TestApplyNilTarget(t *testing.T) {
	_, dec := newCodecPair(t, nil)
	err := dec.Apply(nil, tree.NewNode("Player"), nil)
	assert.ErrorIs(t, err, merr.ErrParameterMissing)
}

func TestApplyNilNode(t *testing.T) {
	_, dec := newCodecPair(t, nil)
	assert.NoError(t, dec.Apply(newRecordingTarget(), nil, nil))
}

func TestDecodeItem(t *testing.T) {
	_, dec := newCodecPair(t, nil)

	got, err := dec.DecodeItem(tree.LeafItem("raw text"))
	require.NoError(t, err)
	assert.Equal(t, "raw text", got)

	got, err = dec.DecodeItem(tree.NodeItem(leafNode(tree.TypeInt, "5")))
	require.NoError(t, err)
	assert.Equal(t, int64(5), got)
}
