package saver

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/save-garden-go/pkg/util/merr"
)

type statBlock struct {
	HP      int64 `save:"hp"`
	Mana    int64
	Speed   float64
	Level   int
	Nested  *subRecord
	private int64
}

func TestApplyFieldByTag(t *testing.T) {
	s := &statBlock{}
	target := Fields(s)

	require.NoError(t, target.ApplyField("hp", int64(100)))
	assert.Equal(t, int64(100), s.HP)
}

func TestApplyFieldByName(t *testing.T) {
	s := &statBlock{}
	target := Fields(s)

	require.NoError(t, target.ApplyField("Mana", int64(50)))
	assert.Equal(t, int64(50), s.Mana)

	// 指令名与字段名大小写不同也能匹配。
	require.NoError(t, target.ApplyField("speed", 1.5))
	assert.Equal(t, 1.5, s.Speed)
}

func TestApplyFieldConverts(t *testing.T) {
	s := &statBlock{}
	target := Fields(s)

	// 解码产出 int64，字段类型为 int。
	require.NoError(t, target.ApplyField("level", int64(3)))
	assert.Equal(t, 3, s.Level)
}

func TestApplyFieldNilZeroes(t *testing.T) {
	s := &statBlock{Nested: &subRecord{Name: "old"}}
	target := Fields(s)

	require.NoError(t, target.ApplyField("nested", nil))
	assert.Nil(t, s.Nested)
}

func TestApplyFieldNoMatch(t *testing.T) {
	target := Fields(&statBlock{})
	err := target.ApplyField("unknown", int64(1))
	assert.ErrorIs(t, err, merr.ErrSaveDirectiveInvalid)
}

func TestApplyFieldNotSettable(t *testing.T) {
	target := Fields(&statBlock{})
	err := target.ApplyField("private", int64(1))
	assert.ErrorIs(t, err, merr.ErrSaveDirectiveInvalid)
}

func TestApplyFieldTypeMismatch(t *testing.T) {
	target := Fields(&statBlock{})
	err := target.ApplyField("nested", "not a sub record")
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)
}

func TestApplyFieldRequiresStructPointer(t *testing.T) {
	err := Fields(statBlock{}).ApplyField("hp", int64(1))
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)

	n := 5
	err = Fields(&n).ApplyField("hp", int64(1))
	assert.ErrorIs(t, err, merr.ErrParameterInvalid)
}

type handlerHost struct {
	value any
	ctx   any
}

func (h *handlerHost) OnRestore(value any, ctx any) error {
	h.value = value
	h.ctx = ctx
	return nil
}

func (h *handlerHost) OnFail(value any, ctx any) error {
	return errors.New("handler refused")
}

func (h *handlerHost) WrongShape(value any) error {
	return nil
}

func TestApplyHandler(t *testing.T) {
	h := &handlerHost{}
	target := Fields(h)

	require.NoError(t, target.ApplyHandler("OnRestore", int64(9), "env"))
	assert.Equal(t, int64(9), h.value)
	assert.Equal(t, "env", h.ctx)
}

func TestApplyHandlerNilArgs(t *testing.T) {
	h := &handlerHost{value: "stale"}
	target := Fields(h)

	require.NoError(t, target.ApplyHandler("OnRestore", nil, nil))
	assert.Nil(t, h.value)
	assert.Nil(t, h.ctx)
}

func TestApplyHandlerError(t *testing.T) {
	target := Fields(&handlerHost{})
	err := target.ApplyHandler("OnFail", int64(1), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler refused")
}

func TestApplyHandlerMissing(t *testing.T) {
	target := Fields(&handlerHost{})
	err := target.ApplyHandler("Nonexistent", int64(1), nil)
	assert.ErrorIs(t, err, merr.ErrSaveDirectiveInvalid)
}

func TestApplyHandlerWrongShape(t *testing.T) {
	target := Fields(&handlerHost{})
	err := target.ApplyHandler("WrongShape", int64(1), nil)
	assert.ErrorIs(t, err, merr.ErrSaveDirectiveInvalid)
}
