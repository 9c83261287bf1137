package saver

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/lk2023060901/save-garden-go/internal/save/decoder"
	"github.com/lk2023060901/save-garden-go/pkg/util/merr"
)

// Fields 返回一个基于反射的 decoder.Target，
// 把赋值指令写入 ptr 指向结构体的导出字段，
// 把调用指令转发给 ptr 上的同名导出方法。
//
// 字段匹配优先级：`save` 标签 > 字段名精确匹配 > 字段名忽略大小写匹配。
// 处理方法的签名约定为 func(value any, ctx any) error。
func Fields(ptr any) decoder.Target {
	return &fieldsTarget{ptr: ptr}
}

type fieldsTarget struct {
	ptr any
}

var _ decoder.Target = (*fieldsTarget)(nil)

// ApplyField 实现 decoder.Target。
func (t *fieldsTarget) ApplyField(name string, value any) error {
	rv := reflect.ValueOf(t.ptr)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return merr.WrapErrParameterInvalid("non-nil struct pointer", fmt.Sprintf("%T", t.ptr))
	}
	elem := rv.Elem()
	if elem.Kind() != reflect.Struct {
		return merr.WrapErrParameterInvalid("struct", elem.Kind().String())
	}

	field, ok := findField(elem, name)
	if !ok {
		return merr.WrapErrSaveDirectiveInvalid(name, "no matching field")
	}
	if !field.CanSet() {
		return merr.WrapErrSaveDirectiveInvalid(name, "field not settable")
	}

	if value == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}

	val := reflect.ValueOf(value)
	switch {
	case val.Type().AssignableTo(field.Type()):
		field.Set(val)
	case val.Type().ConvertibleTo(field.Type()):
		field.Set(val.Convert(field.Type()))
	default:
		return merr.WrapErrParameterInvalid(field.Type().String(), val.Type().String(),
			"cannot assign decoded value to field "+name)
	}
	return nil
}

// ApplyHandler 实现 decoder.Target。
func (t *fieldsTarget) ApplyHandler(name string, value any, ctx any) error {
	rv := reflect.ValueOf(t.ptr)
	if !rv.IsValid() {
		return merr.WrapErrParameterInvalid("non-nil target", fmt.Sprintf("%T", t.ptr))
	}
	method := rv.MethodByName(name)
	if !method.IsValid() {
		return merr.WrapErrSaveDirectiveInvalid(name, "no matching handler method")
	}
	mt := method.Type()
	if mt.NumIn() != 2 || mt.NumOut() != 1 {
		return merr.WrapErrSaveDirectiveInvalid(name, "handler must be func(value any, ctx any) error")
	}

	args := make([]reflect.Value, 2)
	for i, in := range []any{value, ctx} {
		arg, err := argValue(in, mt.In(i))
		if err != nil {
			return merr.WrapErrSaveDirectiveInvalid(name, err.Error())
		}
		args[i] = arg
	}
	out := method.Call(args)
	if err, ok := out[0].Interface().(error); ok && err != nil {
		return err
	}
	return nil
}

func findField(elem reflect.Value, name string) (reflect.Value, bool) {
	et := elem.Type()
	for i := 0; i < et.NumField(); i++ {
		if tag, ok := et.Field(i).Tag.Lookup("save"); ok && tag == name {
			return elem.Field(i), true
		}
	}
	if f := elem.FieldByName(name); f.IsValid() {
		return f, true
	}
	for i := 0; i < et.NumField(); i++ {
		if strings.EqualFold(et.Field(i).Name, name) {
			return elem.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// argValue 把可能为 nil 的实参包装成与形参类型兼容的 reflect.Value。
func argValue(v any, in reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(in), nil
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(in) {
		return reflect.Value{}, merr.WrapErrParameterInvalid(in.String(), rv.Type().String())
	}
	return rv, nil
}
