package registry

import (
	"reflect"

	"github.com/lk2023060901/save-garden-go/internal/save/tree"
	"github.com/lk2023060901/save-garden-go/pkg/util/merr"
)

// Codec 为引擎本身不认识的类型提供编解码能力。
//
// 宿主应用在启动阶段把自定义类型（向量、颜色等）的 Codec 注册到 Registry，
// 引擎通过它完成这些类型的保存与还原；引擎自身从不构造宿主对象。
type Codec interface {
	// TypeName 返回该类型写入存档的类型标签。
	TypeName() string

	// Matches 判断存档中记录的类型标签是否应由本 Codec 还原。
	// 宿主对“子类”的认知（引擎无法枚举宿主类型）就体现在这里：
	// 一个 Codec 可以认领多个标签，包括引擎从未听说过的派生类型名。
	Matches(typeTag string) bool

	// MatchesValue 判断运行期值是否应由本 Codec 编码。
	// 编码侧使用值的具体运行期类型做精确匹配，不涉及子类判断。
	MatchesValue(v any) bool

	// Encode 返回值的可保存表示，编码器会对返回值递归编码。
	Encode(v any) (any, error)

	// Decode 根据节点的原始子项还原值。
	// 子项尚未经过任何解释，顺序与存档中一致。
	Decode(items []tree.Item) (any, error)
}

// FuncCodec 用一组回调函数构造 Codec，是宿主注册自定义类型的常用方式。
type FuncCodec struct {
	// Type 是被注册类型的样本值（零值即可），用于编码侧的精确类型匹配。
	Type any

	// Name 为写入存档的类型标签；为空时取 Type 的反射类型名。
	Name string

	// MatchFunc 为解码侧的标签匹配逻辑；为 nil 时只匹配与 Name 相同的标签。
	// 宿主的子类判断谓词从这里注入。
	MatchFunc func(typeTag string) bool

	// EncodeFunc 把值转换为可保存表示。
	EncodeFunc func(v any) (any, error)

	// DecodeFunc 根据原始子项还原值。
	DecodeFunc func(items []tree.Item) (any, error)
}

var _ Codec = (*FuncCodec)(nil)

// TypeName 实现 Codec.TypeName。
func (c *FuncCodec) TypeName() string {
	if c.Name != "" {
		return c.Name
	}
	t := reflect.TypeOf(c.Type)
	if t == nil {
		return ""
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

// Matches 实现 Codec.Matches。
func (c *FuncCodec) Matches(typeTag string) bool {
	if c.MatchFunc != nil {
		return c.MatchFunc(typeTag)
	}
	return typeTag == c.TypeName()
}

// MatchesValue 实现 Codec.MatchesValue。
func (c *FuncCodec) MatchesValue(v any) bool {
	return reflect.TypeOf(v) == reflect.TypeOf(c.Type)
}

// Encode 实现 Codec.Encode。
func (c *FuncCodec) Encode(v any) (any, error) {
	if c.EncodeFunc == nil {
		return nil, merr.WrapErrParameterMissing("EncodeFunc")
	}
	return c.EncodeFunc(v)
}

// Decode 实现 Codec.Decode。
func (c *FuncCodec) Decode(items []tree.Item) (any, error) {
	if c.DecodeFunc == nil {
		return nil, merr.WrapErrParameterMissing("DecodeFunc")
	}
	return c.DecodeFunc(items)
}

// Registry 是由调用方持有的类型编解码表。
//
// 注册顺序即查找优先级；同名类型后注册的覆盖先注册的，但保留原有的顺序位置。
// Registry 不做并发保护：约定“启动时注册一次，之后只读”的使用方式。
type Registry struct {
	codecs []Codec
	index  map[string]int
}

// New 创建一个空的 Registry。
func New() *Registry {
	return &Registry{
		index: make(map[string]int),
	}
}

// Register 注册或替换一个 Codec。
// 同一 TypeName 以最后一次注册为准。
func (r *Registry) Register(c Codec) {
	name := c.TypeName()
	if i, ok := r.index[name]; ok {
		r.codecs[i] = c
		return
	}
	r.index[name] = len(r.codecs)
	r.codecs = append(r.codecs, c)
}

// LookupEncode 按注册顺序返回第一个声明可编码 v 的 Codec。
func (r *Registry) LookupEncode(v any) (Codec, bool) {
	for _, c := range r.codecs {
		if c.MatchesValue(v) {
			return c, true
		}
	}
	return nil, false
}

// LookupDecode 按注册顺序返回第一个认领该类型标签的 Codec。
func (r *Registry) LookupDecode(typeTag string) (Codec, bool) {
	for _, c := range r.codecs {
		if c.Matches(typeTag) {
			return c, true
		}
	}
	return nil, false
}

// Len 返回已注册的 Codec 数量。
func (r *Registry) Len() int {
	return len(r.codecs)
}

// Reset 清空所有注册项。对已经编码完成的树没有影响。
func (r *Registry) Reset() {
	r.codecs = nil
	r.index = make(map[string]int)
}
