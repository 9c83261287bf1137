package decoder

import (
	"reflect"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/lk2023060901/save-garden-go/internal/save/registry"
	"github.com/lk2023060901/save-garden-go/internal/save/tree"
	"github.com/lk2023060901/save-garden-go/pkg/log"
	"github.com/lk2023060901/save-garden-go/pkg/util/merr"
)

// Options 用于构造 Decoder 的依赖注入参数。
type Options struct {
	// Registry 为自定义类型的编解码表，不允许为 nil。
	Registry *registry.Registry
}

// Decoder 把存档树节点还原为运行期值，是 Encoder 的镜像。
type Decoder struct {
	reg *registry.Registry
}

// New 创建一个基于给定依赖的 Decoder。
func New(opts Options) (*Decoder, error) {
	if opts.Registry == nil {
		return nil, merr.WrapErrParameterMissing("registry", "failed to create decoder")
	}
	return &Decoder{
		reg: opts.Registry,
	}, nil
}

// Target 是 Apply 的目标对象约定：
// 解码结果要么按字段名赋值，要么交给具名处理方法（附带环境引用）。
type Target interface {
	// ApplyField 把解码结果赋给指定字段。
	ApplyField(name string, value any) error

	// ApplyHandler 以解码结果与环境引用为参数调用指定处理方法。
	ApplyHandler(name string, value any, ctx any) error
}

// Decode 根据节点记录的类型标签还原值。
//
// 整数还原为 int64，浮点数还原为 float64；
// 函数/方法标签与未注册的未知标签一律显式报错，而不是静默返回默认值。
func (d *Decoder) Decode(n *tree.Node) (any, error) {
	if n == nil {
		return nil, merr.WrapErrParameterMissing("node", "failed to decode")
	}

	// 注册表优先：一个 Codec 可以认领包括派生类型在内的多个标签。
	if c, ok := d.reg.LookupDecode(n.Type); ok {
		return c.Decode(n.Items)
	}

	switch n.Type {
	case tree.TypeList:
		return d.decodeList(n)

	case tree.TypeTuple:
		elems, err := d.decodeList(n)
		if err != nil {
			return nil, err
		}
		return tree.Tuple(elems), nil

	case tree.TypeDict:
		return d.decodeDict(n)

	case tree.TypeBool:
		leaf, err := leafText(n)
		if err != nil {
			return nil, err
		}
		lowered := strings.ToLower(leaf)
		return lowered == "true" || lowered == "1", nil

	case tree.TypeNone:
		// 载荷内容一概忽略。
		return nil, nil

	case tree.TypeNode:
		// 原样保留的嵌套记录：不做解释，直接还原为子树。
		return &tree.Node{
			Type:  n.Type,
			Items: append([]tree.Item(nil), n.Items...),
		}, nil

	case tree.TypeStr:
		leaf, err := leafText(n)
		if err != nil {
			return nil, err
		}
		return tree.UnescapeString(leaf)

	case tree.TypeBytes:
		leaf, err := leafText(n)
		if err != nil {
			return nil, err
		}
		return tree.UnescapeBytes(leaf)

	case tree.TypeInt:
		leaf, err := leafText(n)
		if err != nil {
			return nil, err
		}
		val, err := strconv.ParseInt(leaf, 10, 64)
		if err != nil {
			return nil, merr.WrapErrSaveFormatMalformed("invalid int literal " + strconv.Quote(leaf))
		}
		return val, nil

	case tree.TypeFloat:
		leaf, err := leafText(n)
		if err != nil {
			return nil, err
		}
		val, err := strconv.ParseFloat(leaf, 64)
		if err != nil {
			return nil, merr.WrapErrSaveFormatMalformed("invalid float literal " + strconv.Quote(leaf))
		}
		return val, nil

	case tree.TypeFunc, tree.TypeMethod:
		// 存档里只记录过名字，行为无从还原。
		name := ""
		if len(n.Items) == 1 && !n.Items[0].IsNode() {
			name = n.Items[0].Leaf
		}
		return nil, merr.WrapErrSaveDecodeFunc(name)

	default:
		// 宿主未注册且引擎不认识的类型：响亮地失败。
		return nil, merr.WrapErrSaveTypeUnrecognized(n.Type)
	}
}

// DecodeItem 还原单个子项：嵌套节点走完整解码，叶子返回原始文本。
// 提供给注册的 Codec 在 Decode 回调里使用。
func (d *Decoder) DecodeItem(it tree.Item) (any, error) {
	if it.IsNode() {
		return d.Decode(it.Node)
	}
	return it.Leaf, nil
}

// Apply 按顺序解码 n 的每个子节点，并根据子节点的指令应用到目标上：
// 赋值指令走 ApplyField，调用指令走 ApplyHandler（附带环境引用 ctx）。
// 没有指令的子节点不应出现在对象记录里，跳过并记一条告警。
func (d *Decoder) Apply(target Target, n *tree.Node, ctx any) error {
	if target == nil {
		return merr.WrapErrParameterMissing("target", "failed to apply save data")
	}
	if n == nil {
		return nil
	}

	for _, it := range n.Items {
		if !it.IsNode() {
			log.Warn("skip bare leaf in object record", zap.String("leaf", it.Leaf))
			continue
		}
		child := it.Node
		val, err := d.Decode(child)
		if err != nil {
			return err
		}

		switch child.Directive.Kind {
		case tree.DirectiveAssign:
			if child.Directive.Name == "" {
				return merr.WrapErrSaveDirectiveInvalid(child.Directive.Render())
			}
			if err := target.ApplyField(child.Directive.Name, val); err != nil {
				return err
			}
		case tree.DirectiveInvoke:
			if err := target.ApplyHandler(child.Directive.Name, val, ctx); err != nil {
				return err
			}
		default:
			log.Warn("skip record child without directive", zap.String("type", child.Type))
		}
	}
	return nil
}

func (d *Decoder) decodeList(n *tree.Node) ([]any, error) {
	result := make([]any, 0, len(n.Items))
	for _, it := range n.Items {
		if !it.IsNode() {
			return nil, merr.WrapErrSaveFormatMalformed("sequence element is not a nested record")
		}
		val, err := d.Decode(it.Node)
		if err != nil {
			return nil, err
		}
		result = append(result, val)
	}
	return result, nil
}

// decodeDict 还原映射。
// 每个子节点是一个键值对记录；键重复时后写入者生效。
func (d *Decoder) decodeDict(n *tree.Node) (map[any]any, error) {
	result := make(map[any]any, len(n.Items))
	for _, it := range n.Items {
		if !it.IsNode() {
			return nil, merr.WrapErrSaveFormatMalformed("dict entry is not a nested record")
		}
		val, err := d.Decode(it.Node)
		if err != nil {
			return nil, err
		}
		pair, ok := val.(tree.Tuple)
		if !ok || len(pair) != 2 {
			return nil, merr.WrapErrSaveFormatMalformed("dict entry is not a key/value pair")
		}
		key := pair[0]
		if key != nil && !reflect.TypeOf(key).Comparable() {
			return nil, merr.WrapErrSaveKeyUnhashable(reflect.TypeOf(key).String())
		}
		result[key] = pair[1]
	}
	return result, nil
}

// leafText 返回单叶子节点的文本载荷。
func leafText(n *tree.Node) (string, error) {
	if len(n.Items) != 1 || n.Items[0].IsNode() {
		return "", merr.WrapErrSaveFormatMalformed(
			"node tagged " + strconv.Quote(n.Type) + " does not hold a single leaf")
	}
	return n.Items[0].Leaf, nil
}
