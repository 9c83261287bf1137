package encoder

import (
	"fmt"
	"math"
	"reflect"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/lk2023060901/save-garden-go/internal/save/registry"
	"github.com/lk2023060901/save-garden-go/internal/save/tree"
	"github.com/lk2023060901/save-garden-go/pkg/util/merr"
	"github.com/lk2023060901/save-garden-go/pkg/util/typeutil"
)

// defaultMaxDepth 为对象图递归编码的默认深度上限。
const defaultMaxDepth = 512

// Options 用于构造 Encoder 的依赖注入参数。
type Options struct {
	// Registry 为自定义类型的编解码表，不允许为 nil。
	Registry *registry.Registry

	// MaxDepth 为对象图的最大递归深度，为 0 时使用默认值。
	MaxDepth int
}

// Encoder 把任意运行期值递归编码为存档树节点。
//
// 编码是纯函数式的树变换，除 Registry 外没有其它状态；
// 单次 Encode 调用内部会维护一个访问集用于环检测。
type Encoder struct {
	reg      *registry.Registry
	maxDepth int
}

// New 创建一个基于给定依赖的 Encoder。
func New(opts Options) (*Encoder, error) {
	if opts.Registry == nil {
		return nil, merr.WrapErrParameterMissing("registry", "failed to create encoder")
	}
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	return &Encoder{
		reg:      opts.Registry,
		maxDepth: maxDepth,
	}, nil
}

// visitKey 标识递归路径上的一个引用值。
// 切片额外带上长度：共享同一底层数组的前缀切片指针相同，并不构成环。
type visitKey struct {
	ptr    uintptr
	length int
}

// encodeState 保存单次 Encode 调用过程中的递归状态。
type encodeState struct {
	// visited 记录当前递归路径上各引用值，用于环检测。
	// 回溯时移除，因此共享但无环的子图不会被误判。
	visited typeutil.Set[visitKey]
}

// Encode 把值编码为带指令的存档树节点。
//
// 分发顺序（先匹配者生效）：
//  1. *tree.Node 原样合并（仅附加外层指令）；
//  2. 映射 -> dict；
//  3. tree.Tuple -> tuple，其余切片/数组 -> list（[]byte 除外）；
//  4. 函数/方法值直接报错；
//  5. Registry 中注册的类型；
//  6. 基础类型；
//  7. 兜底：按文本存储，解码时报错由调用方或注册表兜住。
//
// 自引用的对象图会以 ErrSaveCycleDetected 失败，
// 超过 MaxDepth 的图会以 ErrSaveDepthExceeded 失败。
func (e *Encoder) Encode(d tree.Directive, v any) (*tree.Node, error) {
	st := &encodeState{visited: typeutil.NewSet[visitKey]()}
	return e.encode(st, d, v, 0)
}

func (e *Encoder) encode(st *encodeState, d tree.Directive, v any, depth int) (*tree.Node, error) {
	if depth > e.maxDepth {
		return nil, merr.WrapErrSaveDepthExceeded(e.maxDepth)
	}

	// 已经是树节点：保留其类型与子项，附加外层指令。
	if sub, ok := v.(*tree.Node); ok {
		merged := &tree.Node{
			Type:      sub.Type,
			Directive: d,
			Items:     sub.Items,
		}
		return merged, nil
	}

	if v == nil {
		node := tree.NewNode(tree.TypeNone)
		node.Directive = d
		node.AppendLeaf(tree.TypeNone)
		return node, nil
	}

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Map:
		return e.encodeDict(st, d, rv, depth)

	case reflect.Slice, reflect.Array:
		if _, ok := v.([]byte); ok {
			break // 按 bytes 基础类型处理。
		}
		if tup, ok := v.(tree.Tuple); ok {
			return e.encodeSequence(st, d, tree.TypeTuple, reflect.ValueOf([]any(tup)), depth)
		}
		return e.encodeSequence(st, d, tree.TypeList, rv, depth)

	case reflect.Func:
		return nil, merr.WrapErrSaveEncodeFunc(funcName(rv))
	}

	// 有类型的空指针先于注册表处理：
	// 注册匹配只看类型，不看指针是否为空，Codec 不应收到空值。
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		node := tree.NewNode(tree.TypeNone)
		node.Directive = d
		node.AppendLeaf(tree.TypeNone)
		return node, nil
	}

	if c, ok := e.reg.LookupEncode(v); ok {
		return e.encodeRegistered(st, d, c, rv, v, depth)
	}

	if rv.Kind() == reflect.Pointer {
		if err := st.enter(rv); err != nil {
			return nil, err
		}
		defer st.leave(rv)
		return e.encode(st, d, rv.Elem().Interface(), depth+1)
	}

	node, ok, err := encodePrimitive(d, rv, v)
	if err != nil {
		return nil, err
	}
	if ok {
		return node, nil
	}

	// 兜底：未知类型按文本存储；编码永不失败，
	// 解码这类标签时会以 unrecognised type 报错。
	node = tree.NewNode(typeName(rv.Type()))
	node.Directive = d
	node.AppendLeaf(tree.EscapeString(fmt.Sprint(v)))
	return node, nil
}

// encodeDict 把映射编码为 dict 节点，每个键值对包装为一个 tuple 子节点。
// Go 的 map 迭代顺序是随机的，而 dict 语义本身无序，
// 因此按键的文本编码排序，保证同一份数据产出完全一致的存档。
func (e *Encoder) encodeDict(st *encodeState, d tree.Directive, rv reflect.Value, depth int) (*tree.Node, error) {
	if err := st.enter(rv); err != nil {
		return nil, err
	}
	defer st.leave(rv)

	node := tree.NewNode(tree.TypeDict)
	node.Directive = d

	type pairNode struct {
		sortKey string
		node    *tree.Node
	}
	pairs := make([]pairNode, 0, rv.Len())

	iter := rv.MapRange()
	for iter.Next() {
		key := iter.Key().Interface()
		val := iter.Value().Interface()
		pair, err := e.encode(st, tree.Directive{}, tree.Tuple{key, val}, depth+1)
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, pairNode{
			sortKey: pair.Items[0].Node.String(),
			node:    pair,
		})
	}

	slices.SortStableFunc(pairs, func(a, b pairNode) int {
		return strings.Compare(a.sortKey, b.sortKey)
	})
	for _, p := range pairs {
		node.AppendNode(p.node)
	}
	return node, nil
}

// encodeSequence 把有序序列编码为 list 或 tuple 节点，元素顺序原样保留。
func (e *Encoder) encodeSequence(st *encodeState, d tree.Directive, typeTag string, rv reflect.Value, depth int) (*tree.Node, error) {
	if rv.Kind() == reflect.Slice {
		if err := st.enter(rv); err != nil {
			return nil, err
		}
		defer st.leave(rv)
	}

	node := tree.NewNode(typeTag)
	node.Directive = d
	for i := 0; i < rv.Len(); i++ {
		child, err := e.encode(st, tree.Directive{}, rv.Index(i).Interface(), depth+1)
		if err != nil {
			return nil, err
		}
		node.AppendNode(child)
	}
	return node, nil
}

// encodeRegistered 通过注册的 Codec 编码自定义类型：
// 节点以 Codec 的类型标签命名，唯一子项为可保存表示的递归编码结果。
func (e *Encoder) encodeRegistered(st *encodeState, d tree.Directive, c registry.Codec, rv reflect.Value, v any, depth int) (*tree.Node, error) {
	tracked := canTrack(rv)
	if tracked {
		if err := st.enter(rv); err != nil {
			return nil, err
		}
		defer st.leave(rv)
	}

	rep, err := c.Encode(v)
	if err != nil {
		return nil, err
	}
	child, err := e.encode(st, tree.Directive{}, rep, depth+1)
	if err != nil {
		return nil, err
	}

	node := tree.NewNode(c.TypeName())
	node.Directive = d
	node.AppendNode(child)
	return node, nil
}

// encodePrimitive 编码基础类型，返回 false 表示该值不是基础类型。
func encodePrimitive(d tree.Directive, rv reflect.Value, v any) (*tree.Node, bool, error) {
	var (
		typeTag string
		leaf    string
	)

	switch rv.Kind() {
	case reflect.Bool:
		typeTag = tree.TypeBool
		leaf = strconv.FormatBool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		typeTag = tree.TypeInt
		leaf = strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		// 整数统一以 int64 还原，超界的无符号值在编码侧报错，
		// 保证写得出的存档一定读得回。
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, false, merr.WrapErrParameterTooLarge(u, uint64(math.MaxInt64),
				"unsigned integer does not fit the int value range")
		}
		typeTag = tree.TypeInt
		leaf = strconv.FormatUint(u, 10)
	case reflect.Float32:
		typeTag = tree.TypeFloat
		leaf = strconv.FormatFloat(rv.Float(), 'g', -1, 32)
	case reflect.Float64:
		typeTag = tree.TypeFloat
		leaf = strconv.FormatFloat(rv.Float(), 'g', -1, 64)
	case reflect.String:
		typeTag = tree.TypeStr
		leaf = tree.EscapeString(rv.String())
	default:
		if b, ok := v.([]byte); ok {
			typeTag = tree.TypeBytes
			leaf = tree.EscapeBytes(b)
			break
		}
		return nil, false, nil
	}

	node := tree.NewNode(typeTag)
	node.Directive = d
	node.AppendLeaf(leaf)
	return node, true, nil
}

// enter 把引用值加入当前递归路径的访问集，重复进入视为环。
func (st *encodeState) enter(rv reflect.Value) error {
	key, ok := visitKeyOf(rv)
	if !ok {
		return nil
	}
	if st.visited.Contain(key) {
		return merr.WrapErrSaveCycleDetected(typeName(rv.Type()), st.visited.Len())
	}
	st.visited.Insert(key)
	return nil
}

func (st *encodeState) leave(rv reflect.Value) {
	if key, ok := visitKeyOf(rv); ok {
		st.visited.Remove(key)
	}
}

func visitKeyOf(rv reflect.Value) (visitKey, bool) {
	ptr := rv.Pointer()
	if ptr == 0 {
		return visitKey{}, false
	}
	key := visitKey{ptr: ptr}
	if rv.Kind() == reflect.Slice {
		key.length = rv.Len()
	}
	return key, true
}

// canTrack 报告该值是否具有可用于环检测的稳定地址。
func canTrack(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice:
		return true
	default:
		return false
	}
}

func typeName(t reflect.Type) string {
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}

func funcName(rv reflect.Value) string {
	if fn := runtime.FuncForPC(rv.Pointer()); fn != nil {
		return fn.Name()
	}
	return rv.Type().String()
}
