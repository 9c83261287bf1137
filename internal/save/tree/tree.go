package tree

import (
	"fmt"
	"strings"
)

// 内置类型标签。
//
// 标签记录的是“原始值”的运行期类型，而不是其编码表示的类型，
// 因此解码器仅凭标签即可区分按文本存储的基础类型与注册的复杂类型。
const (
	TypeInt   = "int"
	TypeFloat = "float"
	TypeStr   = "str"
	TypeBytes = "bytes"
	TypeBool  = "bool"
	TypeNone  = "none"
	TypeList  = "list"
	TypeTuple = "tuple"
	TypeDict  = "dict"

	// TypeNode 是“原样保留的嵌套记录”标签：
	// 解码时不做任何解释，直接还原为一棵子树，
	// 用于字段值本身就是一条完整存档记录的场景。
	TypeNode = "node"

	// 历史存档中可能出现的函数/方法标签。
	// 编码器已不再产生这类节点，解码遇到时必须显式报错。
	TypeFunc   = "func"
	TypeMethod = "method"
)

// DirectiveKind 表示指令的应用方式。
type DirectiveKind uint8

const (
	// DirectiveNone 表示没有指令（根节点与纯数据元素）。
	DirectiveNone DirectiveKind = iota

	// DirectiveAssign 表示按字段赋值应用解码结果。
	DirectiveAssign

	// DirectiveInvoke 表示调用目标上的指定处理方法，
	// 参数为解码结果与环境引用。
	DirectiveInvoke
)

// Directive 描述解码器如何把一个子节点的解码结果应用到目标对象上。
// 零值表示“无指令”。
type Directive struct {
	Kind DirectiveKind
	Name string
}

// Assign 构造一个字段赋值指令。
func Assign(field string) Directive {
	return Directive{Kind: DirectiveAssign, Name: field}
}

// Invoke 构造一个方法调用指令。
func Invoke(method string) Directive {
	return Directive{Kind: DirectiveInvoke, Name: method}
}

// IsNone 报告该指令是否为空。
func (d Directive) IsNone() bool {
	return d.Kind == DirectiveNone
}

// Render 返回指令在存档文件中的单行表示。
//
// 约定沿用既有存档格式：空行表示无指令，
// 以 " =" 结尾表示字段赋值，其余为方法名。
func (d Directive) Render() string {
	switch d.Kind {
	case DirectiveAssign:
		return d.Name + " ="
	case DirectiveInvoke:
		return d.Name
	default:
		return ""
	}
}

// ParseDirective 解析存档文件中的指令行，是 Render 的逆操作。
// 对尾部 "=" 约定的解析只发生在这一处，引擎其余部分一律使用带标签的 Directive。
func ParseDirective(line string) Directive {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Directive{}
	}
	if strings.HasSuffix(trimmed, "=") {
		return Assign(strings.TrimSpace(strings.TrimSuffix(trimmed, "=")))
	}
	return Invoke(trimmed)
}

// Item 表示节点的一个子项，二选一：
//   - 叶子：一段文本载荷（基础类型的文本编码）；
//   - 子节点：一棵嵌套的记录树。
type Item struct {
	Leaf string
	Node *Node
}

// LeafItem 构造一个叶子子项。
func LeafItem(text string) Item {
	return Item{Leaf: text}
}

// NodeItem 构造一个嵌套节点子项。
func NodeItem(n *Node) Item {
	return Item{Node: n}
}

// IsNode 报告该子项是否为嵌套节点。
func (it Item) IsNode() bool {
	return it.Node != nil
}

// Node 是存档数据的中间表示：一条记录或一个值的树形描述。
//
// Items 的顺序是有语义的（list 元素顺序、dict 键值配对、多字段记录），
// 任何环节都必须原样保留。
type Node struct {
	Type      string
	Directive Directive
	Items     []Item
}

// NewNode 创建一个带类型标签的空节点。
func NewNode(typeTag string) *Node {
	return &Node{Type: typeTag}
}

// AppendLeaf 追加一个叶子子项。
func (n *Node) AppendLeaf(text string) *Node {
	n.Items = append(n.Items, LeafItem(text))
	return n
}

// AppendNode 追加一个嵌套节点子项。
func (n *Node) AppendNode(child *Node) *Node {
	n.Items = append(n.Items, NodeItem(child))
	return n
}

// Len 返回子项数量。
func (n *Node) Len() int {
	return len(n.Items)
}

// String 返回便于人工查看的缩进形式，仅用于调试输出。
func (n *Node) String() string {
	var sb strings.Builder
	n.dump(&sb, 0)
	return sb.String()
}

func (n *Node) dump(sb *strings.Builder, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(sb, "%s%s", indent, n.Type)
	if !n.Directive.IsNone() {
		fmt.Fprintf(sb, " <%s>", n.Directive.Render())
	}
	sb.WriteByte('\n')
	for _, it := range n.Items {
		if it.IsNode() {
			it.Node.dump(sb, depth+1)
		} else {
			fmt.Fprintf(sb, "%s  %q\n", indent, it.Leaf)
		}
	}
}

// Tuple 表示定长有序序列。
// 与 []any 区分开，使 list 与 tuple 在一轮完整的编解码后仍能保持各自的形态。
type Tuple []any
