package jsoncodec

import (
	"github.com/lk2023060901/save-garden-go/internal/json"
	"github.com/lk2023060901/save-garden-go/internal/save/tree"
	"github.com/lk2023060901/save-garden-go/pkg/util/merr"
)

// jsoncodec 提供存档树与 JSON 之间的双向转换。
//
// 仅面向工具链与调试（diff、可视化、问题定位），
// 行式文本格式仍然是唯一的持久化格式。

const (
	kindAssign = "assign"
	kindInvoke = "invoke"
)

type jsonDirective struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

type jsonItem struct {
	Leaf *string   `json:"leaf,omitempty"`
	Node *jsonNode `json:"node,omitempty"`
}

type jsonNode struct {
	Type      string         `json:"type"`
	Directive *jsonDirective `json:"directive,omitempty"`
	Items     []jsonItem     `json:"items"`
}

// Marshal 把节点树编码为 JSON 字节。
func Marshal(n *tree.Node) ([]byte, error) {
	if n == nil {
		return nil, merr.WrapErrParameterMissing("node", "failed to marshal save tree")
	}
	return json.Marshal(toJSONNode(n))
}

// MarshalIndent 把节点树编码为带缩进的 JSON 字节。
func MarshalIndent(n *tree.Node) ([]byte, error) {
	if n == nil {
		return nil, merr.WrapErrParameterMissing("node", "failed to marshal save tree")
	}
	return json.MarshalIndent(toJSONNode(n), "", "  ")
}

// Unmarshal 把 Marshal 产出的 JSON 字节还原为节点树。
func Unmarshal(data []byte) (*tree.Node, error) {
	var jn jsonNode
	if err := json.Unmarshal(data, &jn); err != nil {
		return nil, merr.WrapErrSaveFormatMalformed(err.Error(), "failed to unmarshal save tree")
	}
	return fromJSONNode(&jn)
}

func toJSONNode(n *tree.Node) *jsonNode {
	jn := &jsonNode{
		Type:  n.Type,
		Items: make([]jsonItem, 0, len(n.Items)),
	}
	switch n.Directive.Kind {
	case tree.DirectiveAssign:
		jn.Directive = &jsonDirective{Kind: kindAssign, Name: n.Directive.Name}
	case tree.DirectiveInvoke:
		jn.Directive = &jsonDirective{Kind: kindInvoke, Name: n.Directive.Name}
	}
	for _, it := range n.Items {
		if it.IsNode() {
			jn.Items = append(jn.Items, jsonItem{Node: toJSONNode(it.Node)})
			continue
		}
		leaf := it.Leaf
		jn.Items = append(jn.Items, jsonItem{Leaf: &leaf})
	}
	return jn
}

func fromJSONNode(jn *jsonNode) (*tree.Node, error) {
	n := tree.NewNode(jn.Type)
	if jn.Directive != nil {
		switch jn.Directive.Kind {
		case kindAssign:
			n.Directive = tree.Assign(jn.Directive.Name)
		case kindInvoke:
			n.Directive = tree.Invoke(jn.Directive.Name)
		default:
			return nil, merr.WrapErrSaveDirectiveInvalid(jn.Directive.Kind)
		}
	}
	for _, it := range jn.Items {
		switch {
		case it.Node != nil && it.Leaf == nil:
			child, err := fromJSONNode(it.Node)
			if err != nil {
				return nil, err
			}
			n.AppendNode(child)
		case it.Leaf != nil && it.Node == nil:
			n.AppendLeaf(*it.Leaf)
		default:
			return nil, merr.WrapErrSaveFormatMalformed("item must hold exactly one of leaf or node")
		}
	}
	return n, nil
}
