package textcodec

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/lk2023060901/save-garden-go/internal/save/tree"
	"github.com/lk2023060901/save-garden-go/pkg/util/merr"
)

// EntryMarker 是子项行中表示“后面跟着一棵嵌套节点”的哨兵。
const EntryMarker = "ENTRY"

// 行式存档格式。
//
// 一个节点占五行起：
//
//	<类型标签>
//	<指令行，可为空行>
//	<子项数量>
//	<子项行>      -- 重复子项数量次
//
// 每个子项行要么是叶子的原始文本（编码期转义保证不含换行），
// 要么是独占一行的哨兵 ENTRY，其后紧跟嵌套节点的完整编码。
//
// 编解码是纯结构性的（标签/指令/数量/子项），不做任何类型解释，
// 与 Encoder/Decoder 的语义分发完全解耦。

// Write 把节点树写入 w。
// 手工构造的树里若有包含换行或与哨兵同文的叶子，会被直接拒绝。
func Write(w io.Writer, n *tree.Node) error {
	if n == nil {
		return merr.WrapErrParameterMissing("node", "failed to write save data")
	}
	bw := bufio.NewWriter(w)
	if err := writeNode(bw, n); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return merr.WrapErrIoFailedReason(err.Error(), "failed to flush save data")
	}
	return nil
}

func writeNode(bw *bufio.Writer, n *tree.Node) error {
	if err := writeLine(bw, n.Type); err != nil {
		return err
	}
	if err := writeLine(bw, n.Directive.Render()); err != nil {
		return err
	}
	if err := writeLine(bw, strconv.Itoa(len(n.Items))); err != nil {
		return err
	}
	for _, it := range n.Items {
		if it.IsNode() {
			if err := writeLine(bw, EntryMarker); err != nil {
				return err
			}
			if err := writeNode(bw, it.Node); err != nil {
				return err
			}
			continue
		}
		if strings.ContainsRune(it.Leaf, '\n') || it.Leaf == EntryMarker {
			return merr.WrapErrSaveLeafInvalid(it.Leaf)
		}
		if err := writeLine(bw, it.Leaf); err != nil {
			return err
		}
	}
	return nil
}

func writeLine(bw *bufio.Writer, line string) error {
	if _, err := bw.WriteString(line); err != nil {
		return merr.WrapErrIoFailedReason(err.Error(), "failed to write save data")
	}
	if err := bw.WriteByte('\n'); err != nil {
		return merr.WrapErrIoFailedReason(err.Error(), "failed to write save data")
	}
	return nil
}

// Read 从 r 中读出一棵完整的节点树。
// 截断或结构不一致的输入会以 ErrSaveFormatMalformed 立即失败，不做静默截断。
func Read(r io.Reader) (*tree.Node, error) {
	br := bufio.NewReader(r)
	return readNode(br)
}

func readNode(br *bufio.Reader) (*tree.Node, error) {
	typeTag, err := readLine(br)
	if err != nil {
		return nil, err
	}
	directive, err := readLine(br)
	if err != nil {
		return nil, err
	}
	countLine, err := readLine(br)
	if err != nil {
		return nil, err
	}
	count, err := strconv.Atoi(strings.TrimSpace(countLine))
	if err != nil || count < 0 {
		return nil, merr.WrapErrSaveFormatMalformed("invalid item count line " + strconv.Quote(countLine))
	}

	node := tree.NewNode(typeTag)
	node.Directive = tree.ParseDirective(directive)
	for i := 0; i < count; i++ {
		line, err := readLine(br)
		if err != nil {
			return nil, err
		}
		if line == EntryMarker {
			child, err := readNode(br)
			if err != nil {
				return nil, err
			}
			node.AppendNode(child)
			continue
		}
		node.AppendLeaf(line)
	}
	return node, nil
}

// readLine 读取一行文本（去掉行尾换行符）。
// 文件在一行中途结束时按最后一行处理；在行首结束视为截断。
func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err == io.EOF {
		if line == "" {
			return "", merr.WrapErrSaveFormatMalformed("unexpected end of save data")
		}
		return strings.TrimSuffix(line, "\r"), nil
	}
	if err != nil {
		return "", merr.WrapErrIoFailedReason(err.Error(), "failed to read save data")
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}
