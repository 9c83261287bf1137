package tree

import (
	"fmt"
	"strings"

	"github.com/lk2023060901/save-garden-go/pkg/util/merr"
)

// entryLine 是行式存档中引入嵌套节点的保留行。
// 转义后的叶子不允许与它同文，否则读取侧会把叶子误认成嵌套节点。
const entryLine = "ENTRY"

// escapedEntryLine 是与保留行同文的叶子的转义形式（\x45 即 'E'），
// unescape 按通用 \xHH 规则即可还原。
const escapedEntryLine = `\x45NTRY`

// EscapeString 把字符串转义为可以安全写入单行的文本。
//
// 转义规则：反斜杠与 \n、\r、\t 使用短转义，
// 其余小于 0x20 或等于 0x7f 的字节使用 \xHH；
// 多字节 UTF-8 序列原样保留（存档文件本身是 UTF-8 文本）。
// 与保留行同文的结果会追加转义首字母。
func EscapeString(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b == '\\' || b < 0x20 || b == 0x7f {
			escapeByte(&sb, b)
			continue
		}
		sb.WriteByte(b)
	}
	if out := sb.String(); out != entryLine {
		return out
	}
	return escapedEntryLine
}

// UnescapeString 还原 EscapeString 的转义，非法转义序列返回错误。
func UnescapeString(s string) (string, error) {
	out, err := unescape(s)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// EscapeBytes 把字节序列转义为单行可打印文本。
// 与 EscapeString 的区别在于所有非可打印 ASCII 的字节（含 >= 0x80）都会被转义，
// 使任意二进制数据都能落进文本存档。
func EscapeBytes(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		if c == '\\' || c < 0x20 || c >= 0x7f {
			escapeByte(&sb, c)
			continue
		}
		sb.WriteByte(c)
	}
	if out := sb.String(); out != entryLine {
		return out
	}
	return escapedEntryLine
}

// UnescapeBytes 还原 EscapeBytes 的转义，非法转义序列返回错误。
func UnescapeBytes(s string) ([]byte, error) {
	return unescape(s)
}

func escapeByte(sb *strings.Builder, b byte) {
	switch b {
	case '\\':
		sb.WriteString(`\\`)
	case '\n':
		sb.WriteString(`\n`)
	case '\r':
		sb.WriteString(`\r`)
	case '\t':
		sb.WriteString(`\t`)
	default:
		fmt.Fprintf(sb, `\x%02x`, b)
	}
}

func unescape(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b != '\\' {
			out = append(out, b)
			continue
		}
		i++
		if i >= len(s) {
			return nil, merr.WrapErrSaveLeafEscapeInvalid(s, i-1)
		}
		switch s[i] {
		case '\\':
			out = append(out, '\\')
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'x':
			if i+2 >= len(s) {
				return nil, merr.WrapErrSaveLeafEscapeInvalid(s, i-1)
			}
			hi, ok1 := hexVal(s[i+1])
			lo, ok2 := hexVal(s[i+2])
			if !ok1 || !ok2 {
				return nil, merr.WrapErrSaveLeafEscapeInvalid(s, i-1)
			}
			out = append(out, hi<<4|lo)
			i += 2
		default:
			return nil, merr.WrapErrSaveLeafEscapeInvalid(s, i-1)
		}
	}
	return out, nil
}

func hexVal(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}
