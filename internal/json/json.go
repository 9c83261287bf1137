package json

import (
	"github.com/bytedance/sonic"
)

// 统一使用与标准库对齐的 sonic 配置，避免各处散落不同的 JSON 行为。
var api = sonic.ConfigStd

// Marshal 将对象编码为 JSON 字节。
func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

// MarshalIndent 将对象编码为带缩进的 JSON 字节。
func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return api.MarshalIndent(v, prefix, indent)
}

// Unmarshal 将 JSON 字节解码到目标对象。
func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}
