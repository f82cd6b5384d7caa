package xctx

import (
	"net/http"
	"strings"
)

// Headers 传播头映射，key 统一为小写。
//
// 底层类型与 http.Header、gRPC metadata.MD 一致（map[string][]string），
// 单值与多值头都可表示。
type Headers map[string][]string

// normalizeKey 统一 key 格式：去空白并转小写。
func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// HeadersFromHTTP 从 http.Header 构建 Headers，key 转为小写。
//
// 值切片会被复制，调用方之后修改 h 不影响返回值。
func HeadersFromHTTP(h http.Header) Headers {
	out := make(Headers, len(h))
	for k, vs := range h {
		key := normalizeKey(k)
		out[key] = append(out[key], vs...)
	}
	return out
}

// HeadersFromMap 从单值映射构建 Headers。
func HeadersFromMap(m map[string]string) Headers {
	out := make(Headers, len(m))
	for k, v := range m {
		out[normalizeKey(k)] = []string{v}
	}
	return out
}

// Get 返回 key 对应的第一个值，不存在时返回空字符串。
func (h Headers) Get(key string) string {
	vs := h[normalizeKey(key)]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// Values 返回 key 对应的全部值。
func (h Headers) Values(key string) []string {
	return h[normalizeKey(key)]
}

// Set 覆盖 key 对应的值。
func (h Headers) Set(key string, values ...string) {
	h[normalizeKey(key)] = values
}

// Has 报告 key 是否存在。
func (h Headers) Has(key string) bool {
	_, ok := h[normalizeKey(key)]
	return ok
}

// Clone 深拷贝。nil 返回 nil。
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	out := make(Headers, len(h))
	for k, vs := range h {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// Merge 返回 h 与 override 合并后的新 Headers，同名 key 以 override 为准。
func (h Headers) Merge(override Headers) Headers {
	out := h.Clone()
	if out == nil {
		out = make(Headers, len(override))
	}
	for k, vs := range override {
		out[normalizeKey(k)] = append([]string(nil), vs...)
	}
	return out
}
