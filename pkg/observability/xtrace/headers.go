package xtrace

import (
	"net/http"

	"github.com/omeyang/xreqtrace/pkg/context/xctx"
)

// payloadHeadersKey WebSocket 事件负载中携带传播头的字段名
const payloadHeadersKey = "headers"

// ExtractHeaders 按传输类型提取传播头
//
//   - HTTP：请求头
//   - WebSocket：握手头与负载 headers 字段合并，同名以负载为准
//   - RPC：调用元数据，不可用时为空
//   - Unknown：空
//
// 返回值总是非 nil，且与请求载体不共享底层存储。
func ExtractHeaders(req any) xctx.Headers {
	switch Classify(req) {
	case KindHTTP:
		return xctx.HeadersFromHTTP(req.(HeaderMapper).Headers())
	case KindWebSocket:
		base := xctx.HeadersFromHTTP(req.(Handshaker).Handshake())
		if carried := payloadHeaders(payloadOf(req)); len(carried) > 0 {
			return base.Merge(carried)
		}
		return base
	case KindRPC:
		return xctx.HeadersFromHTTP(http.Header(req.(MetadataMapper).GetMap()))
	default:
		return xctx.Headers{}
	}
}

// payloadHeaders 读取负载中的 headers 字段，支持 JSON 解码后的常见形状
func payloadHeaders(payload any) xctx.Headers {
	m, ok := payload.(map[string]any)
	if !ok {
		return nil
	}
	switch hv := m[payloadHeadersKey].(type) {
	case map[string]string:
		return xctx.HeadersFromMap(hv)
	case map[string][]string:
		return xctx.HeadersFromHTTP(http.Header(hv))
	case map[string]any:
		out := make(xctx.Headers, len(hv))
		for k, v := range hv {
			switch vv := v.(type) {
			case string:
				out.Set(k, vv)
			case []string:
				out.Set(k, vv...)
			case []any:
				vals := make([]string, 0, len(vv))
				for _, item := range vv {
					if s, ok := item.(string); ok {
						vals = append(vals, s)
					}
				}
				out.Set(k, vals...)
			}
		}
		return out
	default:
		return nil
	}
}
