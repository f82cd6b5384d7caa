package xtrace

import (
	"net/http"

	"google.golang.org/grpc/metadata"
)

// Kind 传输类型
type Kind uint8

const (
	// KindUnknown 无法识别的请求形状
	KindUnknown Kind = iota
	// KindHTTP HTTP 请求/响应
	KindHTTP
	// KindWebSocket 套接字事件
	KindWebSocket
	// KindRPC 携带键值元数据的 RPC 调用
	KindRPC
)

// String 返回日志中使用的 reqType 值
func (k Kind) String() string {
	switch k {
	case KindHTTP:
		return "http"
	case KindWebSocket:
		return "ws"
	case KindRPC:
		return "rpc"
	default:
		return "unknown"
	}
}

// HeaderMapper 暴露请求头映射
type HeaderMapper interface {
	Headers() http.Header
}

// HeaderGetter 按名称读取请求头
type HeaderGetter interface {
	Get(key string) string
}

// Handshaker 暴露 WebSocket 握手头
type Handshaker interface {
	Handshake() http.Header
}

// MetadataMapper 暴露 RPC 调用的键值元数据
type MetadataMapper interface {
	GetMap() metadata.MD
}

// HeaderWriter 出站响应头载体，http.ResponseWriter 满足此接口
type HeaderWriter interface {
	Header() http.Header
}

// 可选访问器，按需探测。
type (
	methoder    interface{ Method() string }
	routePather interface{ RoutePath() string }
	eventNamer  interface{ EventName() string }
	payloader   interface{ Payload() any }
	clientIPer  interface{ ClientIP() string }
	clientIPser interface{ ClientIPs() []string }
)

// Classify 按结构识别请求的传输类型，nil 或无法识别时返回 KindUnknown
func Classify(req any) Kind {
	if req == nil {
		return KindUnknown
	}
	if _, ok := req.(HeaderMapper); ok {
		if _, ok := req.(HeaderGetter); ok {
			return KindHTTP
		}
	}
	if _, ok := req.(Handshaker); ok {
		return KindWebSocket
	}
	if _, ok := req.(MetadataMapper); ok {
		return KindRPC
	}
	return KindUnknown
}
