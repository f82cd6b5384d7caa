package xtrace

import (
	"context"

	"github.com/omeyang/xreqtrace/pkg/context/xctx"
	"github.com/omeyang/xreqtrace/pkg/util/xid"
)

// HeaderRequestID 关联标识在 HTTP 头、WebSocket 负载 headers 与 RPC 元数据中的名称
const HeaderRequestID = "x-request-id"

// ResolverOption Resolver 配置选项
type ResolverOption func(*Resolver)

// WithGenerator 设置标识生成器，nil 时使用 xid 全局默认生成器
func WithGenerator(g xid.Generator) ResolverOption {
	return func(r *Resolver) {
		r.gen = g
	}
}

// WithRPCWriteBack 设置 RPC 调用新生成的标识是否写回调用元数据，默认写回
func WithRPCWriteBack(enabled bool) ResolverOption {
	return func(r *Resolver) {
		r.rpcWriteBack = enabled
	}
}

// Resolver 获取或生成请求关联标识
//
// 优先读取传输载体上的标识；载体没有时复用外层追踪作用域中的标识，
// 仍没有则生成，并写回载体，保证同一请求内多次调用返回同一值。
type Resolver struct {
	gen          xid.Generator
	rpcWriteBack bool
}

// NewResolver 创建 Resolver
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{rpcWriteBack: true}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Resolver) newID() string {
	if r != nil && r.gen != nil {
		return r.gen.NewID()
	}
	return xid.NewID()
}

// Resolve 返回请求的关联标识
//
// HTTP 请求会将标识写入入站请求头，并在 res 非 nil 时镜像到响应头。
func (r *Resolver) Resolve(ctx context.Context, req any, res HeaderWriter) string {
	switch Classify(req) {
	case KindHTTP:
		return r.resolveHTTP(ctx, req, res)
	case KindWebSocket:
		return r.resolveWS(ctx, req)
	case KindRPC:
		return r.resolveRPC(ctx, req)
	default:
		return r.fallback(ctx)
	}
}

// fallback 载体上没有标识时使用：外层追踪作用域的标识，否则新生成
func (r *Resolver) fallback(ctx context.Context) string {
	if id := xctx.RequestID(ctx); id != "" {
		return id
	}
	return r.newID()
}

func (r *Resolver) resolveHTTP(ctx context.Context, req any, res HeaderWriter) string {
	id := req.(HeaderGetter).Get(HeaderRequestID)
	if id == "" {
		id = r.fallback(ctx)
		if h := req.(HeaderMapper).Headers(); h != nil {
			h.Set(HeaderRequestID, id)
		}
	}
	mirror(res, id)
	return id
}

func mirror(res HeaderWriter, id string) {
	if res == nil {
		return
	}
	if h := res.Header(); h != nil {
		h.Set(HeaderRequestID, id)
	}
}

// resolveWS 负载缺失或不是对象时无处持久化，标识不写回
func (r *Resolver) resolveWS(ctx context.Context, req any) string {
	payload, ok := payloadOf(req).(map[string]any)
	if !ok || payload == nil {
		return r.fallback(ctx)
	}

	switch headers := payload[payloadHeadersKey].(type) {
	case nil:
		id := r.fallback(ctx)
		payload[payloadHeadersKey] = map[string]any{HeaderRequestID: id}
		return id
	case map[string]any:
		if id, _ := headers[HeaderRequestID].(string); id != "" {
			return id
		}
		id := r.fallback(ctx)
		headers[HeaderRequestID] = id
		return id
	case map[string]string:
		if id := headers[HeaderRequestID]; id != "" {
			return id
		}
		id := r.fallback(ctx)
		headers[HeaderRequestID] = id
		return id
	default:
		return r.fallback(ctx)
	}
}

func (r *Resolver) resolveRPC(ctx context.Context, req any) string {
	md := req.(MetadataMapper).GetMap()
	if md == nil {
		return r.fallback(ctx)
	}
	if vals := md.Get(HeaderRequestID); len(vals) > 0 && vals[0] != "" {
		return vals[0]
	}
	id := r.fallback(ctx)
	if r == nil || r.rpcWriteBack {
		md.Set(HeaderRequestID, id)
	}
	return id
}
