package xtrace

import (
	"context"
	"net/http"

	"google.golang.org/grpc/metadata"

	"github.com/omeyang/xreqtrace/pkg/context/xctx"
)

// DefaultForwardHeaders 出站调用默认转发的传播头
//
// authorization 等凭据头不在默认列表中，需要时显式传入。
var DefaultForwardHeaders = []string{
	HeaderRequestID,
	"traceparent",
	"tracestate",
	"x-tenant-id",
}

// forwardValues 收集需要转发的头，追踪作用域中的标识优先于入站头
func forwardValues(ctx context.Context, keys []string) xctx.Headers {
	if ctx == nil {
		return nil
	}
	if len(keys) == 0 {
		keys = DefaultForwardHeaders
	}
	inbound := xctx.HeadersOf(ctx)
	out := make(xctx.Headers, len(keys))
	for _, k := range keys {
		if vs := inbound.Values(k); len(vs) > 0 {
			out.Set(k, vs...)
		}
	}
	if id := xctx.RequestID(ctx); id != "" {
		out.Set(HeaderRequestID, id)
	}
	return out
}

// InjectToRequest 将当前请求的传播头写入出站 HTTP 请求
//
// keys 为空时使用 DefaultForwardHeaders。同名头会被覆盖。
func InjectToRequest(ctx context.Context, req *http.Request, keys ...string) {
	if req == nil {
		return
	}
	values := forwardValues(ctx, keys)
	if len(values) == 0 {
		return
	}
	if req.Header == nil {
		req.Header = make(http.Header)
	}
	for k, vs := range values {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
}

// InjectToOutgoingContext 将当前请求的传播头写入 gRPC outgoing metadata
//
// 已有的 outgoing metadata 被复制后再修改。
func InjectToOutgoingContext(ctx context.Context, keys ...string) context.Context {
	values := forwardValues(ctx, keys)
	if len(values) == 0 {
		return ctx
	}
	md, ok := metadata.FromOutgoingContext(ctx)
	if ok {
		md = md.Copy()
	} else {
		md = metadata.MD{}
	}
	for k, vs := range values {
		md.Set(k, vs...)
	}
	return metadata.NewOutgoingContext(ctx, md)
}
