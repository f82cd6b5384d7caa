package xtrace

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// 回传给客户端的 trailer key
const (
	TrailerRequestID = HeaderRequestID
	TrailerResTime   = "x-res-time"
)

// RPCCall 一次 RPC 调用，实现 RPC 形状
type RPCCall struct {
	md      metadata.MD
	method  string
	payload any
}

// NewRPCCall 创建调用，md 为 nil 时使用空元数据
func NewRPCCall(md metadata.MD, method string, payload any) *RPCCall {
	if md == nil {
		md = metadata.MD{}
	}
	return &RPCCall{md: md, method: method, payload: payload}
}

// GetMap 返回调用元数据（可写）
func (c *RPCCall) GetMap() metadata.MD { return c.md }

// EventName 返回完整方法名
func (c *RPCCall) EventName() string { return c.method }

// Payload 返回请求消息
func (c *RPCCall) Payload() any { return c.payload }

// incomingCall 从 incoming metadata 构建调用；metadata 被复制，不影响原 context
func incomingCall(ctx context.Context, method string, payload any) *RPCCall {
	md, _ := metadata.FromIncomingContext(ctx)
	return NewRPCCall(md.Copy(), method, payload)
}

// UnaryServerInterceptor 返回一元服务端拦截器，每次调用经过传播与追踪
//
// 处理器看到的 incoming metadata 已包含关联标识（启用写回时）。
// 失败时通过 trailer 回传 x-request-id 与 x-res-time。
func UnaryServerInterceptor(pl *Pipeline) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		call := incomingCall(ctx, info.FullMethod, req)

		var resp any
		err := pl.Do(ctx, call, nil, func(ctx context.Context) error {
			var herr error
			resp, herr = handler(metadata.NewIncomingContext(ctx, call.GetMap()), req)
			return herr
		})
		if err != nil {
			setMetaTrailer(ctx, err)
		}
		return resp, err
	}
}

// StreamServerInterceptor 返回流式服务端拦截器，整个流作为一次请求追踪
func StreamServerInterceptor(pl *Pipeline) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		call := incomingCall(ss.Context(), info.FullMethod, nil)

		err := pl.Do(ss.Context(), call, nil, func(ctx context.Context) error {
			return handler(srv, &wrappedServerStream{
				ServerStream: ss,
				ctx:          metadata.NewIncomingContext(ctx, call.GetMap()),
			})
		})
		if err != nil {
			if meta, ok := MetaOf(err); ok {
				ss.SetTrailer(metadata.Pairs(TrailerRequestID, meta.RequestID, TrailerResTime, meta.ResTime))
			}
		}
		return err
	}
}

func setMetaTrailer(ctx context.Context, err error) {
	meta, ok := MetaOf(err)
	if !ok {
		return
	}
	// 直接调用拦截器（无 gRPC 服务端流）时 SetTrailer 返回错误，忽略
	_ = grpc.SetTrailer(ctx, metadata.Pairs(TrailerRequestID, meta.RequestID, TrailerResTime, meta.ResTime))
}

// wrappedServerStream 覆盖 Context
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context 返回包装后的 context
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}

// UnaryClientInterceptor 返回一元客户端拦截器，转发当前请求的传播头
//
// keys 为空时使用 DefaultForwardHeaders。
func UnaryClientInterceptor(keys ...string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		return invoker(InjectToOutgoingContext(ctx, keys...), method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor 返回流式客户端拦截器，转发当前请求的传播头
func StreamClientInterceptor(keys ...string) grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		return streamer(InjectToOutgoingContext(ctx, keys...), desc, cc, method, opts...)
	}
}
