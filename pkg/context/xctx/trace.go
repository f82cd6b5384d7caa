package xctx

import (
	"context"

	"github.com/omeyang/xreqtrace/pkg/context/xscope"
	"github.com/omeyang/xreqtrace/pkg/util/xid"
)

// KeyRequestID 请求标识的日志属性 key
const KeyRequestID = "request_id"

// TraceScope 追踪作用域，保存请求关联标识。
type TraceScope struct {
	RequestID string
}

var traceStore = xscope.New[TraceScope]("xctx:trace")

// RunTrace 在追踪作用域内执行 fn。
func RunTrace(ctx context.Context, scope TraceScope, fn func(ctx context.Context)) {
	traceStore.Run(ctx, scope, fn)
}

// WithRequestID 将 request ID 注入 context
//
// 如果 ctx 为 nil，返回 ErrNilContext。
func WithRequestID(ctx context.Context, requestID string) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	return traceStore.With(ctx, TraceScope{RequestID: requestID})
}

// RequestID 从 context 提取 request ID，不存在返回空字符串
func RequestID(ctx context.Context) string {
	scope, _ := traceStore.Get(ctx)
	return scope.RequestID
}

// RequireRequestID 从 context 获取 request ID，不存在则返回错误。
//
// 作用域存在但 request ID 为空同样视为缺失。
func RequireRequestID(ctx context.Context) (string, error) {
	scope, err := traceStore.Require(ctx)
	if err != nil {
		return "", mapScopeErr(err, ErrMissingRequestID)
	}
	if scope.RequestID == "" {
		return "", ErrMissingRequestID
	}
	return scope.RequestID, nil
}

// EnsureRequestID 确保 context 中存在 RequestID。
//
// 已存在时原样返回（不验证/不纠正）；否则使用 xid 默认生成器生成并注入。
func EnsureRequestID(ctx context.Context) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if RequestID(ctx) != "" {
		return ctx, nil
	}
	return WithRequestID(ctx, xid.NewID())
}

// WithoutRequestID 返回屏蔽外层 request ID 的派生 context
//
// 长连接上的每条消息是独立的逻辑请求，不应继承握手请求的标识。
// 如果 ctx 为 nil，返回 ErrNilContext。
func WithoutRequestID(ctx context.Context) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	return traceStore.With(ctx, TraceScope{})
}
