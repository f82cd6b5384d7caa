package xctx

import (
	"context"

	"github.com/omeyang/xreqtrace/pkg/context/xscope"
)

// PropagationScope 传播作用域，保存入站请求的头信息。
type PropagationScope struct {
	Headers Headers
}

// propagationStore 传播作用域槽位，与 traceStore 相互独立。
var propagationStore = xscope.New[PropagationScope]("xctx:propagation")

// RunPropagation 在传播作用域内执行 fn。
func RunPropagation(ctx context.Context, scope PropagationScope, fn func(ctx context.Context)) {
	propagationStore.Run(ctx, scope, fn)
}

// WithHeaders 将传播头注入 context。
//
// 如果 ctx 为 nil，返回 ErrNilContext。
func WithHeaders(ctx context.Context, headers Headers) (context.Context, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	return propagationStore.With(ctx, PropagationScope{Headers: headers})
}

// Propagation 返回当前传播作用域，ok 表示作用域是否存在。
func Propagation(ctx context.Context) (PropagationScope, bool) {
	return propagationStore.Get(ctx)
}

// HeadersOf 从 context 提取传播头，不存在返回 nil。
func HeadersOf(ctx context.Context) Headers {
	scope, _ := propagationStore.Get(ctx)
	return scope.Headers
}

// RequireHeaders 从 context 获取传播头，作用域不存在则返回错误。
func RequireHeaders(ctx context.Context) (Headers, error) {
	scope, err := propagationStore.Require(ctx)
	if err != nil {
		return nil, mapScopeErr(err, ErrMissingHeaders)
	}
	return scope.Headers, nil
}

// Header 返回传播头中 key 的第一个值。
func Header(ctx context.Context, key string) string {
	return HeadersOf(ctx).Get(key)
}
