package xtrace

import (
	"context"
	"sync"

	"github.com/omeyang/xreqtrace/pkg/context/xctx"
)

// Propagator 传播中间件：在请求的整个调用树内建立传播头作用域
//
// 下游代码通过 xctx.HeadersOf / xctx.Header 读取入站头，
// 例如在出站调用时用 InjectToRequest 转发关联头。
type Propagator struct{}

// NewPropagator 创建 Propagator
func NewPropagator() *Propagator {
	return &Propagator{}
}

// Use 打开 PropagationScope 并在其中调用 next
//
// next 返回的错误或 panic 原样转交 done，done 至多调用一次。
func (p *Propagator) Use(ctx context.Context, req any, _ HeaderWriter, next Stage, done Continuation) {
	if ctx == nil {
		ctx = context.Background()
	}
	scope := xctx.PropagationScope{Headers: ExtractHeaders(req)}

	xctx.RunPropagation(ctx, scope, func(ctx context.Context) {
		guarded := onceContinuation(done)
		if err := invoke(ctx, next, guarded); err != nil {
			guarded(err)
		}
	})
}

// Do 同步执行 fn
func (p *Propagator) Do(ctx context.Context, req any, res HeaderWriter, fn func(ctx context.Context) error) error {
	var result error
	p.Use(ctx, req, res, syncStage(fn), func(err error) { result = err })
	return result
}

func onceContinuation(done Continuation) Continuation {
	var once sync.Once
	return func(err error) {
		once.Do(func() { forward(done, err) })
	}
}
