package xtrace

import "context"

// Pipeline 按 Propagator → Tracer 的顺序组合两个中间件，供传输适配器使用
//
// 任一组件为 nil 时跳过该组件。
type Pipeline struct {
	Propagator *Propagator
	Tracer     *Tracer
}

// NewPipeline 创建 Pipeline
func NewPipeline(p *Propagator, t *Tracer) *Pipeline {
	return &Pipeline{Propagator: p, Tracer: t}
}

// Use 依次经过传播与追踪后调用 next
func (pl *Pipeline) Use(ctx context.Context, req any, res HeaderWriter, next Stage, done Continuation) {
	traced := next
	if pl != nil && pl.Tracer != nil {
		t := pl.Tracer
		traced = func(ctx context.Context, done Continuation) error {
			t.Use(ctx, req, res, next, done)
			return nil
		}
	}
	if pl != nil && pl.Propagator != nil {
		pl.Propagator.Use(ctx, req, res, traced, done)
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	guarded := onceContinuation(done)
	if err := invoke(ctx, traced, guarded); err != nil {
		guarded(err)
	}
}

// Do 同步执行 fn，返回（可能附加了 ErrorMeta 的）错误
func (pl *Pipeline) Do(ctx context.Context, req any, res HeaderWriter, fn func(ctx context.Context) error) error {
	var result error
	pl.Use(ctx, req, res, syncStage(fn), func(err error) { result = err })
	return result
}
