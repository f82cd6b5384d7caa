package xtrace

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/omeyang/xreqtrace/pkg/context/xctx"
	"github.com/omeyang/xreqtrace/pkg/observability/xlog"
	"github.com/omeyang/xreqtrace/pkg/observability/xmetrics"
)

// Continuation 阶段完成信号，err 为 nil 表示成功
type Continuation func(err error)

// Stage 管道中的下一阶段
//
// 阶段可以调用 done 报告结果（同步或在其他 goroutine 中），
// 也可以直接返回错误或 panic，两者都按失败处理。
type Stage func(ctx context.Context, done Continuation) error

// TracerOption Tracer 配置选项
type TracerOption func(*Tracer)

// WithLogger 设置日志记录器，默认使用 xlog 全局 Logger
func WithLogger(l xlog.Logger) TracerOption {
	return func(t *Tracer) {
		t.logger = l
	}
}

// WithResolver 设置关联标识解析器
func WithResolver(r *Resolver) TracerOption {
	return func(t *Tracer) {
		if r != nil {
			t.resolver = r
		}
	}
}

// WithObserver 设置请求指标观测器
func WithObserver(o xmetrics.Observer) TracerOption {
	return func(t *Tracer) {
		t.observer = o
	}
}

// RouteLabeler 计算指标的 route 标签，返回值应来自有限集合
type RouteLabeler func(md RequestMetadata) string

// WithRouteLabel 自定义指标 route 标签，覆盖默认规则
func WithRouteLabel(fn RouteLabeler) TracerOption {
	return func(t *Tracer) {
		t.routeLabel = fn
	}
}

// WithEventNames 登记 WebSocket 事件名
//
// 事件名来自客户端消息，未登记的事件在指标中统一记为 "unknown"，日志不受影响。
func WithEventNames(names ...string) TracerOption {
	return func(t *Tracer) {
		if t.events == nil {
			t.events = make(map[string]struct{}, len(names))
		}
		for _, name := range names {
			t.events[name] = struct{}{}
		}
	}
}

// Tracer 请求追踪中间件
type Tracer struct {
	logger     xlog.Logger
	resolver   *Resolver
	observer   xmetrics.Observer
	routeLabel RouteLabeler
	events     map[string]struct{}
	now        func() time.Time
}

// NewTracer 创建 Tracer
func NewTracer(opts ...TracerOption) *Tracer {
	t := &Tracer{
		resolver: NewResolver(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

func (t *Tracer) log() xlog.Logger {
	if t.logger != nil {
		return t.logger
	}
	return xlog.Default()
}

// route 返回指标的 route 标签
//
// HTTP 使用路由模式，RPC 使用服务端登记的方法名，WebSocket 仅保留已登记的事件名。
func (t *Tracer) route(md RequestMetadata) string {
	if t.routeLabel != nil {
		return t.routeLabel(md)
	}
	if md.Kind == KindWebSocket {
		if _, ok := t.events[md.URL]; !ok {
			return unknownRoute
		}
	}
	return md.URL
}

func (t *Tracer) clock() time.Time {
	if t.now != nil {
		return t.now()
	}
	return time.Now()
}

// Use 追踪一次请求周期
//
// 依次：提取元数据、解析关联标识（HTTP 会写入响应头）、打开追踪作用域、
// 记录 "request in"、调用 next。next 成功完成时记录 "request out" 并以 nil 调用 done；
// 失败时（done 收到错误、next 返回错误或 panic）为错误附加 ErrorMeta 后转交 done，
// 不记录 "request out"。done 恰好被调用一次，重复的完成信号记录告警后丢弃。
//
// Use 在 next 返回后即返回，不等待异步的完成信号。
func (t *Tracer) Use(ctx context.Context, req any, res HeaderWriter, next Stage, done Continuation) {
	if ctx == nil {
		ctx = context.Background()
	}
	md := ExtractMetadata(req)
	id := t.resolver.Resolve(ctx, req, res)

	xctx.RunTrace(ctx, xctx.TraceScope{RequestID: id}, func(ctx context.Context) {
		c := &cycle{
			tracer:    t,
			ctx:       ctx,
			requestID: id,
			done:      done,
			span: xmetrics.Start(ctx, t.observer, xmetrics.Observation{
				Transport: md.Kind.String(),
				Route:     t.route(md),
			}),
			start: t.clock(),
		}
		t.log().With(md.Attrs()...).Trace(ctx, "request in")

		if err := invoke(ctx, next, c.signal); err != nil {
			c.finish(outcome{err: err, source: sourceThrow})
		}
	})
}

// Do 同步追踪 fn，返回 fn 的错误（附加 ErrorMeta 后）
func (t *Tracer) Do(ctx context.Context, req any, res HeaderWriter, fn func(ctx context.Context) error) error {
	var result error
	t.Use(ctx, req, res, syncStage(fn), func(err error) { result = err })
	return result
}

// outcomeSource 完成信号来源
type outcomeSource string

const (
	sourceContinuation outcomeSource = "continuation"
	sourceThrow        outcomeSource = "throw"
)

// outcome 统一两种失败约定：done(err) 与 返回错误/panic
type outcome struct {
	err    error
	source outcomeSource
}

// cycle 单个请求周期的完成状态
type cycle struct {
	tracer    *Tracer
	ctx       context.Context
	requestID string
	done      Continuation
	span      xmetrics.Span
	start     time.Time
	once      sync.Once
}

func (c *cycle) signal(err error) {
	c.finish(outcome{err: err, source: sourceContinuation})
}

func (c *cycle) finish(o outcome) {
	fired := false
	c.once.Do(func() {
		fired = true
		c.complete(o)
	})
	if !fired {
		c.tracer.log().Warn(c.ctx, "duplicate completion signal dropped",
			slog.String("source", string(o.source)),
			xlog.Err(o.err),
		)
	}
}

func (c *cycle) complete(o outcome) {
	resTime := FormatResTime(c.tracer.clock().Sub(c.start))
	if o.err == nil {
		c.tracer.log().With(slog.String(KeyResTime, resTime)).Trace(c.ctx, "request out")
		c.span.End(xmetrics.Result{})
		forward(c.done, nil)
		return
	}

	enriched := WithMeta(o.err, ErrorMeta{ResTime: resTime, RequestID: c.requestID})
	c.span.End(xmetrics.Result{Err: enriched, Attrs: []xmetrics.Attr{xmetrics.String("source", string(o.source))}})
	forward(c.done, enriched)
}

// FormatResTime 将耗时格式化为整毫秒字符串，如 "12ms"
func FormatResTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%dms", d.Milliseconds())
}

// invoke 调用 next，将 panic 转为错误；nil next 视为立即成功
func invoke(ctx context.Context, next Stage, done Continuation) (err error) {
	if next == nil {
		done(nil)
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return next(ctx, done)
}

func forward(done Continuation, err error) {
	if done != nil {
		done(err)
	}
}

// syncStage 将同步函数适配为 Stage
func syncStage(fn func(ctx context.Context) error) Stage {
	return func(ctx context.Context, done Continuation) error {
		if fn == nil {
			done(nil)
			return nil
		}
		done(fn(ctx))
		return nil
	}
}
