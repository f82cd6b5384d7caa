package xmetrics

import "context"

// Status 表示观测结果状态。
type Status string

const (
	// StatusOK 表示成功。
	StatusOK Status = "ok"
	// StatusError 表示失败。
	StatusError Status = "error"
)

// Attr 表示观测属性。
type Attr struct {
	Key   string
	Value any
}

// Observation 描述一次被观测的请求。
type Observation struct {
	// Transport 传输类型，如 http / ws / rpc。
	Transport string
	// Route 路由或事件名，为空时记为 unknown。
	Route string
	// Attrs 附加属性。
	Attrs []Attr
}

// Result 表示观测结束时的结果。
type Result struct {
	// Status 表示操作状态；为空时根据 Err 推导。
	Status Status
	// Err 表示操作错误。
	Err error
	// Attrs 附加属性。
	Attrs []Attr
}

// Span 表示一次进行中的观测。
type Span interface {
	// End 结束观测并记录结果，多次调用只记录一次。
	End(result Result)
}

// Observer 定义请求观测接口。
type Observer interface {
	// Start 开始一次观测。
	Start(ctx context.Context, obs Observation) Span
}

// NoopObserver 是空实现。
type NoopObserver struct{}

// Start 返回空观测。
func (NoopObserver) Start(context.Context, Observation) Span {
	return NoopSpan{}
}

// NoopSpan 是空观测实现。
type NoopSpan struct{}

// End 空实现。
func (NoopSpan) End(Result) {}

// Start 使用 observer 开始观测，保证返回非 nil 的 Span。
//
// nil observer 或 observer 返回 nil 时返回 [NoopSpan]；nil ctx 替换为 context.Background()。
func Start(ctx context.Context, observer Observer, obs Observation) Span {
	if ctx == nil {
		ctx = context.Background()
	}
	if observer == nil {
		return NoopSpan{}
	}
	if span := observer.Start(ctx, obs); span != nil {
		return span
	}
	return NoopSpan{}
}
