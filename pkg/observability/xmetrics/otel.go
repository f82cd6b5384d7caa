package xmetrics

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	defaultInstrumentationName = "github.com/omeyang/xreqtrace/pkg/observability/xmetrics"
	unknownValue               = "unknown"

	metricRequestTotal    = "xreqtrace.request.total"
	metricRequestDuration = "xreqtrace.request.duration"
)

type otelConfig struct {
	instrumentationName string
	meterProvider       metric.MeterProvider
	buckets             []float64
}

// Option 定义 OTel Observer 的配置选项。
type Option func(*otelConfig)

// WithInstrumentationName 设置 OTel instrumentation 名称，空值忽略。
func WithInstrumentationName(name string) Option {
	return func(cfg *otelConfig) {
		if name != "" {
			cfg.instrumentationName = name
		}
	}
}

// WithMeterProvider 设置 MeterProvider，nil 忽略。
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(cfg *otelConfig) {
		if provider != nil {
			cfg.meterProvider = provider
		}
	}
}

// WithDurationBuckets 设置耗时直方图的桶边界（秒），必须严格递增且非负。
func WithDurationBuckets(bounds ...float64) Option {
	return func(cfg *otelConfig) {
		cfg.buckets = slices.Clone(bounds)
	}
}

// NewOTelObserver 创建基于 OpenTelemetry metric API 的 Observer。
func NewOTelObserver(opts ...Option) (Observer, error) {
	cfg := &otelConfig{
		instrumentationName: defaultInstrumentationName,
		meterProvider:       otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		if opt == nil {
			return nil, ErrNilOption
		}
		opt(cfg)
	}
	if err := validateBuckets(cfg.buckets); err != nil {
		return nil, err
	}

	meter := cfg.meterProvider.Meter(cfg.instrumentationName)

	total, err := meter.Int64Counter(
		metricRequestTotal,
		metric.WithDescription("total traced requests"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateCounter, err)
	}

	histOpts := []metric.Float64HistogramOption{
		metric.WithDescription("traced request duration"),
		metric.WithUnit("s"),
	}
	if len(cfg.buckets) > 0 {
		histOpts = append(histOpts, metric.WithExplicitBucketBoundaries(cfg.buckets...))
	}
	duration, err := meter.Float64Histogram(metricRequestDuration, histOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateHistogram, err)
	}

	return &otelObserver{total: total, duration: duration}, nil
}

func validateBuckets(bounds []float64) error {
	for i, b := range bounds {
		if b < 0 || (i > 0 && b <= bounds[i-1]) {
			return fmt.Errorf("%w: %v", ErrInvalidBuckets, bounds)
		}
	}
	return nil
}

type otelObserver struct {
	total    metric.Int64Counter
	duration metric.Float64Histogram
}

// Start 开始一次观测。
func (o *otelObserver) Start(ctx context.Context, obs Observation) Span {
	if ctx == nil {
		ctx = context.Background()
	}
	return &otelSpan{
		observer:  o,
		ctx:       ctx,
		transport: orUnknown(obs.Transport),
		route:     orUnknown(obs.Route),
		attrs:     obs.Attrs,
		start:     time.Now(),
	}
}

type otelSpan struct {
	observer  *otelObserver
	ctx       context.Context
	transport string
	route     string
	attrs     []Attr
	start     time.Time
	endOnce   sync.Once
}

// End 记录计数与耗时，幂等。
func (s *otelSpan) End(result Result) {
	if s == nil {
		return
	}
	s.endOnce.Do(func() {
		// 请求 ctx 可能已取消，指标仍需记录
		ctx := context.WithoutCancel(s.ctx)
		attrs := make([]attribute.KeyValue, 0, 3+len(s.attrs)+len(result.Attrs))
		attrs = append(attrs,
			attribute.String("transport", s.transport),
			attribute.String("route", s.route),
			attribute.String("status", string(resolveStatus(result))),
		)
		attrs = appendOTel(attrs, s.attrs)
		attrs = appendOTel(attrs, result.Attrs)

		set := metric.WithAttributes(attrs...)
		s.observer.total.Add(ctx, 1, set)
		s.observer.duration.Record(ctx, time.Since(s.start).Seconds(), set)
	})
}

func resolveStatus(result Result) Status {
	if result.Status != "" {
		return result.Status
	}
	if result.Err != nil {
		return StatusError
	}
	return StatusOK
}

func orUnknown(s string) string {
	if s == "" {
		return unknownValue
	}
	return s
}

func appendOTel(dst []attribute.KeyValue, attrs []Attr) []attribute.KeyValue {
	for _, attr := range attrs {
		if attr.Key == "" || attr.Value == nil {
			continue
		}
		dst = append(dst, toKeyValue(attr))
	}
	return dst
}

func toKeyValue(attr Attr) attribute.KeyValue {
	switch v := attr.Value.(type) {
	case string:
		return attribute.String(attr.Key, v)
	case bool:
		return attribute.Bool(attr.Key, v)
	case int:
		return attribute.Int(attr.Key, v)
	case int64:
		return attribute.Int64(attr.Key, v)
	case float64:
		return attribute.Float64(attr.Key, v)
	case time.Duration:
		return attribute.Int64(attr.Key, v.Nanoseconds())
	default:
		return attribute.String(attr.Key, fmt.Sprint(v))
	}
}
