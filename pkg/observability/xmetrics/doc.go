// Package xmetrics 提供请求级指标观测接口。
//
// 只记录指标，不创建 span：一次请求对应一次 Start/End，
// 产生请求计数与耗时分布。默认实现基于 OpenTelemetry metric API，
// 可通过 MeterProvider 接入 Prometheus 等导出器。
//
//	obs, _ := xmetrics.NewOTelObserver(xmetrics.WithMeterProvider(mp))
//	span := xmetrics.Start(ctx, obs, xmetrics.Observation{
//		Transport: "http",
//		Route:     "/orders/{id}",
//	})
//	defer span.End(xmetrics.Result{Err: err})
//
// # 指标命名
//
//   - xreqtrace.request.total
//   - xreqtrace.request.duration（单位秒）
//
// 统一属性：transport / route / status。
package xmetrics
