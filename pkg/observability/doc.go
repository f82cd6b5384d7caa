// Package observability 提供请求追踪相关的可观测性子包。
//
// 子包列表：
//   - xlog: 结构化日志，基于 log/slog 扩展，支持 Trace 级别与 xctx 字段注入
//   - xtrace: 传播与追踪中间件，以及 HTTP/WebSocket/gRPC 适配
//   - xmetrics: 请求计数与耗时指标，基于 OpenTelemetry metric
//   - xrotate: 日志文件轮转
package observability
