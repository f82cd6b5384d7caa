// Package xlog 基于 log/slog 的结构化日志库。
//
// # 核心功能
//
//   - Builder 模式配置（输出目标、级别、格式、轮转）
//   - 自动从 context 注入 request_id（EnrichHandler，默认启用）
//   - TRACE 级别（低于 DEBUG），用于请求进出等高频事件
//   - 动态级别调整（运行时热更新）
//   - 全局 Logger 便利函数
//
// # 创建 Logger
//
// 使用 Builder 模式（first-error-wins：遇到第一个配置错误后，后续 Set 操作被跳过）：
//
//	logger, cleanup, err := xlog.New().
//		SetLevel(xlog.LevelTrace).
//		SetFormat("json").
//		Build()
//
// # 派生 Logger
//
// [Logger.With] 返回携带固定属性的派生 Logger，派生 logger 共享父级的 LevelVar，
// 动态级别变更会同步生效：
//
//	logger.With(slog.String("reqType", "http")).Trace(ctx, "request in")
//
// # 日志级别
//
// LevelTrace(-8)、LevelDebug(-4)、LevelInfo(0)、LevelWarn(4)、LevelError(8)。
// 可通过 [ParseLevel] 从字符串解析。Level 实现 encoding.TextMarshaler/TextUnmarshaler。
// TRACE 级别在输出中渲染为 "TRACE" 而非 slog 默认的 "DEBUG-4"。
package xlog
