// Package xtrace 提供请求级追踪与上下文传播中间件。
//
// # 组成
//
//   - Classify：按结构识别传输类型（HTTP / WebSocket / RPC / Unknown）。
//   - ExtractMetadata / ExtractHeaders：按传输类型提取请求元数据与传播头。
//   - Resolver：获取或生成关联标识（x-request-id），并写回传输载体。
//     载体上已有的标识优先，外层追踪作用域的标识仅在载体缺失时使用。
//   - Propagator：在请求生命周期内建立传播头作用域（xctx.PropagationScope）。
//   - Tracer：建立追踪作用域（xctx.TraceScope），记录 "request in" / "request out"，
//     计时并在出错时为错误附加 [ErrorMeta]。
//
// # 结构识别
//
// 不要求请求值实现统一接口，而是按以下顺序探测方法集，先匹配者胜出：
//
//  1. Headers() http.Header 且 Get(string) string → HTTP
//  2. Handshake() http.Header → WebSocket
//  3. GetMap() metadata.MD → RPC
//  4. 其他 → Unknown
//
// 可选访问器 Method / RoutePath / EventName / Payload / ClientIP / ClientIPs
// 用于丰富元数据，缺失时使用零值或 "unknown"。
//
// # 适配器
//
// HTTP：HTTPMiddleware（WithTrustedProxies 从 X-Forwarded-For 还原 reqIp）与 InjectToRequest。
// WebSocket：ServeWS（基于 gorilla/websocket），事件格式 {"event": "...", "data": {...}}。
// 每条事件独立解析标识，可挂在 HTTPMiddleware 之后。
// gRPC：UnaryServerInterceptor / StreamServerInterceptor / UnaryClientInterceptor。
//
// # 指标
//
// 指标的 route 标签取自有限集合：HTTP 为路由模式，RPC 为方法名，
// WebSocket 仅记录经 WithEventNames 登记的事件名，其余记为 "unknown"。
// WithRouteLabel 可整体替换该规则。
//
// # 作用域
//
// 作用域值保存在 context.Context 中，派生 context 的 goroutine 与回调都能读到同一值，
// 并发请求之间互不可见。
package xtrace
