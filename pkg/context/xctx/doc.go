// Package xctx 提供请求级环境上下文：传播头（propagation）和请求标识（trace）。
//
// 两类信息分别存放在两个独立的 [xscope.Store] 中，互不干扰：
//
//   - PropagationScope : 入站请求携带的头信息（HTTP Header / WebSocket 握手头 / RPC Metadata）
//   - TraceScope       : 请求关联标识 request_id
//
// 作用域的生命周期等于一个逻辑请求的完整异步调用树：中间件通过 RunPropagation /
// RunTrace 打开作用域，下游任意位置通过 Headers(ctx) / RequestID(ctx) 读取，
// 例如在发起出站调用时转发头信息。
//
// # 命名约定
//
//	WithXxx(ctx, value)    - 注入：将 value 写入 context
//	Xxx(ctx)               - 读取：从 context 读取值，缺失时返回零值
//	RequireXxx(ctx)        - 强制读取：值必须存在，缺失时返回错误
//	EnsureXxx(ctx)         - 确保存在：若已存在则返回，否则自动生成
//	RunXxx(ctx, v, fn)     - 在作用域内执行 fn
//
// # 哨兵错误
//
//	ErrNilContext         - context 为 nil
//	ErrMissingRequestID   - request_id 缺失
//	ErrMissingHeaders     - 传播作用域缺失
//
// xctx 是纯粹的存取层，不对 request_id 做格式校验。
package xctx
