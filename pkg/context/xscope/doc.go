// Package xscope 提供基于 context 的环境作用域存储（ambient scope store）。
//
// # 概述
//
// Store[T] 表示一个独立的作用域槽位：Run 在 fn 的整个调用树内建立一个值，
// 调用树中的任意代码（包括携带派生 context 启动的 goroutine、定时器回调、
// I/O 完成回调）都可以通过 Get 读取该值，而无需显式传参。
//
// 作用域的载体是 context.Context：每个逻辑请求持有自己的 context 派生链，
// 因此并发执行的请求之间互不可见，即使调度器以任意顺序交错执行它们的回调。
//
// # 多个 Store
//
// 每个 Store 持有唯一的私有 key（按指针区分），两个 Store 之间不存在
// 共享的 key 命名空间：
//
//	var headers = xscope.New[Headers]("headers")
//	var trace = xscope.New[TraceScope]("trace")
//
// # 嵌套
//
// 在已有作用域内再次 Run 会遮蔽外层值；fn 返回后，仍持有外层 context 的
// 代码继续看到外层值（context 不可变，无需"恢复"操作）。
package xscope
