// Package util 提供通用工具相关的子包。
//
// 子包列表：
//   - xid: 关联标识生成器，UUID 与 Sonyflake
//   - xnet: IP 范围解析与可信代理链的客户端地址还原，基于 go4.org/netipx
package util
