// Package xnet 解析 IP 范围并据此从代理链中还原客户端地址。
//
// 范围格式：单 IP（"10.0.0.1"）、CIDR（"10.0.0.0/8"）、
// 显式范围（"10.0.0.1-10.0.0.9"）。范围合并为 netipx.IPSet，
// 查询为 O(log n)。
//
// TrustedProxies.ClientIP 从 X-Forwarded-For 链的右端向左跳过可信代理，
// 返回第一个不可信的地址；对端本身不可信时直接返回对端地址。
package xnet
