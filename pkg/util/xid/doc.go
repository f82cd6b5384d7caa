// Package xid 提供请求关联标识的生成器。
//
// # 生成器
//
// [Generator] 是最小化接口：NewID() string。内置两种实现：
//
//   - [UUID]      : UUID v4（默认），如 "3f1f7a0e-5c1e-4b8b-9d0e-1f2a3b4c5d6e"
//   - [Sonyflake] : 基于 Sonyflake v2 的 63 位有序 ID，十进制字符串输出
//
// # 全局生成器
//
// 包级函数 [NewID] 使用全局默认生成器（UUID）。可通过 [SetDefault] 替换，
// 例如在配置 trace.id_generator=sonyflake 时。
//
// # 机器 ID
//
// Sonyflake 需要 16 位机器 ID，按以下优先级获取：
//
//  1. XID_MACHINE_ID 环境变量（直接指定数字 0-65535）
//  2. POD_NAME / HOSTNAME 环境变量的 FNV 哈希
//  3. os.Hostname() 的 FNV 哈希
//
// 哈希方式存在碰撞风险，大规模部署请显式设置 XID_MACHINE_ID。
package xid
