// Package xconf 加载 xreqtrace 的运行配置，基于 koanf 实现。
//
// # 加载
//
// New 从 .yaml/.yml/.json 文件加载，NewFromBytes 从字节数据加载（需显式格式）。
// Client() 暴露底层 koanf 实例，Unmarshal 通过 mapstructure 反序列化，
// 支持 "5s" 这类字符串到 time.Duration 的转换。
//
// # Settings
//
// LoadSettings 在 DefaultSettings 的基础上覆盖配置文件中出现的字段，并执行校验：
//
//	log:
//	  level: info        # trace|debug|info|warn|error
//	  format: json       # text|json
//	  file: ""           # 为空时输出到 stderr
//	trace:
//	  id_generator: uuid # uuid|sonyflake
//	  body_capture_bytes: 4096
//	  forward_headers: [x-request-id, traceparent]
//	  rpc_write_back: true
//	  trusted_proxies: [10.0.0.0/8]
//	server:
//	  http_addr: ":8080"
//	  grpc_addr: ":9090"
//	  shutdown_timeout: 10s
//
// # 热重载
//
// Watch 基于 fsnotify 监视配置文件所在目录，内置防抖。
// Reload 通过互斥锁串行化，解析成功后原子替换 koanf 实例；
// 解析失败时保留旧配置。Stop 返回后不再有回调执行。
package xconf
