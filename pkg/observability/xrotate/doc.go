// Package xrotate 提供日志文件轮转能力，供 xlog 作为输出目标使用。
//
// 默认实现基于 lumberjack：按文件大小轮转，按数量和天数清理备份，可选 gzip 压缩。
//
//	r, err := xrotate.NewLumberjack("/var/log/app/trace.log",
//		xrotate.WithMaxSize(100),
//		xrotate.WithMaxBackups(5),
//	)
package xrotate
