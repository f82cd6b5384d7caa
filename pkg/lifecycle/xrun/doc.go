// Package xrun 管理 xtraced 进程内多个服务的并发运行与协调关闭。
//
// Group 基于 errgroup，任一服务返回错误或收到系统信号时，
// 其余服务都会收到取消信号。Run 与 RunServices 默认监听
// SIGHUP/SIGINT/SIGTERM/SIGQUIT，信号退出时返回 *SignalError，
// 可用 errors.Is(err, ErrSignal) 判断。
//
// HTTPServer 与 GRPCServer 把服务器包装为支持优雅关闭的服务函数：
//
//	err := xrun.RunServicesWithOptions(ctx, []xrun.Option{xrun.WithLogger(logger)},
//	    xrun.ServiceFunc(xrun.HTTPServer(httpSrv, 10*time.Second)),
//	    xrun.ServiceFunc(xrun.GRPCServer(grpcSrv, lis, 10*time.Second)),
//	)
package xrun
