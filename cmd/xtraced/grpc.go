package main

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/omeyang/xreqtrace/pkg/observability/xtrace"
)

// grpcServer 创建带追踪拦截器的 gRPC 服务器，并注册健康检查服务。
func (a *app) grpcServer() (*grpc.Server, *health.Server) {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(xtrace.UnaryServerInterceptor(a.pipeline)),
		grpc.ChainStreamInterceptor(xtrace.StreamServerInterceptor(a.pipeline)),
	)
	hs := health.NewServer()
	hs.SetServingStatus(appName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return srv, hs
}
