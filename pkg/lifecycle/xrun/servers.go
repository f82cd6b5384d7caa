package xrun

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"
)

// HTTPServerInterface 是 HTTPServer 需要的服务器能力，*http.Server 满足此接口。
type HTTPServerInterface interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// GRPCServerInterface 是 GRPCServer 需要的服务器能力，*grpc.Server 满足此接口。
type GRPCServerInterface interface {
	Serve(lis net.Listener) error
	GracefulStop()
	Stop()
}

// HTTPServer 把 server 包装为服务函数：ctx 取消时调用 Shutdown。
// shutdownTimeout 不大于 0 时等待所有在途请求结束。
// 外部直接关闭 server 时返回 nil。
func HTTPServer(server HTTPServerInterface, shutdownTimeout time.Duration) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if server == nil {
			return ErrNilServer
		}
		shutdownErr := make(chan error, 1)
		serveDone := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				sctx, cancel := shutdownContext(shutdownTimeout)
				defer cancel()
				shutdownErr <- server.Shutdown(sctx)
			case <-serveDone:
			}
		}()

		err := server.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			close(serveDone)
			return err
		}
		select {
		case err := <-shutdownErr:
			return err
		case <-ctx.Done():
			return <-shutdownErr
		default:
			close(serveDone)
			return nil
		}
	}
}

// GRPCServer 把 server 包装为服务函数，在 lis 上提供服务。
// ctx 取消时先 GracefulStop，超过 shutdownTimeout 仍未结束则强制 Stop。
func GRPCServer(server GRPCServerInterface, lis net.Listener, shutdownTimeout time.Duration) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if server == nil || lis == nil {
			return ErrNilServer
		}
		serveDone := make(chan struct{})
		stopped := make(chan struct{})
		go func() {
			defer close(stopped)
			select {
			case <-ctx.Done():
				gracefulStop(server, shutdownTimeout)
			case <-serveDone:
			}
		}()

		err := server.Serve(lis)
		close(serveDone)
		<-stopped
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}

func gracefulStop(server GRPCServerInterface, timeout time.Duration) {
	if timeout <= 0 {
		server.GracefulStop()
		return
	}
	done := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(done)
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		server.Stop()
		<-done
	}
}

func shutdownContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), timeout)
}
