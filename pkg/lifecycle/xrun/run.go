package xrun

import (
	"context"
	"log/slog"
)

// Service 是可由 RunServices 管理的服务，Run 阻塞到 ctx 取消或出错。
type Service interface {
	Run(ctx context.Context) error
}

// ServiceFunc 把函数适配为 Service。
type ServiceFunc func(ctx context.Context) error

// Run 实现 Service。
func (f ServiceFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// NamedService 为 Service 附加名称，RunServices 用它记录生命周期日志。
type NamedService struct {
	Name    string
	Service Service
}

// Run 实现 Service。
func (n NamedService) Run(ctx context.Context) error {
	if n.Service == nil {
		return ErrNilService
	}
	return n.Service.Run(ctx)
}

// Run 监听信号并运行 services，收到信号时返回 *SignalError。
func Run(ctx context.Context, services ...func(ctx context.Context) error) error {
	return RunWithOptions(ctx, nil, services...)
}

// RunWithOptions 与 Run 相同，但支持配置选项。
func RunWithOptions(ctx context.Context, opts []Option, services ...func(ctx context.Context) error) error {
	return runGroup(ctx, opts, func(g *Group) {
		for _, svc := range services {
			g.Go(svc)
		}
	})
}

// RunServices 运行多个 Service，监听信号并协调关闭。
func RunServices(ctx context.Context, services ...Service) error {
	return RunServicesWithOptions(ctx, nil, services...)
}

// RunServicesWithOptions 与 RunServices 相同，但支持配置选项。
func RunServicesWithOptions(ctx context.Context, opts []Option, services ...Service) error {
	return runGroup(ctx, opts, func(g *Group) {
		for _, svc := range services {
			switch s := svc.(type) {
			case nil:
				g.Go(func(context.Context) error { return ErrNilService })
			case NamedService:
				g.GoWithName(s.Name, s.Run)
			default:
				g.Go(s.Run)
			}
		}
	})
}

func runGroup(ctx context.Context, opts []Option, setup func(g *Group)) error {
	g, _ := NewGroup(ctx, opts...)
	if !g.opts.noSignalHandler {
		g.Go(g.waitSignal)
	}
	setup(g)
	return g.Wait()
}

// waitSignal 收到信号后以 *SignalError 取消 Group。
func (g *Group) waitSignal(ctx context.Context) error {
	signals := g.opts.signals
	if len(signals) == 0 {
		signals = DefaultSignals()
	}
	ch, release := g.opts.signalSource(ctx, signals)
	defer release()

	select {
	case sig := <-ch:
		g.opts.logger.Info(ctx, "received signal",
			slog.String("group", g.opts.name),
			slog.String("signal", sig.String()),
		)
		g.cancel(&SignalError{Signal: sig})
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
