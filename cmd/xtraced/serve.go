package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xreqtrace/pkg/config/xconf"
	"github.com/omeyang/xreqtrace/pkg/lifecycle/xrun"
	"github.com/omeyang/xreqtrace/pkg/observability/xlog"
	"github.com/omeyang/xreqtrace/pkg/observability/xrotate"
	"github.com/omeyang/xreqtrace/pkg/observability/xtrace"
	"github.com/omeyang/xreqtrace/pkg/util/xid"
	"github.com/omeyang/xreqtrace/pkg/util/xnet"
)

var errUsage = errors.New("xtraced: invalid usage")

func serveCommand(stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "启动追踪演示服务",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "http-addr", Usage: "覆盖 server.http_addr"},
			&cli.StringFlag{Name: "grpc-addr", Usage: "覆盖 server.grpc_addr"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Present() {
				return fmt.Errorf("%w: serve takes no arguments, got %q", errUsage, cmd.Args().Slice())
			}
			cfg, settings, err := loadSettings(cmd.String("config"))
			if err != nil {
				return err
			}
			if v := cmd.String("log-level"); v != "" {
				settings.Log.Level = v
			}
			if v := cmd.String("http-addr"); v != "" {
				settings.Server.HTTPAddr = v
			}
			if v := cmd.String("grpc-addr"); v != "" {
				settings.Server.GRPCAddr = v
			}
			if err := settings.Validate(); err != nil {
				return err
			}
			return serve(ctx, cfg, settings, stderr)
		},
	}
}

// loadSettings 读取配置文件，path 为空时返回默认配置与 nil Config。
func loadSettings(path string) (xconf.Config, xconf.Settings, error) {
	if path == "" {
		s, err := xconf.LoadSettings(nil)
		return nil, s, err
	}
	cfg, err := xconf.New(path)
	if err != nil {
		return nil, xconf.Settings{}, err
	}
	s, err := xconf.LoadSettings(cfg)
	return cfg, s, err
}

func buildLogger(s xconf.LogSettings, out io.Writer) (xlog.LoggerWithLevel, func() error, error) {
	b := xlog.New().
		SetLevelString(s.Level).
		SetFormat(s.Format).
		SetEnrich(true).
		SetAttrs(slog.String("service", appName))
	if s.File != "" {
		b = b.SetRotation(s.File,
			xrotate.WithMaxSize(s.MaxSizeMB),
			xrotate.WithMaxBackups(s.MaxBackups),
			xrotate.WithMaxAge(s.MaxAgeDays),
		)
	} else {
		b = b.SetOutput(out)
	}
	return b.Build()
}

// app 聚合一次 serve 运行所需的组件。
type app struct {
	settings  xconf.Settings
	logger    xlog.LoggerWithLevel
	pipeline  *xtrace.Pipeline
	telemetry *telemetry
	proxies   *xnet.TrustedProxies
}

func newApp(settings xconf.Settings, logger xlog.LoggerWithLevel) (*app, error) {
	gen, err := xid.FromKind(settings.Trace.IDGenerator)
	if err != nil {
		return nil, err
	}
	var proxies *xnet.TrustedProxies
	if len(settings.Trace.TrustedProxies) > 0 {
		if proxies, err = xnet.NewTrustedProxies(settings.Trace.TrustedProxies...); err != nil {
			return nil, err
		}
	}
	tel, err := newTelemetry()
	if err != nil {
		return nil, err
	}
	tracer := xtrace.NewTracer(
		xtrace.WithLogger(logger),
		xtrace.WithObserver(tel.observer),
		xtrace.WithEventNames(wsEvents...),
		xtrace.WithResolver(xtrace.NewResolver(
			xtrace.WithGenerator(gen),
			xtrace.WithRPCWriteBack(settings.Trace.RPCWriteBack),
		)),
	)
	return &app{
		settings:  settings,
		logger:    logger,
		pipeline:  xtrace.NewPipeline(xtrace.NewPropagator(), tracer),
		telemetry: tel,
		proxies:   proxies,
	}, nil
}

// httpHandler 组装对外的 HTTP 路由：/metrics 不经过追踪，其余走中间件。
func (a *app) httpHandler() http.Handler {
	routes := a.routes()
	traced := xtrace.HTTPMiddleware(a.pipeline,
		xtrace.WithRouteResolver(xtrace.ServeMuxRoute(routes)),
		xtrace.WithBodyCapture(a.settings.Trace.BodyCaptureBytes),
		xtrace.WithTrustedProxies(a.proxies),
	)(routes)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", a.telemetry.handler)
	mux.Handle("/", traced)
	return mux
}

func serve(ctx context.Context, cfg xconf.Config, settings xconf.Settings, stderr io.Writer) error {
	logger, cleanup, err := buildLogger(settings.Log, stderr)
	if err != nil {
		return fmt.Errorf("%w: %w", xconf.ErrInvalidSettings, err)
	}
	defer func() { _ = cleanup() }()
	xlog.SetDefault(logger)
	defer xlog.ResetDefault()

	a, err := newApp(settings, logger)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), settings.Server.ShutdownTimeout)
		defer cancel()
		if err := a.telemetry.Shutdown(sctx); err != nil {
			logger.Warn(sctx, "metrics shutdown failed", slog.Any("error", err))
		}
	}()

	var services []xrun.Service
	if addr := settings.Server.HTTPAddr; addr != "" {
		srv := &http.Server{Addr: addr, Handler: a.httpHandler(), ReadHeaderTimeout: 10 * time.Second}
		services = append(services, xrun.NamedService{
			Name:    "http",
			Service: xrun.ServiceFunc(xrun.HTTPServer(srv, settings.Server.ShutdownTimeout)),
		})
	}
	if addr := settings.Server.GRPCAddr; addr != "" {
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen grpc %s: %w", addr, err)
		}
		srv, hs := a.grpcServer()
		services = append(services, xrun.NamedService{
			Name: "grpc",
			Service: xrun.ServiceFunc(func(ctx context.Context) error {
				defer hs.Shutdown()
				return xrun.GRPCServer(srv, lis, settings.Server.ShutdownTimeout)(ctx)
			}),
		})
	}
	if cfg != nil {
		services = append(services, xrun.NamedService{Name: "config-watch", Service: a.watchConfig(cfg)})
	}

	logger.Info(ctx, "xtraced starting",
		slog.String("version", Version),
		slog.String("http_addr", settings.Server.HTTPAddr),
		slog.String("grpc_addr", settings.Server.GRPCAddr),
		slog.String("id_generator", settings.Trace.IDGenerator),
	)
	err = xrun.RunServicesWithOptions(ctx, []xrun.Option{xrun.WithLogger(logger), xrun.WithName(appName)}, services...)
	logger.Info(context.Background(), "xtraced stopped", slog.Any("reason", err))
	return err
}

// watchConfig 监视配置文件，重载成功后更新日志级别。
// 其余字段需重启生效。
func (a *app) watchConfig(cfg xconf.Config) xrun.Service {
	return xrun.ServiceFunc(func(ctx context.Context) error {
		w, err := xconf.Watch(cfg, func(c xconf.Config, err error) {
			a.applyReload(ctx, c, err)
		})
		if err != nil {
			return err
		}
		w.StartAsync()
		<-ctx.Done()
		return w.Stop()
	})
}

func (a *app) applyReload(ctx context.Context, cfg xconf.Config, reloadErr error) {
	if reloadErr != nil {
		a.logger.Warn(ctx, "config reload failed", slog.Any("error", reloadErr))
		return
	}
	s, err := xconf.LoadSettings(cfg)
	if err != nil {
		a.logger.Warn(ctx, "config reload rejected", slog.Any("error", err))
		return
	}
	level, err := xlog.ParseLevel(s.Log.Level)
	if err != nil {
		return
	}
	if level != a.logger.GetLevel() {
		a.logger.SetLevel(level)
		a.logger.Info(ctx, "log level changed", slog.String("level", level.String()))
	}
}
