// xtraced 是请求追踪中间件的演示服务。
//
// 用法:
//
//	xtraced [全局选项] <命令>
//
// 命令:
//
//	serve    启动 HTTP（含 /ws 与 /metrics）与 gRPC 服务，所有请求都经过传播与追踪
//	version  打印版本信息
//
// 退出码:
//
//	0: 正常退出（包括收到 SIGINT/SIGTERM）
//	1: 运行失败
//	2: 参数或配置错误
//
// 示例:
//
//	xtraced serve -c /etc/xtraced/config.yaml
//	xtraced serve --log-level trace
//	curl -H 'x-request-id: abc' localhost:8080/orders/42
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xreqtrace/pkg/config/xconf"
	"github.com/omeyang/xreqtrace/pkg/lifecycle/xrun"
)

const appName = "xtraced"

// 版本信息，可通过 -ldflags "-X main.Version=..." 注入。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run(context.Background(), os.Args, os.Stdout, os.Stderr))
}

func createApp(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      appName,
		Usage:     "请求追踪与上下文传播演示服务",
		Version:   versionString(),
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径（.yaml/.yml/.json），为空时使用默认配置",
				Sources: cli.EnvVars("XTRACED_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "覆盖配置中的日志级别 (trace/debug/info/warn/error)",
			},
		},
		Commands: []*cli.Command{
			serveCommand(stderr),
			versionCommand(stdout),
		},
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(stderr, err)
			}
		},
	}
}

func versionString() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime)
}

func versionCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "打印版本信息",
		Action: func(context.Context, *cli.Command) error {
			_, err := fmt.Fprintf(stdout, "%s %s\n", appName, versionString())
			return err
		},
	}
}

// run 执行 CLI 并把错误映射为退出码。
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	err := createApp(stdout, stderr).Run(ctx, args)
	switch {
	case err == nil, errors.Is(err, xrun.ErrSignal):
		return 0
	case errors.Is(err, xconf.ErrInvalidSettings),
		errors.Is(err, xconf.ErrLoadFailed),
		errors.Is(err, xconf.ErrParseFailed),
		errors.Is(err, xconf.ErrUnsupportedFormat),
		errors.Is(err, xconf.ErrUnmarshalFailed),
		errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "配置错误: %v\n", err)
		return 2
	default:
		fmt.Fprintf(stderr, "错误: %v\n", err)
		return 1
	}
}
