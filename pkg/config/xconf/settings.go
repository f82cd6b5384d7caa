package xconf

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/omeyang/xreqtrace/pkg/observability/xlog"
	"github.com/omeyang/xreqtrace/pkg/util/xid"
	"github.com/omeyang/xreqtrace/pkg/util/xnet"
)

// Settings 是 xtraced 的完整运行配置。
type Settings struct {
	Log    LogSettings    `koanf:"log"`
	Trace  TraceSettings  `koanf:"trace"`
	Server ServerSettings `koanf:"server"`
}

// LogSettings 日志配置。
type LogSettings struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	// File 为空时输出到 stderr，否则按 lumberjack 规则轮转。
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
}

// TraceSettings 请求追踪配置。
type TraceSettings struct {
	IDGenerator      string   `koanf:"id_generator"`
	BodyCaptureBytes int64    `koanf:"body_capture_bytes"`
	ForwardHeaders   []string `koanf:"forward_headers"`
	RPCWriteBack     bool     `koanf:"rpc_write_back"`
	// TrustedProxies 为可信代理的 IP/CIDR/范围，为空时 reqIp 总是对端地址。
	TrustedProxies []string `koanf:"trusted_proxies"`
}

// ServerSettings 监听与关闭配置。
type ServerSettings struct {
	HTTPAddr        string        `koanf:"http_addr"`
	GRPCAddr        string        `koanf:"grpc_addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DefaultSettings 返回默认配置。
func DefaultSettings() Settings {
	return Settings{
		Log: LogSettings{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 7,
			MaxAgeDays: 30,
		},
		Trace: TraceSettings{
			IDGenerator:      xid.KindUUID,
			BodyCaptureBytes: 4096,
			ForwardHeaders:   []string{"x-request-id", "traceparent", "tracestate", "x-tenant-id"},
			RPCWriteBack:     true,
		},
		Server: ServerSettings{
			HTTPAddr:        ":8080",
			GRPCAddr:        ":9090",
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// LoadSettings 把 cfg 覆盖到 DefaultSettings 之上并校验。
func LoadSettings(cfg Config) (Settings, error) {
	s := DefaultSettings()
	if cfg == nil {
		return s, nil
	}
	if err := cfg.Unmarshal("", &s); err != nil {
		return Settings{}, err
	}
	s.normalize()
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func (s *Settings) normalize() {
	s.Log.Format = strings.ToLower(strings.TrimSpace(s.Log.Format))
	s.Trace.IDGenerator = strings.ToLower(strings.TrimSpace(s.Trace.IDGenerator))
	headers := s.Trace.ForwardHeaders[:0]
	for _, h := range s.Trace.ForwardHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" && !slices.Contains(headers, h) {
			headers = append(headers, h)
		}
	}
	s.Trace.ForwardHeaders = headers
}

// Validate 校验配置，返回的错误可用 errors.Is 匹配 ErrInvalidSettings。
func (s Settings) Validate() error {
	var errs []error
	if _, err := xlog.ParseLevel(s.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if s.Log.Format != "json" && s.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("log.format %q must be text or json", s.Log.Format))
	}
	if s.Log.File != "" && s.Log.MaxSizeMB <= 0 {
		errs = append(errs, fmt.Errorf("log.max_size_mb must be positive, got %d", s.Log.MaxSizeMB))
	}
	switch s.Trace.IDGenerator {
	case "", xid.KindUUID, xid.KindSonyflake:
	default:
		errs = append(errs, fmt.Errorf("trace.id_generator %q must be uuid or sonyflake", s.Trace.IDGenerator))
	}
	if s.Trace.BodyCaptureBytes < 0 {
		errs = append(errs, fmt.Errorf("trace.body_capture_bytes must not be negative, got %d", s.Trace.BodyCaptureBytes))
	}
	if _, err := xnet.ParseRanges(s.Trace.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("trace.trusted_proxies: %w", err))
	}
	if s.Server.HTTPAddr == "" && s.Server.GRPCAddr == "" {
		errs = append(errs, errors.New("server: at least one of http_addr and grpc_addr is required"))
	}
	if s.Server.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout must be positive, got %s", s.Server.ShutdownTimeout))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidSettings, errors.Join(errs...))
}
