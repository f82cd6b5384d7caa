package xtrace

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/omeyang/xreqtrace/pkg/util/xnet"
)

// HeaderForwardedFor 代理链客户端 IP 头
const HeaderForwardedFor = "X-Forwarded-For"

// RouteResolver 返回请求匹配的路由模式，未匹配返回空字符串
type RouteResolver func(r *http.Request) string

// ServeMuxRoute 基于 http.ServeMux 的路由解析
//
// 中间件包在 mux 外层时 Request.Pattern 尚未设置，需要预先查询 mux。
func ServeMuxRoute(mux *http.ServeMux) RouteResolver {
	return func(r *http.Request) string {
		if mux == nil {
			return ""
		}
		_, pattern := mux.Handler(r)
		return pattern
	}
}

// HTTPRequest 将 *http.Request 适配为 HTTP 形状
type HTTPRequest struct {
	r       *http.Request
	route   string
	body    any
	proxies *xnet.TrustedProxies
}

// NewHTTPRequest 创建适配器，route 为空时回退到 Request.Pattern
func NewHTTPRequest(r *http.Request, route string, body any) *HTTPRequest {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	return &HTTPRequest{r: r, route: route, body: body}
}

// Request 返回原始请求
func (h *HTTPRequest) Request() *http.Request { return h.r }

// Headers 返回请求头（与原始请求共享）
func (h *HTTPRequest) Headers() http.Header { return h.r.Header }

// Get 读取请求头
func (h *HTTPRequest) Get(key string) string { return h.r.Header.Get(key) }

// Method 返回请求方法
func (h *HTTPRequest) Method() string { return h.r.Method }

// RoutePath 返回路由路径，去掉模式中的方法与主机部分
func (h *HTTPRequest) RoutePath() string {
	route := h.route
	if route == "" {
		route = h.r.Pattern
	}
	return patternPath(route)
}

// Payload 返回捕获的请求体，未启用捕获时为 nil
func (h *HTTPRequest) Payload() any { return h.body }

// ClientIP 返回客户端 IP
//
// 配置了可信代理且对端属于其中时，从 X-Forwarded-For 中还原；否则为对端 IP。
func (h *HTTPRequest) ClientIP() string {
	if h.proxies != nil {
		return h.proxies.ClientIP(h.r.RemoteAddr, h.ClientIPs())
	}
	host, _, err := net.SplitHostPort(h.r.RemoteAddr)
	if err != nil {
		return h.r.RemoteAddr
	}
	return host
}

// ClientIPs 返回 X-Forwarded-For 中的 IP 链，从客户端到最近的代理
func (h *HTTPRequest) ClientIPs() []string {
	var ips []string
	for _, v := range h.r.Header.Values(HeaderForwardedFor) {
		for part := range strings.SplitSeq(v, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				ips = append(ips, ip)
			}
		}
	}
	return ips
}

// patternPath 将 "GET example.com/orders/{id}" 规整为 "/orders/{id}"
func patternPath(pattern string) string {
	if pattern == "" {
		return ""
	}
	if i := strings.IndexByte(pattern, ' '); i >= 0 {
		pattern = strings.TrimSpace(pattern[i+1:])
	}
	if i := strings.IndexByte(pattern, '/'); i > 0 {
		pattern = pattern[i:]
	}
	return pattern
}

// ErrorHandler 处理逃逸出管道的错误，err 已附加 ErrorMeta
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// HTTPOption HTTP 中间件选项
type HTTPOption func(*httpConfig)

type httpConfig struct {
	route        RouteResolver
	bodyLimit    int64
	errorHandler ErrorHandler
	proxies      *xnet.TrustedProxies
}

// WithRouteResolver 设置路由解析
func WithRouteResolver(fn RouteResolver) HTTPOption {
	return func(c *httpConfig) {
		c.route = fn
	}
}

// WithBodyCapture 记录请求体前 n 字节到 reqBody，读取后请求体仍可被处理器完整读取
func WithBodyCapture(n int64) HTTPOption {
	return func(c *httpConfig) {
		c.bodyLimit = n
	}
}

// WithTrustedProxies 设置可信代理，用于从 X-Forwarded-For 还原 reqIp
func WithTrustedProxies(p *xnet.TrustedProxies) HTTPOption {
	return func(c *httpConfig) {
		c.proxies = p
	}
}

// WithErrorHandler 设置错误处理，默认写 500 JSON 响应
func WithErrorHandler(fn ErrorHandler) HTTPOption {
	return func(c *httpConfig) {
		if fn != nil {
			c.errorHandler = fn
		}
	}
}

// HTTPMiddleware 返回 HTTP 中间件，请求依次经过传播与追踪后交给 next
//
// 处理器通过 ReportError 报告失败；处理器 panic 同样按失败处理。
// 失败时若响应尚未写出，由 ErrorHandler 生成响应。
func HTTPMiddleware(pl *Pipeline, opts ...HTTPOption) func(http.Handler) http.Handler {
	cfg := &httpConfig{errorHandler: DefaultErrorHandler}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var route string
			if cfg.route != nil {
				route = cfg.route(r)
			}
			req := NewHTTPRequest(r, route, captureBody(r, cfg.bodyLimit))
			req.proxies = cfg.proxies
			sw := &responseWriter{ResponseWriter: w}

			err := pl.Do(r.Context(), req, w, func(ctx context.Context) error {
				rep := &errorReport{}
				next.ServeHTTP(sw, r.WithContext(context.WithValue(ctx, errorReportKey{}, rep)))
				return rep.err
			})
			if err == nil {
				return
			}
			if errors.Is(err, http.ErrAbortHandler) {
				panic(http.ErrAbortHandler)
			}
			if !sw.wrote {
				cfg.errorHandler(sw, r, err)
			}
		})
	}
}

type errorReportKey struct{}

type errorReport struct {
	err error
}

// ReportError 在 HTTPMiddleware 包裹的处理器中报告失败，多次调用以最后一次为准
//
// 未经过 HTTPMiddleware 的请求调用时无效果。
func ReportError(r *http.Request, err error) {
	if r == nil {
		return
	}
	if rep, ok := r.Context().Value(errorReportKey{}).(*errorReport); ok {
		rep.err = err
	}
}

// DefaultErrorHandler 写出 500 响应：{"error": ..., "requestId": ..., "resTime": ...}
func DefaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	meta, _ := MetaOf(err)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
		ErrorMeta
	}{Error: err.Error(), ErrorMeta: meta})
}

// captureBody 读取至多 limit 字节，并把已读部分拼回请求体
func captureBody(r *http.Request, limit int64) any {
	if limit <= 0 || r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	buf, err := io.ReadAll(io.LimitReader(r.Body, limit))
	r.Body = &replayBody{Reader: io.MultiReader(bytes.NewReader(buf), r.Body), Closer: r.Body}
	if err != nil || len(buf) == 0 {
		return nil
	}
	return string(buf)
}

type replayBody struct {
	io.Reader
	io.Closer
}

// responseWriter 记录响应是否已写出
type responseWriter struct {
	http.ResponseWriter
	wrote bool
}

func (w *responseWriter) WriteHeader(code int) {
	w.wrote = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(p []byte) (int, error) {
	w.wrote = true
	return w.ResponseWriter.Write(p)
}

// Unwrap 供 http.ResponseController 访问底层 writer
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Flush 实现 http.Flusher
func (w *responseWriter) Flush() {
	w.wrote = true
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack 供 WebSocket 升级等场景接管连接
func (w *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	w.wrote = true
	return http.NewResponseController(w.ResponseWriter).Hijack()
}
