package xtrace

import (
	"log/slog"

	"google.golang.org/grpc/metadata"
)

// 元数据日志 key
const (
	KeyReqType   = "reqType"
	KeyReqMethod = "reqMethod"
	KeyReqURL    = "reqUrl"
	KeyReqBody   = "reqBody"
	KeyReqIP     = "reqIp"
	KeyReqIPs    = "reqIps"
	KeyReferer   = "referer"
	KeyUserAgent = "userAgent"
	KeyMetadata  = "metadata"
	KeyResTime   = "resTime"

	unknownRoute = "unknown"
)

// RequestMetadata 按传输类型区分的请求元数据，每个请求构建一次，之后只读。
//
// 仅 Kind 对应的字段有意义：
//   - HTTP: Method, URL, Body, IP, IPs, Referer, UserAgent
//   - WebSocket: URL, Body
//   - RPC: URL, Body, Metadata
type RequestMetadata struct {
	Kind      Kind
	Method    string
	URL       string
	Body      any
	IP        string
	IPs       []string
	Referer   string
	UserAgent string
	Metadata  metadata.MD
}

// Attrs 将元数据渲染为 slog 属性，Unknown 返回 nil
func (m RequestMetadata) Attrs() []slog.Attr {
	switch m.Kind {
	case KindHTTP:
		return []slog.Attr{
			slog.String(KeyReqType, m.Kind.String()),
			slog.String(KeyReqMethod, m.Method),
			slog.String(KeyReqURL, m.URL),
			slog.Any(KeyReqBody, m.Body),
			slog.String(KeyReqIP, m.IP),
			slog.Any(KeyReqIPs, m.IPs),
			slog.String(KeyReferer, m.Referer),
			slog.String(KeyUserAgent, m.UserAgent),
		}
	case KindWebSocket:
		return []slog.Attr{
			slog.String(KeyReqType, m.Kind.String()),
			slog.String(KeyReqURL, m.URL),
			slog.Any(KeyReqBody, m.Body),
		}
	case KindRPC:
		attrs := []slog.Attr{
			slog.String(KeyReqType, m.Kind.String()),
			slog.String(KeyReqURL, m.URL),
			slog.Any(KeyReqBody, m.Body),
		}
		if m.Metadata != nil {
			attrs = append(attrs, slog.Any(KeyMetadata, map[string][]string(m.Metadata)))
		}
		return attrs
	default:
		return nil
	}
}

// ExtractMetadata 提取请求元数据，无法识别的请求返回空元数据
func ExtractMetadata(req any) RequestMetadata {
	switch Classify(req) {
	case KindHTTP:
		return httpMetadata(req)
	case KindWebSocket:
		return RequestMetadata{
			Kind: KindWebSocket,
			URL:  eventName(req),
			Body: payloadOf(req),
		}
	case KindRPC:
		return RequestMetadata{
			Kind:     KindRPC,
			URL:      eventName(req),
			Body:     payloadOf(req),
			Metadata: req.(MetadataMapper).GetMap(),
		}
	default:
		return RequestMetadata{}
	}
}

func httpMetadata(req any) RequestMetadata {
	getter := req.(HeaderGetter)
	md := RequestMetadata{
		Kind:      KindHTTP,
		URL:       unknownRoute,
		Body:      payloadOf(req),
		Referer:   getter.Get("Referer"),
		UserAgent: getter.Get("User-Agent"),
	}
	if m, ok := req.(methoder); ok {
		md.Method = m.Method()
	}
	if r, ok := req.(routePather); ok {
		if route := r.RoutePath(); route != "" {
			md.URL = route
		}
	}
	if ip, ok := req.(clientIPer); ok {
		md.IP = ip.ClientIP()
	}
	if ips, ok := req.(clientIPser); ok {
		md.IPs = ips.ClientIPs()
	}
	return md
}

// eventName 返回事件名，缺失时返回 "unknown"
func eventName(req any) string {
	if e, ok := req.(eventNamer); ok {
		if name := e.EventName(); name != "" {
			return name
		}
	}
	return unknownRoute
}

func payloadOf(req any) any {
	if p, ok := req.(payloader); ok {
		return p.Payload()
	}
	return nil
}
