package xtrace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/omeyang/xreqtrace/pkg/context/xctx"
	"github.com/omeyang/xreqtrace/pkg/observability/xlog"
)

// ErrInvalidEvent WebSocket 消息无法解码为事件
var ErrInvalidEvent = errors.New("xtrace: invalid websocket event")

// WSEvent 一条 WebSocket 事件，实现 WebSocket 形状
//
// Data 为 JSON 对象时解码为 map[string]any，Resolver 会把关联标识写入其 headers 字段。
type WSEvent struct {
	handshake http.Header
	Event     string
	Data      any
}

// NewWSEvent 创建事件
func NewWSEvent(handshake http.Header, event string, data any) *WSEvent {
	if handshake == nil {
		handshake = http.Header{}
	}
	return &WSEvent{handshake: handshake, Event: event, Data: data}
}

// Handshake 返回建立连接时的握手头
func (e *WSEvent) Handshake() http.Header { return e.handshake }

// EventName 返回事件名
func (e *WSEvent) EventName() string { return e.Event }

// Payload 返回事件数据
func (e *WSEvent) Payload() any { return e.Data }

// wireEvent 线上事件帧
type wireEvent struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// wireReply 回复帧，失败时携带 error 与 ErrorMeta
type wireReply struct {
	Event     string `json:"event"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	ResTime   string `json:"resTime,omitempty"`
}

// DecodeEvent 解码 {"event": "...", "data": ...} 格式的消息
func DecodeEvent(msg []byte, handshake http.Header) (*WSEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(msg, &w); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}
	return NewWSEvent(handshake, w.Event, w.Data), nil
}

// ReadEvent 从连接读取一条事件
func ReadEvent(conn *websocket.Conn, handshake http.Header) (*WSEvent, error) {
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return DecodeEvent(msg, handshake)
}

// WSHandler 处理一条事件，返回值作为回复帧的 data
type WSHandler func(ctx context.Context, ev *WSEvent) (any, error)

// ServeWS 返回升级到 WebSocket 的 http.Handler，每条事件都经过传播与追踪
//
// 事件在连接的读循环中串行处理；失败时回复帧携带 requestId 与 resTime。
func ServeWS(upgrader *websocket.Upgrader, pl *Pipeline, handler WSHandler) http.Handler {
	if upgrader == nil {
		upgrader = &websocket.Upgrader{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade 已写出错误响应
			xlog.Warn(r.Context(), "websocket upgrade failed", xlog.Err(err))
			return
		}
		defer func() { _ = conn.Close() }()

		handshake := r.Header.Clone()
		// 每条事件单独解析标识，不沿用握手请求的追踪作用域
		base, _ := xctx.WithoutRequestID(r.Context())
		for {
			ev, err := ReadEvent(conn, handshake)
			if errors.Is(err, ErrInvalidEvent) {
				if werr := conn.WriteJSON(wireReply{Error: err.Error()}); werr != nil {
					return
				}
				continue
			}
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					xlog.Debug(r.Context(), "websocket read ended", xlog.Err(err))
				}
				return
			}

			if err := conn.WriteJSON(dispatchEvent(base, pl, handler, ev)); err != nil {
				xlog.Debug(r.Context(), "websocket write failed", xlog.Err(err))
				return
			}
		}
	})
}

func dispatchEvent(ctx context.Context, pl *Pipeline, handler WSHandler, ev *WSEvent) wireReply {
	var data any
	err := pl.Do(ctx, ev, nil, func(ctx context.Context) error {
		if handler == nil {
			return nil
		}
		var herr error
		data, herr = handler(ctx, ev)
		return herr
	})
	if err == nil {
		return wireReply{Event: ev.Event, Data: data}
	}
	meta, _ := MetaOf(err)
	return wireReply{
		Event:     ev.Event,
		Error:     err.Error(),
		RequestID: meta.RequestID,
		ResTime:   meta.ResTime,
	}
}
