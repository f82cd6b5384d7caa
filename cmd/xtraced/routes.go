package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/omeyang/xreqtrace/pkg/context/xctx"
	"github.com/omeyang/xreqtrace/pkg/observability/xtrace"
)

var (
	errOrderNotFound = errors.New("xtraced: order not found")
	errUnknownEvent  = errors.New("xtraced: unknown event")
)

// routes 注册演示路由，均运行在追踪中间件之内；/ws 的每条事件另有独立的追踪周期。
func (a *app) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /orders/{id}", a.getOrder)
	mux.HandleFunc("POST /echo", a.echo)
	mux.HandleFunc("GET /forward", a.forward)
	mux.Handle("GET /ws", xtrace.ServeWS(&websocket.Upgrader{}, a.pipeline, a.handleEvent))
	return mux
}

func (a *app) getOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "0" {
		xtrace.ReportError(r, fmt.Errorf("%w: %s", errOrderNotFound, id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"id":        id,
		"requestId": xctx.RequestID(r.Context()),
	})
}

func (a *app) echo(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		xtrace.ReportError(r, err)
		return
	}
	w.Header().Set("Content-Type", r.Header.Get("Content-Type"))
	_, _ = w.Write(body)
}

// forward 展示对下游请求会转发哪些头。
func (a *app) forward(w http.ResponseWriter, r *http.Request) {
	out, err := http.NewRequestWithContext(r.Context(), http.MethodGet, "http://upstream.invalid/", nil)
	if err != nil {
		xtrace.ReportError(r, err)
		return
	}
	xtrace.InjectToRequest(r.Context(), out, a.settings.Trace.ForwardHeaders...)

	headers := make(map[string]string, len(out.Header))
	for k := range out.Header {
		headers[strings.ToLower(k)] = out.Header.Get(k)
	}
	writeJSON(w, http.StatusOK, headers)
}

// wsEvents handleEvent 支持的事件名，作为指标 route 标签登记
var wsEvents = []string{"ping", "echo"}

// handleEvent 处理 /ws 事件：ping 回复 pong，echo 原样返回 data。
func (a *app) handleEvent(ctx context.Context, ev *xtrace.WSEvent) (any, error) {
	switch ev.Event {
	case "ping":
		return map[string]string{"pong": xctx.RequestID(ctx)}, nil
	case "echo":
		return ev.Data, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownEvent, ev.Event)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
