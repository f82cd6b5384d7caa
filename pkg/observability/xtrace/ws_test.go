package xtrace

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xreqtrace/pkg/context/xctx"
)

func dialWS(t *testing.T, handler http.Handler, header http.Header) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestServeWS_EventRoundTrip(t *testing.T) {
	logger, buf := newTestLogger(t)
	pl := NewPipeline(NewPropagator(), NewTracer(WithLogger(logger)))

	handler := ServeWS(nil, pl, func(ctx context.Context, ev *WSEvent) (any, error) {
		if ev.Event == "fail" {
			return nil, errors.New("rejected")
		}
		return map[string]string{
			"requestId": xctx.RequestID(ctx),
			"tenant":    xctx.Header(ctx, "x-tenant-id"),
			"client":    xctx.Header(ctx, "x-client"),
		}, nil
	})
	conn := dialWS(t, handler, http.Header{"X-Client": {"web"}})

	require.NoError(t, conn.WriteJSON(map[string]any{
		"event": "echo",
		"data":  map[string]any{"headers": map[string]any{HeaderRequestID: "xyz", "x-tenant-id": "t1"}},
	}))
	var reply struct {
		Event string            `json:"event"`
		Data  map[string]string `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "echo", reply.Event)
	assert.Equal(t, "xyz", reply.Data["requestId"])
	assert.Equal(t, "t1", reply.Data["tenant"])
	assert.Equal(t, "web", reply.Data["client"])

	require.NoError(t, conn.WriteJSON(map[string]any{"event": "fail"}))
	var failure wireReply
	require.NoError(t, conn.ReadJSON(&failure))
	assert.Equal(t, "fail", failure.Event)
	assert.Equal(t, "rejected", failure.Error)
	assert.NotEmpty(t, failure.RequestID)
	assert.Regexp(t, resTimePattern, failure.ResTime)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	var invalid wireReply
	require.NoError(t, conn.ReadJSON(&invalid))
	assert.Contains(t, invalid.Error, ErrInvalidEvent.Error())

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))

	in := byMsg(buf.entries(t), "request in")
	require.Len(t, in, 2)
	assert.Equal(t, "ws", in[0][KeyReqType])
	assert.Equal(t, "echo", in[0][KeyReqURL])
	assert.Equal(t, "xyz", in[0]["request_id"])
}

func TestDecodeEvent(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"event":"chat","data":{"text":"hi"}}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "chat", ev.EventName())
	assert.Equal(t, map[string]any{"text": "hi"}, ev.Payload())
	assert.NotNil(t, ev.Handshake())

	_, err = DecodeEvent([]byte(`[`), nil)
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestDispatchEvent_NilHandler(t *testing.T) {
	reply := dispatchEvent(context.Background(), nil, nil, NewWSEvent(nil, "noop", nil))
	assert.Equal(t, wireReply{Event: "noop"}, reply)
}

func TestServeWS_BehindHTTPMiddleware(t *testing.T) {
	logger, _ := newTestLogger(t)
	pl := NewPipeline(NewPropagator(), NewTracer(WithLogger(logger), WithResolver(NewResolver(WithGenerator(&seqGenerator{})))))

	ws := ServeWS(nil, pl, func(ctx context.Context, _ *WSEvent) (any, error) {
		return xctx.RequestID(ctx), nil
	})
	conn := dialWS(t, HTTPMiddleware(pl)(ws), http.Header{"X-Request-Id": {"upgrade-1"}})

	roundTrip := func(data any) string {
		t.Helper()
		require.NoError(t, conn.WriteJSON(map[string]any{"event": "who", "data": data}))
		var reply struct {
			Data string `json:"data"`
		}
		require.NoError(t, conn.ReadJSON(&reply))
		return reply.Data
	}

	carried := map[string]any{"headers": map[string]any{HeaderRequestID: "xyz"}}
	assert.Equal(t, "xyz", roundTrip(carried))
	assert.Equal(t, "xyz", roundTrip(carried))

	// 未携带标识的事件各自生成，不继承握手请求的标识
	first := roundTrip(map[string]any{})
	second := roundTrip(map[string]any{})
	assert.NotEqual(t, "upgrade-1", first)
	assert.NotEqual(t, "upgrade-1", second)
	assert.NotEqual(t, first, second)
}
