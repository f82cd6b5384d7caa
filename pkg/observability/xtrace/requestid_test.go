package xtrace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"

	"github.com/omeyang/xreqtrace/pkg/context/xctx"
)

func TestResolve_HTTPMintsAndMirrors(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	id := NewResolver().Resolve(context.Background(), NewHTTPRequest(r, "", nil), w)

	_, err := uuid.Parse(id)
	require.NoError(t, err, "默认生成 UUID")
	assert.Equal(t, id, r.Header.Get(HeaderRequestID))
	assert.Equal(t, id, w.Header().Get(HeaderRequestID))
}

func TestResolve_HTTPKeepsExisting(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderRequestID, "abc")
	w := httptest.NewRecorder()

	id := NewResolver().Resolve(context.Background(), NewHTTPRequest(r, "", nil), w)

	assert.Equal(t, "abc", id)
	assert.Equal(t, "abc", w.Header().Get(HeaderRequestID))
}

func TestResolve_CarrierWinsOverOuterScope(t *testing.T) {
	res := NewResolver(WithGenerator(&seqGenerator{}))
	outer, err := xctx.WithRequestID(context.Background(), "zzz")
	require.NoError(t, err)

	t.Run("http", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(HeaderRequestID, "abc")
		w := httptest.NewRecorder()

		assert.Equal(t, "abc", res.Resolve(outer, NewHTTPRequest(r, "", nil), w))
		assert.Equal(t, "abc", r.Header.Get(HeaderRequestID))
		assert.Equal(t, "abc", w.Header().Get(HeaderRequestID))
	})

	t.Run("websocket", func(t *testing.T) {
		data := map[string]any{"headers": map[string]any{HeaderRequestID: "xyz"}}
		assert.Equal(t, "xyz", res.Resolve(outer, NewWSEvent(nil, "e", data), nil))
	})

	t.Run("rpc", func(t *testing.T) {
		call := NewRPCCall(metadata.Pairs(HeaderRequestID, "rpc-1"), "m", nil)
		assert.Equal(t, "rpc-1", res.Resolve(outer, call, nil))
	})
}

func TestResolve_OuterScopeFillsCarrier(t *testing.T) {
	gen := &seqGenerator{}
	res := NewResolver(WithGenerator(gen))
	outer, err := xctx.WithRequestID(context.Background(), "zzz")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	assert.Equal(t, "zzz", res.Resolve(outer, NewHTTPRequest(r, "", nil), w))
	assert.Equal(t, "zzz", r.Header.Get(HeaderRequestID), "写回入站头，请求与响应保持一致")
	assert.Equal(t, "zzz", w.Header().Get(HeaderRequestID))

	data := map[string]any{}
	assert.Equal(t, "zzz", res.Resolve(outer, NewWSEvent(nil, "e", data), nil))
	assert.Equal(t, map[string]any{HeaderRequestID: "zzz"}, data["headers"])

	call := NewRPCCall(metadata.MD{}, "m", nil)
	assert.Equal(t, "zzz", res.Resolve(outer, call, nil))
	assert.Equal(t, []string{"zzz"}, call.GetMap().Get(HeaderRequestID))

	assert.Zero(t, gen.n, "外层标识存在时不生成新标识")
}

func TestResolve_HTTPWithoutResponse(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	id := NewResolver(WithGenerator(&seqGenerator{})).Resolve(context.Background(), NewHTTPRequest(r, "", nil), nil)
	assert.Equal(t, "id-1", id)
	assert.Equal(t, "id-1", r.Header.Get(HeaderRequestID))
}

func TestResolve_Idempotent(t *testing.T) {
	gen := &seqGenerator{}
	res := NewResolver(WithGenerator(gen))

	// 载体上没有持久化位置（未知类型），依靠追踪作用域保证同一请求内不重复生成
	first := res.Resolve(context.Background(), 42, nil)
	xctx.RunTrace(context.Background(), xctx.TraceScope{RequestID: first}, func(ctx context.Context) {
		assert.Equal(t, first, res.Resolve(ctx, 42, nil))
		assert.Equal(t, first, res.Resolve(ctx, 42, nil))

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		assert.Equal(t, first, res.Resolve(ctx, NewHTTPRequest(r, "", nil), w))
		assert.Equal(t, first, w.Header().Get(HeaderRequestID))
	})
	assert.Equal(t, 1, gen.n)

	// HTTP 载体本身也保证幂等
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	req := NewHTTPRequest(r, "", nil)
	a := res.Resolve(context.Background(), req, nil)
	b := res.Resolve(context.Background(), req, nil)
	assert.Equal(t, a, b)
}

func TestResolve_WebSocket(t *testing.T) {
	res := NewResolver(WithGenerator(&seqGenerator{}))

	t.Run("carried id is reused", func(t *testing.T) {
		data := map[string]any{"headers": map[string]any{HeaderRequestID: "xyz"}}
		assert.Equal(t, "xyz", res.Resolve(context.Background(), NewWSEvent(nil, "e", data), nil))
	})

	t.Run("missing headers are created", func(t *testing.T) {
		data := map[string]any{"text": "hi"}
		id := res.Resolve(context.Background(), NewWSEvent(nil, "e", data), nil)
		headers, ok := data["headers"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, id, headers[HeaderRequestID])
	})

	t.Run("empty id is replaced", func(t *testing.T) {
		headers := map[string]string{HeaderRequestID: ""}
		data := map[string]any{"headers": headers}
		id := res.Resolve(context.Background(), NewWSEvent(nil, "e", data), nil)
		assert.NotEmpty(t, id)
		assert.Equal(t, id, headers[HeaderRequestID])
	})

	t.Run("absent payload is not persisted", func(t *testing.T) {
		ev := NewWSEvent(nil, "e", nil)
		a := res.Resolve(context.Background(), ev, nil)
		b := res.Resolve(context.Background(), ev, nil)
		assert.NotEqual(t, a, b)
		assert.Nil(t, ev.Data)
	})

	t.Run("non-object payload", func(t *testing.T) {
		ev := NewWSEvent(nil, "e", "plain text")
		assert.NotEmpty(t, res.Resolve(context.Background(), ev, nil))
		assert.Equal(t, "plain text", ev.Data)
	})
}

func TestResolve_RPC(t *testing.T) {
	t.Run("existing id", func(t *testing.T) {
		call := NewRPCCall(metadata.Pairs(HeaderRequestID, "rpc-1"), "m", nil)
		assert.Equal(t, "rpc-1", NewResolver().Resolve(context.Background(), call, nil))
	})

	t.Run("empty map without write back mints each time", func(t *testing.T) {
		res := NewResolver(WithGenerator(&seqGenerator{}), WithRPCWriteBack(false))
		call := NewRPCCall(metadata.MD{}, "m", nil)
		assert.Equal(t, "id-1", res.Resolve(context.Background(), call, nil))
		assert.Equal(t, "id-2", res.Resolve(context.Background(), call, nil))
		assert.Empty(t, call.GetMap())
	})

	t.Run("write back persists", func(t *testing.T) {
		res := NewResolver(WithGenerator(&seqGenerator{}))
		call := NewRPCCall(metadata.MD{}, "m", nil)
		assert.Equal(t, "id-1", res.Resolve(context.Background(), call, nil))
		assert.Equal(t, []string{"id-1"}, call.GetMap().Get(HeaderRequestID))
		assert.Equal(t, "id-1", res.Resolve(context.Background(), call, nil))
	})

	t.Run("nil map", func(t *testing.T) {
		res := NewResolver(WithGenerator(&seqGenerator{}))
		assert.Equal(t, "id-1", res.Resolve(context.Background(), shapeRPC{}, nil))
	})
}

func TestResolve_Unknown(t *testing.T) {
	res := NewResolver(WithGenerator(&seqGenerator{}))
	assert.Equal(t, "id-1", res.Resolve(context.Background(), nil, nil))
	assert.Equal(t, "id-2", res.Resolve(nil, struct{}{}, nil)) //nolint:staticcheck // nil ctx 容错

	var nilResolver *Resolver
	assert.NotEmpty(t, nilResolver.Resolve(context.Background(), nil, nil))
}
