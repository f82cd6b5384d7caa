package xtrace

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xreqtrace/pkg/context/xctx"
)

func TestPropagator_OpensHeaderScope(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Tenant-ID", "t1")

	var inside xctx.Headers
	err := NewPropagator().Do(context.Background(), NewHTTPRequest(r, "", nil), nil, func(ctx context.Context) error {
		inside = xctx.HeadersOf(ctx)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "t1", inside.Get("x-tenant-id"))
}

func TestPropagator_ScopeEndsWithCall(t *testing.T) {
	ctx := context.Background()
	_ = NewPropagator().Do(ctx, NewWSEvent(http.Header{"A": {"1"}}, "e", nil), nil, func(context.Context) error { return nil })
	_, ok := xctx.Propagation(ctx)
	assert.False(t, ok)
}

func TestPropagator_ForwardsErrorsOnce(t *testing.T) {
	p := NewPropagator()
	cause := errors.New("x")

	var got []error
	p.Use(context.Background(), nil, nil, func(_ context.Context, done Continuation) error {
		done(cause)
		return errors.New("second")
	}, func(err error) { got = append(got, err) })
	require.Len(t, got, 1)
	assert.Same(t, cause, got[0])

	err := p.Do(context.Background(), nil, nil, func(context.Context) error { panic("p") })
	assert.ErrorIs(t, err, ErrPanic)
	_, hasMeta := MetaOf(err)
	assert.False(t, hasMeta, "传播中间件不附加 ErrorMeta")
}

func TestPipeline_Order(t *testing.T) {
	tr := NewTracer(WithLogger(discardLogger(t)))
	pl := NewPipeline(NewPropagator(), tr)

	data := map[string]any{"headers": map[string]any{HeaderRequestID: "xyz", "x-tenant-id": "t9"}}
	err := pl.Do(context.Background(), NewWSEvent(nil, "e", data), nil, func(ctx context.Context) error {
		assert.Equal(t, "xyz", xctx.RequestID(ctx))
		assert.Equal(t, "t9", xctx.Header(ctx, "x-tenant-id"))
		return nil
	})
	require.NoError(t, err)
}

func TestPipeline_Partial(t *testing.T) {
	var nilPipeline *Pipeline
	assert.NoError(t, nilPipeline.Do(context.Background(), nil, nil, func(context.Context) error { return nil }))

	onlyTracer := NewPipeline(nil, NewTracer(WithLogger(discardLogger(t))))
	err := onlyTracer.Do(context.Background(), nil, nil, func(context.Context) error { return errors.New("x") })
	_, ok := MetaOf(err)
	assert.True(t, ok)

	onlyPropagator := NewPipeline(NewPropagator(), nil)
	err = onlyPropagator.Do(context.Background(), nil, nil, func(context.Context) error { return errors.New("y") })
	assert.EqualError(t, err, "y")
}
