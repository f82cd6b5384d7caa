package xlog_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xreqtrace/pkg/context/xctx"
	"github.com/omeyang/xreqtrace/pkg/observability/xlog"
	"github.com/omeyang/xreqtrace/pkg/observability/xrotate"
)

func testCleanup(t *testing.T, cleanup func() error) {
	t.Helper()
	t.Cleanup(func() {
		if err := cleanup(); err != nil {
			t.Errorf("cleanup error: %v", err)
		}
	})
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger, cleanup, err := xlog.New().
		SetOutput(&buf).
		SetFormat("json").
		SetLevel(xlog.LevelTrace).
		Build()
	require.NoError(t, err)
	testCleanup(t, cleanup)

	ctx := context.Background()
	logger.Trace(ctx, "t")
	logger.Debug(ctx, "d")
	logger.Info(ctx, "i")
	logger.Warn(ctx, "w")
	logger.Error(ctx, "e")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 5)
	want := []string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR"}
	for i, l := range lines {
		assert.Equal(t, want[i], l["level"])
	}
}

func TestLogger_TraceFilteredAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, cleanup, err := xlog.New().SetOutput(&buf).Build()
	require.NoError(t, err)
	testCleanup(t, cleanup)

	logger.Trace(context.Background(), "hidden")
	assert.Empty(t, buf.String())
	assert.False(t, logger.Enabled(context.Background(), xlog.LevelTrace))

	logger.SetLevel(xlog.LevelTrace)
	assert.Equal(t, xlog.LevelTrace, logger.GetLevel())
	logger.Trace(context.Background(), "shown")
	assert.Contains(t, buf.String(), "level=TRACE")
}

func TestLogger_EnrichRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger, cleanup, err := xlog.New().SetOutput(&buf).SetFormat("json").Build()
	require.NoError(t, err)
	testCleanup(t, cleanup)

	xctx.RunTrace(context.Background(), xctx.TraceScope{RequestID: "rid-1"}, func(ctx context.Context) {
		logger.Info(ctx, "inside")
	})
	logger.Info(context.Background(), "outside")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "rid-1", lines[0][xlog.KeyRequestID])
	assert.NotContains(t, lines[1], xlog.KeyRequestID)
}

func TestLogger_WithAndGroup(t *testing.T) {
	var buf bytes.Buffer
	logger, cleanup, err := xlog.New().
		SetOutput(&buf).
		SetFormat("json").
		SetEnrich(false).
		SetAttrs(slog.String("service", "svc")).
		Build()
	require.NoError(t, err)
	testCleanup(t, cleanup)

	assert.Same(t, logger, logger.With())
	assert.Same(t, logger, logger.WithGroup(""))

	logger.With(slog.String("k", "v")).WithGroup("g").Info(context.Background(), "m", slog.Int("n", 1))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "svc", lines[0]["service"])
	assert.Equal(t, "v", lines[0]["k"])
	assert.Equal(t, map[string]any{"n": float64(1)}, lines[0]["g"])
}

func TestLogger_Stack(t *testing.T) {
	var buf bytes.Buffer
	logger, cleanup, err := xlog.New().SetOutput(&buf).SetFormat("json").Build()
	require.NoError(t, err)
	testCleanup(t, cleanup)

	logger.Stack(context.Background(), "boom")
	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0][xlog.KeyStack], "goroutine")
}

func TestBuilder_Errors(t *testing.T) {
	_, _, err := xlog.New().SetLevelString("loud").Build()
	assert.Error(t, err)

	_, _, err = xlog.New().SetFormat("xml").Build()
	assert.Error(t, err)

	_, _, err = xlog.New().SetOutput(nil).Build()
	assert.Error(t, err)

	_, _, err = xlog.New().SetRotation("").Build()
	assert.ErrorIs(t, err, xrotate.ErrEmptyFilename)
}

func TestBuilder_ReplaceAttrRunsAfterLevelName(t *testing.T) {
	var buf bytes.Buffer
	var sawTrace atomic.Bool
	logger, cleanup, err := xlog.New().
		SetOutput(&buf).
		SetLevel(xlog.LevelTrace).
		SetReplaceAttr(func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey && a.Value.String() == "TRACE" {
				sawTrace.Store(true)
			}
			if a.Key == "secret" {
				return slog.String("secret", "***")
			}
			return a
		}).
		Build()
	require.NoError(t, err)
	testCleanup(t, cleanup)

	logger.Trace(context.Background(), "m", slog.String("secret", "pw"))
	assert.True(t, sawTrace.Load())
	assert.Contains(t, buf.String(), "secret=***")
}

func TestBuilder_Rotation(t *testing.T) {
	file := filepath.Join(t.TempDir(), "logs", "app.log")
	logger, cleanup, err := xlog.New().SetRotation(file, xrotate.WithMaxSize(1)).Build()
	require.NoError(t, err)

	logger.Info(context.Background(), "to file")
	require.NoError(t, cleanup())
	require.NoError(t, cleanup())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestLogger_OnError(t *testing.T) {
	var calls atomic.Int32
	logger, cleanup, err := xlog.New().
		SetOutput(failingWriter{}).
		SetOnError(func(error) {
			calls.Add(1)
			panic("callback panics")
		}).
		Build()
	require.NoError(t, err)
	testCleanup(t, cleanup)

	assert.NotPanics(t, func() { logger.Info(context.Background(), "x") })
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, uint64(2), xlog.ErrorCount(logger))
}

func TestParseLevel(t *testing.T) {
	tests := map[string]xlog.Level{
		"trace": xlog.LevelTrace, " DEBUG ": xlog.LevelDebug, "info": xlog.LevelInfo,
		"warning": xlog.LevelWarn, "Error": xlog.LevelError,
	}
	for in, want := range tests {
		got, err := xlog.ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := xlog.ParseLevel("nope")
	assert.Error(t, err)

	var l xlog.Level
	require.NoError(t, l.UnmarshalText([]byte("trace")))
	text, err := l.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "TRACE", string(text))
	assert.Equal(t, "INFO+2", xlog.Level(2).String())
}

func TestAttrs(t *testing.T) {
	assert.Equal(t, slog.Attr{}, xlog.Err(nil))
	assert.Equal(t, "boom", xlog.Err(errors.New("boom")).Value.String())
	assert.Equal(t, xlog.KeyComponent, xlog.Component("tracer").Key)
}

func TestNewEnrichHandler_Nil(t *testing.T) {
	_, err := xlog.NewEnrichHandler(nil)
	assert.ErrorIs(t, err, xlog.ErrNilHandler)
}
