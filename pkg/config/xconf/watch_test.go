package xconf

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := writeFile(t, "config.yaml", testYAML)
	cfg, err := New(path)
	require.NoError(t, err)

	reloaded := make(chan error, 4)
	w, err := Watch(cfg, func(_ Config, err error) {
		reloaded <- err
	}, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	w.StartAsync()
	defer func() { assert.NoError(t, w.Stop()) }()

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: error\n"), 0o600))

	select {
	case err := <-reloaded:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("未收到重载回调")
	}
	assert.Equal(t, "error", cfg.Client().String("log.level"))
}

func TestWatch_IgnoresOtherFiles(t *testing.T) {
	path := writeFile(t, "config.yaml", testYAML)
	cfg, err := New(path)
	require.NoError(t, err)

	var mu sync.Mutex
	calls := 0
	w, err := Watch(cfg, func(Config, error) {
		mu.Lock()
		calls++
		mu.Unlock()
	}, WithDebounce(10*time.Millisecond))
	require.NoError(t, err)
	w.StartAsync()

	other := filepath.Join(filepath.Dir(path), "other.yaml")
	require.NoError(t, os.WriteFile(other, []byte("x: 1"), 0o600))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, w.Stop())

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, calls)
}

func TestWatch_Errors(t *testing.T) {
	cfg, err := NewFromBytes([]byte(testYAML), FormatYAML)
	require.NoError(t, err)
	_, err = Watch(cfg, nil)
	assert.ErrorIs(t, err, ErrNotReloadable)

	_, err = Watch(nil, nil)
	assert.Error(t, err)
}

func TestWatch_StopIsIdempotent(t *testing.T) {
	cfg, err := New(writeFile(t, "config.yaml", testYAML))
	require.NoError(t, err)
	w, err := Watch(cfg, nil)
	require.NoError(t, err)

	require.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
	w.StartAsync()
}

func TestWatch_StopFromCallback(t *testing.T) {
	path := writeFile(t, "config.yaml", testYAML)
	cfg, err := New(path)
	require.NoError(t, err)

	stopped := make(chan struct{})
	var w *Watcher
	w, err = Watch(cfg, func(Config, error) {
		_ = w.Stop()
		close(stopped)
	}, WithDebounce(10*time.Millisecond))
	require.NoError(t, err)
	w.StartAsync()

	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o600))
	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		_ = w.Stop()
		t.Fatal("回调未触发")
	}
	<-w.done
}
