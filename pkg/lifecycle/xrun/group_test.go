package xrun

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withSignalSource 用 ch 代替真实的系统信号。
func withSignalSource(ch <-chan os.Signal) Option {
	return func(o *groupOptions) {
		o.signalSource = func(context.Context, []os.Signal) (<-chan os.Signal, func()) {
			return ch, func() {}
		}
	}
}

func blockUntilDone(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestGroup_FirstErrorCancelsOthers(t *testing.T) {
	boom := errors.New("boom")
	g, _ := NewGroup(context.Background())

	var canceled atomic.Bool
	g.Go(func(ctx context.Context) error {
		err := blockUntilDone(ctx)
		canceled.Store(true)
		return err
	})
	g.Go(func(context.Context) error { return boom })

	assert.ErrorIs(t, g.Wait(), boom)
	assert.True(t, canceled.Load())
}

func TestGroup_CancelCause(t *testing.T) {
	cause := errors.New("shutdown requested")
	g, _ := NewGroup(context.Background())
	g.GoWithName("worker", blockUntilDone)

	g.Cancel(cause)
	assert.ErrorIs(t, g.Wait(), cause)
}

func TestGroup_PlainCancelIsNil(t *testing.T) {
	g, _ := NewGroup(context.Background())
	g.Go(blockUntilDone)
	g.Cancel(nil)
	assert.NoError(t, g.Wait())
}

func TestGroup_ServiceCanceledWithoutGroupCancel(t *testing.T) {
	g, _ := NewGroup(context.Background())
	g.Go(func(context.Context) error { return context.Canceled })
	assert.ErrorIs(t, g.Wait(), context.Canceled)
}

func TestGroup_NilFunc(t *testing.T) {
	//nolint:staticcheck // nil ctx 归一化
	g, ctx := NewGroup(nil, nil)
	require.NotNil(t, ctx)
	g.Go(nil)
	assert.ErrorIs(t, g.Wait(), ErrNilFunc)

	g, _ = NewGroup(context.Background())
	g.GoWithName("nil", nil)
	assert.ErrorIs(t, g.Wait(), ErrNilFunc)
}

func TestRun_SignalStopsServices(t *testing.T) {
	sigs := make(chan os.Signal, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- RunWithOptions(context.Background(), []Option{withSignalSource(sigs), WithName("test")}, blockUntilDone)
	}()

	sigs <- syscall.SIGTERM
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, ErrSignal)
		var sigErr *SignalError
		require.ErrorAs(t, err, &sigErr)
		assert.Equal(t, syscall.SIGTERM, sigErr.Signal)
	case <-time.After(3 * time.Second):
		t.Fatal("Run 未在信号后返回")
	}
}

func TestRunServices_ParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- RunServicesWithOptions(ctx, []Option{withSignalSource(make(chan os.Signal))},
			ServiceFunc(blockUntilDone),
			NamedService{Name: "named", Service: ServiceFunc(blockUntilDone)},
		)
	}()
	cancel()
	assert.NoError(t, <-errCh)
}

func TestRunServices_NilService(t *testing.T) {
	err := RunServicesWithOptions(context.Background(), []Option{WithoutSignalHandler()}, nil)
	assert.ErrorIs(t, err, ErrNilService)

	err = RunServicesWithOptions(context.Background(), []Option{WithoutSignalHandler()}, NamedService{Name: "x"})
	assert.ErrorIs(t, err, ErrNilService)
}

func TestSignalError(t *testing.T) {
	assert.Equal(t, "xrun: received signal <nil>", (&SignalError{}).Error())
	assert.Contains(t, (&SignalError{Signal: syscall.SIGINT}).Error(), "interrupt")
	assert.Len(t, DefaultSignals(), 4)
}
