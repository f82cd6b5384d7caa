package xconf

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchCallback 配置文件变更回调，err 为重载结果。
type WatchCallback func(cfg Config, err error)

// WatchOption 监视器选项。
type WatchOption func(*watchOptions)

type watchOptions struct {
	debounce time.Duration
}

// WithDebounce 设置防抖时间，窗口内的多次变更只触发一次重载。默认 100ms。
func WithDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// k8sDataLink 是 ConfigMap 卷原子切换时变化的符号链接名。
const k8sDataLink = "..data"

// Watcher 监视配置文件变更并自动重载。
// 回调在监视 goroutine 中串行执行。
type Watcher struct {
	cfg      *koanfConfig
	fsw      *fsnotify.Watcher
	callback WatchCallback
	debounce time.Duration

	stop        chan struct{}
	done        chan struct{}
	started     atomic.Bool
	dispatching atomic.Bool
	stopOnce    sync.Once
}

// Watch 为从文件创建的 cfg 创建监视器。
// 监视文件所在目录，以覆盖编辑器先删除再创建以及 rename 替换的写入方式。
// 返回的 Watcher 需调用 Start 或 StartAsync 开始监视。
func Watch(cfg Config, callback WatchCallback, opts ...WatchOption) (*Watcher, error) {
	kc, ok := cfg.(*koanfConfig)
	if !ok {
		return nil, fmt.Errorf("xconf: unsupported config type %T", cfg)
	}
	if kc.isBytes {
		return nil, ErrNotReloadable
	}

	o := &watchOptions{debounce: 100 * time.Millisecond}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("xconf: create watcher: %w", err)
	}
	dir := filepath.Dir(kc.path)
	if err := fsw.Add(dir); err != nil {
		return nil, errors.Join(
			fmt.Errorf("xconf: watch directory %s: %w", dir, err),
			fsw.Close(),
		)
	}

	return &Watcher{
		cfg:      kc,
		fsw:      fsw,
		callback: callback,
		debounce: o.debounce,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start 在当前 goroutine 中运行监视循环，直到 Stop。重复调用无效果。
func (w *Watcher) Start() {
	if w.started.CompareAndSwap(false, true) {
		w.run()
	}
}

// StartAsync 在后台 goroutine 中运行监视循环。
func (w *Watcher) StartAsync() {
	if w.started.CompareAndSwap(false, true) {
		go w.run()
	}
}

// Stop 停止监视并释放 fsnotify 资源。
// 在回调之外调用时等待监视循环退出；在回调中调用不会死锁。
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stop)
		err = w.fsw.Close()
		if w.started.Load() && !w.dispatching.Load() {
			<-w.done
		}
	})
	return err
}

func (w *Watcher) run() {
	defer close(w.done)

	filename := filepath.Base(w.cfg.path)
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.stop:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !relevant(event, filename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.dispatch(fmt.Errorf("xconf: watch error: %w", err))

		case <-fire:
			fire = nil
			w.dispatch(w.cfg.Reload())
		}
	}
}

func (w *Watcher) dispatch(err error) {
	select {
	case <-w.stop:
		return
	default:
	}
	if w.callback == nil {
		return
	}
	w.dispatching.Store(true)
	defer w.dispatching.Store(false)
	w.callback(w.cfg, err)
}

// relevant 判断事件是否可能代表配置内容变化。
// Write 为原地修改，Create 与 Rename 覆盖原子替换写入。
func relevant(event fsnotify.Event, filename string) bool {
	base := filepath.Base(event.Name)
	if base != filename && base != k8sDataLink {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}
