package xconf

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultDebounce 是文件变更的默认防抖时间。
const defaultDebounce = 100 * time.Millisecond

// WatchCallback 在配置文件变更并重载后调用，err 表示重载是否成功。
type WatchCallback func(cfg Config, err error)

// WatchOption 定义监视器配置选项。
type WatchOption func(*watchOptions)

type watchOptions struct {
	debounce time.Duration
}

// WithDebounce 设置防抖时间：窗口内的多次变更只触发一次重载。
// 默认值：100ms。
func WithDebounce(d time.Duration) WatchOption {
	return func(o *watchOptions) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// Watcher 监视配置文件变更并自动重载。
type Watcher struct {
	cfg      *fileConfig
	fs       *fsnotify.Watcher
	callback WatchCallback
	debounce time.Duration
	ctx      context.Context
	cancel   context.CancelFunc

	mu      sync.Mutex
	running bool
	timer   *time.Timer
}

// Watch 创建配置文件监视器。
//
// 监视配置文件所在目录而非文件本身：编辑器保存时可能先删除再创建
// （或写临时文件后 rename），直接监视文件会丢失事件。
// 从字节数据创建的 Config 返回 ErrWatchUnsupported。
// 返回的 Watcher 需调用 StartAsync（或 Start）开始监视，Stop 停止。
func Watch(cfg Config, callback WatchCallback, opts ...WatchOption) (*Watcher, error) {
	fc, ok := cfg.(*fileConfig)
	if !ok {
		return nil, fmt.Errorf("%w: unknown config implementation", ErrWatchUnsupported)
	}
	if fc.path == "" {
		return nil, ErrWatchUnsupported
	}

	o := watchOptions{debounce: defaultDebounce}
	for _, opt := range opts {
		opt(&o)
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("xconf: create watcher: %w", err)
	}
	dir := filepath.Dir(fc.path)
	if err := fs.Add(dir); err != nil {
		closeErr := fs.Close()
		return nil, errors.Join(fmt.Errorf("xconf: watch directory %s: %w", dir, err), closeErr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		cfg:      fc,
		fs:       fs,
		callback: callback,
		debounce: o.debounce,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start 启动监视循环并阻塞，通常在 goroutine 中调用。幂等。
func (w *Watcher) Start() {
	if !w.markRunning() {
		return
	}
	w.run()
}

// StartAsync 在后台 goroutine 中启动监视，立即返回。幂等。
func (w *Watcher) StartAsync() {
	if !w.markRunning() {
		return
	}
	go w.run()
}

func (w *Watcher) markRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return false
	}
	w.running = true
	return true
}

// Stop 停止监视并释放文件监视资源。返回后不再触发回调。幂等。
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// 先停掉防抖定时器，防止 Stop 之后仍触发重载回调
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}

	w.cancel()
	w.running = false
	// fsnotify 的 Close 是幂等的，未 Start 也需要释放
	return w.fs.Close()
}

func (w *Watcher) run() {
	filename := filepath.Base(w.cfg.path)

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(event, filename)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			if w.callback != nil {
				w.callback(w.cfg, fmt.Errorf("xconf: watch error: %w", err))
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event, filename string) {
	if filepath.Base(event.Name) != filename {
		return
	}
	// Write 直接修改；Create/Rename 覆盖编辑器的原子写入模式
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.ctx.Done():
			return
		default:
		}

		err := w.cfg.Reload()
		if w.callback != nil {
			w.callback(w.cfg, err)
		}
	})
}
