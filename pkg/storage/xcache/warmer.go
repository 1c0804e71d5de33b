package xcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const defaultWarmTimeout = 30 * time.Second

// warmEntry 是一条注册的预热项。
type warmEntry struct {
	keyPrefix  string
	id         string
	logicalTTL time.Duration
}

// WarmerOption 定义 Warmer 可选配置函数类型。
type WarmerOption func(*warmerOptions)

type warmerOptions struct {
	warmTimeout time.Duration
}

// WithWarmTimeout 设置单轮预热的超时。
// 默认值：30 秒。
func WithWarmTimeout(d time.Duration) WarmerOption {
	return func(o *warmerOptions) {
		if d > 0 {
			o.warmTimeout = d
		}
	}
}

// Warmer 按 cron 计划对注册的 key 做逻辑过期预热。
//
// 逻辑过期策略要求信封在读取前已经存在（GetWithLogicalExpire 对缺失
// 信封直接返回 ErrNotFound），Warmer 负责该预热：周期性地对每个注册项
// 调用回源函数并以 SetWithLogicalExpire 写入。
type Warmer[T any] struct {
	client   *Client[T]
	cron     *cron.Cron
	schedule string
	timeout  time.Duration

	mu      sync.Mutex
	entries []warmEntry
	started bool
}

// NewWarmer 创建 Warmer。schedule 使用标准五段 cron 表达式，
// 也支持 @every、@hourly 等描述符。
func NewWarmer[T any](client *Client[T], schedule string, opts ...WarmerOption) (*Warmer[T], error) {
	if client == nil {
		return nil, ErrNilCache
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}

	o := warmerOptions{warmTimeout: defaultWarmTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	return &Warmer[T]{
		client:   client,
		cron:     cron.New(),
		schedule: schedule,
		timeout:  o.warmTimeout,
	}, nil
}

// Register 注册一条预热项。可在 Start 之后调用，下一轮生效。
func (w *Warmer[T]) Register(keyPrefix, id string, logicalTTL time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, warmEntry{
		keyPrefix:  keyPrefix,
		id:         id,
		logicalTTL: logicalTTL,
	})
}

// WarmNow 立即执行一轮预热。
// 单条失败不中断其余条目，所有失败经 errors.Join 合并返回。
func (w *Warmer[T]) WarmNow(ctx context.Context) error {
	w.mu.Lock()
	entries := make([]warmEntry, len(w.entries))
	copy(entries, w.entries)
	w.mu.Unlock()

	var errs []error
	for _, e := range entries {
		if err := w.warmOne(ctx, e); err != nil {
			errs = append(errs, fmt.Errorf("warm %s%s: %w", e.keyPrefix, e.id, err))
		}
	}
	return errors.Join(errs...)
}

func (w *Warmer[T]) warmOne(ctx context.Context, e warmEntry) error {
	value, err := w.client.loader(ctx, e.id)
	if err != nil {
		return err
	}
	return w.client.SetWithLogicalExpire(ctx, e.keyPrefix+e.id, value, e.logicalTTL)
}

// Start 启动 cron 调度。幂等。
func (w *Warmer[T]) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return nil
	}

	_, err := w.cron.AddFunc(w.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		defer cancel()
		if warmErr := w.WarmNow(ctx); warmErr != nil {
			w.client.log().Warn("xcache: warm cycle failed", "error", warmErr)
		}
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}

	w.cron.Start()
	w.started = true
	return nil
}

// Stop 停止 cron 调度并等待进行中的预热轮次结束。幂等。
func (w *Warmer[T]) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	// 等待前必须放锁：进行中的 WarmNow 需要拿锁拷贝条目
	w.mu.Unlock()

	<-w.cron.Stop().Done()
}
