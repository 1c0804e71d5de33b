package xcache

import (
	"log/slog"
	"strings"
	"time"
)

const (
	// defaultNullTTL 是空值墓碑的 TTL。
	// 刻意短于正常数据 TTL：墓碑只为挡住穿透流量，源数据随后出现时
	// 最多延迟一个墓碑周期可见。
	defaultNullTTL = 2 * time.Minute

	// defaultLockTTL 是重建锁的 TTL，用于防止崩溃的重建方永久持锁。
	defaultLockTTL = 10 * time.Second

	// defaultMutexRetries 是互斥重建的最大重试次数。
	defaultMutexRetries = 20

	// defaultMutexBackoff 是锁竞争失败后的固定退避时间。
	defaultMutexBackoff = 50 * time.Millisecond

	// defaultRebuildTimeout 是异步重建任务的独立超时。
	// 重建发生在调用方返回之后，必须有独立上限防止 Redis 挂起时
	// worker 永久阻塞。
	defaultRebuildTimeout = 30 * time.Second

	defaultRebuildWorkers   = 4
	defaultRebuildQueueSize = 1024
)

// Option 定义 Client 可选配置函数类型。
type Option func(*options)

type options struct {
	nullTTL          time.Duration
	lockTTL          time.Duration
	mutexRetries     int
	mutexBackoff     time.Duration
	rebuildWorkers   int
	rebuildQueueSize int
	rebuildTimeout   time.Duration
	logger           *slog.Logger
	now              func() time.Time
}

func defaultOptions() options {
	return options{
		nullTTL:          defaultNullTTL,
		lockTTL:          defaultLockTTL,
		mutexRetries:     defaultMutexRetries,
		mutexBackoff:     defaultMutexBackoff,
		rebuildWorkers:   defaultRebuildWorkers,
		rebuildQueueSize: defaultRebuildQueueSize,
		rebuildTimeout:   defaultRebuildTimeout,
		logger:           slog.Default(),
		now:              time.Now,
	}
}

// WithNullTTL 设置空值墓碑的 TTL。
// 默认值：2 分钟。非正值将被忽略。
func WithNullTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.nullTTL = d
		}
	}
}

// WithLockTTL 设置重建锁的 TTL。
// 默认值：10 秒。应大于一次回源 + 缓存写入的最坏耗时。
func WithLockTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.lockTTL = d
		}
	}
}

// WithMutexRetries 设置 GetWithMutex 在锁竞争下的最大重试次数。
// 默认值：20。重试耗尽返回 ErrLockFailed。
func WithMutexRetries(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.mutexRetries = n
		}
	}
}

// WithMutexBackoff 设置每次重试前的固定等待时间。
// 默认值：50ms。
func WithMutexBackoff(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.mutexBackoff = d
		}
	}
}

// WithRebuildWorkers 设置异步重建 worker 数量。
// 默认值：4。
func WithRebuildWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.rebuildWorkers = n
		}
	}
}

// WithRebuildQueueSize 设置异步重建任务队列大小。
// 默认值：1024。队列满时重建任务被丢弃（调用方已拿到陈旧数据，
// 下一个过期读会重新触发）。
func WithRebuildQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.rebuildQueueSize = n
		}
	}
}

// WithRebuildTimeout 设置单个异步重建任务的超时。
// 默认值：30 秒。
func WithRebuildTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.rebuildTimeout = d
		}
	}
}

// WithLogger 设置自定义日志记录器。
// 默认使用 slog.Default()。传入 nil 将被忽略。
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// withNow 注入时钟，仅测试使用。
func withNow(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// validateKeyPart 验证 key 组成部分非空。
func validateKeyPart(s string) error {
	if strings.TrimSpace(s) == "" {
		return ErrEmptyKey
	}
	return nil
}
