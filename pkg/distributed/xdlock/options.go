package xdlock

import (
	"strings"
	"time"
)

// validateKey 验证锁 key 是否有效。
func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	return nil
}

// =============================================================================
// Mutex 选项（redsync 工厂用）
// =============================================================================

// MutexOption 定义锁实例的配置选项。
type MutexOption func(*mutexOptions)

// mutexOptions 锁实例配置。
type mutexOptions struct {
	KeyPrefix  string        // Key 前缀，默认 "lock:"
	Expiry     time.Duration // 过期时间，默认 8s
	Tries      int           // 重试次数，默认 32
	RetryDelay time.Duration // 重试延迟，默认 200ms
}

// defaultMutexOptions 返回默认的锁实例配置。
func defaultMutexOptions() *mutexOptions {
	return &mutexOptions{
		KeyPrefix:  "lock:",
		Expiry:     8 * time.Second,
		Tries:      32,
		RetryDelay: 200 * time.Millisecond,
	}
}

// WithKeyPrefix 设置锁 key 的前缀。
// 最终 key = prefix + key。默认值："lock:"。
func WithKeyPrefix(prefix string) MutexOption {
	return func(o *mutexOptions) {
		o.KeyPrefix = prefix
	}
}

// WithExpiry 设置锁的过期时间。
// 默认值：8 秒。
//
// 注意：过期时间应大于业务执行时间，否则需要调用 Extend() 续期。
func WithExpiry(d time.Duration) MutexOption {
	return func(o *mutexOptions) {
		if d > 0 {
			o.Expiry = d
		}
	}
}

// WithTries 设置阻塞式 Lock 的最大尝试次数。
// 默认值：32。设置为 1 表示不重试（等价于 TryLock）。
func WithTries(n int) MutexOption {
	return func(o *mutexOptions) {
		if n > 0 {
			o.Tries = n
		}
	}
}

// WithRetryDelay 设置每次重试前的等待时间。
// 默认值：200ms。
func WithRetryDelay(d time.Duration) MutexOption {
	return func(o *mutexOptions) {
		if d > 0 {
			o.RetryDelay = d
		}
	}
}

// =============================================================================
// SimpleLock 选项
// =============================================================================

// SimpleOption 定义 SimpleLock 的配置选项。
type SimpleOption func(*simpleOptions)

type simpleOptions struct {
	KeyPrefix string // Key 前缀，默认 "lock:"
}

func defaultSimpleOptions() *simpleOptions {
	return &simpleOptions{
		KeyPrefix: "lock:",
	}
}

// WithSimpleKeyPrefix 设置 SimpleLock key 的前缀。
// 最终 key = prefix + key。默认值："lock:"。
func WithSimpleKeyPrefix(prefix string) SimpleOption {
	return func(o *simpleOptions) {
		o.KeyPrefix = prefix
	}
}
