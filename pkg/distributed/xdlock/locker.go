package xdlock

import "context"

// =============================================================================
// LockHandle - 锁持有凭证接口
// =============================================================================

// LockHandle 表示一次成功的锁获取。
//
// 每次 TryLock/Lock 成功都会返回一个新的 handle，内部封装了唯一标识。
// 通过 handle 进行 Unlock 和 Extend 操作，确保不同获取之间不会互相干扰：
// 持有 handle 即持有锁。
//
// # 使用模式
//
//	handle, err := factory.TryLock(ctx, "order:1001", xdlock.WithExpiry(10*time.Second))
//	if err != nil {
//	    return err // 锁服务异常
//	}
//	if handle == nil {
//	    return nil // 被其他实例持有，跳过执行
//	}
//	defer handle.Unlock(ctx)
type LockHandle interface {
	// Unlock 释放锁。
	//
	// 只释放本次获取的锁（check-then-delete），不会影响其他 goroutine
	// 或实例持有的锁。返回 [ErrNotLocked] 表示锁已过期或被其他获取覆盖。
	Unlock(ctx context.Context) error

	// Extend 续期锁，延长 TTL。续期时长使用创建锁时配置的 Expiry。
	//
	// 返回值：
	//   - nil: 锁状态正常
	//   - [ErrNotLocked]: 锁已过期、被释放或被其他获取覆盖
	//   - [ErrExtendFailed]: 续期操作失败（锁可能仍在，可重试）
	Extend(ctx context.Context) error

	// Key 返回锁的完整 key，用于日志记录等场景。
	Key() string
}

// Factory 定义锁工厂接口。
// 工厂管理底层连接，并提供锁操作。
type Factory interface {
	// TryLock 非阻塞式获取锁。
	//
	// 每次调用生成唯一标识。成功时返回 LockHandle，
	// 锁被其他实例持有时返回 (nil, nil)——这是正常情况而非错误。
	// err 非 nil 表示锁服务异常（如 Redis 不可用）。
	TryLock(ctx context.Context, key string, opts ...MutexOption) (LockHandle, error)

	// Lock 阻塞式获取锁。
	//
	// 会根据配置的重试策略进行重试，直到获取到锁或 context 取消/超时。
	//
	// 错误：
	//   - context.Canceled / context.DeadlineExceeded: context 结束
	//   - ErrLockFailed: 重试耗尽仍未获取到锁
	Lock(ctx context.Context, key string, opts ...MutexOption) (LockHandle, error)

	// Close 关闭工厂，释放底层资源。
	// 关闭后不应再创建新的锁实例；已持有的 handle 仍可 Unlock。
	Close() error

	// Health 健康检查，验证底层连接是否正常。
	Health(ctx context.Context) error
}
