package xdlock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/go-redsync/redsync/v4"
	rsredis "github.com/go-redsync/redsync/v4/redis"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// =============================================================================
// Redis 工厂实现（redsync）
// =============================================================================

// redisFactory 实现 Factory 接口。
type redisFactory struct {
	clients []redis.UniversalClient
	rs      *redsync.Redsync
	closed  atomic.Bool
}

// NewRedisFactory 创建基于 redsync 的 Redis 锁工厂。
// 单节点为标准 Redis 锁；多节点使用 Redlock 算法（需过半成功）。
//
// 与 [SimpleLock] 不同，此工厂创建的锁在释放时校验 owner token
// （check-then-delete），不会误删其他持有者的锁。
func NewRedisFactory(clients ...redis.UniversalClient) (Factory, error) {
	if len(clients) == 0 {
		return nil, ErrNilClient
	}

	for i, client := range clients {
		if client == nil {
			return nil, errors.Join(ErrNilClient, errors.New("client at index "+strconv.Itoa(i)+" is nil"))
		}
	}

	pools := make([]rsredis.Pool, len(clients))
	for i, client := range clients {
		pools[i] = goredis.NewPool(client)
	}

	return &redisFactory{
		clients: clients,
		rs:      redsync.New(pools...),
	}, nil
}

// TryLock 非阻塞式获取锁，返回 LockHandle。
func (f *redisFactory) TryLock(ctx context.Context, key string, opts ...MutexOption) (LockHandle, error) {
	if f.closed.Load() {
		return nil, ErrFactoryClosed
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}

	mutex, fullKey := f.createMutex(key, opts...)

	if err := mutex.TryLockContext(ctx); err != nil {
		err = wrapRedsyncError(err)
		if errors.Is(err, ErrLockHeld) {
			return nil, nil // 锁被占用，返回 (nil, nil)
		}
		return nil, err
	}

	return &redisLockHandle{
		mutex: mutex,
		key:   fullKey,
	}, nil
}

// Lock 阻塞式获取锁，返回 LockHandle。
func (f *redisFactory) Lock(ctx context.Context, key string, opts ...MutexOption) (LockHandle, error) {
	if f.closed.Load() {
		return nil, ErrFactoryClosed
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}

	mutex, fullKey := f.createMutex(key, opts...)

	if err := mutex.LockContext(ctx); err != nil {
		// redsync 不会传递 context 错误，需要单独检查
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, wrapRedsyncError(err)
	}

	return &redisLockHandle{
		mutex: mutex,
		key:   fullKey,
	}, nil
}

// createMutex 创建 redsync.Mutex，返回 mutex 和完整 key（含前缀）。
func (f *redisFactory) createMutex(key string, opts ...MutexOption) (*redsync.Mutex, string) {
	options := defaultMutexOptions()
	for _, opt := range opts {
		opt(options)
	}

	fullKey := options.KeyPrefix + key

	return f.rs.NewMutex(fullKey,
		redsync.WithExpiry(options.Expiry),
		redsync.WithTries(options.Tries),
		redsync.WithRetryDelay(options.RetryDelay),
	), fullKey
}

// Close 关闭工厂。
// 不会关闭传入的 Redis 客户端，客户端的生命周期由调用者管理。
func (f *redisFactory) Close() error {
	f.closed.Store(true)
	return nil
}

// Health 健康检查：对所有 Redis 节点执行 PING。
func (f *redisFactory) Health(ctx context.Context) error {
	if f.closed.Load() {
		return ErrFactoryClosed
	}

	for _, client := range f.clients {
		if err := client.Ping(ctx).Err(); err != nil {
			return err
		}
	}

	return nil
}

// =============================================================================
// Redis LockHandle 实现
// =============================================================================

// redisLockHandle 实现 LockHandle 接口。
// 每次成功获取锁时创建，封装了唯一的锁标识。
type redisLockHandle struct {
	mutex *redsync.Mutex
	key   string
}

// Unlock 释放锁。工厂关闭后仍可解锁，避免锁悬挂等待 TTL 过期。
func (h *redisLockHandle) Unlock(ctx context.Context) error {
	ok, err := h.mutex.UnlockContext(ctx)
	if err != nil {
		wrapped := wrapRedsyncError(err)
		if errors.Is(wrapped, ErrLockExpired) {
			return ErrNotLocked
		}
		return wrapped
	}
	if !ok {
		return ErrNotLocked
	}
	return nil
}

// Extend 续期锁，续期时长为创建时配置的 Expiry。
func (h *redisLockHandle) Extend(ctx context.Context) error {
	ok, err := h.mutex.ExtendContext(ctx)
	if err != nil {
		wrapped := wrapRedsyncError(err)
		if errors.Is(wrapped, ErrLockExpired) {
			return ErrNotLocked
		}
		return wrapped
	}
	if !ok {
		return ErrNotLocked
	}
	return nil
}

// Key 返回锁的完整 key。
func (h *redisLockHandle) Key() string {
	return h.key
}

// =============================================================================
// 错误转换
// =============================================================================

// wrapRedsyncError 将 redsync 错误转换为 xdlock 错误，保留原始错误链。
func wrapRedsyncError(err error) error {
	if err == nil {
		return nil
	}

	// context 错误保持原样（用于取消和超时场景）
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	// ErrTaken 是结构体类型，需要使用 errors.As 检查
	var errTaken *redsync.ErrTaken
	if errors.As(err, &errTaken) {
		return fmt.Errorf("%w: %w", ErrLockHeld, err)
	}

	if errors.Is(err, redsync.ErrFailed) {
		return fmt.Errorf("%w: %w", ErrLockFailed, err)
	}
	if errors.Is(err, redsync.ErrExtendFailed) {
		return fmt.Errorf("%w: %w", ErrExtendFailed, err)
	}
	if errors.Is(err, redsync.ErrLockAlreadyExpired) {
		return fmt.Errorf("%w: %w", ErrLockExpired, err)
	}

	return err
}
