package xdlock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// =============================================================================
// SimpleLock - SET NX EX 轻量锁
// =============================================================================

// SimpleLock 是基于 SET NX EX 的轻量分布式锁。
//
// 获取时写入唯一 owner token；释放时无条件删除 key，不校验 token。
// 这是已知的安全缺口：若临界区执行时间超过 TTL，锁会先行过期并被
// 其他调用方获取，随后本方的 Unlock 会误删对方的锁。因此仅适用于
// TTL 远大于临界区执行时间的场景。需要 check-then-delete 语义时
// 使用 [NewRedisFactory]。
type SimpleLock struct {
	client  redis.UniversalClient
	options *simpleOptions
}

// NewSimple 创建 SimpleLock。
// client 必须是已初始化的 redis.UniversalClient。
func NewSimple(client redis.UniversalClient, opts ...SimpleOption) (*SimpleLock, error) {
	if client == nil {
		return nil, ErrNilClient
	}

	options := defaultSimpleOptions()
	for _, opt := range opts {
		opt(options)
	}

	return &SimpleLock{
		client:  client,
		options: options,
	}, nil
}

// TryLock 非阻塞式获取锁（单次 SET NX EX）。
//
// 成功时返回 SimpleHandle；锁被其他持有者占用时返回 (nil, nil)。
// err 非 nil 表示 Redis 异常或参数错误。
//
// ttl 必须为正值：TTL 的作用是防止崩溃的持有者永久占有锁。
// 持有时间超过 ttl 是调用方的正确性错误，锁本身不做保护。
func (l *SimpleLock) TryLock(ctx context.Context, key string, ttl time.Duration) (*SimpleHandle, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}

	fullKey := l.options.KeyPrefix + key
	token := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, nil
	}

	return &SimpleHandle{
		client: l.client,
		key:    fullKey,
		token:  token,
	}, nil
}

// =============================================================================
// SimpleHandle - 轻量锁持有凭证
// =============================================================================

// SimpleHandle 表示一次成功的 SimpleLock 获取。
type SimpleHandle struct {
	client redis.UniversalClient
	key    string
	token  string
}

// Unlock 释放锁：直接删除 key，不校验 owner token。
//
// 已知缺口：锁已过期且被其他持有者重新获取时，这里会误删对方的锁。
// 保持此语义（而非静默改为 Lua check-then-delete）是刻意的，
// 调用方必须保证临界区耗时远小于 TTL。
func (h *SimpleHandle) Unlock(ctx context.Context) error {
	return h.client.Del(ctx, h.key).Err()
}

// Key 返回锁的完整 key（含前缀）。
func (h *SimpleHandle) Key() string {
	return h.key
}

// Token 返回本次获取写入的 owner token。
// 主要用于测试和日志排查。
func (h *SimpleHandle) Token() string {
	return h.token
}
