package xdlock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient 启动 miniredis 并返回连接它的客户端。
func newTestClient(t *testing.T) (*miniredis.Miniredis, redis.UniversalClient) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

// =============================================================================
// 构造测试
// =============================================================================

func TestNewSimple_NilClient(t *testing.T) {
	_, err := NewSimple(nil)
	assert.ErrorIs(t, err, ErrNilClient)
}

func TestSimpleLock_TryLock_EmptyKey(t *testing.T) {
	_, client := newTestClient(t)
	lock, err := NewSimple(client)
	require.NoError(t, err)

	_, err = lock.TryLock(context.Background(), "  ", time.Second)
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestSimpleLock_TryLock_InvalidTTL(t *testing.T) {
	_, client := newTestClient(t)
	lock, err := NewSimple(client)
	require.NoError(t, err)

	_, err = lock.TryLock(context.Background(), "key", 0)
	assert.ErrorIs(t, err, ErrInvalidTTL)
}

// =============================================================================
// 获取/释放测试
// =============================================================================

func TestSimpleLock_TryLock_Acquires(t *testing.T) {
	mr, client := newTestClient(t)
	lock, err := NewSimple(client)
	require.NoError(t, err)

	ctx := context.Background()

	handle, err := lock.TryLock(ctx, "order:42", 10*time.Second)
	require.NoError(t, err)
	require.NotNil(t, handle)

	// 存储中的值等于 owner token 时才算持有锁
	assert.Equal(t, "lock:order:42", handle.Key())
	got, err := mr.Get("lock:order:42")
	require.NoError(t, err)
	assert.Equal(t, handle.Token(), got)

	// TTL 已写入
	assert.Greater(t, mr.TTL("lock:order:42"), time.Duration(0))
}

func TestSimpleLock_TryLock_HeldByOther(t *testing.T) {
	_, client := newTestClient(t)
	lock, err := NewSimple(client)
	require.NoError(t, err)

	ctx := context.Background()

	first, err := lock.TryLock(ctx, "order:42", 10*time.Second)
	require.NoError(t, err)
	require.NotNil(t, first)

	// 第二次获取：锁被占用，返回 (nil, nil)
	second, err := lock.TryLock(ctx, "order:42", 10*time.Second)
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestSimpleHandle_Unlock_ReleasesKey(t *testing.T) {
	mr, client := newTestClient(t)
	lock, err := NewSimple(client)
	require.NoError(t, err)

	ctx := context.Background()

	handle, err := lock.TryLock(ctx, "order:42", 10*time.Second)
	require.NoError(t, err)
	require.NotNil(t, handle)

	require.NoError(t, handle.Unlock(ctx))
	assert.False(t, mr.Exists("lock:order:42"))

	// 释放后可再次获取
	again, err := lock.TryLock(ctx, "order:42", 10*time.Second)
	require.NoError(t, err)
	assert.NotNil(t, again)
}

func TestSimpleHandle_Unlock_DeletesUnconditionally(t *testing.T) {
	// 已知缺口的回归测试：锁过期后被他人获取，原持有者 Unlock 会误删。
	mr, client := newTestClient(t)
	lock, err := NewSimple(client)
	require.NoError(t, err)

	ctx := context.Background()

	stale, err := lock.TryLock(ctx, "order:42", 50*time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, stale)

	// 模拟 TTL 过期后锁被其他持有者获取
	mr.FastForward(time.Second)
	fresh, err := lock.TryLock(ctx, "order:42", 10*time.Second)
	require.NoError(t, err)
	require.NotNil(t, fresh)

	require.NoError(t, stale.Unlock(ctx))
	assert.False(t, mr.Exists("lock:order:42"), "unconditional delete removes the new holder's lock")
}

func TestSimpleLock_TryLock_AfterExpiry(t *testing.T) {
	mr, client := newTestClient(t)
	lock, err := NewSimple(client)
	require.NoError(t, err)

	ctx := context.Background()

	_, err = lock.TryLock(ctx, "order:42", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	handle, err := lock.TryLock(ctx, "order:42", time.Second)
	require.NoError(t, err)
	assert.NotNil(t, handle, "expired lock should be acquirable")
}

func TestSimpleLock_KeyPrefix(t *testing.T) {
	mr, client := newTestClient(t)
	lock, err := NewSimple(client, WithSimpleKeyPrefix("flash:lock:"))
	require.NoError(t, err)

	handle, err := lock.TryLock(context.Background(), "shop:1", time.Second)
	require.NoError(t, err)
	require.NotNil(t, handle)
	assert.True(t, mr.Exists("flash:lock:shop:1"))
}
