package xcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/omeyang/flashkit/pkg/distributed/xdlock"
	"github.com/omeyang/flashkit/pkg/util/xpool"
)

// LoadFunc 是回源函数：按 id 从权威数据源加载一条记录。
// 记录不存在时必须返回 ErrNotFound（可包装），其他错误视为回源失败。
type LoadFunc[T any] func(ctx context.Context, id string) (T, error)

// envelope 是逻辑过期策略的存储信封。
// 信封本身不设置存储层 TTL，过期性完全由 ExpireAt 表达。
type envelope[T any] struct {
	Data     T         `json:"data"`
	ExpireAt time.Time `json:"expire_at"`
}

// rebuildTask 是一次异步重建的全部输入。
// handle 是提交方已持有的重建锁，由 worker 负责释放。
type rebuildTask struct {
	key    string
	id     string
	ttl    time.Duration
	handle *xdlock.SimpleHandle
}

// Client 是泛型 Cache-Aside 客户端。
// 所有值经 JSON 编解码后以字符串存入 Redis；空字符串保留为墓碑标记。
type Client[T any] struct {
	client   redis.UniversalClient
	loader   LoadFunc[T]
	lock     *xdlock.SimpleLock
	rebuilds *xpool.Pool[rebuildTask]
	options  options
}

// NewClient 创建 Cache-Aside 客户端并启动内部重建 worker pool。
// 使用完毕后必须调用 Close。
func NewClient[T any](client redis.UniversalClient, loader LoadFunc[T], opts ...Option) (*Client[T], error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if loader == nil {
		return nil, ErrNilLoader
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	lock, err := xdlock.NewSimple(client)
	if err != nil {
		return nil, err
	}

	c := &Client[T]{
		client:  client,
		loader:  loader,
		lock:    lock,
		options: o,
	}

	pool, err := xpool.New(o.rebuildWorkers, o.rebuildQueueSize, c.runRebuild,
		xpool.WithName("xcache-rebuild"),
		xpool.WithLogger(o.logger),
	)
	if err != nil {
		return nil, err
	}
	c.rebuilds = pool
	c.rebuilds.Start()

	return c, nil
}

// Close 停止内部重建 worker pool，等待队列中的任务完成。幂等。
func (c *Client[T]) Close() {
	c.rebuilds.Stop()
}

// =============================================================================
// 写入
// =============================================================================

// Set 将值以 JSON 编码后写入缓存，附带存储层 TTL。
func (c *Client[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	if err := validateKeyPart(key); err != nil {
		return err
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("xcache: encode value: %w", err)
	}
	return c.client.Set(ctx, key, data, ttl).Err()
}

// SetWithLogicalExpire 将值包入 {data, expire_at} 信封写入缓存。
// 信封不设置存储层 TTL：过期后信封仍在，读取方拿到陈旧数据并触发重建。
// logicalTTL 决定信封的新鲜窗口。
func (c *Client[T]) SetWithLogicalExpire(ctx context.Context, key string, value T, logicalTTL time.Duration) error {
	if err := validateKeyPart(key); err != nil {
		return err
	}
	if logicalTTL <= 0 {
		return ErrInvalidTTL
	}

	env := envelope[T]{
		Data:     value,
		ExpireAt: c.options.now().Add(logicalTTL),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("xcache: encode envelope: %w", err)
	}
	// 持久 key：0 表示不过期
	return c.client.Set(ctx, key, data, 0).Err()
}

// =============================================================================
// GetPassThrough - 穿透防护（空值墓碑）
// =============================================================================

// GetPassThrough 读取 keyPrefix+id 对应的缓存，未命中时同步回源。
//
// 源中不存在的 id 会写入短 TTL 的空值墓碑，墓碑命中直接返回
// ErrNotFound、不再触碰回源函数。回源失败返回包装的 ErrLoadFailed，
// 且不缓存任何内容。
func (c *Client[T]) GetPassThrough(ctx context.Context, keyPrefix, id string, ttl time.Duration) (T, error) {
	var zero T
	if err := validateKeyPart(id); err != nil {
		return zero, err
	}
	key := keyPrefix + id

	value, done, err := c.checkCache(ctx, key)
	if done {
		return value, err
	}

	return c.loadAndCache(ctx, key, id, ttl)
}

// checkCache 检查缓存，返回 (value, done, error)。
// done 为 true 表示已有结论（命中、墓碑或 Redis 异常），调用方直接返回。
func (c *Client[T]) checkCache(ctx context.Context, key string) (T, bool, error) {
	var zero T
	raw, err := c.client.Get(ctx, key).Result()
	if err == nil {
		if raw == "" {
			// 墓碑命中：源中确认不存在，不回源
			return zero, true, ErrNotFound
		}
		value, decErr := c.decode(raw)
		return value, true, decErr
	}
	if !errors.Is(err, redis.Nil) {
		return zero, true, err
	}
	return zero, false, nil
}

// loadAndCache 回源并将结果（值或墓碑）写入缓存。
// 缓存写入是 best-effort：失败记录日志，不影响返回值。
func (c *Client[T]) loadAndCache(ctx context.Context, key, id string, ttl time.Duration) (T, error) {
	var zero T

	value, err := c.loader(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			if setErr := c.client.Set(ctx, key, "", c.options.nullTTL).Err(); setErr != nil {
				c.options.logger.Warn("xcache: tombstone set failed", "key", key, "error", setErr)
			}
			return zero, ErrNotFound
		}
		// 回源失败绝不缓存，避免错误污染
		return zero, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	if setErr := c.Set(ctx, key, value, ttl); setErr != nil {
		c.options.logger.Warn("xcache: cache set failed", "key", key, "error", setErr)
	}
	return value, nil
}

// =============================================================================
// GetWithMutex - 击穿防护（互斥重建）
// =============================================================================

// GetWithMutex 读取 keyPrefix+id 对应的缓存，未命中时以分布式互斥锁
// 收敛回源：同一时刻每个 key 至多一个调用方执行回源，其余调用方固定
// 退避后重读缓存。
//
// 重试是有界的（WithMutexRetries，默认 20 次），耗尽返回 ErrLockFailed；
// 等待期间 ctx 取消立即返回。墓碑与穿透策略语义一致。
func (c *Client[T]) GetWithMutex(ctx context.Context, keyPrefix, id string, ttl time.Duration) (T, error) {
	var zero T
	if err := validateKeyPart(id); err != nil {
		return zero, err
	}
	key := keyPrefix + id

	for attempt := 0; attempt < c.options.mutexRetries; attempt++ {
		value, done, err := c.checkCache(ctx, key)
		if done {
			return value, err
		}

		// 未命中：竞争重建锁，锁 key = "lock:" + key
		handle, lockErr := c.lock.TryLock(ctx, key, c.options.lockTTL)
		if lockErr != nil {
			return zero, lockErr
		}
		if handle != nil {
			return c.rebuildWithLock(ctx, handle, key, id, ttl)
		}

		// 锁被他人持有：退避后重读，期望重建方已填充缓存
		if err := sleepCtx(ctx, c.options.mutexBackoff); err != nil {
			return zero, err
		}
	}

	return zero, ErrLockFailed
}

// rebuildWithLock 在持锁状态下重建缓存。锁总是被释放（deferred）。
func (c *Client[T]) rebuildWithLock(ctx context.Context, handle *xdlock.SimpleHandle, key, id string, ttl time.Duration) (T, error) {
	defer func() {
		// 解锁脱离调用方取消链，但有独立超时保护
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.options.lockTTL)
		defer cancel()
		if err := handle.Unlock(unlockCtx); err != nil {
			c.options.logger.Warn("xcache: unlock failed", "key", handle.Key(), "error", err)
		}
	}()

	// double-check：拿锁期间其他持有者可能已完成重建
	value, done, err := c.checkCache(ctx, key)
	if done {
		return value, err
	}

	return c.loadAndCache(ctx, key, id, ttl)
}

// sleepCtx 等待 d，ctx 取消时提前返回 ctx.Err()。
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// =============================================================================
// GetWithLogicalExpire - 逻辑过期（异步重建）
// =============================================================================

// GetWithLogicalExpire 读取逻辑过期信封。
//
// 信封不存在直接返回 ErrNotFound（该策略假定数据已预热，不做同步回源）；
// 信封新鲜返回数据；信封过期时尝试获取重建锁，成功则把重建任务提交到
// 内部 worker pool（队列满即丢弃），随后无论结果如何立即返回陈旧数据。
// 读路径永不因重建阻塞。
func (c *Client[T]) GetWithLogicalExpire(ctx context.Context, keyPrefix, id string, logicalTTL time.Duration) (T, error) {
	var zero T
	if err := validateKeyPart(id); err != nil {
		return zero, err
	}
	key := keyPrefix + id

	raw, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, ErrNotFound
		}
		return zero, err
	}

	var env envelope[T]
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return zero, fmt.Errorf("xcache: decode envelope: %w", err)
	}

	if env.ExpireAt.After(c.options.now()) {
		return env.Data, nil
	}

	// 过期：争夺重建权，无论成败都立即返回陈旧数据
	c.tryScheduleRebuild(ctx, key, id, logicalTTL)
	return env.Data, nil
}

// tryScheduleRebuild 尝试获取重建锁并提交异步重建任务。
// 锁竞争失败说明已有重建在途；提交失败（队列满或已关闭）时立即放锁，
// 让下一个过期读重新触发。
func (c *Client[T]) tryScheduleRebuild(ctx context.Context, key, id string, logicalTTL time.Duration) {
	handle, err := c.lock.TryLock(ctx, key, c.options.lockTTL)
	if err != nil {
		c.options.logger.Warn("xcache: rebuild lock error", "key", key, "error", err)
		return
	}
	if handle == nil {
		return // 重建已在途
	}

	task := rebuildTask{key: key, id: id, ttl: logicalTTL, handle: handle}
	if subErr := c.rebuilds.Submit(task); subErr != nil {
		c.options.logger.Warn("xcache: rebuild dropped", "key", key, "error", subErr)
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.options.lockTTL)
		defer cancel()
		if unlockErr := handle.Unlock(unlockCtx); unlockErr != nil {
			c.options.logger.Warn("xcache: unlock failed", "key", handle.Key(), "error", unlockErr)
		}
	}
}

// runRebuild 是重建 worker 的任务处理函数。
// 运行在调用方返回之后，使用独立超时的 context。
func (c *Client[T]) runRebuild(task rebuildTask) {
	ctx, cancel := context.WithTimeout(context.Background(), c.options.rebuildTimeout)
	defer cancel()
	defer func() {
		// 解锁不复用重建 context：loader 耗尽超时后锁仍必须释放
		unlockCtx, unlockCancel := context.WithTimeout(context.Background(), c.options.lockTTL)
		defer unlockCancel()
		if err := task.handle.Unlock(unlockCtx); err != nil {
			c.options.logger.Warn("xcache: unlock failed", "key", task.handle.Key(), "error", err)
		}
	}()

	// double-check：排队期间其他实例可能已完成重建
	if raw, err := c.client.Get(ctx, task.key).Result(); err == nil {
		var env envelope[T]
		if json.Unmarshal([]byte(raw), &env) == nil && env.ExpireAt.After(c.options.now()) {
			return
		}
	}

	value, err := c.loader(ctx, task.id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// 源数据已删除：移除信封，后续读直接 NotFound
			if delErr := c.client.Del(ctx, task.key).Err(); delErr != nil {
				c.options.logger.Warn("xcache: stale envelope delete failed", "key", task.key, "error", delErr)
			}
			return
		}
		// 保留陈旧信封，下一个过期读会再次触发重建
		c.options.logger.Warn("xcache: rebuild load failed", "key", task.key, "error", err)
		return
	}

	if setErr := c.SetWithLogicalExpire(ctx, task.key, value, task.ttl); setErr != nil {
		c.options.logger.Warn("xcache: rebuild set failed", "key", task.key, "error", setErr)
	}
}

// =============================================================================
// 编解码
// =============================================================================

func (c *Client[T]) decode(raw string) (T, error) {
	var value T
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return value, fmt.Errorf("xcache: decode value: %w", err)
	}
	return value, nil
}

// logger 返回客户端日志记录器，供同包协作组件使用。
func (c *Client[T]) log() *slog.Logger {
	return c.options.logger
}
