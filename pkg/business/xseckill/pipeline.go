package xseckill

import (
	"context"
	"errors"
	"fmt"
	"time"

	retry "github.com/avast/retry-go/v5"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/omeyang/flashkit/pkg/distributed/xdlock"
	"github.com/omeyang/flashkit/pkg/util/xid"
	"github.com/omeyang/flashkit/pkg/util/xpool"
)

// idNamespace 是订单号在 xid 中的命名空间。
const idNamespace = "order"

// Pipeline 是秒杀准入与异步落库流水线。
//
// Submit 在热路径完成限流、订单号生成与原子准入；通过准入的订单
// 进入有界队列，由后台 worker 持 per-user 锁调用 Committer 落库。
type Pipeline struct {
	client    redis.UniversalClient
	ids       *xid.Generator
	committer Committer
	lock      *xdlock.SimpleLock
	pool      *xpool.Pool[Order]
	limiter   RateLimiter
	breaker   *gobreaker.CircuitBreaker[struct{}]
	metrics   *Metrics
	options   options
}

// New 创建流水线。client、ids、committer 都是必需依赖。
// 创建后需调用 Start 启动落库 worker。
func New(client redis.UniversalClient, ids *xid.Generator, committer Committer, opts ...Option) (*Pipeline, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	if ids == nil {
		return nil, ErrNilIDGenerator
	}
	if committer == nil {
		return nil, ErrNilCommitter
	}

	o := defaultPipelineOptions()
	for _, opt := range opts {
		opt(&o)
	}

	lock, err := xdlock.NewSimple(client)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		client:    client,
		ids:       ids,
		committer: committer,
		lock:      lock,
		options:   o,
	}

	pool, err := xpool.New(o.workers, o.queueSize, p.handleOrder,
		xpool.WithName("xseckill-orders"),
		xpool.WithLogger(o.logger),
	)
	if err != nil {
		return nil, err
	}
	p.pool = pool

	if o.rateLimit != nil {
		p.limiter = o.rateLimiter
		if p.limiter == nil {
			p.limiter = redis_rate.NewLimiter(client)
		}
	}

	if o.breakerSettings != nil {
		p.breaker = gobreaker.NewCircuitBreaker[struct{}](*o.breakerSettings)
	}

	metrics, err := NewMetrics(o.meterProvider, func() int64 {
		return int64(pool.Pending())
	})
	if err != nil {
		return nil, err
	}
	p.metrics = metrics

	return p, nil
}

// Start 启动落库 worker。幂等。
func (p *Pipeline) Start() {
	p.pool.Start()
}

// Stop 停止流水线：拒绝新的 Submit，等待队列中的订单全部落库。幂等。
func (p *Pipeline) Stop() {
	p.pool.Stop()
	if err := p.metrics.Close(); err != nil {
		p.options.logger.Warn("xseckill: metrics close failed", "error", err)
	}
}

// Pending 返回队列中等待落库的订单数。
func (p *Pipeline) Pending() int {
	return p.pool.Pending()
}

// =============================================================================
// 热路径：准入
// =============================================================================

// Submit 处理一次抢购请求，成功时返回订单号。
//
// 执行顺序：可选 per-user 限流 → 生成订单号 → Lua 原子准入 → 入队。
// 准入被拒返回 ErrStockRejected / ErrDuplicateRejected，订单号不入队。
// 队列满时阻塞（背压），通过 ctx 取消等待。
//
// 返回 nil 仅代表订单已通过准入并入队；落库是异步的，其失败只通过
// 日志与指标暴露。
func (p *Pipeline) Submit(ctx context.Context, userID, voucherID int64) (int64, error) {
	p.metrics.RecordSubmitted(ctx)

	if p.limiter != nil {
		res, err := p.limiter.Allow(ctx, rateKey(userID), *p.options.rateLimit)
		if err != nil {
			return 0, fmt.Errorf("xseckill: rate limit check: %w", err)
		}
		if res.Allowed <= 0 {
			p.metrics.RecordRejected(ctx, rejectReasonRateLimited)
			return 0, ErrRateLimited
		}
	}

	orderID, err := p.ids.NextID(ctx, idNamespace)
	if err != nil {
		return 0, fmt.Errorf("xseckill: order id: %w", err)
	}

	res, err := p.reserve(ctx, userID, voucherID)
	if err != nil {
		return 0, err
	}
	switch res {
	case reserveOutOfStock:
		p.metrics.RecordRejected(ctx, rejectReasonOutOfStock)
		return 0, ErrStockRejected
	case reserveDuplicate:
		p.metrics.RecordRejected(ctx, rejectReasonDuplicate)
		return 0, ErrDuplicateRejected
	}

	order := Order{
		OrderID:   orderID,
		UserID:    userID,
		VoucherID: voucherID,
		CreatedAt: time.Now(),
	}
	if err := p.pool.SubmitWait(ctx, order); err != nil {
		// 准入已在 Redis 中生效但订单未入队：预占随下一次 SeedStock 清理
		p.options.logger.Error("xseckill: admitted order not enqueued",
			"order_id", orderID, "user_id", userID, "voucher_id", voucherID, "error", err)
		if errors.Is(err, xpool.ErrPoolStopped) {
			return 0, ErrPipelineStopped
		}
		return 0, err
	}

	p.metrics.RecordAccepted(ctx)
	return orderID, nil
}

// rateKey 返回 per-user 限流 key。
func rateKey(userID int64) string {
	return fmt.Sprintf("seckill:rate:%d", userID)
}

// =============================================================================
// 冷路径：异步落库
// =============================================================================

// handleOrder 是落库 worker 的任务处理函数。
// 运行在 Submit 返回之后，所有失败只能通过日志与指标暴露。
func (p *Pipeline) handleOrder(order Order) {
	ctx, cancel := context.WithTimeout(context.Background(), p.options.commitTimeout)
	defer cancel()

	handle, err := p.lock.TryLock(ctx, orderLockKey(order.UserID), p.options.lockTTL)
	if err != nil {
		p.metrics.RecordLockMissed(ctx)
		p.options.logger.Error("xseckill: user lock error, order dropped",
			"order_id", order.OrderID, "user_id", order.UserID, "error", err)
		return
	}
	if handle == nil {
		// 同一用户的另一笔落库正在进行。Redis 预占仍在，
		// 该订单被丢弃且不会自动补偿。
		p.metrics.RecordLockMissed(ctx)
		p.options.logger.Warn("xseckill: user lock held, order dropped",
			"order_id", order.OrderID, "user_id", order.UserID)
		return
	}
	defer func() {
		// 解锁不复用落库 context：commit 耗尽超时后锁仍必须释放
		unlockCtx, unlockCancel := context.WithTimeout(context.WithoutCancel(ctx), p.options.lockTTL)
		defer unlockCancel()
		if unlockErr := handle.Unlock(unlockCtx); unlockErr != nil {
			p.options.logger.Warn("xseckill: unlock failed", "key", handle.Key(), "error", unlockErr)
		}
	}()

	start := time.Now()
	err = retry.New(
		retry.Context(ctx),
		retry.Attempts(uint(p.options.retryAttempts)),
		retry.Delay(p.options.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(commitErr error) bool {
			// 终态错误重试也不会成功
			return !errors.Is(commitErr, ErrAlreadyExists) &&
				!errors.Is(commitErr, ErrInsufficientStock)
		}),
	).Do(func() error {
		return p.commit(ctx, order)
	})
	duration := time.Since(start)

	if err != nil {
		p.metrics.RecordCommit(ctx, false, duration)
		p.options.logger.Error("xseckill: commit failed",
			"order_id", order.OrderID, "user_id", order.UserID,
			"voucher_id", order.VoucherID, "error", err)
		return
	}

	p.metrics.RecordCommit(ctx, true, duration)
	p.options.logger.Info("xseckill: order committed",
		"order_id", order.OrderID, "user_id", order.UserID, "voucher_id", order.VoucherID)
}

// commit 执行一次落库尝试，按配置经过熔断器。
func (p *Pipeline) commit(ctx context.Context, order Order) error {
	if p.breaker != nil {
		_, err := p.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, p.committer.Commit(ctx, order)
		})
		return err
	}
	return p.committer.Commit(ctx, order)
}
