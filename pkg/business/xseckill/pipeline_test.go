package xseckill

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/flashkit/pkg/util/xid"
)

var errTransient = errors.New("db timeout")

// fakeCommitter 记录落库的订单，前 failBefore 次调用返回 failWith。
type fakeCommitter struct {
	mu         sync.Mutex
	orders     []Order
	calls      atomic.Int64
	failBefore int64
	failWith   error
}

func (f *fakeCommitter) Commit(_ context.Context, order Order) error {
	n := f.calls.Add(1)
	if f.failWith != nil && n <= f.failBefore {
		return f.failWith
	}
	f.mu.Lock()
	f.orders = append(f.orders, order)
	f.mu.Unlock()
	return nil
}

func (f *fakeCommitter) committed() []Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Order, len(f.orders))
	copy(out, f.orders)
	return out
}

// newTestPipeline 启动 miniredis 并组装一条已启动的流水线。
func newTestPipeline(t *testing.T, committer Committer, opts ...Option) (*miniredis.Miniredis, *Pipeline) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ids, err := xid.NewGenerator(client)
	require.NoError(t, err)

	opts = append([]Option{WithRetryDelay(time.Millisecond)}, opts...)
	p, err := New(client, ids, committer, opts...)
	require.NoError(t, err)
	p.Start()
	t.Cleanup(p.Stop)

	return mr, p
}

// waitDrained 等待队列清空并给 worker 一点完成当前任务的时间。
func waitDrained(t *testing.T, p *Pipeline) {
	t.Helper()
	require.Eventually(t, func() bool {
		return p.Pending() == 0
	}, time.Second, time.Millisecond)
}

// =============================================================================
// 构造测试
// =============================================================================

func TestNew_Validation(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ids, err := xid.NewGenerator(client)
	require.NoError(t, err)

	_, err = New(nil, ids, &fakeCommitter{})
	assert.ErrorIs(t, err, ErrNilClient)

	_, err = New(client, nil, &fakeCommitter{})
	assert.ErrorIs(t, err, ErrNilIDGenerator)

	_, err = New(client, ids, nil)
	assert.ErrorIs(t, err, ErrNilCommitter)
}

// =============================================================================
// SeedStock 测试
// =============================================================================

func TestSeedStock(t *testing.T) {
	mr, p := newTestPipeline(t, &fakeCommitter{})

	require.NoError(t, p.SeedStock(context.Background(), 1, 100))
	got, err := mr.Get("seckill:stock:1")
	require.NoError(t, err)
	assert.Equal(t, "100", got)

	// 重新预置会清空已下单用户集合
	_, err = p.Submit(context.Background(), 7, 1)
	require.NoError(t, err)
	require.NoError(t, p.SeedStock(context.Background(), 1, 100))
	assert.False(t, mr.Exists("seckill:order:1"))
}

func TestSeedStock_NegativeStock(t *testing.T) {
	_, p := newTestPipeline(t, &fakeCommitter{})
	assert.ErrorIs(t, p.SeedStock(context.Background(), 1, -1), ErrInvalidStock)
}

// =============================================================================
// 准入测试
// =============================================================================

func TestSubmit_AcceptedAndCommitted(t *testing.T) {
	committer := &fakeCommitter{}
	mr, p := newTestPipeline(t, committer)
	require.NoError(t, p.SeedStock(context.Background(), 1, 5))

	orderID, err := p.Submit(context.Background(), 7, 1)
	require.NoError(t, err)
	assert.Positive(t, orderID)

	// 库存已扣减，用户已记录
	stock, err := mr.Get("seckill:stock:1")
	require.NoError(t, err)
	assert.Equal(t, "4", stock)
	member, err := mr.IsMember("seckill:order:1", "7")
	require.NoError(t, err)
	assert.True(t, member)

	// 订单异步落库
	require.Eventually(t, func() bool {
		return len(committer.committed()) == 1
	}, time.Second, time.Millisecond)

	got := committer.committed()[0]
	assert.Equal(t, orderID, got.OrderID)
	assert.Equal(t, int64(7), got.UserID)
	assert.Equal(t, int64(1), got.VoucherID)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSubmit_OutOfStock(t *testing.T) {
	committer := &fakeCommitter{}
	_, p := newTestPipeline(t, committer)
	require.NoError(t, p.SeedStock(context.Background(), 1, 0))

	_, err := p.Submit(context.Background(), 7, 1)
	assert.ErrorIs(t, err, ErrStockRejected)
	assert.Zero(t, committer.calls.Load())
}

func TestSubmit_MissingCounterIsOutOfStock(t *testing.T) {
	_, p := newTestPipeline(t, &fakeCommitter{})

	// 未预置库存：计数器缺失视同无库存
	_, err := p.Submit(context.Background(), 7, 404)
	assert.ErrorIs(t, err, ErrStockRejected)
}

func TestSubmit_Duplicate(t *testing.T) {
	committer := &fakeCommitter{}
	mr, p := newTestPipeline(t, committer)
	require.NoError(t, p.SeedStock(context.Background(), 1, 5))

	_, err := p.Submit(context.Background(), 7, 1)
	require.NoError(t, err)

	_, err = p.Submit(context.Background(), 7, 1)
	assert.ErrorIs(t, err, ErrDuplicateRejected)

	// 重复拒绝不扣库存
	stock, getErr := mr.Get("seckill:stock:1")
	require.NoError(t, getErr)
	assert.Equal(t, "4", stock)

	waitDrained(t, p)
	assert.Len(t, committer.committed(), 1)
}

func TestSubmit_ExactlyStockAccepted(t *testing.T) {
	const stock = 5
	const requests = 20

	committer := &fakeCommitter{}
	mr, p := newTestPipeline(t, committer)
	require.NoError(t, p.SeedStock(context.Background(), 1, stock))

	accepted := 0
	for user := int64(1); user <= requests; user++ {
		_, err := p.Submit(context.Background(), user, 1)
		switch {
		case err == nil:
			accepted++
		default:
			require.ErrorIs(t, err, ErrStockRejected)
		}
	}

	assert.Equal(t, stock, accepted, "恰好库存数量的请求被接受")
	got, err := mr.Get("seckill:stock:1")
	require.NoError(t, err)
	assert.Equal(t, "0", got, "库存不为负")

	require.Eventually(t, func() bool {
		return len(committer.committed()) == stock
	}, time.Second, time.Millisecond)
}

func TestSubmit_ConcurrentUsers(t *testing.T) {
	const stock = 10
	const users = 50

	committer := &fakeCommitter{}
	_, p := newTestPipeline(t, committer, WithWorkers(4))
	require.NoError(t, p.SeedStock(context.Background(), 1, stock))

	var accepted atomic.Int64
	var wg sync.WaitGroup
	wg.Add(users)
	for user := int64(1); user <= users; user++ {
		go func(uid int64) {
			defer wg.Done()
			_, err := p.Submit(context.Background(), uid, 1)
			if err == nil {
				accepted.Add(1)
			} else {
				assert.ErrorIs(t, err, ErrStockRejected)
			}
		}(user)
	}
	wg.Wait()

	assert.Equal(t, int64(stock), accepted.Load())
	require.Eventually(t, func() bool {
		return len(committer.committed()) == stock
	}, time.Second, time.Millisecond)
}

// =============================================================================
// 限流测试
// =============================================================================

// denyLimiter 拒绝所有请求。
type denyLimiter struct{}

func (denyLimiter) Allow(_ context.Context, _ string, limit redis_rate.Limit) (*redis_rate.Result, error) {
	return &redis_rate.Result{Allowed: 0, Limit: limit}, nil
}

func TestSubmit_RateLimited(t *testing.T) {
	committer := &fakeCommitter{}
	mr, p := newTestPipeline(t, committer,
		WithRateLimit(redis_rate.PerSecond(1)),
		WithRateLimiter(denyLimiter{}),
	)
	require.NoError(t, p.SeedStock(context.Background(), 1, 5))

	_, err := p.Submit(context.Background(), 7, 1)
	assert.ErrorIs(t, err, ErrRateLimited)

	// 限流发生在准入之前：库存未动，订单号未生成
	stock, getErr := mr.Get("seckill:stock:1")
	require.NoError(t, getErr)
	assert.Equal(t, "5", stock)
	assert.Zero(t, committer.calls.Load())
}

// =============================================================================
// 落库重试测试
// =============================================================================

func TestHandleOrder_RetriesTransientFailure(t *testing.T) {
	committer := &fakeCommitter{failBefore: 2, failWith: errTransient}
	_, p := newTestPipeline(t, committer)
	require.NoError(t, p.SeedStock(context.Background(), 1, 5))

	_, err := p.Submit(context.Background(), 7, 1)
	require.NoError(t, err)

	// 前两次失败，第三次成功
	require.Eventually(t, func() bool {
		return len(committer.committed()) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, int64(3), committer.calls.Load())
}

func TestHandleOrder_TerminalErrorNotRetried(t *testing.T) {
	committer := &fakeCommitter{failBefore: 100, failWith: ErrAlreadyExists}
	_, p := newTestPipeline(t, committer)
	require.NoError(t, p.SeedStock(context.Background(), 1, 5))

	_, err := p.Submit(context.Background(), 7, 1)
	require.NoError(t, err)

	waitDrained(t, p)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(1), committer.calls.Load(), "终态错误不重试")
	assert.Empty(t, committer.committed())
}

func TestHandleOrder_RetriesExhausted(t *testing.T) {
	committer := &fakeCommitter{failBefore: 100, failWith: errTransient}
	_, p := newTestPipeline(t, committer, WithRetryAttempts(2))
	require.NoError(t, p.SeedStock(context.Background(), 1, 5))

	_, err := p.Submit(context.Background(), 7, 1)
	require.NoError(t, err)

	waitDrained(t, p)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(2), committer.calls.Load())
	assert.Empty(t, committer.committed())
}

func TestHandleOrder_UserLockHeld_Drops(t *testing.T) {
	committer := &fakeCommitter{}
	mr, p := newTestPipeline(t, committer)
	require.NoError(t, p.SeedStock(context.Background(), 1, 5))

	// 他处正持有该用户的落库锁
	require.NoError(t, mr.Set("lock:order:7", "other-holder"))

	_, err := p.Submit(context.Background(), 7, 1)
	require.NoError(t, err)

	waitDrained(t, p)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, committer.calls.Load(), "锁被占用的订单被丢弃，Redis 预占保留")
	member, err := mr.IsMember("seckill:order:1", "7")
	require.NoError(t, err)
	assert.True(t, member)
}

func TestHandleOrder_ReleasesUserLock(t *testing.T) {
	committer := &fakeCommitter{}
	mr, p := newTestPipeline(t, committer)
	require.NoError(t, p.SeedStock(context.Background(), 1, 5))

	_, err := p.Submit(context.Background(), 7, 1)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(committer.committed()) == 1 && !mr.Exists("lock:order:7")
	}, time.Second, time.Millisecond)
}

// stallingCommitter 阻塞到落库 context 到期，模拟耗尽超时的慢存储。
type stallingCommitter struct{}

func (stallingCommitter) Commit(ctx context.Context, _ Order) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestHandleOrder_ReleasesUserLockAfterCommitTimeout(t *testing.T) {
	mr, p := newTestPipeline(t, stallingCommitter{},
		WithCommitTimeout(50*time.Millisecond),
		WithRetryAttempts(1),
	)
	require.NoError(t, p.SeedStock(context.Background(), 1, 5))

	_, err := p.Submit(context.Background(), 7, 1)
	require.NoError(t, err)

	// worker 先拿到用户锁
	require.Eventually(t, func() bool {
		return mr.Exists("lock:order:7")
	}, time.Second, time.Millisecond)

	// commit 耗尽超时后锁也必须立刻释放，而不是悬挂到 TTL 过期
	require.Eventually(t, func() bool {
		return !mr.Exists("lock:order:7")
	}, time.Second, time.Millisecond)
}

// =============================================================================
// 熔断测试
// =============================================================================

func TestHandleOrder_BreakerShortCircuits(t *testing.T) {
	committer := &fakeCommitter{failBefore: 100, failWith: errTransient}
	_, p := newTestPipeline(t, committer,
		WithRetryAttempts(5),
		WithBreaker(gobreaker.Settings{
			Name: "commit",
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 2
			},
		}),
	)
	require.NoError(t, p.SeedStock(context.Background(), 1, 5))

	_, err := p.Submit(context.Background(), 7, 1)
	require.NoError(t, err)

	waitDrained(t, p)
	time.Sleep(20 * time.Millisecond)
	// 两次真实失败后熔断打开，剩余尝试不再触达 committer
	assert.Equal(t, int64(2), committer.calls.Load())
}

// =============================================================================
// 生命周期测试
// =============================================================================

func TestPipeline_StopDrainsQueue(t *testing.T) {
	committer := &fakeCommitter{}
	_, p := newTestPipeline(t, committer)
	require.NoError(t, p.SeedStock(context.Background(), 1, 10))

	for user := int64(1); user <= 10; user++ {
		_, err := p.Submit(context.Background(), user, 1)
		require.NoError(t, err)
	}
	p.Stop()

	assert.Len(t, committer.committed(), 10, "Stop 等待队列全部落库")
}

func TestSubmit_AfterStop(t *testing.T) {
	committer := &fakeCommitter{}
	_, p := newTestPipeline(t, committer)
	require.NoError(t, p.SeedStock(context.Background(), 1, 5))
	p.Stop()

	_, err := p.Submit(context.Background(), 7, 1)
	assert.ErrorIs(t, err, ErrPipelineStopped)
}

// =============================================================================
// 订单号测试
// =============================================================================

func TestSubmit_OrderIDsStrictlyIncreasing(t *testing.T) {
	committer := &fakeCommitter{}
	_, p := newTestPipeline(t, committer)
	require.NoError(t, p.SeedStock(context.Background(), 1, 10))

	var prev int64
	for user := int64(1); user <= 10; user++ {
		id, err := p.Submit(context.Background(), user, 1)
		require.NoError(t, err)
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestSubmit_IDGenerationFailurePropagates(t *testing.T) {
	committer := &fakeCommitter{}
	mr, p := newTestPipeline(t, committer)
	require.NoError(t, p.SeedStock(context.Background(), 1, 5))

	// 污染计数器使 INCR 失败：错误必须上抛，绝不本地合成订单号
	day := time.Now().UTC().Format("2006:01:02")
	require.NoError(t, mr.Set(fmt.Sprintf("icr:order:%s", day), "not-a-number"))

	_, err := p.Submit(context.Background(), 7, 1)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStockRejected)

	// 准入脚本未执行，库存未动
	stock, getErr := mr.Get("seckill:stock:1")
	require.NoError(t, getErr)
	assert.Equal(t, "5", stock)
}
