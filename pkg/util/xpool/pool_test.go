package xpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// 构造测试
// =============================================================================

func TestNew_NilHandler(t *testing.T) {
	_, err := New[int](1, 1, nil)
	assert.ErrorIs(t, err, ErrNilHandler)
}

func TestNew_ClampsToMinimum(t *testing.T) {
	p, err := New(0, 0, func(int) {})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Workers())
	assert.Equal(t, 1, p.QueueSize())
}

// =============================================================================
// 执行测试
// =============================================================================

func TestPool_ProcessesAllTasks(t *testing.T) {
	var count atomic.Int64
	p, err := New(4, 16, func(int) { count.Add(1) })
	require.NoError(t, err)
	p.Start()

	for i := 0; i < 100; i++ {
		require.NoError(t, p.SubmitWait(context.Background(), i))
	}
	p.Stop()

	assert.Equal(t, int64(100), count.Load())
}

func TestPool_Start_Idempotent(t *testing.T) {
	var count atomic.Int64
	p, err := New(2, 4, func(int) { count.Add(1) })
	require.NoError(t, err)
	p.Start()
	p.Start() // 第二次启动不应再起 worker

	require.NoError(t, p.Submit(1))
	p.Stop()

	assert.Equal(t, int64(1), count.Load())
}

func TestPool_PanicRecovered(t *testing.T) {
	var after atomic.Bool
	p, err := New(1, 4, func(n int) {
		if n == 0 {
			panic("boom")
		}
		after.Store(true)
	})
	require.NoError(t, err)
	p.Start()

	require.NoError(t, p.Submit(0))
	require.NoError(t, p.Submit(1))
	p.Stop()

	assert.True(t, after.Load(), "pool survives a panicking task")
}

// =============================================================================
// Submit（非阻塞）测试
// =============================================================================

func TestPool_Submit_QueueFull(t *testing.T) {
	block := make(chan struct{})
	p, err := New(1, 1, func(int) { <-block })
	require.NoError(t, err)
	p.Start()
	defer func() {
		close(block)
		p.Stop()
	}()

	// 第一个任务占住 worker
	require.NoError(t, p.Submit(1))
	require.Eventually(t, func() bool {
		return p.Pending() == 0 // worker 已取走任务并阻塞
	}, time.Second, time.Millisecond)

	// 第二个占满队列，第三个必然被拒绝
	require.NoError(t, p.Submit(2))
	assert.ErrorIs(t, p.Submit(3), ErrQueueFull)
}

func TestPool_Submit_AfterStop(t *testing.T) {
	p, err := New(1, 1, func(int) {})
	require.NoError(t, err)
	p.Start()
	p.Stop()

	assert.ErrorIs(t, p.Submit(1), ErrPoolStopped)
	assert.ErrorIs(t, p.SubmitWait(context.Background(), 1), ErrPoolStopped)
}

// =============================================================================
// SubmitWait（背压）测试
// =============================================================================

func TestPool_SubmitWait_BlocksUntilSpace(t *testing.T) {
	block := make(chan struct{})
	p, err := New(1, 1, func(int) { <-block })
	require.NoError(t, err)
	p.Start()
	defer p.Stop()

	require.NoError(t, p.SubmitWait(context.Background(), 1))
	require.Eventually(t, func() bool {
		return p.Pending() == 0 // worker 已取走任务并阻塞
	}, time.Second, time.Millisecond)
	require.NoError(t, p.SubmitWait(context.Background(), 2)) // 占满队列

	var wg sync.WaitGroup
	wg.Add(1)
	submitted := make(chan struct{})
	go func() {
		defer wg.Done()
		close(submitted)
		// 队列满：阻塞直到 worker 释放空位
		assert.NoError(t, p.SubmitWait(context.Background(), 3))
	}()

	<-submitted
	time.Sleep(20 * time.Millisecond) // 让 goroutine 进入阻塞
	close(block)                      // 释放 worker
	wg.Wait()
}

func TestPool_SubmitWait_ContextCancel(t *testing.T) {
	block := make(chan struct{})
	p, err := New(1, 1, func(int) { <-block })
	require.NoError(t, err)
	p.Start()
	defer func() {
		close(block)
		p.Stop()
	}()

	require.NoError(t, p.SubmitWait(context.Background(), 1))
	require.Eventually(t, func() bool {
		return p.Pending() == 0 // worker 已取走任务并阻塞
	}, time.Second, time.Millisecond)
	require.NoError(t, p.SubmitWait(context.Background(), 2)) // 占满队列

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = p.SubmitWait(ctx, 3)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// =============================================================================
// 关闭语义测试
// =============================================================================

func TestPool_Stop_DrainsQueue(t *testing.T) {
	var count atomic.Int64
	p, err := New(1, 64, func(int) {
		time.Sleep(time.Millisecond)
		count.Add(1)
	})
	require.NoError(t, err)
	p.Start()

	for i := 0; i < 32; i++ {
		require.NoError(t, p.Submit(i))
	}
	p.Stop()

	assert.Equal(t, int64(32), count.Load(), "Stop waits for queued tasks")
}

func TestPool_Stop_Idempotent(t *testing.T) {
	p, err := New(1, 1, func(int) {})
	require.NoError(t, err)
	p.Start()
	p.Stop()
	p.Stop() // 不应 panic
}
