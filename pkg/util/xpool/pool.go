package xpool

import (
	"context"
	"log/slog"
	"sync"
)

// Pool 是一个泛型有界 worker pool。
// 用于异步执行任务，支持优雅关闭和 panic 恢复。
type Pool[T any] struct {
	workers   int
	queueSize int
	handler   func(T)
	queue     chan T
	wg        sync.WaitGroup
	stopOnce  sync.Once
	stopped   chan struct{}
	started   bool       // 是否已启动
	startMu   sync.Mutex // 保护 started 字段
	logger    *slog.Logger
	name      string
}

// New 创建 worker pool。
//
// 参数：
//   - workers: worker 数量，最小为 1
//   - queueSize: 任务队列大小，最小为 1
//   - handler: 任务处理函数，不能为 nil
func New[T any](workers, queueSize int, handler func(T), opts ...Option) (*Pool[T], error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &Pool[T]{
		workers:   workers,
		queueSize: queueSize,
		handler:   handler,
		queue:     make(chan T, queueSize),
		stopped:   make(chan struct{}),
		logger:    o.logger,
		name:      o.name,
	}, nil
}

// Start 启动 worker pool。
// 该方法是幂等的：多次调用只会启动一次 worker。
func (p *Pool[T]) Start() {
	p.startMu.Lock()
	defer p.startMu.Unlock()

	if p.started {
		return // 幂等：已启动则直接返回
	}
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// worker 是工作协程。
// 只从 queue 中读取任务，不检查 stopped 信号。
// 这确保在 Stop() 时能处理完队列中的剩余任务（优雅关闭）。
func (p *Pool[T]) worker() {
	defer p.wg.Done()
	for task := range p.queue {
		p.run(task)
	}
}

// run 安全执行 handler，捕获 panic。
func (p *Pool[T]) run(task T) {
	defer func() {
		if r := recover(); r != nil {
			p.log().Error("xpool: worker panic recovered", "pool", p.name, "panic", r)
		}
	}()
	p.handler(task)
}

// Submit 非阻塞提交任务。
// 队列满时返回 ErrQueueFull，pool 已停止时返回 ErrPoolStopped。
// 适用于可丢弃的后台任务。
func (p *Pool[T]) Submit(task T) (err error) {
	// 捕获 Stop() 和 Submit() 并发时可能的 send on closed channel panic。
	// 这种情况发生在 Stop() 关闭 p.stopped 后、关闭 p.queue 前的极短
	// 时间窗口内，select 恰好选中了 p.queue <- task 分支。
	defer func() {
		if r := recover(); r != nil {
			err = ErrPoolStopped
		}
	}()

	select {
	case <-p.stopped:
		return ErrPoolStopped
	case p.queue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// SubmitWait 阻塞提交任务：队列满时等待空位，形成生产者背压。
// 通过 ctx 取消等待；pool 已停止时返回 ErrPoolStopped。
// 适用于不可丢弃的任务。
func (p *Pool[T]) SubmitWait(ctx context.Context, task T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrPoolStopped
		}
	}()

	select {
	case <-p.stopped:
		return ErrPoolStopped
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopped:
		return ErrPoolStopped
	case p.queue <- task:
		return nil
	}
}

// Stop 停止 worker pool。
// 会等待队列中所有剩余任务处理完成后再退出（优雅关闭）。
func (p *Pool[T]) Stop() {
	p.stopOnce.Do(func() {
		// 1. 先标记为已停止，拒绝新任务提交
		close(p.stopped)
		// 2. 关闭队列，让 worker 退出循环
		close(p.queue)
		// 3. 等待所有 worker 处理完剩余任务后退出
		p.wg.Wait()
	})
}

// Workers 返回 worker 数量。
func (p *Pool[T]) Workers() int {
	return p.workers
}

// QueueSize 返回队列大小。
func (p *Pool[T]) QueueSize() int {
	return p.queueSize
}

// Pending 返回当前队列中等待处理的任务数。
func (p *Pool[T]) Pending() int {
	return len(p.queue)
}

func (p *Pool[T]) log() *slog.Logger {
	if p.logger != nil {
		return p.logger
	}
	return slog.Default()
}
