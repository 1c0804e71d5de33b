package xseckill

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/metric"
)

const (
	// defaultWorkers 是落库 worker 数量。
	// 单 worker 保证同实例内订单按准入顺序落库。
	defaultWorkers = 1

	// defaultQueueSize 是订单队列容量。
	defaultQueueSize = 1024 * 1024

	// defaultLockTTL 是 per-user 落库锁的 TTL。
	defaultLockTTL = 10 * time.Second

	// defaultCommitTimeout 是单笔订单落库（含重试）的总超时。
	defaultCommitTimeout = 30 * time.Second

	// defaultRetryAttempts 是落库的最大尝试次数（含首次）。
	defaultRetryAttempts = 3

	// defaultRetryDelay 是落库重试间的固定延迟。
	defaultRetryDelay = 100 * time.Millisecond
)

// RateLimiter 抽象 per-user 限流判定。
// *redis_rate.Limiter 天然满足该接口；测试中可注入假实现。
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
}

// Option 定义 Pipeline 可选配置函数类型。
type Option func(*options)

type options struct {
	workers         int
	queueSize       int
	lockTTL         time.Duration
	commitTimeout   time.Duration
	retryAttempts   int
	retryDelay      time.Duration
	rateLimit       *redis_rate.Limit
	rateLimiter     RateLimiter
	breakerSettings *gobreaker.Settings
	meterProvider   metric.MeterProvider
	logger          *slog.Logger
}

func defaultPipelineOptions() options {
	return options{
		workers:       defaultWorkers,
		queueSize:     defaultQueueSize,
		lockTTL:       defaultLockTTL,
		commitTimeout: defaultCommitTimeout,
		retryAttempts: defaultRetryAttempts,
		retryDelay:    defaultRetryDelay,
		logger:        slog.Default(),
	}
}

// WithWorkers 设置落库 worker 数量。
// 默认值：1。多 worker 提升吞吐但放弃同实例内的落库顺序。
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithQueueSize 设置订单队列容量。
// 默认值：1024*1024。队列满时 Submit 阻塞形成背压。
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithLockTTL 设置 per-user 落库锁的 TTL。
// 默认值：10 秒。应大于单笔订单落库（含重试）的最坏耗时。
func WithLockTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.lockTTL = d
		}
	}
}

// WithCommitTimeout 设置单笔订单落库（含重试）的总超时。
// 默认值：30 秒。
func WithCommitTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.commitTimeout = d
		}
	}
}

// WithRetryAttempts 设置落库的最大尝试次数（含首次）。
// 默认值：3。终态错误（ErrAlreadyExists / ErrInsufficientStock）不重试。
func WithRetryAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.retryAttempts = n
		}
	}
}

// WithRetryDelay 设置落库重试间的固定延迟。
// 默认值：100ms。
func WithRetryDelay(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.retryDelay = d
		}
	}
}

// WithRateLimit 启用 per-user 限流（redis_rate / GCRA）。
// 默认不限流。超限请求在准入之前被拒绝，返回 ErrRateLimited。
func WithRateLimit(limit redis_rate.Limit) Option {
	return func(o *options) {
		o.rateLimit = &limit
	}
}

// WithRateLimiter 注入自定义限流判定实现。
// 默认在启用 WithRateLimit 时使用 redis_rate.NewLimiter(client)。
func WithRateLimiter(rl RateLimiter) Option {
	return func(o *options) {
		if rl != nil {
			o.rateLimiter = rl
		}
	}
}

// WithBreaker 为落库调用启用熔断器（gobreaker）。
// 默认不熔断。熔断打开期间的尝试立即失败，计入重试次数。
func WithBreaker(st gobreaker.Settings) Option {
	return func(o *options) {
		o.breakerSettings = &st
	}
}

// WithMeterProvider 设置 otel MeterProvider 以启用指标收集。
// 默认为 nil（不收集指标）。
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}

// WithLogger 设置自定义日志记录器。
// 默认使用 slog.Default()。传入 nil 将被忽略。
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
