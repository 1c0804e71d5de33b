package xseckill

import (
	"fmt"
	"time"

	"github.com/go-redis/redis_rate/v10"

	"github.com/omeyang/flashkit/pkg/config/xconf"
)

// Config 是流水线的文件化配置块。
// 零值字段使用默认值，便于只覆盖关心的项。
type Config struct {
	// Workers 落库 worker 数量。
	Workers int `koanf:"workers"`

	// QueueSize 订单队列容量。
	QueueSize int `koanf:"queue_size"`

	// LockTTL per-user 落库锁的 TTL，如 "10s"。
	LockTTL time.Duration `koanf:"lock_ttl"`

	// RetryAttempts 落库最大尝试次数（含首次）。
	RetryAttempts int `koanf:"retry_attempts"`

	// RateLimitPerSecond per-user 每秒允许的请求数，0 表示不限流。
	RateLimitPerSecond int `koanf:"rate_limit_per_second"`

	// RateLimitBurst 限流突发容量，0 时取 RateLimitPerSecond。
	RateLimitBurst int `koanf:"rate_limit_burst"`
}

// Validate 校验配置值。
func (c Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalidConfig, c.Workers)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("%w: queue_size must be >= 0, got %d", ErrInvalidConfig, c.QueueSize)
	}
	if c.LockTTL < 0 {
		return fmt.Errorf("%w: lock_ttl must be >= 0, got %s", ErrInvalidConfig, c.LockTTL)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("%w: retry_attempts must be >= 0, got %d", ErrInvalidConfig, c.RetryAttempts)
	}
	if c.RateLimitPerSecond < 0 {
		return fmt.Errorf("%w: rate_limit_per_second must be >= 0, got %d", ErrInvalidConfig, c.RateLimitPerSecond)
	}
	if c.RateLimitBurst < 0 {
		return fmt.Errorf("%w: rate_limit_burst must be >= 0, got %d", ErrInvalidConfig, c.RateLimitBurst)
	}
	return nil
}

// Options 把配置块转换为 New 的选项列表。
// 零值字段不产生选项，保持默认值。
func (c Config) Options() []Option {
	var opts []Option
	if c.Workers > 0 {
		opts = append(opts, WithWorkers(c.Workers))
	}
	if c.QueueSize > 0 {
		opts = append(opts, WithQueueSize(c.QueueSize))
	}
	if c.LockTTL > 0 {
		opts = append(opts, WithLockTTL(c.LockTTL))
	}
	if c.RetryAttempts > 0 {
		opts = append(opts, WithRetryAttempts(c.RetryAttempts))
	}
	if c.RateLimitPerSecond > 0 {
		burst := c.RateLimitBurst
		if burst <= 0 {
			burst = c.RateLimitPerSecond
		}
		opts = append(opts, WithRateLimit(redis_rate.Limit{
			Rate:   c.RateLimitPerSecond,
			Burst:  burst,
			Period: time.Second,
		}))
	}
	return opts
}

// LoadConfig 从 xconf 配置实例加载并校验 seckill 配置块。
// path 是配置中的路径，如 "seckill"。
func LoadConfig(cfg xconf.Config, path string) (Config, error) {
	var c Config
	if err := cfg.Unmarshal(path, &c); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
