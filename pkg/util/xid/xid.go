package xid

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// =============================================================================
// 错误定义
// =============================================================================

var (
	// ErrNilClient 客户端为空。
	ErrNilClient = errors.New("xid: client is nil")

	// ErrEmptyNamespace namespace 为空。
	// 序列号计数器按 namespace 隔离，空 namespace 几乎总是使用错误。
	ErrEmptyNamespace = errors.New("xid: namespace must not be empty")

	// ErrSequenceOverflow 当日序列号超出 32 位上限。
	// 单日预算约 42.9 亿次，超出后继续拼接会污染时间戳位段。
	ErrSequenceOverflow = errors.New("xid: daily sequence overflow")

	// ErrInvalidEpoch epoch 配置无效。
	ErrInvalidEpoch = errors.New("xid: epoch must be positive and in the past")
)

// =============================================================================
// 位布局常量
// =============================================================================

const (
	// sequenceBits 序列号位数。
	sequenceBits = 32
	// maxSequence 单日序列号上限。
	maxSequence = (1 << sequenceBits) - 1

	// DefaultEpoch 默认起始时间戳：2022-01-01T00:00:00Z。
	DefaultEpoch int64 = 1640995200

	// counterKeyPrefix 计数器 key 前缀。
	counterKeyPrefix = "icr:"
	// dateLayout 计数器 key 中的日期格式，按天轮换。
	dateLayout = "2006:01:02"
)

// =============================================================================
// Generator
// =============================================================================

// Generator 基于 Redis 计数器的 ID 生成器。
// 所有方法都是并发安全的。
type Generator struct {
	client redis.UniversalClient
	epoch  int64
	// now 取当前时间。默认为 time.Now，测试中可替换。
	now func() time.Time
}

// Option 定义 Generator 的配置选项。
type Option func(*Generator)

// WithEpoch 设置起始时间戳（Unix 秒）。
// 默认值：DefaultEpoch（2022-01-01T00:00:00Z）。
// 所有实例必须使用相同的 epoch，否则 ID 排序失去意义。
func WithEpoch(epoch int64) Option {
	return func(g *Generator) {
		g.epoch = epoch
	}
}

// withNow 替换时钟，仅测试使用。
func withNow(fn func() time.Time) Option {
	return func(g *Generator) {
		g.now = fn
	}
}

// NewGenerator 创建 ID 生成器。
// client 必须是已初始化的 redis.UniversalClient。
func NewGenerator(client redis.UniversalClient, opts ...Option) (*Generator, error) {
	if client == nil {
		return nil, ErrNilClient
	}

	g := &Generator{
		client: client,
		epoch:  DefaultEpoch,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	if g.epoch <= 0 || g.epoch > g.now().Unix() {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidEpoch, g.epoch)
	}

	return g, nil
}

// NextID 生成 namespace 下的下一个全局 ID。
//
// 高 31 位为秒级时间戳（相对 epoch），低 32 位为当日序列号。
// INCR 失败时错误原样返回，绝不在本地合成 ID。
func (g *Generator) NextID(ctx context.Context, namespace string) (int64, error) {
	if namespace == "" {
		return 0, ErrEmptyNamespace
	}

	// 日期与时间戳取同一时刻，避免跨日瞬间 key 与时间戳错位
	now := g.now().UTC()
	timestamp := now.Unix() - g.epoch

	key := counterKey(namespace, now)
	seq, err := g.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("xid: increment counter: %w", err)
	}
	if seq > maxSequence {
		return 0, fmt.Errorf("%w: namespace %q sequence %d", ErrSequenceOverflow, namespace, seq)
	}

	return timestamp<<sequenceBits | seq, nil
}

// counterKey 生成计数器 key："icr:{namespace}:{yyyy:MM:dd}"。
// key 内嵌日期，计数器每天自然轮换归零。
func counterKey(namespace string, now time.Time) string {
	return counterKeyPrefix + namespace + ":" + now.Format(dateLayout)
}

// =============================================================================
// Decompose
// =============================================================================

// Components 表示 ID 分解后的各组成部分。
type Components struct {
	// ID 原始 ID 值
	ID int64
	// Timestamp 时间戳部分（Unix 秒，已还原 epoch 偏移）
	Timestamp int64
	// Sequence 当日序列号部分
	Sequence int64
}

// Decompose 按位布局分解 ID。
// 纯函数，不需要 Redis 连接。epoch 必须与生成时一致。
func Decompose(id, epoch int64) Components {
	return Components{
		ID:        id,
		Timestamp: (id >> sequenceBits) + epoch,
		Sequence:  id & maxSequence,
	}
}
