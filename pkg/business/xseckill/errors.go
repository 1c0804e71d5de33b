package xseckill

import "errors"

// =============================================================================
// 构造与生命周期错误
// =============================================================================

var (
	// ErrNilClient 表示传入的 Redis 客户端为 nil。
	ErrNilClient = errors.New("xseckill: nil client")

	// ErrNilIDGenerator 表示订单号生成器为 nil。
	ErrNilIDGenerator = errors.New("xseckill: nil id generator")

	// ErrNilCommitter 表示落库协作方为 nil。
	ErrNilCommitter = errors.New("xseckill: nil committer")

	// ErrPipelineStopped 表示流水线已停止，无法接受新请求。
	ErrPipelineStopped = errors.New("xseckill: pipeline is stopped")

	// ErrInvalidStock 表示库存参数为负值。
	ErrInvalidStock = errors.New("xseckill: stock must be non-negative")

	// ErrInvalidConfig 表示配置参数无效。
	ErrInvalidConfig = errors.New("xseckill: invalid configuration")
)

// =============================================================================
// 准入结果
// =============================================================================

var (
	// ErrRateLimited 表示请求被 per-user 限流拒绝。
	ErrRateLimited = errors.New("xseckill: rate limited")

	// ErrStockRejected 表示准入脚本判定库存不足（计数器缺失视同无库存）。
	ErrStockRejected = errors.New("xseckill: out of stock")

	// ErrDuplicateRejected 表示准入脚本判定该用户已下过单。
	ErrDuplicateRejected = errors.New("xseckill: duplicate order")
)

// =============================================================================
// Committer 终态哨兵
// =============================================================================

var (
	// ErrAlreadyExists 表示订单在权威存储中已存在。
	// Committer 返回该错误（可包装）时 worker 不再重试。
	ErrAlreadyExists = errors.New("xseckill: order already exists")

	// ErrInsufficientStock 表示权威存储的二次校验判定库存不足。
	// Committer 返回该错误（可包装）时 worker 不再重试。
	ErrInsufficientStock = errors.New("xseckill: insufficient stock")
)
