package xcache

import "errors"

// =============================================================================
// 通用错误
// =============================================================================

var (
	// ErrNilClient 表示传入的 Redis 客户端为 nil。
	ErrNilClient = errors.New("xcache: nil client")

	// ErrNilLoader 表示回源函数为 nil。
	ErrNilLoader = errors.New("xcache: nil loader function")

	// ErrEmptyKey 表示传入的 key 或 id 为空字符串。
	// 空字符串在 Redis 中合法但几乎总是使用错误，应在入口处 fail-fast。
	ErrEmptyKey = errors.New("xcache: empty key")

	// ErrInvalidTTL 表示 TTL 参数非正值。
	ErrInvalidTTL = errors.New("xcache: ttl must be positive")
)

// =============================================================================
// 读取策略相关错误
// =============================================================================

var (
	// ErrNotFound 表示源数据不存在。
	// 三种读取策略统一返回该哨兵错误：穿透策略命中墓碑、回源函数报告
	// 不存在、逻辑过期策略的信封缺失，均折叠为 ErrNotFound。
	ErrNotFound = errors.New("xcache: entry not found")

	// ErrLoadFailed 表示回源函数执行失败（区别于"源中不存在"）。
	// 该错误绝不写入缓存，调用方可用 errors.Is 判断后重试。
	ErrLoadFailed = errors.New("xcache: load failed")

	// ErrLockFailed 表示互斥重建的有界重试次数耗尽仍未等到缓存或锁。
	// 通常意味着重建方执行过慢或 WithMutexRetries 配置过小。
	ErrLockFailed = errors.New("xcache: mutex retries exhausted")
)

// =============================================================================
// Warmer 相关错误
// =============================================================================

var (
	// ErrNilCache 表示传入 Warmer 的缓存客户端为 nil。
	ErrNilCache = errors.New("xcache: nil cache client")

	// ErrInvalidSchedule 表示 cron 表达式无法解析。
	ErrInvalidSchedule = errors.New("xcache: invalid cron schedule")
)
