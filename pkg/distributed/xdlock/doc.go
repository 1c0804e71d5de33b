// Package xdlock 提供基于 Redis 协调存储的分布式互斥锁。
//
// # 设计理念
//
// xdlock 提供两种锁实现，针对不同的正确性/开销权衡：
//
//   - SimpleLock：SET NX EX + 无条件 DEL 的轻量锁。获取时写入唯一
//     owner token，释放时直接删除 key。释放路径不校验 token，因此
//     存在已知的安全缺口：持有时间超过 TTL 后，可能误删其他持有者
//     刚获取的锁。仅适用于 TTL 远大于临界区执行时间的场景
//     （如缓存重建防击穿）。
//   - RedisFactory：基于 redsync 的完整分布式锁，释放时校验 token
//     （check-then-delete），支持 Extend 续期和 Redlock 多节点模式。
//     适用于需要互斥保护的业务场景（如订单落库）。
//
// # 核心概念
//
//   - SimpleLock / SimpleHandle: 轻量锁及其持有凭证
//   - Factory / LockHandle: redsync 锁工厂及持有凭证
//
// TTL 的作用是防止崩溃的持有者永久占有锁；锁本身不阻止调用方持有
// 超过 TTL——那是调用方必须避免的正确性错误。
//
// # 选择建议
//
//	| 场景 | 推荐方案 |
//	|------|----------|
//	| 缓存防击穿（短临界区） | SimpleLock |
//	| 业务互斥（单节点） | NewRedisFactory(client) |
//	| 业务互斥（多节点） | NewRedisFactory(client1, client2, client3) |
//
// 详细使用示例请参考 example_test.go 中的 Example 函数。
package xdlock
