// Package distributed 提供分布式协调相关的子包。
//
// 子包列表：
//   - xdlock: 基于 Redis 的分布式锁，SETNX 简单锁与 Redsync 多数派锁
//
// 设计原则：
//   - 锁持有凭证随句柄返回，避免误释放他人持有的锁
//   - 支持 context 取消和超时
package distributed
