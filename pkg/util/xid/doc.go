// Package xid 提供基于 Redis 计数器的分布式全局 ID 生成器。
//
// # ID 结构
//
// ID 为 64 位整数，由两部分拼接而成：
//
//	| 31 位时间戳（秒，自 epoch 起） | 32 位当日序列号 |
//
// 时间戳取自本机时钟，序列号来自 Redis 的 INCR——计数器 key 按
// "icr:{namespace}:{yyyy:MM:dd}" 命名，每天自然轮换，单日序列号
// 预算约 42.9 亿次。同一 namespace 内，只要时钟不回拨，ID 严格递增。
//
// # 失败语义
//
// INCR 失败时错误原样上抛，绝不在本地合成序列号——本地合成会
// 破坏跨实例唯一性。调用方自行决定重试策略。
//
// # 与雪花类方案的区别
//
// 序列号的唯一性来自协调存储而非机器 ID 划分，因此无需分配
// machine ID，也不存在时钟回拨导致的重复风险（回拨只会暂时
// 破坏递增性，不破坏唯一性）。代价是每次生成需要一次 Redis 往返。
package xid
