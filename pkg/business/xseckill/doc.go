// Package xseckill 提供秒杀（限量抢购）的原子准入与异步落库流水线。
//
// # 设计
//
// 热路径只接触 Redis：Submit 先用 Lua 脚本原子地完成库存校验、
// 去重校验、扣减库存、记录用户四步，脚本通过后立即返回订单号，
// 订单本身进入有界队列由后台 worker 异步落库。权威库存副本只在
// Redis 中，进程内不持有库存状态，多实例部署天然一致。
//
// 准入结果只有三种：接受、库存不足（ErrStockRejected）、
// 重复下单（ErrDuplicateRejected）。可选的 per-user 限流
// （redis_rate）在准入之前执行。
//
// # 异步落库
//
// worker 对每笔订单先获取 per-user 分布式锁（防同一用户并发落库），
// 再经有界重试（retry-go）调用注入的 Committer；Committer 的
// ErrAlreadyExists / ErrInsufficientStock 是终态，绝不重试。
// 可选的熔断器（gobreaker）包裹每次提交。落库路径的失败只通过
// 日志与指标暴露，调用方在 Submit 返回后无法再收到错误。
//
// # 队列语义
//
// 已通过准入的订单不可丢弃：入队使用阻塞的 SubmitWait 形成背压，
// 队列持续满载时等价于限制接受速率。
//
// # 指标
//
// 注入 otel MeterProvider 后记录准入、拒绝、落库、耗时与队列深度；
// 不注入则完全禁用，零开销。
package xseckill
