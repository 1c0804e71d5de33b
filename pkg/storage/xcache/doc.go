// Package xcache 提供基于 Redis 的泛型 Cache-Aside 客户端。
//
// # 三种读取策略
//
// Client 针对同一份数据提供三种读取策略，按一致性和可用性权衡选择：
//
//   - GetPassThrough：缓存穿透防护。未命中时同步回源，源中不存在的 id
//     写入短 TTL 空值墓碑，后续读直接返回 ErrNotFound 不再回源。
//   - GetWithMutex：缓存击穿防护。未命中时只有持有分布式互斥锁的调用方
//     回源重建，其余调用方固定退避后重读缓存（有界重试，支持 ctx 取消）。
//   - GetWithLogicalExpire：逻辑过期。数据以 {data, expireAt} 信封存储且
//     不设置存储层 TTL；过期后读取方立即返回陈旧数据，由后台 worker pool
//     异步重建，读路径永不阻塞。该策略要求数据预热（见 Warmer），
//     信封不存在时直接返回 ErrNotFound。
//
// # 错误语义
//
// 源数据不存在统一返回 ErrNotFound；回源函数失败包装为 ErrLoadFailed，
// 失败结果绝不写入缓存（防止错误污染）。缓存写入本身是 best-effort，
// 失败仅记录日志，不影响已加载数据的返回。
//
// # 生命周期
//
// GetWithLogicalExpire 的异步重建依赖内部 worker pool，
// 使用完毕后必须调用 Close 释放。
//
// # 锁
//
// 重建锁使用 xdlock.SimpleLock（SET NX EX，释放时无条件删除）。
// 锁 key 格式：lock:{prefix}{id}。锁在此处仅做回源次数收敛，
// 偶发的误删最多导致一次多余回源，不破坏数据正确性。
package xcache
