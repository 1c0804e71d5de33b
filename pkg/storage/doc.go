// Package storage 提供数据存储相关的子包。
//
// 子包列表：
//   - xcache: Redis 缓存客户端，缓存穿透/击穿防护与逻辑过期
//
// 设计原则：
//   - 读策略显式选择，调用方按数据特征权衡一致性与延迟
//   - 写回尽力而为，缓存故障不放大为业务故障
package storage
