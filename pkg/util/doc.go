// Package util 提供通用工具相关的子包。
//
// 子包列表：
//   - xid: 全局唯一 ID 生成器，时间戳高位 + Redis 自增低位
//   - xpool: 泛型 Worker Pool，可配置 worker/队列大小、优雅关闭
//
// 设计原则：
//   - 泛型 API，调用方无需类型断言
//   - 关闭语义明确，不丢已入队任务
package util
