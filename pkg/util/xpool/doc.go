// Package xpool 提供通用的有界 worker pool 实现。
//
// Pool 是一个轻量级的泛型 worker pool，用于异步执行任务。
// 支持以下特性：
//   - 泛型任务类型
//   - 可配置的 worker 数量和队列大小
//   - 两种生产者语义：Submit（非阻塞，队列满返回 ErrQueueFull）
//     和 SubmitWait（阻塞背压，支持 context 取消）
//   - 优雅关闭（处理完队列中的任务后退出）
//   - panic 恢复（单个任务失败不影响 pool）
//   - 可注入自定义日志记录器（WithLogger）与实例名称（WithName）
//
// # 两种提交语义
//
// Submit 用于可丢弃的后台任务（如缓存异步重建）：队列满时立即返回
// ErrQueueFull，调用方丢弃任务并记录日志即可。
//
// SubmitWait 用于不可丢弃的任务（如已通过准入的下单请求）：队列满时
// 阻塞生产者形成背压，持续过载时等价于限制接受速率；通过传入的
// context 取消等待。
//
// # 注意事项
//
//   - Stop 会等待所有队列中的任务处理完成，不可在 handler 内调用
//   - panic 的任务不会被重试，仅记录日志后丢弃
//   - handler 参数不能为 nil，否则 New 返回 ErrNilHandler
package xpool
