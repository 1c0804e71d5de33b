package xpool

import "log/slog"

// Option 定义 Pool 的配置选项。
type Option func(*options)

type options struct {
	logger *slog.Logger
	name   string
}

func defaultOptions() options {
	return options{logger: slog.Default()}
}

// WithLogger 注入日志记录器，panic 恢复与任务丢弃都经由它输出。
// 默认值：slog.Default()。传入 nil 将被忽略。
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithName 设置实例名称，用于区分同一进程内多个 pool 的日志来源。
// 默认为空，日志中不带名称。
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}
