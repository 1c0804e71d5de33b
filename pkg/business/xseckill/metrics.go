package xseckill

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// 指标名称常量
const (
	// metricNameSubmittedTotal 准入请求总数计数器
	metricNameSubmittedTotal = "xseckill.submitted.total"
	// metricNameRejectedTotal 被拒绝请求计数器（reason 属性区分原因）
	metricNameRejectedTotal = "xseckill.rejected.total"
	// metricNameAcceptedTotal 通过准入的请求计数器
	metricNameAcceptedTotal = "xseckill.accepted.total"
	// metricNameCommittedTotal 成功落库的订单计数器
	metricNameCommittedTotal = "xseckill.committed.total"
	// metricNameCommitFailedTotal 落库最终失败的订单计数器
	metricNameCommitFailedTotal = "xseckill.commit.failed.total"
	// metricNameLockMissedTotal worker 未能获取 per-user 锁的计数器
	metricNameLockMissedTotal = "xseckill.lock.missed.total"
	// metricNameCommitDuration 单笔订单落库耗时直方图
	metricNameCommitDuration = "xseckill.commit.duration"
	// metricNameQueueDepth 订单队列深度观测仪表
	metricNameQueueDepth = "xseckill.queue.depth"
)

// 拒绝原因属性值
const (
	rejectReasonRateLimited = "rate_limited"
	rejectReasonOutOfStock  = "out_of_stock"
	rejectReasonDuplicate   = "duplicate"
)

// Metrics 秒杀流水线指标收集器
type Metrics struct {
	meter           metric.Meter
	submittedTotal  metric.Int64Counter
	rejectedTotal   metric.Int64Counter
	acceptedTotal   metric.Int64Counter
	committedTotal  metric.Int64Counter
	commitFailed    metric.Int64Counter
	lockMissedTotal metric.Int64Counter
	commitDuration  metric.Float64Histogram
	registration    metric.Registration
}

// NewMetrics 创建指标收集器。
// meterProvider 为 nil 时返回 nil（不收集指标），nil 接收者上的
// 记录方法都是空操作。queueDepth 回调用于观测订单队列深度。
func NewMetrics(meterProvider metric.MeterProvider, queueDepth func() int64) (*Metrics, error) {
	if meterProvider == nil {
		return nil, nil
	}

	meter := meterProvider.Meter("xseckill",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	submittedTotal, err := meter.Int64Counter(
		metricNameSubmittedTotal,
		metric.WithDescription("准入请求总数"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	rejectedTotal, err := meter.Int64Counter(
		metricNameRejectedTotal,
		metric.WithDescription("被拒绝的准入请求数"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	acceptedTotal, err := meter.Int64Counter(
		metricNameAcceptedTotal,
		metric.WithDescription("通过准入的请求数"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	committedTotal, err := meter.Int64Counter(
		metricNameCommittedTotal,
		metric.WithDescription("成功落库的订单数"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, err
	}

	commitFailed, err := meter.Int64Counter(
		metricNameCommitFailedTotal,
		metric.WithDescription("重试耗尽仍落库失败的订单数"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, err
	}

	lockMissedTotal, err := meter.Int64Counter(
		metricNameLockMissedTotal,
		metric.WithDescription("worker 未能获取 per-user 锁的次数"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, err
	}

	commitDuration, err := meter.Float64Histogram(
		metricNameCommitDuration,
		metric.WithDescription("单笔订单落库耗时（含重试）"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0,
		),
	)
	if err != nil {
		return nil, err
	}

	m := &Metrics{
		meter:           meter,
		submittedTotal:  submittedTotal,
		rejectedTotal:   rejectedTotal,
		acceptedTotal:   acceptedTotal,
		committedTotal:  committedTotal,
		commitFailed:    commitFailed,
		lockMissedTotal: lockMissedTotal,
		commitDuration:  commitDuration,
	}

	if queueDepth != nil {
		gauge, gaugeErr := meter.Int64ObservableGauge(
			metricNameQueueDepth,
			metric.WithDescription("待落库订单队列深度"),
			metric.WithUnit("{order}"),
		)
		if gaugeErr != nil {
			return nil, gaugeErr
		}
		reg, regErr := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
			o.ObserveInt64(gauge, queueDepth())
			return nil
		}, gauge)
		if regErr != nil {
			return nil, regErr
		}
		m.registration = reg
	}

	return m, nil
}

// Close 注销队列深度观测回调。
func (m *Metrics) Close() error {
	if m == nil || m.registration == nil {
		return nil
	}
	return m.registration.Unregister()
}

// RecordSubmitted 记录一次准入请求。
func (m *Metrics) RecordSubmitted(ctx context.Context) {
	if m == nil {
		return
	}
	m.submittedTotal.Add(context.WithoutCancel(ctx), 1)
}

// RecordRejected 记录一次被拒绝的准入请求。
func (m *Metrics) RecordRejected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.rejectedTotal.Add(context.WithoutCancel(ctx), 1,
		metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordAccepted 记录一次通过准入的请求。
func (m *Metrics) RecordAccepted(ctx context.Context) {
	if m == nil {
		return
	}
	m.acceptedTotal.Add(context.WithoutCancel(ctx), 1)
}

// RecordCommit 记录一次落库结果与耗时。
func (m *Metrics) RecordCommit(ctx context.Context, ok bool, duration time.Duration) {
	if m == nil {
		return
	}
	// 使用 context.WithoutCancel 确保即使 ctx 被取消，指标仍能记录
	metricsCtx := context.WithoutCancel(ctx)
	if ok {
		m.committedTotal.Add(metricsCtx, 1)
	} else {
		m.commitFailed.Add(metricsCtx, 1)
	}
	m.commitDuration.Record(metricsCtx, duration.Seconds(),
		metric.WithAttributes(attribute.Bool("ok", ok)))
}

// RecordLockMissed 记录一次 per-user 锁获取失败。
func (m *Metrics) RecordLockMissed(ctx context.Context) {
	if m == nil {
		return
	}
	m.lockMissedTotal.Add(context.WithoutCancel(ctx), 1)
}
