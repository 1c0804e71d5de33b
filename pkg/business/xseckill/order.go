package xseckill

import (
	"context"
	"time"
)

// Order 是一笔已通过准入的订单。
type Order struct {
	// OrderID 是全局唯一、趋势递增的订单号。
	OrderID int64 `json:"order_id"`

	// UserID 是下单用户。
	UserID int64 `json:"user_id"`

	// VoucherID 是抢购的券/商品。
	VoucherID int64 `json:"voucher_id"`

	// CreatedAt 是通过准入的时刻。
	CreatedAt time.Time `json:"created_at"`
}

// Committer 负责把订单写入权威存储（事务性扣库存 + 建单）。
//
// 实现约定：
//   - 订单已存在时返回 ErrAlreadyExists（可包装），worker 不重试；
//   - 权威库存不足时返回 ErrInsufficientStock（可包装），worker 不重试；
//   - 其他错误视为瞬时故障，worker 有界重试。
//
// Commit 必须幂等：重试可能导致同一订单多次提交。
type Committer interface {
	Commit(ctx context.Context, order Order) error
}
