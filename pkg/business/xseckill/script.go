package xseckill

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// 准入脚本返回值。
const (
	reserveAccepted   = 0
	reserveOutOfStock = 1
	reserveDuplicate  = 2
)

// reserveScript 原子执行四步准入：查库存、查重、扣减、记录用户。
// 库存先于去重检查：计数器缺失或非正值直接判定无库存。
// 四步在单脚本内执行，库存计数器对外永远不可见为负。
var reserveScript = redis.NewScript(`
local stock = redis.call('get', KEYS[1])
if (stock == false or tonumber(stock) <= 0) then
    return 1
end
if (redis.call('sismember', KEYS[2], ARGV[1]) == 1) then
    return 2
end
redis.call('incrby', KEYS[1], -1)
redis.call('sadd', KEYS[2], ARGV[1])
return 0
`)

// stockKey 返回库存计数器的 key。
func stockKey(voucherID int64) string {
	return fmt.Sprintf("seckill:stock:%d", voucherID)
}

// orderSetKey 返回已下单用户集合的 key。
func orderSetKey(voucherID int64) string {
	return fmt.Sprintf("seckill:order:%d", voucherID)
}

// orderLockKey 返回 per-user 落库锁的 key（不含 "lock:" 前缀）。
func orderLockKey(userID int64) string {
	return fmt.Sprintf("order:%d", userID)
}

// reserve 执行准入脚本，返回脚本判定结果。
func (p *Pipeline) reserve(ctx context.Context, userID, voucherID int64) (int, error) {
	keys := []string{stockKey(voucherID), orderSetKey(voucherID)}
	res, err := reserveScript.Run(ctx, p.client, keys, userID).Int()
	if err != nil {
		return 0, fmt.Errorf("xseckill: reserve script: %w", err)
	}
	return res, nil
}

// SeedStock 预置某个券的库存：写入计数器并清空已下单用户集合。
// 用于活动上架和测试准备，两步在 MULTI/EXEC 中原子执行。
func SeedStock(ctx context.Context, client redis.UniversalClient, voucherID, stock int64) error {
	if client == nil {
		return ErrNilClient
	}
	if stock < 0 {
		return ErrInvalidStock
	}

	_, err := client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, stockKey(voucherID), stock, 0)
		pipe.Del(ctx, orderSetKey(voucherID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("xseckill: seed stock: %w", err)
	}
	return nil
}

// SeedStock 是 [SeedStock] 的便捷方法，作用于流水线自身的客户端。
func (p *Pipeline) SeedStock(ctx context.Context, voucherID, stock int64) error {
	return SeedStock(ctx, p.client, voucherID, stock)
}
