package xdlock_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/omeyang/flashkit/pkg/distributed/xdlock"
)

// exampleRedisSetup 创建 miniredis + client 用于示例测试。
// 调用方必须 defer 返回的 cleanup 函数。
func exampleRedisSetup() (redis.UniversalClient, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		log.Fatal(err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cleanup := func() {
		_ = client.Close()
		mr.Close()
	}

	return client, cleanup
}

// Example_simpleLock 演示轻量锁的基本用法（缓存防击穿场景）。
func Example_simpleLock() {
	// 使用 miniredis 模拟 Redis（实际使用时换成真实 Redis）
	client, cleanup := exampleRedisSetup()
	defer cleanup()

	lock, err := xdlock.NewSimple(client)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	handle, err := lock.TryLock(ctx, "shop:1", 10*time.Second)
	if err != nil {
		log.Fatal(err)
	}
	if handle == nil {
		fmt.Println("lock held by another caller")
		return
	}
	defer handle.Unlock(ctx)

	fmt.Println("lock acquired:", handle.Key())
	// Output: lock acquired: lock:shop:1
}

// Example_redisFactory 演示 redsync 锁工厂的用法（订单互斥场景）。
func Example_redisFactory() {
	client, cleanup := exampleRedisSetup()
	defer cleanup()

	factory, err := xdlock.NewRedisFactory(client)
	if err != nil {
		log.Fatal(err)
	}
	defer factory.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	handle, err := factory.TryLock(ctx, "order:1001", xdlock.WithExpiry(10*time.Second))
	if err != nil {
		log.Fatal(err)
	}
	if handle == nil {
		fmt.Println("duplicate order in flight")
		return
	}
	defer handle.Unlock(ctx)

	fmt.Println("lock acquired:", handle.Key())
	// Output: lock acquired: lock:order:1001
}
