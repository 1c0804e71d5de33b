package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"

	"github.com/omeyang/flashkit/pkg/business/xseckill"
	"github.com/omeyang/flashkit/pkg/config/xconf"
	"github.com/omeyang/flashkit/pkg/storage/xcache"
	"github.com/omeyang/flashkit/pkg/util/xid"
)

// defaultWarmTTL 是 warm 命令的默认逻辑过期时长。
const defaultWarmTTL = 30 * time.Minute

// exitError 表示需要非零退出码但已完成输出的场景。
// 命令内部已完成所有输出，main 只需设置退出码。
type exitError struct {
	code int
}

func (e *exitError) Error() string { return "" }

// usageError 表示参数校验失败，run() 将其映射为退出码 2。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

// isCLIUsageError 判断错误是否由 CLI 框架的参数解析产生。
// urfave/cli 的 flag 解析错误和未知命令错误没有导出类型，只能按消息匹配。
func isCLIUsageError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "flag provided but not defined") ||
		strings.Contains(msg, "No help topic for") ||
		strings.Contains(msg, "invalid value")
}

// 创建所有子命令。
func createCommands() []*cli.Command {
	return []*cli.Command{
		createSeedCommand(),
		createWarmCommand(),
		createIDCommand(),
	}
}

// createSeedCommand 创建 seed 子命令（预置券库存）。
func createSeedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "预置秒杀券库存并清空已下单用户集合",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "voucher",
				Aliases: []string{"v"},
				Usage:   "券 ID",
			},
			&cli.IntFlag{
				Name:    "stock",
				Aliases: []string{"s"},
				Usage:   "初始库存",
				Value:   -1,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			voucherID := int64(cmd.Int("voucher"))
			stock := int64(cmd.Int("stock"))
			return cmdSeed(ctx, cmd, voucherID, stock)
		},
	}
}

// createWarmCommand 创建 warm 子命令（写入逻辑过期缓存）。
func createWarmCommand() *cli.Command {
	return &cli.Command{
		Name:  "warm",
		Usage: "将 JSON 载荷以逻辑过期信封写入缓存",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "key",
				Aliases: []string{"k"},
				Usage:   "完整缓存键",
			},
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"f"},
				Usage:   "JSON 载荷文件路径",
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "逻辑过期时长",
				Value: defaultWarmTTL,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			key := cmd.String("key")
			file := cmd.String("file")
			ttl := cmd.Duration("ttl")
			return cmdWarm(ctx, cmd, key, file, ttl)
		},
	}
}

// createIDCommand 创建 id 子命令（生成全局唯一 ID）。
func createIDCommand() *cli.Command {
	return &cli.Command{
		Name:  "id",
		Usage: "批量生成全局唯一 ID",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "namespace",
				Aliases: []string{"n"},
				Usage:   "业务命名空间",
			},
			&cli.IntFlag{
				Name:  "count",
				Usage: "生成数量",
				Value: 1,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			namespace := cmd.String("namespace")
			count := cmd.Int("count")
			return cmdID(ctx, cmd, namespace, count)
		},
	}
}

// cmdSeed 预置券库存。
func cmdSeed(ctx context.Context, cmd *cli.Command, voucherID, stock int64) error {
	if voucherID <= 0 {
		return &usageError{msg: "--voucher 必须为正整数"}
	}
	if stock < 0 {
		return &usageError{msg: "--stock 必须为非负整数"}
	}

	client, cleanup, err := newRedisClient(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := xseckill.SeedStock(ctx, client, voucherID, stock); err != nil {
		return err
	}

	fmt.Fprintf(cmd.Root().Writer, "券 %d 库存已预置为 %d\n", voucherID, stock)
	return nil
}

// cmdWarm 将 JSON 载荷以逻辑过期信封写入缓存键。
func cmdWarm(ctx context.Context, cmd *cli.Command, key, file string, ttl time.Duration) error {
	if key == "" {
		return &usageError{msg: "--key 不能为空"}
	}
	if file == "" {
		return &usageError{msg: "--file 不能为空"}
	}
	if ttl <= 0 {
		return &usageError{msg: "--ttl 必须为正时长"}
	}

	payload, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("读取载荷文件失败: %w", err)
	}
	if !json.Valid(payload) {
		return &usageError{msg: fmt.Sprintf("载荷文件 %s 不是合法 JSON", file)}
	}

	client, cleanup, err := newRedisClient(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	// warm 只做写入，读回退 loader 永远不会被调用。
	cache, err := xcache.NewClient(client, func(_ context.Context, _ string) (json.RawMessage, error) {
		return nil, xcache.ErrNotFound
	})
	if err != nil {
		return err
	}
	defer cache.Close()

	if err := cache.SetWithLogicalExpire(ctx, key, json.RawMessage(payload), ttl); err != nil {
		return err
	}

	fmt.Fprintf(cmd.Root().Writer, "缓存键 %s 已预热，逻辑过期 %s\n", key, ttl)
	return nil
}

// cmdID 批量生成全局唯一 ID，每行输出一个。
func cmdID(ctx context.Context, cmd *cli.Command, namespace string, count int) error {
	if namespace == "" {
		return &usageError{msg: "--namespace 不能为空"}
	}
	if count <= 0 {
		return &usageError{msg: "--count 必须为正整数"}
	}

	client, cleanup, err := newRedisClient(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	gen, err := xid.NewGenerator(client)
	if err != nil {
		return err
	}

	for range count {
		id, err := gen.NextID(ctx, namespace)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.Root().Writer, id)
	}
	return nil
}

// newRedisClient 按全局选项创建 Redis 客户端并验证连通性。
// --config 指定的配置文件中 redis.addr 优先于 --redis-addr。
func newRedisClient(ctx context.Context, cmd *cli.Command) (redis.UniversalClient, func(), error) {
	addr, err := resolveRedisAddr(cmd)
	if err != nil {
		return nil, nil, err
	}

	client := redis.NewClient(&redis.Options{Addr: addr})

	pingCtx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		closeErr := client.Close()
		return nil, nil, errors.Join(fmt.Errorf("连接 Redis %s 失败: %w", addr, err), closeErr)
	}

	return client, func() { _ = client.Close() }, nil
}

// resolveRedisAddr 解析 Redis 地址：配置文件 redis.addr > --redis-addr。
func resolveRedisAddr(cmd *cli.Command) (string, error) {
	addr := cmd.String("redis-addr")

	if path := cmd.String("config"); path != "" {
		cfg, err := xconf.New(path)
		if err != nil {
			return "", fmt.Errorf("加载配置文件失败: %w", err)
		}
		if configured := cfg.Client().String("redis.addr"); configured != "" {
			addr = configured
		}
	}

	if addr == "" {
		return "", &usageError{msg: "Redis 地址不能为空"}
	}
	return addr, nil
}

// setupSignalHandler 设置信号处理。
// 第一次信号优雅取消，第二次信号强制退出（退出码 130 = 128 + SIGINT）。
func setupSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel() // 第一次信号: 优雅取消

		<-sigCh
		signal.Stop(sigCh) // 回收订阅
		os.Exit(130)       // 第二次信号: 强制退出
	}()
}
