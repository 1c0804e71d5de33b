// flashctl 是 flashkit 秒杀组件的运维命令行工具。
//
// 用法:
//
//	flashctl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-r, --redis-addr  Redis 地址 (默认: 127.0.0.1:6379)
//	-c, --config      配置文件路径 (YAML/JSON，可选；redis.addr 优先于 --redis-addr)
//	-t, --timeout     命令超时时间 (默认: 30s)
//
// 命令:
//
//	seed     预置秒杀券库存并清空已下单用户集合
//	warm     将 JSON 载荷以逻辑过期信封写入缓存
//	id       批量生成全局唯一 ID
//	help     显示帮助信息
//
// 退出码:
//
//	0: 命令执行成功
//	1: 命令执行失败（Redis 不可达、配置加载失败等）
//	2: 参数错误（缺少必需参数、非法取值、未知命令等）
//
// 示例:
//
//	flashctl seed --voucher 10 --stock 200          # 上架券 10，库存 200
//	flashctl warm --key cache:shop:1 --file shop.json --ttl 30m
//	flashctl id --namespace order --count 5         # 生成 5 个订单 ID
//	flashctl -r 10.0.0.5:6379 seed --voucher 10 --stock 200
//	flashctl -c deploy.yaml id --namespace shop     # 从配置文件读取 Redis 地址
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"
)

// 默认值。
const (
	defaultRedisAddr = "127.0.0.1:6379"
	defaultTimeout   = 30 * time.Second
)

// 版本信息（可通过 -ldflags 注入，例如:
//
//	go build -ldflags "-X main.Version=1.0.0 -X main.GitCommit=$(git rev-parse --short HEAD) -X main.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
//
// ）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run(os.Args))
}

// createApp 创建 CLI 应用。
func createApp() *cli.Command {
	return &cli.Command{
		Name:    "flashctl",
		Usage:   "flashkit 秒杀组件运维工具",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "redis-addr",
				Aliases: []string{"r"},
				Usage:   "Redis 地址",
				Value:   defaultRedisAddr,
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径（redis.addr 优先于 --redis-addr）",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "命令超时时间",
				Value:   defaultTimeout,
			},
		},
		Commands:       createCommands(),
		DefaultCommand: "help",
		Authors: []any{
			"FlashKit Team",
		},
		// 设计决策: 禁止 urfave/cli 直接调用 os.Exit，
		// 由 run() 统一处理退出码映射，确保与文档退出码契约一致。
		ExitErrHandler: func(_ context.Context, _ *cli.Command, err error) {
			// ExitCoder 错误（如未知命令）的消息需在此输出，
			// 替代 HandleExitCoder 的默认 os.Exit 行为。
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(os.Stderr, err)
			}
		},
		Description: `flashctl 面向秒杀活动的上架与排障场景，直接操作 Redis 中
flashkit 约定的键结构。

主要命令:
  seed                预置券库存（seckill:stock:<券ID>），同时清空去重集合
    --voucher, -v     券 ID（必需，正整数）
    --stock, -s       初始库存（必需，非负整数）

  warm                以逻辑过期信封写入缓存键，供 GetWithLogicalExpire 读取
    --key, -k         完整缓存键（必需）
    --file, -f        JSON 载荷文件路径（必需）
    --ttl             逻辑过期时长（默认: 30m）

  id                  基于 Redis 自增生成全局唯一 ID
    --namespace, -n   业务命名空间（必需）
    --count           生成数量（默认: 1）`,
	}
}

func run(args []string) int {
	app := createApp()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setupSignalHandler(cancel)

	if err := app.Run(ctx, args); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(os.Stderr, "参数错误: %v\n", usageErr)
			return 2
		}
		// CLI 框架产生的参数错误（如未知 flag、未知命令）也返回退出码 2，
		// 与文档契约"参数错误 → 退出码 2"保持一致。
		if isCLIUsageError(err) {
			// ExitErrHandler 或 flag 解析器已向 stderr 输出错误详情，此处仅设置退出码
			return 2
		}
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}

	return 0
}
