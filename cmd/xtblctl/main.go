// xtblctl 是 tablekit 弹性表的命令行工具。
//
// 用法:
//
//	xtblctl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-c, --config      配置文件路径 (.yaml/.yml/.json)
//	    --uri         MongoDB 连接串（覆盖配置文件）
//	    --database    数据库名（覆盖配置文件）
//	    --collection  集合名（覆盖配置文件）
//
// 命令:
//
//	check                      检查表是否就绪，必要时创建集合与键索引
//	get <partition> <row>      按键读取一条记录（JSON 输出）
//	put <partition> <row|->    写入一条记录，"-" 自动生成 UUID 行键
//	delete <partition> <row>   删除一条记录（缺失不视为错误）
//	scan [-p 分区]             按块扫描并逐条输出
//
// 退出码:
//
//	0: 命令执行成功
//	1: 命令执行失败
//	2: 参数错误（缺少必需参数、未知命令等）
//
// 示例:
//
//	xtblctl -c config.yaml check
//	xtblctl --uri mongodb://localhost:27017 put tenant-a - '{"hello":"world"}'
//	xtblctl get tenant-a order-1
//	xtblctl scan -p tenant-a
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

// 版本信息（可通过 -ldflags 注入）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
)

// usageError 表示调用方参数错误，退出码为 2。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func main() {
	os.Exit(run())
}

// createApp 创建 CLI 应用。
func createApp() *cli.Command {
	return &cli.Command{
		Name:    "xtblctl",
		Usage:   "tablekit 弹性表命令行工具",
		Version: fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径 (.yaml/.yml/.json)",
			},
			&cli.StringFlag{
				Name:  "uri",
				Usage: "MongoDB 连接串（覆盖配置文件）",
			},
			&cli.StringFlag{
				Name:  "database",
				Usage: "数据库名（覆盖配置文件）",
			},
			&cli.StringFlag{
				Name:  "collection",
				Usage: "集合名（覆盖配置文件）",
			},
		},
		Commands:       createCommands(),
		DefaultCommand: "help",
	}
}

func run() int {
	app := createApp()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setupSignalHandler(cancel)

	if err := app.Run(ctx, os.Args); err != nil {
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(os.Stderr, "参数错误: %v\n", usageErr)
			return 2
		}
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		return 1
	}
	return 0
}

// setupSignalHandler 设置信号处理。
// 第一次信号优雅取消，第二次信号强制退出（退出码 130 = 128 + SIGINT）。
func setupSignalHandler(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()

		<-sigCh
		signal.Stop(sigCh)
		os.Exit(130)
	}()
}
