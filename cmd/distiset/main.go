// =============================================================================
// Distiset 命令行入口
// =============================================================================
// 查看、复制、切分已保存的 distiset，并生成数据集卡片
//
// 使用方法:
//
//	distiset info <path>                       # 查看 step、行数、列
//	distiset card <path>                       # 输出 README.md 内容
//	distiset copy <src> <dst>                  # 在存储后端之间复制
//	distiset split <src> <dst> --train-size 0.8 # 切分为 train/test 后保存
//	distiset version                           # 显示版本信息
// =============================================================================

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run dispatches one subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return exitUsage
	}

	switch args[0] {
	case "info":
		return runInfo(ctx, args[1:], stdout, stderr)
	case "card":
		return runCard(ctx, args[1:], stdout, stderr)
	case "copy":
		return runCopy(ctx, args[1:], stdout, stderr)
	case "split":
		return runSplit(ctx, args[1:], stdout, stderr)
	case "version":
		printVersion(stdout)
		return exitOK
	case "help", "-h", "--help":
		printUsage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return exitUsage
	}
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "distiset %s\n", Version)
	fmt.Fprintf(w, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Git Commit: %s\n", GitCommit)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `distiset - inspect and move distilled datasets

Usage:
  distiset <command> [options]

Commands:
  info      Show steps, row counts and columns of a saved distiset
  card      Print the dataset card of a saved distiset
  copy      Load a distiset and save it to another location
  split     Split every step into train/test and save the result
  version   Show version information
  help      Show this help message

Common options:
  -c, --config <path>          Path to configuration file (YAML)
  --storage-option key=value   Storage backend option (repeatable)
  --metrics-addr <addr>        Serve Prometheus metrics on this address
  --metrics-wait               Keep serving metrics until interrupted

Examples:
  distiset info ./my-distiset
  distiset card redis://datasets/runs/first --storage-option addr=localhost:6379
  distiset copy ./my-distiset redis://datasets/runs/first --overwrite
  distiset split ./my-distiset ./my-distiset-split --train-size 0.9 --seed 7
  distiset version`)
}
