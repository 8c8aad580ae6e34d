/*
Package main 提供 distiset 命令行工具入口。

# 概述

cmd/distiset 读取已保存的 distiset（本地目录或 redis:// 远程存储），
支持查看结构、生成数据集卡片、在后端之间复制以及训练/测试切分。
程序支持 YAML 配置文件加载（前缀 DISTISET 的环境变量覆盖）、
结构化日志（zap）、Prometheus 指标与 OpenTelemetry 追踪。

# 子命令

  - info    — 列出 step、类型、行数、切分与列，支持 --json
  - card    — 输出 README.md 内容或仅 YAML 头部
  - copy    — 加载后保存到另一位置，可覆盖、可跳过卡片与流水线配置
  - split   — 按 --train-size / --seed 切分每个 step 后保存
  - version — 版本信息（Version、BuildTime、GitCommit 通过 ldflags 设置）

# 退出码

  - 0 成功，1 运行时错误（stderr 附带错误码），2 用法错误
*/
package main
