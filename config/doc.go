// Package config 提供 distiset 命令行工具的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（前缀 DISTISET）的顺序合并，
// 覆盖日志、存储后端、保存默认值、表格编码、产物迁移、切分、指标和遥测。
package config
