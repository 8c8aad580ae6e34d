/*
包 server 管理 distiset 命令行工具的 Prometheus 指标 HTTP 服务器，
支持非阻塞启动、优雅关闭与系统信号监听。

# 核心类型

  - Manager：持有 http.Server、net.Listener 与异步错误通道，
    提供 Start/Shutdown/WaitForShutdown 等生命周期方法。
  - Config：监听地址、读写超时、空闲超时与优雅关闭超时。
  - MetricsHandler：暴露 /metrics 与 /healthz。
*/
package server
