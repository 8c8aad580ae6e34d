/*
包 metrics 提供基于 Prometheus 的 distiset 操作指标采集。

# 核心类型

  - Collector：持有 Counter 与 Histogram 向量指标。nil Collector
    不记录任何内容，调用方无需判空。

# 指标

  - operations_total{operation,status}：save / load / relocate / card /
    split 操作次数，status 为 success 或 error。
  - operation_duration_seconds{operation}：操作耗时。
  - rows_total{operation} 与 steps_total{operation}：写入或读取的行数与
    step 数。
  - artifact_files_total 与 artifact_bytes_total：产物复制的文件数与字节数。

NewCollector 注册到默认 Registry；测试或多实例场景使用
NewCollectorWithRegisterer 传入独立 Registry。
*/
package metrics
