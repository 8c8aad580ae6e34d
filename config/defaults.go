// =============================================================================
// 📦 Distiset 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import (
	"github.com/BaSui01/distiset/artifacts"
	"github.com/BaSui01/distiset/storage"
	"github.com/BaSui01/distiset/tablestore"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Log:        DefaultLogConfig(),
		Storage:    DefaultStorageConfig(),
		Save:       DefaultSaveConfig(),
		TableStore: tablestore.DefaultConfig(),
		Artifacts:  artifacts.DefaultManagerConfig(),
		Split:      DefaultSplitConfig(),
		Metrics:    DefaultMetricsConfig(),
		Telemetry:  DefaultTelemetryConfig(),
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		EnableCaller:     false,
		EnableStacktrace: false,
	}
}

// DefaultStorageConfig 返回默认存储配置
func DefaultStorageConfig() StorageConfig {
	r := storage.DefaultRedisConfig()
	return StorageConfig{
		Redis: RedisConfig{
			Addr:       r.Addr,
			MaxRetries: r.MaxRetries,
		},
	}
}

// DefaultSaveConfig 返回默认保存配置
func DefaultSaveConfig() SaveConfig {
	return SaveConfig{
		Card:           true,
		PipelineConfig: true,
		PipelineLog:    true,
		Overwrite:      false,
		Concurrency:    4,
	}
}

// DefaultSplitConfig 返回默认切分配置
func DefaultSplitConfig() SplitConfig {
	return SplitConfig{
		TrainSize: 0.8,
		Shuffle:   true,
		Seed:      42,
	}
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   false,
		Namespace: "distiset",
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "distiset",
		SampleRate:   0.1,
	}
}
