// =============================================================================
// 📦 Distiset 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("distiset.yaml").
//	    WithEnvPrefix("DISTISET").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/distiset/artifacts"
	"github.com/BaSui01/distiset/storage"
	"github.com/BaSui01/distiset/tablestore"
)

// DefaultEnvPrefix is the prefix of every environment override.
const DefaultEnvPrefix = "DISTISET"

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 distiset 工具的完整配置结构
type Config struct {
	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Storage 存储后端配置
	Storage StorageConfig `yaml:"storage" env:"STORAGE"`

	// Save 保存默认值
	Save SaveConfig `yaml:"save" env:"SAVE"`

	// TableStore 表格编码配置
	TableStore tablestore.Config `yaml:"table_store" env:"TABLE_STORE"`

	// Artifacts 产物迁移配置
	Artifacts artifacts.ManagerConfig `yaml:"artifacts" env:"ARTIFACTS"`

	// Split 训练/测试切分默认值
	Split SplitConfig `yaml:"split" env:"SPLIT"`

	// Metrics Prometheus 指标配置
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// StorageConfig 存储后端配置. Redis fields become storage options for
// redis:// URIs; Options are passed through as-is and win over them.
type StorageConfig struct {
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// 额外的后端选项（仅 YAML / 命令行）
	Options map[string]string `yaml:"options" env:"-"`
}

// RedisConfig Redis 后端配置
type RedisConfig struct {
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 用户名
	Username string `yaml:"username" env:"USERNAME"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 最大重试次数
	MaxRetries int `yaml:"max_retries" env:"MAX_RETRIES"`
	// 每秒操作上限，0 表示不限
	OpsPerSecond float64 `yaml:"ops_per_second" env:"OPS_PER_SECOND"`
	// 启用 TLS
	TLS bool `yaml:"tls" env:"TLS"`
}

// SaveConfig 保存默认值
type SaveConfig struct {
	// 是否生成 README.md / dataset_card.yaml
	Card bool `yaml:"card" env:"CARD"`
	// 是否打包 pipeline.yaml
	PipelineConfig bool `yaml:"pipeline_config" env:"PIPELINE_CONFIG"`
	// 是否打包 pipeline.log
	PipelineLog bool `yaml:"pipeline_log" env:"PIPELINE_LOG"`
	// 目标存在时是否覆盖
	Overwrite bool `yaml:"overwrite" env:"OVERWRITE"`
	// 并发写入的 step 数
	Concurrency int `yaml:"concurrency" env:"CONCURRENCY"`
}

// SplitConfig 切分默认值
type SplitConfig struct {
	// 训练集比例 (0, 1)
	TrainSize float64 `yaml:"train_size" env:"TRAIN_SIZE"`
	// 是否打乱
	Shuffle bool `yaml:"shuffle" env:"SHUFFLE"`
	// 随机种子
	Seed uint64 `yaml:"seed" env:"SEED"`
}

// MetricsConfig Prometheus 指标配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 指标命名空间
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
	// /metrics 监听地址，空表示不暴露
	Addr string `yaml:"addr" env:"ADDR"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  DefaultEnvPrefix,
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// Load 按 默认值 -> YAML(path，可为空) -> DISTISET_* 环境变量 的顺序加载配置并校验
func Load(path string) (*Config, error) {
	return NewLoader().
		WithConfigPath(path).
		WithEnvPrefix(DefaultEnvPrefix).
		WithValidator(func(c *Config) error { return c.Validate() }).
		Load()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("unknown log level %q", c.Log.Level))
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Sprintf("unknown log format %q", c.Log.Format))
	}

	if c.Storage.Redis.DB < 0 {
		errs = append(errs, "storage.redis.db must not be negative")
	}
	if c.Storage.Redis.OpsPerSecond < 0 {
		errs = append(errs, "storage.redis.ops_per_second must not be negative")
	}

	if c.Save.Concurrency <= 0 {
		errs = append(errs, "save.concurrency must be positive")
	}

	if err := c.TableStore.Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	if c.Split.TrainSize <= 0 || c.Split.TrainSize >= 1 {
		errs = append(errs, "split.train_size must be between 0 and 1 (exclusive)")
	}

	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		errs = append(errs, "metrics.namespace is required when metrics are enabled")
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "telemetry.sample_rate must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// StorageOptions returns the options forwarded to storage.Resolve. Zero
// Redis fields are left out so the backend defaults apply.
func (s StorageConfig) StorageOptions() storage.Options {
	opts := storage.Options{}
	r := s.Redis
	if r.Addr != "" {
		opts[storage.OptionAddr] = r.Addr
	}
	if r.Username != "" {
		opts[storage.OptionUsername] = r.Username
	}
	if r.Password != "" {
		opts[storage.OptionPassword] = r.Password
	}
	if r.DB != 0 {
		opts[storage.OptionDB] = r.DB
	}
	if r.MaxRetries != 0 {
		opts[storage.OptionMaxRetries] = r.MaxRetries
	}
	if r.OpsPerSecond != 0 {
		opts[storage.OptionOpsPerSecond] = r.OpsPerSecond
	}
	if r.TLS {
		opts[storage.OptionTLS] = true
	}
	for k, v := range s.Options {
		opts[k] = v
	}
	return opts
}

// ParseOption splits a "key=value" command line option.
func ParseOption(kv string) (string, string, error) {
	key, value, ok := strings.Cut(kv, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", errors.New("storage option must look like key=value: " + kv)
	}
	return key, strings.TrimSpace(value), nil
}
