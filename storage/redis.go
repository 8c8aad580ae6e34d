package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/distiset/internal/pool"
	"github.com/BaSui01/distiset/internal/tlsutil"
)

// =============================================================================
// 🗄️ Redis object store
// =============================================================================

// Redis storage option keys.
const (
	OptionAddr         = "addr"
	OptionUsername     = "username"
	OptionPassword     = "password"
	OptionDB           = "db"
	OptionMaxRetries   = "max_retries"
	OptionOpsPerSecond = "ops_per_second"
	OptionTLS          = "tls"
)

// RedisConfig configures the connection behind a RedisFS.
type RedisConfig struct {
	// Redis 地址
	Addr string `yaml:"addr" json:"addr"`

	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`

	// 数据库编号
	DB int `yaml:"db" json:"db"`

	// 最大重试次数，交给 go-redis 处理
	MaxRetries int `yaml:"max_retries" json:"max_retries"`

	// 每秒操作上限，0 表示不限
	OpsPerSecond float64 `yaml:"ops_per_second" json:"ops_per_second"`

	// 启用 TLS（TLS 1.2+，仅 AEAD 密码套件）
	TLS bool `yaml:"tls" json:"tls"`
}

// DefaultRedisConfig returns the configuration used for missing options.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:       "localhost:6379",
		MaxRetries: 3,
	}
}

// RedisConfigFromOptions reads the redis storage options on top of the
// defaults. Unknown keys are ignored.
func RedisConfigFromOptions(opts Options) (RedisConfig, error) {
	cfg := DefaultRedisConfig()
	if v, ok := opts.String(OptionAddr); ok {
		cfg.Addr = v
	}
	if v, ok := opts.String(OptionUsername); ok {
		cfg.Username = v
	}
	if v, ok := opts.String(OptionPassword); ok {
		cfg.Password = v
	}
	if v, ok, err := opts.Int(OptionDB); err != nil {
		return cfg, err
	} else if ok {
		cfg.DB = v
	}
	if v, ok, err := opts.Int(OptionMaxRetries); err != nil {
		return cfg, err
	} else if ok {
		cfg.MaxRetries = v
	}
	if v, ok, err := opts.Float(OptionOpsPerSecond); err != nil {
		return cfg, err
	} else if ok {
		cfg.OpsPerSecond = v
	}
	if v, ok, err := opts.Bool(OptionTLS); err != nil {
		return cfg, err
	} else if ok {
		cfg.TLS = v
	}
	return cfg, nil
}

func (c RedisConfig) key() string {
	return fmt.Sprintf("%s|%s|%d|%d|%g|%t", c.Addr, c.Username, c.DB, c.MaxRetries, c.OpsPerSecond, c.TLS)
}

func (c RedisConfig) clientOptions() *redis.Options {
	opts := &redis.Options{
		Addr:       c.Addr,
		Username:   c.Username,
		Password:   c.Password,
		DB:         c.DB,
		MaxRetries: c.MaxRetries,
	}
	if c.TLS {
		opts.TLSConfig = tlsutil.DefaultTLSConfig()
	}
	return opts
}

// RedisFS stores a tree of files inside one Redis database, namespaced by
// bucket. Files are string keys; each directory is a hash of child name to
// kind ("f" or "d"); a set records every directory of the bucket.
type RedisFS struct {
	client  *redis.Client
	bucket  string
	prefix  string
	id      string
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ FileSystem = (*RedisFS)(nil)

// NewRedisFS wraps an existing client. The caller owns the client.
func NewRedisFS(client *redis.Client, bucket string, opsPerSecond float64, logger *zap.Logger) *RedisFS {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := client.Options()
	return newRedisFS(client, bucket, newLimiter(opsPerSecond),
		fmt.Sprintf("redis://%s/%d", opts.Addr, opts.DB), logger)
}

// newLimiter returns a token bucket allowing ops per second with a one
// second burst. ops <= 0 means unlimited.
func newLimiter(ops float64) *rate.Limiter {
	if ops <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(ops), max(1, int(ops)))
}

func newRedisFS(client *redis.Client, bucket string, limiter *rate.Limiter, id string, logger *zap.Logger) *RedisFS {
	return &RedisFS{
		client:  client,
		bucket:  bucket,
		prefix:  "distiset:" + bucket + ":",
		id:      id,
		limiter: limiter,
		logger:  logger.With(zap.String("component", "storage.redis"), zap.String("bucket", bucket)),
	}
}

// Bucket returns the bucket served by this file system.
func (r *RedisFS) Bucket() string { return r.bucket }

func (r *RedisFS) Scheme() string { return "redis" }

func (r *RedisFS) ID() string { return r.id }

func (r *RedisFS) IsRemote() bool { return true }

func (r *RedisFS) URI(name string) string {
	name = cleanSlash(name)
	if name == "" {
		return "redis://" + r.bucket
	}
	return "redis://" + r.bucket + "/" + name
}

func (r *RedisFS) Join(elem ...string) string { return cleanSlash(path.Join(elem...)) }

func (r *RedisFS) Base(name string) string {
	name = cleanSlash(name)
	if name == "" {
		return r.bucket
	}
	return path.Base(name)
}

// =============================================================================
// 🔑 key layout
// =============================================================================

func (r *RedisFS) fileKey(name string) string { return r.prefix + "f:" + name }

func (r *RedisFS) dirKey(name string) string { return r.prefix + "d:" + name }

func (r *RedisFS) dirsKey() string { return r.prefix + "dirs" }

func parentOf(name string) string {
	dir := path.Dir(name)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir
}

func (r *RedisFS) wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

func (r *RedisFS) fail(op, name string, err error) error {
	r.logger.Error("redis storage operation failed",
		zap.String("op", op), zap.String("path", name), zap.Error(err))
	return fmt.Errorf("redis %s %s: %w", op, r.URI(name), err)
}

func (r *RedisFS) notExist(op, name string) error {
	return &fs.PathError{Op: op, Path: r.URI(name), Err: fs.ErrNotExist}
}

func (r *RedisFS) isDir(ctx context.Context, name string) (bool, error) {
	if name == "" {
		return true, nil
	}
	if err := r.wait(ctx); err != nil {
		return false, err
	}
	ok, err := r.client.SIsMember(ctx, r.dirsKey(), name).Result()
	if err != nil {
		return false, r.fail("stat", name, err)
	}
	return ok, nil
}

func (r *RedisFS) fileSize(ctx context.Context, name string) (int64, bool, error) {
	if err := r.wait(ctx); err != nil {
		return 0, false, err
	}
	pipe := r.client.Pipeline()
	exists := pipe.Exists(ctx, r.fileKey(name))
	size := pipe.StrLen(ctx, r.fileKey(name))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, false, r.fail("stat", name, err)
	}
	if exists.Val() == 0 {
		return 0, false, nil
	}
	return size.Val(), true, nil
}

// =============================================================================
// 🎯 FileSystem
// =============================================================================

func (r *RedisFS) Stat(ctx context.Context, name string) (Info, error) {
	name = cleanSlash(name)
	dir, err := r.isDir(ctx, name)
	if err != nil {
		return Info{}, err
	}
	if dir {
		return Info{Name: r.Base(name), IsDir: true}, nil
	}
	size, ok, err := r.fileSize(ctx, name)
	if err != nil {
		return Info{}, err
	}
	if !ok {
		return Info{}, r.notExist("stat", name)
	}
	return Info{Name: r.Base(name), Size: size}, nil
}

func (r *RedisFS) MkdirAll(ctx context.Context, name string) error {
	name = cleanSlash(name)
	if name == "" {
		return nil
	}

	// every ancestor must be free of files
	var chain []string
	for p := name; p != ""; p = parentOf(p) {
		chain = append(chain, p)
	}
	for _, p := range chain {
		_, isFile, err := r.fileSize(ctx, p)
		if err != nil {
			return err
		}
		if isFile {
			return &fs.PathError{Op: "mkdir", Path: r.URI(p), Err: ErrNotDir}
		}
	}

	if err := r.wait(ctx); err != nil {
		return err
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, p := range chain {
			pipe.SAdd(ctx, r.dirsKey(), p)
			pipe.HSet(ctx, r.dirKey(parentOf(p)), path.Base(p), "d")
		}
		return nil
	})
	if err != nil {
		return r.fail("mkdir", name, err)
	}
	return nil
}

func (r *RedisFS) ReadDir(ctx context.Context, name string) ([]Entry, error) {
	name = cleanSlash(name)
	dir, err := r.isDir(ctx, name)
	if err != nil {
		return nil, err
	}
	if !dir {
		_, isFile, err := r.fileSize(ctx, name)
		if err != nil {
			return nil, err
		}
		if isFile {
			return nil, &fs.PathError{Op: "readdir", Path: r.URI(name), Err: ErrNotDir}
		}
		return nil, r.notExist("readdir", name)
	}

	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	children, err := r.client.HGetAll(ctx, r.dirKey(name)).Result()
	if err != nil {
		return nil, r.fail("readdir", name, err)
	}

	entries := make([]Entry, 0, len(children))
	for child, kind := range children {
		entries = append(entries, Entry{Name: child, IsDir: kind == "d"})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (r *RedisFS) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	name = cleanSlash(name)
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	data, err := r.client.Get(ctx, r.fileKey(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		if dir, derr := r.isDir(ctx, name); derr == nil && dir {
			return nil, &fs.PathError{Op: "open", Path: r.URI(name), Err: ErrIsDir}
		}
		return nil, r.notExist("open", name)
	}
	if err != nil {
		return nil, r.fail("open", name, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (r *RedisFS) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	name = cleanSlash(name)
	if name == "" {
		return nil, &fs.PathError{Op: "create", Path: r.URI(name), Err: ErrIsDir}
	}
	dir, err := r.isDir(ctx, name)
	if err != nil {
		return nil, err
	}
	if dir {
		return nil, &fs.PathError{Op: "create", Path: r.URI(name), Err: ErrIsDir}
	}
	return &redisWriter{ctx: ctx, fs: r, name: name, buf: pool.GetBuffer()}, nil
}

func (r *RedisFS) RemoveAll(ctx context.Context, name string) error {
	name = cleanSlash(name)
	info, err := r.Stat(ctx, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}

	if info.IsDir {
		entries, err := r.ReadDir(ctx, name)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := r.RemoveAll(ctx, r.Join(name, e.Name)); err != nil {
				return err
			}
		}
	}

	if err := r.wait(ctx); err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if info.IsDir {
			pipe.Del(ctx, r.dirKey(name))
			if name != "" {
				pipe.SRem(ctx, r.dirsKey(), name)
			}
		} else {
			pipe.Del(ctx, r.fileKey(name))
		}
		if name != "" {
			pipe.HDel(ctx, r.dirKey(parentOf(name)), path.Base(name))
		}
		return nil
	})
	if err != nil {
		return r.fail("remove", name, err)
	}
	return nil
}

// redisWriter buffers the file and publishes it in one transaction on Close.
type redisWriter struct {
	ctx  context.Context
	fs   *RedisFS
	name string
	buf  *bytes.Buffer
	done bool
}

func (w *redisWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, fs.ErrClosed
	}
	return w.buf.Write(p)
}

func (w *redisWriter) Abort() error {
	if !w.done {
		w.done = true
		pool.PutBuffer(w.buf)
		w.buf = nil
	}
	return nil
}

func (w *redisWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	defer func() {
		pool.PutBuffer(w.buf)
		w.buf = nil
	}()

	r := w.fs
	parent := parentOf(w.name)
	if err := r.MkdirAll(w.ctx, parent); err != nil {
		return err
	}
	if err := r.wait(w.ctx); err != nil {
		return err
	}
	_, err := r.client.TxPipelined(w.ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(w.ctx, r.fileKey(w.name), w.buf.Bytes(), 0)
		pipe.HSet(w.ctx, r.dirKey(parent), path.Base(w.name), "f")
		return nil
	})
	if err != nil {
		return r.fail("write", w.name, err)
	}
	return nil
}

// =============================================================================
// 🔌 client pool
// =============================================================================

type redisConn struct {
	client  *redis.Client
	limiter *rate.Limiter
}

var (
	redisMu    sync.Mutex
	redisConns = map[string]*redisConn{}
)

// OpenRedisFS returns a RedisFS for bucket, sharing one client and one rate
// limiter per distinct configuration. The first use of a configuration
// pings the server.
func OpenRedisFS(cfg RedisConfig, bucket string, logger *zap.Logger) (*RedisFS, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("redis storage: empty bucket")
	}

	redisMu.Lock()
	defer redisMu.Unlock()

	conn, ok := redisConns[cfg.key()]
	if !ok {
		client := redis.NewClient(cfg.clientOptions())

		// 测试连接
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}

		conn = &redisConn{client: client, limiter: newLimiter(cfg.OpsPerSecond)}
		redisConns[cfg.key()] = conn

		logger.Info("redis storage connected",
			zap.String("addr", cfg.Addr),
			zap.Int("db", cfg.DB),
			zap.Float64("ops_per_second", cfg.OpsPerSecond),
		)
	}

	id := fmt.Sprintf("redis://%s/%d", cfg.Addr, cfg.DB)
	return newRedisFS(conn.client, bucket, conn.limiter, id, logger), nil
}

// CloseAll closes every pooled Redis client.
func CloseAll() error {
	redisMu.Lock()
	defer redisMu.Unlock()

	var errs []error
	for key, conn := range redisConns {
		if err := conn.client.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(redisConns, key)
	}
	return errors.Join(errs...)
}
