package testutil

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/distiset/storage"
)

// =============================================================================
// 🗄️ Redis 存储辅助
// =============================================================================

// NewRedisFS 启动 miniredis 并返回绑定到 bucket 的 RedisFS，测试结束自动关闭
func NewRedisFS(t *testing.T, bucket string) (*miniredis.Miniredis, *storage.RedisFS) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, storage.NewRedisFS(client, bucket, 0, zaptest.NewLogger(t))
}

// RedisRoot 返回 miniredis 上 bucket/name 对应的路径
func RedisRoot(t *testing.T, bucket, name string) (*miniredis.Miniredis, storage.Path) {
	t.Helper()

	mr, fs := NewRedisFS(t, bucket)
	return mr, storage.Path{FS: fs, Name: name}
}

// RedisOptions 返回指向 miniredis 的 storage options，并在测试结束时关闭连接池
func RedisOptions(t *testing.T, mr *miniredis.Miniredis) storage.Options {
	t.Helper()

	t.Cleanup(func() { _ = storage.CloseAll() })
	return storage.Options{"addr": mr.Addr()}
}
