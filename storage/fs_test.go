package storage

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// =============================================================================
// 🧪 backend conformance
// =============================================================================

func setupTestRedis(t *testing.T, bucket string) (*miniredis.Miniredis, *RedisFS) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, NewRedisFS(client, bucket, 0, zaptest.NewLogger(t))
}

type backend struct {
	name string
	root func(t *testing.T) Path
}

func backends() []backend {
	return []backend{
		{"local", func(t *testing.T) Path { return Local(t.TempDir()) }},
		{"redis", func(t *testing.T) Path {
			_, rfs := setupTestRedis(t, "bucket")
			return Path{FS: rfs, Name: "root"}
		}},
	}
}

func TestFileSystem_WriteRead(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			root := b.root(t)

			file := root.Join("a", "b", "data.bin")
			require.NoError(t, file.WriteFile(ctx, []byte("hello")))

			data, err := file.ReadFile(ctx)
			require.NoError(t, err)
			assert.Equal(t, []byte("hello"), data)

			info, err := file.Stat(ctx)
			require.NoError(t, err)
			assert.False(t, info.IsDir)
			assert.Equal(t, int64(5), info.Size)
			assert.Equal(t, "data.bin", file.Base())

			isDir, err := root.Join("a", "b").IsDir(ctx)
			require.NoError(t, err)
			assert.True(t, isDir, "parents are created")

			// overwrite
			require.NoError(t, file.WriteFile(ctx, []byte("bye")))
			data, err = file.ReadFile(ctx)
			require.NoError(t, err)
			assert.Equal(t, []byte("bye"), data)
		})
	}
}

func TestFileSystem_NotExist(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			root := b.root(t)
			missing := root.Join("missing")

			ok, err := missing.Exists(ctx)
			require.NoError(t, err)
			assert.False(t, ok)

			_, err = missing.Open(ctx)
			assert.True(t, errors.Is(err, ErrNotExist))

			_, err = missing.Stat(ctx)
			assert.True(t, errors.Is(err, ErrNotExist))

			_, err = missing.ReadDir(ctx)
			assert.True(t, errors.Is(err, ErrNotExist))

			assert.NoError(t, missing.RemoveAll(ctx))
		})
	}
}

func TestFileSystem_ReadDirSorted(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			root := b.root(t)

			require.NoError(t, root.Join("zeta.txt").WriteFile(ctx, []byte("z")))
			require.NoError(t, root.Join("alpha", "x.txt").WriteFile(ctx, []byte("x")))
			require.NoError(t, root.Join("empty").MkdirAll(ctx))

			entries, err := root.ReadDir(ctx)
			require.NoError(t, err)
			assert.Equal(t, []Entry{
				{Name: "alpha", IsDir: true},
				{Name: "empty", IsDir: true},
				{Name: "zeta.txt", IsDir: false},
			}, entries)
		})
	}
}

func TestFileSystem_RemoveAll(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			root := b.root(t)

			require.NoError(t, root.Join("tree", "a", "1").WriteFile(ctx, []byte("1")))
			require.NoError(t, root.Join("tree", "b").WriteFile(ctx, []byte("2")))
			require.NoError(t, root.Join("keep").WriteFile(ctx, []byte("3")))

			require.NoError(t, root.Join("tree").RemoveAll(ctx))

			ok, err := root.Join("tree").Exists(ctx)
			require.NoError(t, err)
			assert.False(t, ok)
			ok, err = root.Join("tree", "a", "1").Exists(ctx)
			require.NoError(t, err)
			assert.False(t, ok)

			entries, err := root.ReadDir(ctx)
			require.NoError(t, err)
			assert.Equal(t, []Entry{{Name: "keep"}}, entries)
		})
	}
}

func TestFileSystem_CreateOnDirectoryFails(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			root := b.root(t)
			require.NoError(t, root.Join("dir").MkdirAll(ctx))

			_, err := root.Join("dir").Create(ctx)
			assert.Error(t, err)
		})
	}
}

func TestFileSystem_AbortDiscards(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			ctx := context.Background()
			root := b.root(t)
			target := root.Join("f")

			w, err := target.Create(ctx)
			require.NoError(t, err)
			_, err = io.WriteString(w, "partial")
			require.NoError(t, err)
			abort(w)

			ok, err := target.Exists(ctx)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

// =============================================================================
// 🧪 local specifics
// =============================================================================

func TestLocalFS_NoTempLeftovers(t *testing.T) {
	ctx := context.Background()
	root := Local(t.TempDir())

	for i := 0; i < 3; i++ {
		require.NoError(t, root.Join("f.json").WriteFile(ctx, []byte("{}")))
	}

	entries, err := root.ReadDir(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{Name: "f.json"}}, entries)
}

// =============================================================================
// 🧪 redis specifics
// =============================================================================

func TestRedisFS_URIAndBuckets(t *testing.T) {
	ctx := context.Background()
	mr, a := setupTestRedis(t, "one")
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	b := NewRedisFS(client, "two", 0, nil)

	assert.Equal(t, "redis://one/x/y", a.URI("x/y"))
	assert.Equal(t, "redis://one", a.URI(""))
	assert.Equal(t, "one", a.Base(""))
	assert.Equal(t, a.ID(), b.ID(), "same server means same backend")

	require.NoError(t, Path{FS: a, Name: "shared"}.WriteFile(ctx, []byte("a")))
	ok, err := Path{FS: b, Name: "shared"}.Exists(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "buckets are isolated")
}

func TestPath_Contains(t *testing.T) {
	work := t.TempDir()
	root := Local(filepath.Join(work, "out"))

	assert.True(t, root.Contains(root))
	assert.True(t, root.Contains(root.Join(".distiset", "pipeline.yaml")))
	assert.True(t, root.Contains(Local(filepath.Join(work, "out", "x", "..", "y"))))
	assert.False(t, root.Contains(Local(filepath.Join(work, "outside"))))
	assert.False(t, root.Contains(Local(work)))

	t.Chdir(work)
	relative := Local("out")
	assert.True(t, relative.Contains(root.Join("step")), "relative root matches absolute child")
	assert.True(t, root.Contains(Local(filepath.Join("out", "step"))), "absolute root matches relative child")
	assert.False(t, Local("other").Contains(root))
}

func TestPath_ContainsRedisBuckets(t *testing.T) {
	mr, a := setupTestRedis(t, "one")
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	b := NewRedisFS(client, "two", 0, nil)
	longer := NewRedisFS(client, "one-more", 0, nil)

	root := Path{FS: a, Name: "runs"}
	assert.True(t, root.Contains(Path{FS: a, Name: "runs/first/data"}))
	assert.True(t, Path{FS: a}.Contains(root), "bucket root holds everything")
	assert.False(t, root.Contains(Path{FS: b, Name: "runs/first"}), "other bucket on the same server")
	assert.False(t, Path{FS: a}.Contains(Path{FS: longer, Name: "runs"}))
	assert.False(t, root.Contains(Local("runs")))
}

func TestRedisFS_FileBlocksDirectory(t *testing.T) {
	ctx := context.Background()
	_, rfs := setupTestRedis(t, "b")
	root := Path{FS: rfs}

	require.NoError(t, root.Join("file").WriteFile(ctx, []byte("x")))
	err := root.Join("file", "child").MkdirAll(ctx)
	assert.True(t, errors.Is(err, ErrNotDir))

	_, err = root.Join("file").ReadDir(ctx)
	assert.True(t, errors.Is(err, ErrNotDir))
}

func TestRedisConfigFromOptions(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		want    RedisConfig
		wantErr bool
	}{
		{
			name: "defaults",
			opts: nil,
			want: DefaultRedisConfig(),
		},
		{
			name: "typed values",
			opts: Options{"addr": "h:1", "db": 2, "max_retries": 5, "ops_per_second": 10.5, "password": "p", "username": "u"},
			want: RedisConfig{Addr: "h:1", DB: 2, MaxRetries: 5, OpsPerSecond: 10.5, Password: "p", Username: "u"},
		},
		{
			name: "string values",
			opts: Options{"addr": "h:2", "db": "3", "ops_per_second": "4", "tls": "true"},
			want: RedisConfig{Addr: "h:2", DB: 3, MaxRetries: 3, OpsPerSecond: 4, TLS: true},
		},
		{
			name:    "bad tls",
			opts:    Options{"tls": "maybe"},
			wantErr: true,
		},
		{
			name: "unknown keys ignored",
			opts: Options{"anon": true},
			want: DefaultRedisConfig(),
		},
		{
			name:    "bad db",
			opts:    Options{"db": "zero"},
			wantErr: true,
		},
		{
			name:    "bad type",
			opts:    Options{"max_retries": []int{1}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RedisConfigFromOptions(tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRedisConfig_ClientOptions(t *testing.T) {
	plain := RedisConfig{Addr: "h:1", DB: 2}.clientOptions()
	assert.Equal(t, "h:1", plain.Addr)
	assert.Equal(t, 2, plain.DB)
	assert.Nil(t, plain.TLSConfig)

	secure := RedisConfig{Addr: "h:1", TLS: true}.clientOptions()
	require.NotNil(t, secure.TLSConfig)
	assert.Equal(t, uint16(tls.VersionTLS12), secure.TLSConfig.MinVersion)
}

func TestNewLimiter(t *testing.T) {
	assert.Equal(t, 0, newLimiter(0).Burst())
	assert.Equal(t, 1, newLimiter(0.5).Burst())
	assert.Equal(t, 20, newLimiter(20).Burst())
}
