package storage

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/distiset/types"
)

// Factory builds the Path for a parsed URI of its scheme. opts are the
// caller's storage options, untouched.
type Factory func(u *url.URL, opts Options, logger *zap.Logger) (Path, error)

var (
	registryMu sync.RWMutex
	factories  = map[string]Factory{}
	logger     = zap.NewNop()
)

func init() {
	Register("file", localFactory)
	Register("redis", redisFactory)
}

// Register installs the factory for scheme, replacing any previous one.
func Register(scheme string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[strings.ToLower(scheme)] = f
}

// Schemes returns the registered schemes, sorted.
func Schemes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(factories))
	for s := range factories {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// SetLogger sets the logger handed to backend factories.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	registryMu.Lock()
	logger = l
	registryMu.Unlock()
}

// Resolve maps a URI or bare local path to a Path. Bare paths and file://
// URIs resolve to the local disk.
func Resolve(uri string, opts Options) (Path, error) {
	if uri == "" {
		return Path{}, types.NewError(types.ErrInvalidArgument, "empty path")
	}
	if !strings.Contains(uri, "://") {
		return Local(uri), nil
	}

	u, err := url.Parse(uri)
	if err != nil {
		return Path{}, types.Errorf(types.ErrInvalidArgument, "invalid path %q", uri).WithCause(err)
	}

	registryMu.RLock()
	f, ok := factories[strings.ToLower(u.Scheme)]
	l := logger
	registryMu.RUnlock()
	if !ok {
		return Path{}, types.Errorf(types.ErrUnsupportedScheme, "no storage backend for scheme %q", u.Scheme).
			WithPath(uri)
	}
	return f(u, opts, l)
}

// MustResolve is Resolve that panics. Intended for tests.
func MustResolve(uri string, opts Options) Path {
	p, err := Resolve(uri, opts)
	if err != nil {
		panic(err)
	}
	return p
}

func localFactory(u *url.URL, _ Options, _ *zap.Logger) (Path, error) {
	if u.Host != "" && u.Host != "localhost" {
		return Path{}, types.Errorf(types.ErrInvalidArgument, "file URI with remote host %q", u.Host)
	}
	return Local(u.Path), nil
}

func redisFactory(u *url.URL, opts Options, l *zap.Logger) (Path, error) {
	if u.Host == "" {
		return Path{}, types.Errorf(types.ErrInvalidArgument, "redis URI %q has no bucket", u.String())
	}
	cfg, err := RedisConfigFromOptions(opts)
	if err != nil {
		return Path{}, types.NewError(types.ErrInvalidArgument, "invalid redis storage options").WithCause(err)
	}
	rfs, err := OpenRedisFS(cfg, u.Host, l)
	if err != nil {
		return Path{}, fmt.Errorf("open %s: %w", u.String(), err)
	}
	return Path{FS: rfs, Name: cleanSlash(u.Path)}, nil
}
