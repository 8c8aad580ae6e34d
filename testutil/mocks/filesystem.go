// =============================================================================
// 💾 MockFileSystem - 存储后端模拟实现
// =============================================================================
// 包装任意 storage.FileSystem，支持按操作注入错误与记录调用次数
//
// 使用方法:
//
//	fsys := mocks.NewMockFileSystem(storage.LocalFS{}).
//		WithRemote(true).
//		WithCreateError("weights.bin", errors.New("disk full"))
//	root := storage.Path{FS: fsys, Name: t.TempDir()}
// =============================================================================
package mocks

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/BaSui01/distiset/storage"
)

// =============================================================================
// 🎯 MockFileSystem 结构
// =============================================================================

// MockFileSystem 是 storage.FileSystem 的模拟实现
type MockFileSystem struct {
	mu    sync.Mutex
	inner storage.FileSystem

	// 配置
	id     string
	remote *bool

	// 错误注入：名称后缀 -> 错误
	openErrs   map[string]error
	createErrs map[string]error
	mkdirErr   error

	// 调用记录
	openCalls   int
	createCalls int
	created     []string
}

// =============================================================================
// 🔧 构造函数和 Builder 方法
// =============================================================================

// NewMockFileSystem 创建包装 inner 的 MockFileSystem
func NewMockFileSystem(inner storage.FileSystem) *MockFileSystem {
	return &MockFileSystem{
		inner:      inner,
		openErrs:   map[string]error{},
		createErrs: map[string]error{},
	}
}

// WithID 覆盖后端 ID
func (m *MockFileSystem) WithID(id string) *MockFileSystem {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.id = id
	return m
}

// WithRemote 覆盖 IsRemote 结果
func (m *MockFileSystem) WithRemote(remote bool) *MockFileSystem {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.remote = &remote
	return m
}

// WithOpenError 打开以 suffix 结尾的文件时返回 err
func (m *MockFileSystem) WithOpenError(suffix string, err error) *MockFileSystem {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErrs[suffix] = err
	return m
}

// WithCreateError 创建以 suffix 结尾的文件时返回 err
func (m *MockFileSystem) WithCreateError(suffix string, err error) *MockFileSystem {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createErrs[suffix] = err
	return m
}

// WithMkdirError 所有 MkdirAll 调用返回 err
func (m *MockFileSystem) WithMkdirError(err error) *MockFileSystem {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirErr = err
	return m
}

// =============================================================================
// 📊 调用记录
// =============================================================================

// OpenCalls 返回 Open 调用次数
func (m *MockFileSystem) OpenCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.openCalls
}

// CreateCalls 返回 Create 调用次数
func (m *MockFileSystem) CreateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls
}

// Created 返回成功创建的文件名
func (m *MockFileSystem) Created() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.created))
	copy(out, m.created)
	return out
}

// =============================================================================
// 🗂️ storage.FileSystem 实现
// =============================================================================

func (m *MockFileSystem) Scheme() string { return m.inner.Scheme() }

func (m *MockFileSystem) ID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.id != "" {
		return m.id
	}
	return m.inner.ID()
}

func (m *MockFileSystem) IsRemote() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.remote != nil {
		return *m.remote
	}
	return m.inner.IsRemote()
}

func (m *MockFileSystem) URI(name string) string { return m.inner.URI(name) }
func (m *MockFileSystem) Join(elem ...string) string { return m.inner.Join(elem...) }
func (m *MockFileSystem) Base(name string) string { return m.inner.Base(name) }
func (m *MockFileSystem) RemoveAll(ctx context.Context, name string) error {
	return m.inner.RemoveAll(ctx, name)
}

func (m *MockFileSystem) Stat(ctx context.Context, name string) (storage.Info, error) {
	return m.inner.Stat(ctx, name)
}

func (m *MockFileSystem) ReadDir(ctx context.Context, name string) ([]storage.Entry, error) {
	return m.inner.ReadDir(ctx, name)
}

func (m *MockFileSystem) MkdirAll(ctx context.Context, name string) error {
	m.mu.Lock()
	err := m.mkdirErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	return m.inner.MkdirAll(ctx, name)
}

func (m *MockFileSystem) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	m.mu.Lock()
	m.openCalls++
	err := matchSuffix(m.openErrs, name)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return m.inner.Open(ctx, name)
}

func (m *MockFileSystem) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	m.mu.Lock()
	m.createCalls++
	err := matchSuffix(m.createErrs, name)
	if err == nil {
		m.created = append(m.created, name)
	}
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return m.inner.Create(ctx, name)
}

func matchSuffix(errs map[string]error, name string) error {
	for suffix, err := range errs {
		if strings.HasSuffix(name, suffix) {
			return err
		}
	}
	return nil
}
