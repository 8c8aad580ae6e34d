package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
)

// LocalFS is the local disk backend. Names are OS paths.
type LocalFS struct{}

var _ FileSystem = LocalFS{}

// Local returns a Path on the local disk.
func Local(name string) Path {
	return Path{FS: LocalFS{}, Name: name}
}

func (LocalFS) Scheme() string { return "file" }

func (LocalFS) ID() string { return "file" }

func (LocalFS) IsRemote() bool { return false }

func (LocalFS) URI(name string) string { return name }

func (LocalFS) canonical(name string) string {
	abs, err := filepath.Abs(name)
	if err != nil {
		abs = filepath.Clean(name)
	}
	return filepath.ToSlash(abs)
}

func (LocalFS) Join(elem ...string) string { return filepath.Join(elem...) }

func (LocalFS) Base(name string) string { return filepath.Base(name) }

func (LocalFS) Stat(ctx context.Context, name string) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	fi, err := os.Stat(name)
	if err != nil {
		return Info{}, err
	}
	return Info{Name: fi.Name(), Size: fi.Size(), IsDir: fi.IsDir()}, nil
}

func (LocalFS) MkdirAll(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.MkdirAll(name, 0o755)
}

func (LocalFS) ReadDir(ctx context.Context, name string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	des, err := os.ReadDir(name)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(des))
	for _, de := range des {
		entries = append(entries, Entry{Name: de.Name(), IsDir: de.IsDir()})
	}
	// os.ReadDir already sorts; keep the contract explicit.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (LocalFS) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.Open(name)
}

// Create writes to "<name>.<uuid>.tmp" next to the target and renames it into
// place on Close.
func (LocalFS) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return nil, err
	}
	if fi, err := os.Stat(name); err == nil && fi.IsDir() {
		return nil, &os.PathError{Op: "create", Path: name, Err: ErrIsDir}
	}

	tmp := fmt.Sprintf("%s.%s.tmp", name, uuid.NewString())
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &atomicFile{File: f, tmp: tmp, final: name}, nil
}

func (LocalFS) RemoveAll(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.RemoveAll(name)
}

type atomicFile struct {
	*os.File
	tmp   string
	final string
	done  bool
}

// Abort drops the temp file without touching the target.
func (f *atomicFile) Abort() error {
	if f.done {
		return nil
	}
	f.done = true
	f.File.Close()
	return os.Remove(f.tmp)
}

func (f *atomicFile) Close() error {
	if f.done {
		return nil
	}
	f.done = true

	if err := f.File.Close(); err != nil {
		os.Remove(f.tmp)
		return err
	}
	if err := os.Rename(f.tmp, f.final); err != nil {
		os.Remove(f.tmp)
		return fmt.Errorf("rename temp file into %s: %w", f.final, err)
	}
	return nil
}
