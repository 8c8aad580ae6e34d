package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strconv"
	"strings"
)

// ErrNotExist is returned (possibly wrapped) when a path does not exist.
var ErrNotExist = fs.ErrNotExist

// ErrIsDir / ErrNotDir report a file where a directory was expected and the
// reverse.
var (
	ErrIsDir  = errors.New("is a directory")
	ErrNotDir = errors.New("not a directory")
)

// Info describes a file or directory.
type Info struct {
	Name  string
	Size  int64
	IsDir bool
}

// Entry is one child of a directory.
type Entry struct {
	Name  string
	IsDir bool
}

// FileSystem is the capability set a storage backend provides. Names are
// backend specific and produced by Join.
type FileSystem interface {
	// Scheme returns the URI scheme served by the backend.
	Scheme() string
	// ID identifies the backend instance. Two file systems with the same ID
	// can copy between each other without staging.
	ID() string
	// IsRemote reports whether I/O leaves the local machine.
	IsRemote() bool
	// URI renders name as a URI that Resolve maps back to the same path.
	URI(name string) string

	Join(elem ...string) string
	Base(name string) string
	Stat(ctx context.Context, name string) (Info, error)
	MkdirAll(ctx context.Context, name string) error
	// ReadDir returns the children of name sorted by name.
	ReadDir(ctx context.Context, name string) ([]Entry, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Create returns a writer whose content becomes visible on Close.
	// Missing parent directories are created.
	Create(ctx context.Context, name string) (io.WriteCloser, error)
	// RemoveAll removes name and everything below it. A missing name is not
	// an error.
	RemoveAll(ctx context.Context, name string) error
}

// Options are backend storage options. They are forwarded verbatim to the
// backend factory.
type Options map[string]any

// String returns the option as a string.
func (o Options) String(key string) (string, bool) {
	v, ok := o[key]
	if !ok || v == nil {
		return "", false
	}
	if s, ok := v.(string); ok {
		return s, true
	}
	return fmt.Sprint(v), true
}

// Int returns the option as an int. String values are parsed.
func (o Options) Int(key string) (int, bool, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch x := v.(type) {
	case int:
		return x, true, nil
	case int64:
		return int(x), true, nil
	case float64:
		return int(x), true, nil
	case string:
		n, err := strconv.Atoi(x)
		if err != nil {
			return 0, true, fmt.Errorf("storage option %q: %w", key, err)
		}
		return n, true, nil
	default:
		return 0, true, fmt.Errorf("storage option %q: unsupported type %T", key, v)
	}
}

// Bool returns the option as a bool. String values are parsed.
func (o Options) Bool(key string) (bool, bool, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return false, false, nil
	}
	switch x := v.(type) {
	case bool:
		return x, true, nil
	case string:
		b, err := strconv.ParseBool(x)
		if err != nil {
			return false, true, fmt.Errorf("storage option %q: %w", key, err)
		}
		return b, true, nil
	default:
		return false, true, fmt.Errorf("storage option %q: unsupported type %T", key, v)
	}
}

// Float returns the option as a float64. String values are parsed.
func (o Options) Float(key string) (float64, bool, error) {
	v, ok := o[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch x := v.(type) {
	case float64:
		return x, true, nil
	case int:
		return float64(x), true, nil
	case int64:
		return float64(x), true, nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return 0, true, fmt.Errorf("storage option %q: %w", key, err)
		}
		return f, true, nil
	default:
		return 0, true, fmt.Errorf("storage option %q: unsupported type %T", key, v)
	}
}

// =============================================================================
// Path
// =============================================================================

// Path is a location on a FileSystem.
type Path struct {
	FS   FileSystem
	Name string
}

// NewPath returns a pointer to a Path. Handy for optional side pointers.
func NewPath(fsys FileSystem, name string) *Path {
	return &Path{FS: fsys, Name: name}
}

// String returns the URI of the path.
func (p Path) String() string {
	if p.FS == nil {
		return p.Name
	}
	return p.FS.URI(p.Name)
}

// IsZero reports whether p has no backend.
func (p Path) IsZero() bool { return p.FS == nil }

// Join returns the child path built from elem.
func (p Path) Join(elem ...string) Path {
	return Path{FS: p.FS, Name: p.FS.Join(append([]string{p.Name}, elem...)...)}
}

// Base returns the last element of the path.
func (p Path) Base() string { return p.FS.Base(p.Name) }

// Contains reports whether q is p or lies below it. Names are compared in
// canonical form, so a relative local path matches its absolute spelling.
func (p Path) Contains(q Path) bool {
	if !p.SameBackend(q) {
		return false
	}
	root, name := p.canonical(), q.canonical()
	if root == name {
		return true
	}
	return strings.HasPrefix(name, strings.TrimSuffix(root, "/")+"/")
}

func (p Path) canonical() string {
	if c, ok := p.FS.(interface{ canonical(string) string }); ok {
		return c.canonical(p.Name)
	}
	return p.FS.URI(p.Name)
}

// SameBackend reports whether p and q live on the same backend instance.
func (p Path) SameBackend(q Path) bool {
	return p.FS != nil && q.FS != nil && p.FS.ID() == q.FS.ID()
}

func (p Path) Stat(ctx context.Context) (Info, error) { return p.FS.Stat(ctx, p.Name) }

// Exists reports whether the path exists. Only ErrNotExist maps to false.
func (p Path) Exists(ctx context.Context) (bool, error) {
	_, err := p.FS.Stat(ctx, p.Name)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotExist) {
		return false, nil
	}
	return false, err
}

// IsDir reports whether the path exists and is a directory.
func (p Path) IsDir(ctx context.Context) (bool, error) {
	info, err := p.FS.Stat(ctx, p.Name)
	if errors.Is(err, ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.IsDir, nil
}

// IsFile reports whether the path exists and is a regular file.
func (p Path) IsFile(ctx context.Context) (bool, error) {
	info, err := p.FS.Stat(ctx, p.Name)
	if errors.Is(err, ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !info.IsDir, nil
}

func (p Path) MkdirAll(ctx context.Context) error { return p.FS.MkdirAll(ctx, p.Name) }

func (p Path) RemoveAll(ctx context.Context) error { return p.FS.RemoveAll(ctx, p.Name) }

func (p Path) ReadDir(ctx context.Context) ([]Entry, error) { return p.FS.ReadDir(ctx, p.Name) }

func (p Path) Open(ctx context.Context) (io.ReadCloser, error) { return p.FS.Open(ctx, p.Name) }

func (p Path) Create(ctx context.Context) (io.WriteCloser, error) { return p.FS.Create(ctx, p.Name) }

// ReadFile reads the whole file.
func (p Path) ReadFile(ctx context.Context) ([]byte, error) {
	r, err := p.FS.Open(ctx, p.Name)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return data, nil
}

// WriteFile replaces the file with data.
func (p Path) WriteFile(ctx context.Context, data []byte) error {
	w, err := p.FS.Create(ctx, p.Name)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		abort(w)
		return fmt.Errorf("write %s: %w", p, err)
	}
	return w.Close()
}

// aborter is implemented by writers that can discard their content instead
// of publishing it.
type aborter interface {
	Abort() error
}

func abort(w io.WriteCloser) {
	if a, ok := w.(aborter); ok {
		a.Abort()
		return
	}
	w.Close()
}

// cleanSlash normalises a slash separated object name: no leading or
// trailing slash, "" for the root.
func cleanSlash(name string) string {
	name = path.Clean("/" + name)
	if name == "/" {
		return ""
	}
	return name[1:]
}
