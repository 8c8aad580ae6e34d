package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
)

// WalkFunc is called for every entry below the walk root. rel is the
// slash separated path relative to the root.
type WalkFunc func(rel string, e Entry) error

// Walk visits the tree below root depth first, in name order. Directories
// are visited before their children.
func Walk(ctx context.Context, root Path, fn WalkFunc) error {
	return walk(ctx, root, "", fn)
}

func walk(ctx context.Context, dir Path, rel string, fn WalkFunc) error {
	entries, err := dir.ReadDir(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		childRel := e.Name
		if rel != "" {
			childRel = path.Join(rel, e.Name)
		}
		if err := fn(childRel, e); err != nil {
			return err
		}
		if e.IsDir {
			if err := walk(ctx, dir.Join(e.Name), childRel, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// CopyStats summarises a copy.
type CopyStats struct {
	Files int
	Bytes int64
}

// CopyOption configures CopyTree.
type CopyOption func(*copyOptions)

type copyOptions struct {
	stagingDir string
	tee        func(rel string) io.Writer
	forceStage bool
}

// WithStagingDir sets the parent of the temporary staging directory. The
// default is the OS temp dir.
func WithStagingDir(dir string) CopyOption {
	return func(o *copyOptions) { o.stagingDir = dir }
}

// WithTee mirrors the bytes of every source file into the writer returned by
// fn (nil to skip a file). Only the read from the original source is
// mirrored, even when the copy is staged.
func WithTee(fn func(rel string) io.Writer) CopyOption {
	return func(o *copyOptions) { o.tee = fn }
}

// WithStaging forces staging through a local directory even when it would
// not be needed.
func WithStaging(force bool) CopyOption {
	return func(o *copyOptions) { o.forceStage = force }
}

// NeedsStaging reports whether copying from src to dst goes through a local
// staging directory: both are remote and on different backends.
func NeedsStaging(src, dst Path) bool {
	return src.FS.IsRemote() && dst.FS.IsRemote() && !src.SameBackend(dst)
}

// CopyTree copies every file below src to the same relative location below
// dst, creating directories as needed. dst is created even if src is empty.
func CopyTree(ctx context.Context, src, dst Path, opts ...CopyOption) (CopyStats, error) {
	o := &copyOptions{}
	for _, opt := range opts {
		opt(o)
	}

	if !o.forceStage && !NeedsStaging(src, dst) {
		return copyTree(ctx, src, dst, o.tee)
	}

	stage, err := os.MkdirTemp(o.stagingDir, "distiset-stage-*")
	if err != nil {
		return CopyStats{}, fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(stage)

	if _, err := copyTree(ctx, src, Local(stage), o.tee); err != nil {
		return CopyStats{}, err
	}
	return copyTree(ctx, Local(stage), dst, nil)
}

func copyTree(ctx context.Context, src, dst Path, tee func(string) io.Writer) (CopyStats, error) {
	var stats CopyStats
	if err := dst.MkdirAll(ctx); err != nil {
		return stats, err
	}
	err := Walk(ctx, src, func(rel string, e Entry) error {
		target := dst.Join(rel)
		if e.IsDir {
			return target.MkdirAll(ctx)
		}
		var w io.Writer
		if tee != nil {
			w = tee(rel)
		}
		n, err := copyFile(ctx, src.Join(rel), target, w)
		if err != nil {
			return err
		}
		stats.Files++
		stats.Bytes += n
		return nil
	})
	return stats, err
}

// CopyFile copies one file byte for byte.
func CopyFile(ctx context.Context, src, dst Path) (int64, error) {
	return copyFile(ctx, src, dst, nil)
}

// CopyFileTee copies one file and mirrors the bytes read from src into tee.
func CopyFileTee(ctx context.Context, src, dst Path, tee io.Writer) (int64, error) {
	return copyFile(ctx, src, dst, tee)
}

func copyFile(ctx context.Context, src, dst Path, tee io.Writer) (int64, error) {
	r, err := src.Open(ctx)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	w, err := dst.Create(ctx)
	if err != nil {
		return 0, err
	}

	var reader io.Reader = r
	if tee != nil {
		reader = io.TeeReader(r, tee)
	}
	n, err := io.Copy(w, reader)
	if err != nil {
		abort(w)
		return n, fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	if err := w.Close(); err != nil {
		return n, fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	return n, nil
}

// Mirror copies the tree at src into the local directory dir and returns
// the local path.
func Mirror(ctx context.Context, src Path, dir string) (Path, error) {
	dst := Local(dir)
	if _, err := CopyTree(ctx, src, dst); err != nil {
		return Path{}, fmt.Errorf("mirror %s into %s: %w", src, dir, err)
	}
	return dst, nil
}
