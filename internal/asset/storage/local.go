package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// LocalVolume 本地文件系统存储卷
type LocalVolume struct {
	root string
}

// NewLocalVolume 创建以 root 为根的存储卷
func NewLocalVolume(root string) *LocalVolume {
	return &LocalVolume{root: root}
}

// Root 根目录
func (v *LocalVolume) Root() string {
	return v.root
}

func (v *LocalVolume) abs(p string) string {
	clean := path.Clean("/" + p)
	return filepath.Join(v.root, filepath.FromSlash(strings.TrimPrefix(clean, "/")))
}

// MkdirAll implements Volume
func (v *LocalVolume) MkdirAll(_ context.Context, dir string) error {
	return os.MkdirAll(v.abs(dir), 0o755)
}

// Write implements Volume
func (v *LocalVolume) Write(_ context.Context, p string, r io.Reader) (int64, error) {
	f, err := os.OpenFile(v.abs(p), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}

	n, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr != nil {
		return n, copyErr
	}
	return n, closeErr
}

// Open implements Volume
func (v *LocalVolume) Open(_ context.Context, p string) (io.ReadCloser, int64, error) {
	f, err := os.Open(v.abs(p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, ErrNotExist
		}
		return nil, 0, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, 0, ErrNotExist
	}
	return f, info.Size(), nil
}

// Exists implements Volume
func (v *LocalVolume) Exists(_ context.Context, p string) (bool, error) {
	info, err := os.Stat(v.abs(p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

// RemoveAll implements Volume, 先删文件再自底向上删目录
func (v *LocalVolume) RemoveAll(_ context.Context, dir string) []RemoveFailure {
	root := v.abs(dir)
	var failures []RemoveFailure
	var dirs []string

	walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == root {
				return fs.SkipAll
			}
			failures = append(failures, RemoveFailure{Path: p, Err: err})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			dirs = append(dirs, p)
			return nil
		}
		if err := os.Remove(p); err != nil {
			failures = append(failures, RemoveFailure{Path: p, Err: err})
		}
		return nil
	})
	if walkErr != nil {
		failures = append(failures, RemoveFailure{Path: root, Err: walkErr})
	}

	// 深的目录先删
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, d := range dirs {
		if err := os.Remove(d); err != nil && !errors.Is(err, fs.ErrNotExist) {
			failures = append(failures, RemoveFailure{Path: d, Err: err})
		}
	}
	return failures
}

// ListDirs implements Volume
func (v *LocalVolume) ListDirs(_ context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(v.abs(dir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Locate implements Volume
func (v *LocalVolume) Locate(_ context.Context, p string) (string, error) {
	return v.abs(p), nil
}

// Describe implements Volume
func (v *LocalVolume) Describe(p string) string {
	return v.abs(p)
}
