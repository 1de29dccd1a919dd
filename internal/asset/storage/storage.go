// Package storage abstracts the volume that holds asset files. Paths are slash separated and relative
// to the volume root.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotExist 对象不存在
var ErrNotExist = errors.New("storage: object does not exist")

// RemoveFailure 单个对象删除失败
type RemoveFailure struct {
	Path string
	Err  error
}

// Volume 资产文件存储卷
type Volume interface {
	// MkdirAll 确保目录存在
	MkdirAll(ctx context.Context, dir string) error
	// Write 覆盖写入, 返回实际写入的字节数
	Write(ctx context.Context, path string, r io.Reader) (int64, error)
	// Open 打开对象, 不存在时返回 ErrNotExist
	Open(ctx context.Context, path string) (io.ReadCloser, int64, error)
	// Exists 对象是否存在
	Exists(ctx context.Context, path string) (bool, error)
	// RemoveAll 尽力递归删除, 单个失败不会中断遍历
	RemoveAll(ctx context.Context, dir string) []RemoveFailure
	// ListDirs 列出 dir 下的直接子目录名
	ListDirs(ctx context.Context, dir string) ([]string, error)
	// Locate 返回外部工具可读取的位置: 本地路径或预签名 URL
	Locate(ctx context.Context, path string) (string, error)
	// Describe 日志中展示的位置
	Describe(path string) string
}
