package storage

import (
	"context"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/lk2023060901/signage-backend/internal/pkg/minio"
)

// MinIOVolume 对象存储卷, 对象键即相对路径
type MinIOVolume struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinIOVolume 创建对象存储卷, prefix 可为空
func NewMinIOVolume(client *minio.Client, bucket, prefix string) *MinIOVolume {
	return &MinIOVolume{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (v *MinIOVolume) key(p string) string {
	clean := strings.TrimPrefix(path.Clean("/"+p), "/")
	if v.prefix == "" {
		return clean
	}
	return v.prefix + "/" + clean
}

// MkdirAll implements Volume; 对象存储没有目录
func (v *MinIOVolume) MkdirAll(context.Context, string) error {
	return nil
}

// Write implements Volume
func (v *MinIOVolume) Write(ctx context.Context, p string, r io.Reader) (int64, error) {
	return v.client.PutObject(ctx, v.bucket, v.key(p), r, -1, "")
}

// Open implements Volume
func (v *MinIOVolume) Open(ctx context.Context, p string) (io.ReadCloser, int64, error) {
	rc, size, err := v.client.GetObject(ctx, v.bucket, v.key(p))
	if err != nil {
		if minio.IsNotFound(err) {
			return nil, 0, ErrNotExist
		}
		return nil, 0, err
	}
	return rc, size, nil
}

// Exists implements Volume
func (v *MinIOVolume) Exists(ctx context.Context, p string) (bool, error) {
	if _, err := v.client.StatObject(ctx, v.bucket, v.key(p)); err != nil {
		if minio.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RemoveAll implements Volume
func (v *MinIOVolume) RemoveAll(ctx context.Context, dir string) []RemoveFailure {
	failed, err := v.client.RemovePrefix(ctx, v.bucket, v.key(dir)+"/")
	if err != nil {
		return []RemoveFailure{{Path: v.Describe(dir), Err: err}}
	}

	failures := make([]RemoveFailure, 0, len(failed))
	for key, err := range failed {
		failures = append(failures, RemoveFailure{Path: key, Err: err})
	}
	sort.Slice(failures, func(i, j int) bool { return failures[i].Path < failures[j].Path })
	return failures
}

// ListDirs implements Volume, 基于非递归列举返回的公共前缀
func (v *MinIOVolume) ListDirs(ctx context.Context, dir string) ([]string, error) {
	prefix := v.key(dir)
	if prefix != "" {
		prefix += "/"
	}

	keys, err := v.client.ListObjects(ctx, v.bucket, prefix, false)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, k := range keys {
		if !strings.HasSuffix(k, "/") {
			continue
		}
		names = append(names, strings.TrimSuffix(strings.TrimPrefix(k, prefix), "/"))
	}
	return names, nil
}

// Locate implements Volume, ffprobe/ffmpeg 通过预签名 URL 读取
func (v *MinIOVolume) Locate(ctx context.Context, p string) (string, error) {
	u, err := v.client.PresignedGetObject(ctx, v.bucket, v.key(p), 0)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// Describe implements Volume
func (v *MinIOVolume) Describe(p string) string {
	return "s3://" + v.bucket + "/" + v.key(p)
}
