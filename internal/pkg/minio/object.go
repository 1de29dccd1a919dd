package minio

import (
	"context"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// EnsureBucket creates the bucket if it does not exist
func (c *Client) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := c.client.BucketExists(ctx, bucket)
	if err != nil {
		return wrapError("EnsureBucket", bucket, "", err)
	}
	if exists {
		return nil
	}

	if err := c.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: c.config.Region}); err != nil {
		return wrapError("EnsureBucket", bucket, "", err)
	}
	c.logger.Info("minio bucket created", zap.String("bucket", bucket))
	return nil
}

// PutObject uploads an object, size -1 streams until EOF
func (c *Client) PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, contentType string) (int64, error) {
	info, err := c.client.PutObject(ctx, bucket, object, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return 0, wrapError("PutObject", bucket, object, err)
	}
	return info.Size, nil
}

// GetObject opens an object for reading and returns its size
func (c *Client) GetObject(ctx context.Context, bucket, object string) (io.ReadCloser, int64, error) {
	obj, err := c.client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, wrapError("GetObject", bucket, object, err)
	}

	// GetObject is lazy, Stat surfaces NoSuchKey
	stat, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, 0, wrapError("GetObject", bucket, object, err)
	}
	return obj, stat.Size, nil
}

// StatObject returns object metadata
func (c *Client) StatObject(ctx context.Context, bucket, object string) (minio.ObjectInfo, error) {
	info, err := c.client.StatObject(ctx, bucket, object, minio.StatObjectOptions{})
	if err != nil {
		return minio.ObjectInfo{}, wrapError("StatObject", bucket, object, err)
	}
	return info, nil
}

// RemoveObject deletes a single object
func (c *Client) RemoveObject(ctx context.Context, bucket, object string) error {
	if err := c.client.RemoveObject(ctx, bucket, object, minio.RemoveObjectOptions{}); err != nil {
		return wrapError("RemoveObject", bucket, object, err)
	}
	return nil
}

// ListObjects returns the keys under prefix
func (c *Client) ListObjects(ctx context.Context, bucket, prefix string, recursive bool) ([]string, error) {
	var keys []string
	for obj := range c.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: recursive,
	}) {
		if obj.Err != nil {
			return nil, wrapError("ListObjects", bucket, prefix, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// RemovePrefix deletes every object under prefix and returns the keys that failed
func (c *Client) RemovePrefix(ctx context.Context, bucket, prefix string) (map[string]error, error) {
	keys, err := c.ListObjects(ctx, bucket, prefix, true)
	if err != nil {
		return nil, err
	}

	failed := make(map[string]error)
	for _, key := range keys {
		if err := c.RemoveObject(ctx, bucket, key); err != nil {
			failed[key] = err
		}
	}
	return failed, nil
}

// PresignedGetObject returns a temporary GET URL
func (c *Client) PresignedGetObject(ctx context.Context, bucket, object string, expiry time.Duration) (*url.URL, error) {
	if expiry <= 0 {
		expiry = c.config.PresignExpiry
	}
	u, err := c.client.PresignedGetObject(ctx, bucket, object, expiry, url.Values{})
	if err != nil {
		return nil, wrapError("PresignedGetObject", bucket, object, err)
	}
	return u, nil
}
