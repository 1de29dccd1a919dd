package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalVolumeWriteOpen(t *testing.T) {
	v := NewLocalVolume(t.TempDir())
	ctx := context.Background()

	require.NoError(t, v.MkdirAll(ctx, "1_acme/7"))
	n, err := v.Write(ctx, "1_acme/7/video.mp4", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	// overwrite truncates
	n, err = v.Write(ctx, "1_acme/7/video.mp4", strings.NewReader("hi"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rc, size, err := v.Open(ctx, "1_acme/7/video.mp4")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
	assert.Equal(t, int64(2), size)

	_, _, err = v.Open(ctx, "1_acme/7/missing.mp4")
	assert.ErrorIs(t, err, ErrNotExist)
	_, _, err = v.Open(ctx, "1_acme/7")
	assert.ErrorIs(t, err, ErrNotExist)

	ok, err := v.Exists(ctx, "1_acme/7/video.mp4")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = v.Exists(ctx, "1_acme/7/thumbnail.jpg")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocalVolumePathsStayUnderRoot(t *testing.T) {
	root := t.TempDir()
	v := NewLocalVolume(root)

	p, err := v.Locate(context.Background(), "../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "etc", "passwd"), p)
}

func TestLocalVolumeRemoveAll(t *testing.T) {
	root := t.TempDir()
	v := NewLocalVolume(root)
	ctx := context.Background()

	require.NoError(t, v.MkdirAll(ctx, "1_acme/7/nested"))
	_, err := v.Write(ctx, "1_acme/7/video.mp4", strings.NewReader("x"))
	require.NoError(t, err)
	_, err = v.Write(ctx, "1_acme/7/nested/a.txt", strings.NewReader("y"))
	require.NoError(t, err)

	assert.Empty(t, v.RemoveAll(ctx, "1_acme/7"))
	_, err = os.Stat(filepath.Join(root, "1_acme", "7"))
	assert.True(t, os.IsNotExist(err))

	// missing dir is not a failure
	assert.Empty(t, v.RemoveAll(ctx, "1_acme/99"))
}

func TestLocalVolumeListDirs(t *testing.T) {
	v := NewLocalVolume(t.TempDir())
	ctx := context.Background()

	require.NoError(t, v.MkdirAll(ctx, "1_acme/7"))
	require.NoError(t, v.MkdirAll(ctx, "1_acme/8"))
	_, err := v.Write(ctx, "1_acme/stray.txt", strings.NewReader("z"))
	require.NoError(t, err)

	names, err := v.ListDirs(ctx, "1_acme")
	require.NoError(t, err)
	sort.Strings(names)
	assert.Equal(t, []string{"7", "8"}, names)

	names, err = v.ListDirs(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestMinIOVolumeKeys(t *testing.T) {
	v := NewMinIOVolume(nil, "media", "/signage/")
	assert.Equal(t, "signage/1_acme/7/video.mp4", v.key("1_acme/7/video.mp4"))
	assert.Equal(t, "signage/x", v.key("../x"))
	assert.Equal(t, "s3://media/signage/1_acme", v.Describe("1_acme"))

	bare := NewMinIOVolume(nil, "media", "")
	assert.Equal(t, "1_acme/7/video.mp4", bare.key("/1_acme/7/video.mp4"))
}
