package biz

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectContentTypeSniffsAndKeepsBytes(t *testing.T) {
	png := "\x89PNG\r\n\x1a\n" + strings.Repeat("\x00", 32)
	rc, ct := detectContentType(io.NopCloser(strings.NewReader(png)), "")
	assert.Equal(t, "image/png", ct)

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, png, string(got))
}

func TestDetectContentTypeFallsBack(t *testing.T) {
	_, ct := detectContentType(io.NopCloser(strings.NewReader("")), "")
	assert.Equal(t, "application/octet-stream", ct)

	_, ct = detectContentType(io.NopCloser(strings.NewReader("<html>")), "html")
	assert.Contains(t, ct, "text/html")
}
