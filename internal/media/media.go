// Package media wraps the ffprobe and ffmpeg binaries used during asset ingestion.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Prober 探测媒体时长
type Prober interface {
	// DurationSeconds 返回四舍五入后的秒数, src 为本地路径或 URL
	DurationSeconds(ctx context.Context, src string) (int, error)
}

// FrameExtractor 截取单帧缩略图
type FrameExtractor interface {
	// ExtractFrame 返回 JPEG 字节
	ExtractFrame(ctx context.Context, src string) ([]byte, error)
}

// Config 外部工具配置
type Config struct {
	FFprobePath string        `mapstructure:"ffprobe_path"`
	FFmpegPath  string        `mapstructure:"ffmpeg_path"`
	Timeout     time.Duration `mapstructure:"timeout"`

	ThumbnailWidth  int     `mapstructure:"thumbnail_width"`
	ThumbnailHeight int     `mapstructure:"thumbnail_height"`
	ThumbnailOffset float64 `mapstructure:"thumbnail_offset"` // 秒
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		FFprobePath:     "ffprobe",
		FFmpegPath:      "ffmpeg",
		Timeout:         60 * time.Second,
		ThumbnailWidth:  320,
		ThumbnailHeight: 180,
		ThumbnailOffset: 2,
	}
}

type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// runCommand 返回 stdout, 失败时错误里带上 stderr
func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
