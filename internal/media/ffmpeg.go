package media

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// FFmpeg 基于 ffmpeg 的截帧
type FFmpeg struct {
	cfg *Config
	run runFunc
}

// NewFFmpeg 创建截帧器
func NewFFmpeg(cfg *Config) *FFmpeg {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &FFmpeg{cfg: cfg, run: runCommand}
}

// ExtractFrame implements FrameExtractor, 帧经 stdout 以 mjpeg 输出
func (f *FFmpeg) ExtractFrame(ctx context.Context, src string) ([]byte, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, errors.New("ffmpeg: empty source")
	}

	ctx, cancel := withTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	out, err := f.run(ctx, f.cfg.FFmpegPath, f.args(src)...)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ffmpeg: no frame produced for %s", src)
	}
	return out, nil
}

func (f *FFmpeg) args(src string) []string {
	return []string{
		"-v", "error",
		"-ss", strconv.FormatFloat(f.cfg.ThumbnailOffset, 'f', -1, 64),
		"-i", src,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:%d", f.cfg.ThumbnailWidth, f.cfg.ThumbnailHeight),
		"-f", "image2",
		"-c:v", "mjpeg",
		"pipe:1",
	}
}
