package media

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/tidwall/gjson"
)

// FFprobe 基于 ffprobe 的时长探测
type FFprobe struct {
	cfg *Config
	run runFunc
}

// NewFFprobe 创建探测器
func NewFFprobe(cfg *Config) *FFprobe {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &FFprobe{cfg: cfg, run: runCommand}
}

// DurationSeconds implements Prober
func (p *FFprobe) DurationSeconds(ctx context.Context, src string) (int, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return 0, errors.New("ffprobe: empty source")
	}

	ctx, cancel := withTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	out, err := p.run(ctx, p.cfg.FFprobePath,
		"-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", src)
	if err != nil {
		return 0, err
	}

	seconds, err := parseDuration(out)
	if err != nil {
		return 0, err
	}
	return seconds, nil
}

// parseDuration 优先取 format.duration, 缺失时取各流时长的最大值
func parseDuration(out []byte) (int, error) {
	if !gjson.ValidBytes(out) {
		return 0, errors.New("ffprobe: invalid json output")
	}

	result := gjson.ParseBytes(out)
	duration := result.Get("format.duration").Float()
	if duration <= 0 {
		for _, d := range result.Get("streams.#.duration").Array() {
			if v := d.Float(); v > duration {
				duration = v
			}
		}
	}

	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return 0, fmt.Errorf("ffprobe: duration unavailable")
	}
	return int(math.Round(duration)), nil
}
