// Package settings resolves runtime key/value configuration for the media and player subsystems.
package settings

import (
	"context"
	"strconv"
	"strings"
)

// Keys
const (
	KeyMaxSizeMB         = "media.max_size_mb"
	KeyAllowedExtensions = "media.allowed_extensions"
	KeyStoragePath       = "media.storage_path"
	KeyAutoSyncInterval  = "player.auto_sync_interval"
	KeyAutoPlay          = "player.auto_play"
	KeyLoop              = "player.loop"
	KeyVolume            = "player.volume"
)

// Defaults
const (
	DefaultMaxSizeMB         = 500
	DefaultAllowedExtensions = "mp4,avi,mov,mkv,webm"
	DefaultStoragePath       = "./storage/media"
	DefaultAutoSyncInterval  = 21600
	DefaultVolume            = 80
)

// Source 键值配置源
type Source interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
}

// MapSource 内存配置源, 通常来自 YAML
type MapSource map[string]string

// Get implements Source
func (m MapSource) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

// Layered 按顺序查询, 第一个命中的源生效
type Layered []Source

// Get implements Source
func (l Layered) Get(ctx context.Context, key string) (string, bool, error) {
	for _, src := range l {
		if src == nil {
			continue
		}
		v, ok, err := src.Get(ctx, key)
		if err != nil {
			return "", false, err
		}
		if ok {
			return v, true, nil
		}
	}
	return "", false, nil
}

// MediaLimits 上传校验参数
type MediaLimits struct {
	MaxSizeMB         int64
	AllowedExtensions []string
	StoragePath       string
}

// MaxBytes 最大字节数
func (m MediaLimits) MaxBytes() int64 {
	return m.MaxSizeMB * 1024 * 1024
}

// Allows 扩展名是否在白名单内, ext 不带点
func (m MediaLimits) Allows(ext string) bool {
	ext = strings.ToLower(ext)
	for _, allowed := range m.AllowedExtensions {
		if allowed == ext {
			return true
		}
	}
	return false
}

// LoadMediaLimits 每次调用都重新读取, 以便运行时修改立即生效
func LoadMediaLimits(ctx context.Context, src Source) (MediaLimits, error) {
	maxSize, err := getInt(ctx, src, KeyMaxSizeMB, DefaultMaxSizeMB)
	if err != nil {
		return MediaLimits{}, err
	}
	exts, err := getString(ctx, src, KeyAllowedExtensions, DefaultAllowedExtensions)
	if err != nil {
		return MediaLimits{}, err
	}
	path, err := getString(ctx, src, KeyStoragePath, DefaultStoragePath)
	if err != nil {
		return MediaLimits{}, err
	}

	return MediaLimits{
		MaxSizeMB:         int64(maxSize),
		AllowedExtensions: ParseExtensions(exts),
		StoragePath:       path,
	}, nil
}

// ParseExtensions 解析逗号分隔的扩展名列表, 去掉点和空白并转小写
func ParseExtensions(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimLeft(strings.TrimSpace(p), "."))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// PlayerSettings 播放端配置
type PlayerSettings struct {
	AutoSyncInterval int  `json:"auto_sync_interval"`
	AutoPlay         bool `json:"auto_play"`
	Loop             bool `json:"loop"`
	Volume           int  `json:"volume"`
}

// LoadPlayerSettings 读取播放端配置
func LoadPlayerSettings(ctx context.Context, src Source) (PlayerSettings, error) {
	interval, err := getInt(ctx, src, KeyAutoSyncInterval, DefaultAutoSyncInterval)
	if err != nil {
		return PlayerSettings{}, err
	}
	volume, err := getVolume(ctx, src)
	if err != nil {
		return PlayerSettings{}, err
	}
	autoPlay, err := getBool(ctx, src, KeyAutoPlay, true)
	if err != nil {
		return PlayerSettings{}, err
	}
	loop, err := getBool(ctx, src, KeyLoop, true)
	if err != nil {
		return PlayerSettings{}, err
	}

	if volume < 0 {
		volume = 0
	} else if volume > 100 {
		volume = 100
	}

	return PlayerSettings{
		AutoSyncInterval: interval,
		AutoPlay:         autoPlay,
		Loop:             loop,
		Volume:           volume,
	}, nil
}

func getString(ctx context.Context, src Source, key, def string) (string, error) {
	if src == nil {
		return def, nil
	}
	v, ok, err := src.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok || strings.TrimSpace(v) == "" {
		return def, nil
	}
	return strings.TrimSpace(v), nil
}

// 无法解析的数值回退默认值
func getInt(ctx context.Context, src Source, key string, def int) (int, error) {
	v, err := getString(ctx, src, key, "")
	if err != nil {
		return 0, err
	}
	n, convErr := strconv.Atoi(v)
	if v == "" || convErr != nil || n <= 0 {
		return def, nil
	}
	return n, nil
}

// 音量允许 0 和越界值, 越界时截断到 [0, 100]
func getVolume(ctx context.Context, src Source) (int, error) {
	v, err := getString(ctx, src, KeyVolume, "")
	if err != nil {
		return 0, err
	}
	n, convErr := strconv.Atoi(v)
	if v == "" || convErr != nil {
		return DefaultVolume, nil
	}
	return n, nil
}

func getBool(ctx context.Context, src Source, key string, def bool) (bool, error) {
	v, err := getString(ctx, src, key, "")
	if err != nil {
		return false, err
	}
	b, convErr := strconv.ParseBool(v)
	if v == "" || convErr != nil {
		return def, nil
	}
	return b, nil
}
