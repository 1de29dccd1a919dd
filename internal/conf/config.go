package conf

import (
	"fmt"
	"strings"
	"time"

	"github.com/lk2023060901/signage-backend/internal/auth/middleware"
	"github.com/lk2023060901/signage-backend/internal/media"
	"github.com/lk2023060901/signage-backend/internal/notify"
	"github.com/lk2023060901/signage-backend/internal/pkg/database"
	"github.com/lk2023060901/signage-backend/internal/pkg/logger"
	"github.com/lk2023060901/signage-backend/internal/pkg/minio"
	"github.com/lk2023060901/signage-backend/internal/pkg/redis"
	"github.com/lk2023060901/signage-backend/internal/pkg/tracing"
	"github.com/lk2023060901/signage-backend/internal/pkg/workerpool"
	"github.com/lk2023060901/signage-backend/internal/settings"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀, 例如 SIGNAGE_DATABASE_HOST
const EnvPrefix = "SIGNAGE"

// Storage backends
const (
	StorageLocal = "local"
	StorageMinIO = "minio"
)

// Lock backends
const (
	LockLocal = "local"
	LockRedis = "redis"
)

type Config struct {
	Server    ServerConfig                 `mapstructure:"server"`
	Database  database.Config              `mapstructure:"database"`
	Redis     RedisConfig                  `mapstructure:"redis"`
	MinIO     MinIOConfig                  `mapstructure:"minio"`
	Log       logger.Config                `mapstructure:"log"`
	Auth      AuthConfig                   `mapstructure:"auth"`
	CORS      middleware.CORSConfig        `mapstructure:"cors"`
	RateLimit middleware.RateLimiterConfig `mapstructure:"rate_limit"`
	Media     MediaConfig                  `mapstructure:"media"`
	Player    PlayerConfig                 `mapstructure:"player"`
	Notifier  notify.Config                `mapstructure:"notifier"`
	Lock      LockConfig                   `mapstructure:"lock"`
	Tracing   tracing.Config               `mapstructure:"tracing"`
	Worker    workerpool.Config            `mapstructure:"workerpool"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	GRPCPort     int           `mapstructure:"grpc_port"`
	Mode         string        `mapstructure:"mode"` // debug, release, test
	SSEKeepAlive time.Duration `mapstructure:"sse_keepalive"`
	// UploadMemoryMB multipart 表单驻留内存上限, 超出部分落临时文件
	UploadMemoryMB int64 `mapstructure:"upload_memory_mb"`
}

type RedisConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	redis.Config `mapstructure:",squash"`
}

type MinIOConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Bucket       string `mapstructure:"bucket"`
	Prefix       string `mapstructure:"prefix"`
	minio.Config `mapstructure:",squash"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	JWTIssuer string        `mapstructure:"jwt_issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// MediaConfig 上传参数的 YAML 默认值, system_configs 表中的同名键优先
type MediaConfig struct {
	MaxSizeMB         int          `mapstructure:"max_size_mb"`
	AllowedExtensions string       `mapstructure:"allowed_extensions"`
	StoragePath       string       `mapstructure:"storage_path"`
	Storage           string       `mapstructure:"storage"` // local, minio
	Tools             media.Config `mapstructure:"tools"`
}

type PlayerConfig struct {
	AutoSyncInterval int  `mapstructure:"auto_sync_interval"`
	AutoPlay         bool `mapstructure:"auto_play"`
	Loop             bool `mapstructure:"loop"`
	Volume           int  `mapstructure:"volume"`
}

type LockConfig struct {
	Backend string        `mapstructure:"backend"` // local, redis
	Prefix  string        `mapstructure:"prefix"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// Default 返回各组件默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			GRPCPort:       9090,
			Mode:           "release",
			SSEKeepAlive:   15 * time.Second,
			UploadMemoryMB: 32,
		},
		Database: *database.DefaultConfig(),
		Redis:    RedisConfig{Config: *redis.DefaultConfig()},
		MinIO:    MinIOConfig{Bucket: "signage-media", Config: *minio.DefaultConfig()},
		Log:      *logger.DefaultConfig(),
		Auth: AuthConfig{
			JWTIssuer: "signage-backend",
			TokenTTL:  12 * time.Hour,
		},
		CORS: middleware.CORSConfig{AllowOrigins: []string{"*"}, MaxAge: 12 * time.Hour},
		RateLimit: middleware.RateLimiterConfig{
			MaxRequests:   300,
			WindowSeconds: 60,
			Strategy:      "user",
		},
		Media: MediaConfig{
			MaxSizeMB:         settings.DefaultMaxSizeMB,
			AllowedExtensions: settings.DefaultAllowedExtensions,
			StoragePath:       settings.DefaultStoragePath,
			Storage:           StorageLocal,
			Tools:             *media.DefaultConfig(),
		},
		Player: PlayerConfig{
			AutoSyncInterval: settings.DefaultAutoSyncInterval,
			AutoPlay:         true,
			Loop:             true,
			Volume:           settings.DefaultVolume,
		},
		Notifier: *notify.DefaultConfig(),
		Lock: LockConfig{
			Backend: LockLocal,
			Prefix:  "signage:lock:",
			TTL:     30 * time.Second,
		},
		Tracing: *tracing.DefaultConfig(),
		Worker:  *workerpool.DefaultConfig(),
	}
}

// LoadConfig 读取 YAML 并叠加 SIGNAGE_ 环境变量; path 为空时只使用默认值和环境变量
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	config := Default()
	bindDefaults(v, config)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// bindDefaults 注册常用键, 使仅通过环境变量设置的值也能被 Unmarshal 读到
func bindDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("server.host", c.Server.Host)
	v.SetDefault("server.port", c.Server.Port)
	v.SetDefault("server.grpc_port", c.Server.GRPCPort)
	v.SetDefault("database.driver", c.Database.Driver)
	v.SetDefault("database.host", c.Database.Host)
	v.SetDefault("database.port", c.Database.Port)
	v.SetDefault("database.user", c.Database.User)
	v.SetDefault("database.password", c.Database.Password)
	v.SetDefault("database.dbname", c.Database.DBName)
	v.SetDefault("database.path", c.Database.Path)
	v.SetDefault("redis.enabled", c.Redis.Enabled)
	v.SetDefault("redis.addr", c.Redis.Addr)
	v.SetDefault("redis.password", c.Redis.Password)
	v.SetDefault("minio.enabled", c.MinIO.Enabled)
	v.SetDefault("minio.endpoint", c.MinIO.Endpoint)
	v.SetDefault("minio.access_key_id", c.MinIO.AccessKeyID)
	v.SetDefault("minio.secret_access_key", c.MinIO.SecretAccessKey)
	v.SetDefault("minio.bucket", c.MinIO.Bucket)
	v.SetDefault("auth.jwt_secret", c.Auth.JWTSecret)
	v.SetDefault("media.storage", c.Media.Storage)
	v.SetDefault("media.storage_path", c.Media.StoragePath)
	v.SetDefault("lock.backend", c.Lock.Backend)
	v.SetDefault("tracing.enabled", c.Tracing.Enabled)
	v.SetDefault("tracing.endpoint", c.Tracing.Endpoint)
}

// Validate 校验跨组件约束
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}

	switch c.Media.Storage {
	case StorageLocal:
	case StorageMinIO:
		if !c.MinIO.Enabled {
			return fmt.Errorf("media.storage=minio requires minio.enabled")
		}
	default:
		return fmt.Errorf("unsupported media.storage %q", c.Media.Storage)
	}

	switch c.Lock.Backend {
	case LockLocal:
	case LockRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("lock.backend=redis requires redis.enabled")
		}
	default:
		return fmt.Errorf("unsupported lock.backend %q", c.Lock.Backend)
	}

	if c.Redis.Enabled {
		if err := c.Redis.Config.Validate(); err != nil {
			return err
		}
	}
	if c.MinIO.Enabled {
		if c.MinIO.Bucket == "" {
			return fmt.Errorf("minio.bucket is required")
		}
		if err := c.MinIO.Config.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// SettingsDefaults YAML 中的 media/player 段, 作为 system_configs 之后的兜底来源
func (c *Config) SettingsDefaults() settings.MapSource {
	return settings.MapSource{
		settings.KeyMaxSizeMB:         fmt.Sprintf("%d", c.Media.MaxSizeMB),
		settings.KeyAllowedExtensions: c.Media.AllowedExtensions,
		settings.KeyStoragePath:       c.Media.StoragePath,
		settings.KeyAutoSyncInterval:  fmt.Sprintf("%d", c.Player.AutoSyncInterval),
		settings.KeyAutoPlay:          fmt.Sprintf("%t", c.Player.AutoPlay),
		settings.KeyLoop:              fmt.Sprintf("%t", c.Player.Loop),
		settings.KeyVolume:            fmt.Sprintf("%d", c.Player.Volume),
	}
}

// Addr HTTP 监听地址
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GRPCAddr gRPC 监听地址
func (c *ServerConfig) GRPCAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.GRPCPort)
}
