package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/lk2023060901/signage-backend/internal/pkg/errors"
	"github.com/lk2023060901/signage-backend/internal/pkg/logger"
	"github.com/lk2023060901/signage-backend/internal/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimiterConfig 限流配置
type RateLimiterConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// 时间窗口内允许的最大请求数
	MaxRequests int `mapstructure:"max_requests"`
	// 时间窗口（秒）
	WindowSeconds int `mapstructure:"window_seconds"`
	// 限流策略：user（默认）, endpoint, ip
	Strategy string `mapstructure:"strategy"`
	Prefix   string `mapstructure:"prefix"`
}

// 滑动窗口, 成员使用纳秒时间戳避免同一秒内的请求互相覆盖
var slidingWindowScript = goredis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local member = ARGV[4]

	redis.call('ZREMRANGEBYSCORE', key, 0, now - window)
	local current = redis.call('ZCARD', key)

	if current < limit then
		redis.call('ZADD', key, now, member)
		redis.call('EXPIRE', key, window)
		return {1, limit - current - 1, now + window}
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')[2]
	return {0, 0, tonumber(oldest) + window}
`)

// RateLimiter 基于 Redis 的滑动窗口限流中间件
func RateLimiter(redisClient *redis.Client, cfg RateLimiterConfig, log *logger.Logger) gin.HandlerFunc {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 100
	}
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = 60
	}
	if cfg.Strategy == "" {
		cfg.Strategy = "user"
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "signage:rate_limit"
	}

	return func(c *gin.Context) {
		key := buildRateLimitKey(c, cfg)

		allowed, remaining, resetTime, err := checkRateLimit(c.Request.Context(), redisClient, key, cfg)
		if err != nil {
			// 限流器故障时放行
			log.WithContext(c.Request.Context()).Error("rate limiter error", zap.Error(err), zap.String("key", key))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", cfg.MaxRequests))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", resetTime))

		if !allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", cfg.WindowSeconds))
			c.AbortWithStatusJSON(apperrors.GetHTTPStatus(apperrors.ErrTooManyRequests), gin.H{
				"code":    apperrors.ErrTooManyRequests,
				"message": fmt.Sprintf("too many requests, please try again in %d seconds", cfg.WindowSeconds),
				"data":    struct{}{},
			})
			return
		}

		c.Next()
	}
}

func buildRateLimitKey(c *gin.Context, cfg RateLimiterConfig) string {
	switch cfg.Strategy {
	case "user":
		// 未认证请求回退到 IP
		if userID, ok := GetUserID(c); ok {
			return fmt.Sprintf("%s:user:%d", cfg.Prefix, userID)
		}
		return fmt.Sprintf("%s:ip:%s", cfg.Prefix, c.ClientIP())
	case "endpoint":
		return fmt.Sprintf("%s:endpoint:%s:%s", cfg.Prefix, c.FullPath(), c.ClientIP())
	default:
		return fmt.Sprintf("%s:ip:%s", cfg.Prefix, c.ClientIP())
	}
}

func checkRateLimit(ctx context.Context, redisClient *redis.Client, key string, cfg RateLimiterConfig) (allowed bool, remaining int, resetTime int64, err error) {
	now := time.Now()
	result, err := slidingWindowScript.Run(ctx, redisClient.Universal(), []string{key},
		now.Unix(), cfg.WindowSeconds, cfg.MaxRequests, now.UnixNano()).Slice()
	if err != nil {
		return false, 0, 0, err
	}
	if len(result) != 3 {
		return false, 0, 0, fmt.Errorf("invalid rate limit result")
	}

	allowedInt, _ := result[0].(int64)
	remainingInt, _ := result[1].(int64)
	resetTimeInt, _ := result[2].(int64)

	return allowedInt == 1, int(remainingInt), resetTimeInt, nil
}
