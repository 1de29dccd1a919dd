package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lk2023060901/signage-backend/internal/auth"
	"github.com/lk2023060901/signage-backend/internal/auth/middleware"
	"github.com/lk2023060901/signage-backend/internal/conf"
	"github.com/lk2023060901/signage-backend/internal/pkg/logger"
	"github.com/lk2023060901/signage-backend/internal/pkg/redis"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

// RouteRegistrar 各业务服务在 /api/v1 下注册路由
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// HealthChecker 健康检查依赖
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HTTPServer HTTP 服务器
type HTTPServer struct {
	server *http.Server
	router *gin.Engine
	logger *logger.Logger
}

// NewHTTPServer 创建 HTTP 服务器; redisClient 为 nil 时不启用限流
func NewHTTPServer(
	config *conf.Config,
	log *logger.Logger,
	jwtManager *auth.JWTManager,
	health HealthChecker,
	redisClient *redis.Client,
	services ...RouteRegistrar,
) *HTTPServer {
	if config.Server.Mode != "" {
		gin.SetMode(config.Server.Mode)
	}

	router := gin.New()
	router.MaxMultipartMemory = config.Server.UploadMemoryMB << 20
	if config.Tracing.Enabled {
		router.Use(otelgin.Middleware(config.Tracing.ServiceName))
	}
	router.Use(logger.GinRecovery(log))
	router.Use(logger.GinLoggerWithConfig(log, logger.MiddlewareOptions{
		SkipPaths: []string{"/health"},
	}))
	router.Use(middleware.CORS(config.CORS))

	router.GET("/health", func(c *gin.Context) {
		status, code := "ok", http.StatusOK
		if health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := health.HealthCheck(ctx); err != nil {
				log.WithContext(c.Request.Context()).Warn("health check failed", zap.Error(err))
				status, code = "degraded", http.StatusServiceUnavailable
			}
		}
		c.JSON(code, gin.H{
			"status": status,
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	api := router.Group("/api/v1", middleware.JWTAuth(jwtManager, log))
	if config.RateLimit.Enabled {
		if redisClient == nil {
			log.Warn("rate limit enabled but redis is disabled, skipping")
		} else {
			api.Use(middleware.RateLimiter(redisClient, config.RateLimit, log))
		}
	}
	for _, svc := range services {
		svc.RegisterRoutes(api)
	}

	return &HTTPServer{
		server: &http.Server{
			Addr:              config.Server.Addr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		router: router,
		logger: log,
	}
}

// Handler 路由, 供测试使用
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// Start 阻塞直到服务器关闭
func (s *HTTPServer) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop 优雅关闭; SSE 长连接在 ctx 到期后被强制断开
func (s *HTTPServer) Stop(ctx context.Context) error {
	s.logger.Info("stopping HTTP server")
	return s.server.Shutdown(ctx)
}
