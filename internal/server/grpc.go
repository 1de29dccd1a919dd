package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/lk2023060901/signage-backend/internal/conf"
	"github.com/lk2023060901/signage-backend/internal/pkg/logger"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const healthProbeInterval = 10 * time.Second

// GRPCServer gRPC 服务器, 只提供健康检查和反射
type GRPCServer struct {
	config     *conf.Config
	logger     *logger.Logger
	grpcServer *grpc.Server
	health     *health.Server
	checker    HealthChecker
	stop       chan struct{}
}

// NewGRPCServer 创建 gRPC 服务器
func NewGRPCServer(config *conf.Config, log *logger.Logger, checker HealthChecker) *GRPCServer {
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(logger.UnaryServerInterceptor(log, healthpb.Health_Check_FullMethodName)),
		grpc.ChainStreamInterceptor(logger.StreamServerInterceptor(log, healthpb.Health_Watch_FullMethodName)),
	)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// 启用反射（用于 grpcurl 等工具）
	reflection.Register(grpcServer)

	return &GRPCServer{
		config:     config,
		logger:     log,
		grpcServer: grpcServer,
		health:     healthServer,
		checker:    checker,
		stop:       make(chan struct{}),
	}
}

// Start 启动 gRPC 服务器
func (s *GRPCServer) Start() error {
	addr := s.config.Server.GRPCAddr()

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s.logger.Info("starting gRPC server", zap.String("addr", addr))

	go s.watchHealth()

	if err := s.grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// watchHealth 定期探测数据库并同步到 health 服务
func (s *GRPCServer) watchHealth() {
	ticker := time.NewTicker(healthProbeInterval)
	defer ticker.Stop()

	for {
		s.probe()
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}
	}
}

func (s *GRPCServer) probe() {
	status := healthpb.HealthCheckResponse_SERVING
	if s.checker != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := s.checker.HealthCheck(ctx)
		cancel()
		if err != nil {
			s.logger.Warn("health probe failed", zap.Error(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
}

// Stop 停止 gRPC 服务器
func (s *GRPCServer) Stop() {
	s.logger.Info("stopping gRPC server")
	close(s.stop)
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}
