package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/Dhoini/saas-platform/internal/interceptors"
	"github.com/Dhoini/saas-platform/pkg/logger"
)

// ServiceName - имя сервиса в протоколе grpc.health.v1
const ServiceName = "saas.Platform"

// HealthChecker проверяет доступность хранилища
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server gRPC сервер, отдающий статус здоровья приложения
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	checker    HealthChecker
	log        *logger.Logger
	listener   net.Listener
}

// NewServer создает новый gRPC сервер; checker == nil означает, что проверять нечего
func NewServer(checker HealthChecker, log *logger.Logger) *Server {
	// Настройки keepalive для gRPC
	kaParams := keepalive.ServerParameters{
		MaxConnectionIdle:     time.Minute * 5,
		MaxConnectionAge:      time.Hour,
		MaxConnectionAgeGrace: time.Minute * 5,
		Time:                  time.Minute * 2,
		Timeout:               time.Second * 20,
	}

	grpcServer := grpc.NewServer(
		grpc.KeepaliveParams(kaParams),
		grpc.ChainUnaryInterceptor(interceptors.NewLoggingInterceptor(log).Unary()),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)

	// Включаем reflection для удобства отладки (например, с помощью grpcurl)
	reflection.Register(grpcServer)

	s := &Server{
		grpcServer: grpcServer,
		health:     hs,
		checker:    checker,
		log:        log,
	}
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
	return s
}

// SyncHealth проверяет хранилище и обновляет статус health-сервиса
func (s *Server) SyncHealth(ctx context.Context) bool {
	if s.checker == nil {
		return true
	}
	if err := s.checker.HealthCheck(ctx); err != nil {
		s.log.Warnw("Database health check failed", "error", err)
		s.setStatus(healthpb.HealthCheckResponse_NOT_SERVING)
		return false
	}
	s.setStatus(healthpb.HealthCheckResponse_SERVING)
	return true
}

func (s *Server) setStatus(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Serve обслуживает уже открытый listener
func (s *Server) Serve(lis net.Listener) error {
	s.listener = lis
	if err := s.grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Start запускает gRPC сервер на порту
func (s *Server) Start(port string) error {
	addr := ":" + port
	s.log.Infow("Starting gRPC server", "addr", addr)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(listener)
}

// Stop останавливает gRPC сервер
func (s *Server) Stop() {
	s.log.Info("Stopping gRPC server")
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}
