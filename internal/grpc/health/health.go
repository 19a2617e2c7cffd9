// Package health поднимает gRPC-сервер со стандартным сервисом grpc.health.v1.
//
// Статус SERVING выставляется, пока база данных отвечает на проверку готовности.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/magabrotheeeer/premium-access/internal/lib/sl"
)

// ServiceName имя сервиса в ответах health-проверки.
const ServiceName = "premiumaccess"

// ReadinessChecker проверяет доступность зависимостей.
type ReadinessChecker interface {
	CheckDatabaseReady(ctx context.Context) error
}

// Server gRPC-сервер проверки здоровья.
type Server struct {
	grpc    *grpc.Server
	health  *grpchealth.Server
	checker ReadinessChecker
	log     *slog.Logger
}

// New создаёт сервер. До первой проверки статус NOT_SERVING.
func New(checker ReadinessChecker, log *slog.Logger) *Server {
	hs := grpchealth.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{
		grpc:    gs,
		health:  hs,
		checker: checker,
		log:     log,
	}
}

// Refresh проверяет базу и обновляет статус.
func (s *Server) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	const op = "health.Refresh"

	status := healthpb.HealthCheckResponse_SERVING
	if err := s.checker.CheckDatabaseReady(ctx); err != nil {
		s.log.Warn("database is not ready", slog.String("op", op), sl.Err(err))
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}

// Watch повторяет Refresh с интервалом до отмены ctx.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}

// Serve принимает соединения на lis до остановки сервера.
func (s *Server) Serve(lis net.Listener) error {
	const op = "health.Serve"
	if err := s.grpc.Serve(lis); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Stop переводит статус в NOT_SERVING и дожидается завершения активных вызовов.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
