package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// RelayService is the health service name reported for the line relay.
const RelayService = "chatrelay.Relay"

// HealthServer exposes the standard gRPC health service for the relay.
// It reports SERVING until NotServing is called.
type HealthServer struct {
	log        *slog.Logger
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
}

func NewHealthServer(log *slog.Logger, listener net.Listener) *HealthServer {
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(RelayService, grpc_health_v1.HealthCheckResponse_SERVING)
	return &HealthServer{
		log:        log,
		listener:   listener,
		grpcServer: grpcServer,
		health:     healthServer,
	}
}

// NotServing flips every service to NOT_SERVING. The endpoint stays up so
// probes can observe the transition.
func (s *HealthServer) NotServing() {
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	s.health.SetServingStatus(RelayService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	s.log.Info("Health status set to NOT_SERVING")
}

// Run serves health checks until ctx is done.
func (s *HealthServer) Run(ctx context.Context) error {
	s.log.Info("Starting gRPC health server", "address", s.listener.Addr().String())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
		err := <-serveErr
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC health: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC health: %w", err)
	}
}
