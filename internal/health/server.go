// Package health exposes the standard gRPC health service for supervisors
// that probe the transcriber while it streams.
package health

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthgrpc "google.golang.org/grpc/health/grpc_health_v1"
)

// StopTimeout bounds GracefulStop before the server is stopped forcibly.
const StopTimeout = 5 * time.Second

// Server is a gRPC server carrying nothing but the health service. Both the
// empty service name and the named service report the same status.
type Server struct {
	grpc    *grpc.Server
	health  *health.Server
	service string
	log     *slog.Logger
}

// New returns a Server whose status starts as NOT_SERVING.
func New(service string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthgrpc.RegisterHealthServer(grpcServer, healthServer)

	s := &Server{
		grpc:    grpcServer,
		health:  healthServer,
		service: service,
		log:     logger.With("component", "health.Server"),
	}
	s.SetServing(false)
	return s
}

// SetServing flips the reported status.
func (s *Server) SetServing(serving bool) {
	status := healthgrpc.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthgrpc.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(s.service, status)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
		case <-done:
			return
		}
		s.log.Info("stopping health server")
		s.SetServing(false)

		stopped := make(chan struct{})
		go func() {
			s.grpc.GracefulStop()
			close(stopped)
		}()

		select {
		case <-stopped:
		case <-time.After(StopTimeout):
			s.log.Warn("graceful stop timed out, forcing stop")
			s.grpc.Stop()
		}
	}()

	s.log.Info("health server listening", "addr", lis.Addr().String(), "service", s.service)
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
