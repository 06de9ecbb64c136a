// Package grpchealth serves the standard grpc.health.v1 protocol, reporting
// SERVING while the database answers pings.
package grpchealth

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// ServiceName is the service reported alongside the overall ("") status.
const ServiceName = "codeando.Playground"

const (
	defaultInterval = 15 * time.Second
	pingTimeout     = 3 * time.Second
	// stopTimeout bounds GracefulStop. Health Watch streams never end on
	// their own, so draining can wait forever.
	stopTimeout = 5 * time.Second
)

// Pinger verifies a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is a gRPC server exposing only the health service.
type Server struct {
	grpc        *grpc.Server
	health      *health.Server
	pinger      Pinger
	stopTimeout time.Duration
}

// NewServer creates the gRPC server. The status starts as NOT_SERVING until
// the first check.
func NewServer(p Pinger) *Server {
	gs := grpc.NewServer(grpc.KeepaliveParams(keepalive.ServerParameters{
		MaxConnectionIdle: 5 * time.Minute,
		Time:              2 * time.Minute,
		Timeout:           10 * time.Second,
	}))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	s := &Server{grpc: gs, health: hs, pinger: p, stopTimeout: stopTimeout}
	s.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Check pings the dependency once and publishes the result.
func (s *Server) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := s.pinger.Ping(pingCtx); err != nil {
		slog.Warn("gRPC health check failed", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.set(status)
	return status
}

// Watch re-checks on every interval until ctx is done.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = defaultInterval
	}
	s.Check(ctx)

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Check(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Serve accepts connections on lis until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	slog.Info("gRPC health server listening", "addr", lis.Addr().String())
	if err := s.grpc.Serve(lis); err != nil {
		return fmt.Errorf("serve grpc: %w", err)
	}
	return nil
}

// Stop marks every service NOT_SERVING and drains in-flight RPCs. Streams
// still open after the stop timeout are cancelled.
func (s *Server) Stop() {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	timer := time.NewTimer(s.stopTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		slog.Warn("gRPC graceful stop timed out, closing open streams", "timeout", s.stopTimeout)
		s.grpc.Stop()
		<-done
	}
}

func (s *Server) set(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
