// Package grpcapi serves the standard gRPC health service for the monitor.
package grpcapi

import (
	"log/slog"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/BrandonDHaskell/Phloem/server/internal/phloem/types"
)

// ServiceName is reported SERVING while monitoring runs.
const ServiceName = "phloem.Monitor"

type Server struct {
	addr   string
	logger *slog.Logger
	grpc   *grpc.Server
	health *health.Server

	mu      sync.Mutex
	serving bool
}

func NewServer(addr string, logger *slog.Logger) *Server {
	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{addr: addr, logger: logger, grpc: gs, health: hs}
}

// Publish tracks the monitor's running state. It implements the monitor's
// status sink.
func (s *Server) Publish(snap types.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.Running == s.serving {
		return
	}
	s.serving = snap.Running

	status := healthpb.HealthCheckResponse_NOT_SERVING
	if snap.Running {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, status)
	s.logger.Debug("health status changed", "service", ServiceName, "status", status.String())
}

func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("grpc health listening", "addr", lis.Addr().String())
	return s.grpc.Serve(lis)
}

// Stop marks every service NOT_SERVING and drains open streams.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
