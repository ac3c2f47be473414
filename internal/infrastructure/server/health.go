package server

import (
	"context"
	"fmt"
	"time"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/infrastructure/resilience"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
)

// RemoteService is the health service name that follows the remote tier
const RemoteService = "studydesk.remote"

// Health reports liveness over grpc.health.v1. The overall service is
// serving while the process runs; RemoteService follows the breaker.
type Health struct {
	srv *health.Server
}

// NewHealth creates a health server reporting serving
func NewHealth() *Health {
	srv := health.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	srv.SetServingStatus(RemoteService, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Health{srv: srv}
}

// SetRemote updates the remote tier status. An open breaker or a missing
// remote store is not serving.
func (h *Health) SetRemote(configured bool, state resilience.State) {
	status := healthpb.HealthCheckResponse_SERVING
	if !configured || state == resilience.StateOpen {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.srv.SetServingStatus(RemoteService, status)
}

// Register mounts the health service and reflection on s
func (h *Health) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
	reflection.Register(s)
}

// Shutdown marks every service as not serving
func (h *Health) Shutdown() {
	h.srv.Shutdown()
}

// CheckHealth asks the health server at addr for the status of service.
// An empty service is the overall process.
func CheckHealth(ctx context.Context, addr, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
	)
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("check %q: %w", service, err)
	}
	return resp.GetStatus(), nil
}
