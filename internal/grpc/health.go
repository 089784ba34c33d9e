// Package grpc serves the gRPC health checking protocol for the books service.
package grpc

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Pinger is a dependency that can be probed for reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Broker reports whether the event broker connection is usable.
type Broker interface {
	IsHealthy() bool
}

// HealthServer implements the gRPC health checking protocol
type HealthServer struct {
	grpc_health_v1.UnimplementedHealthServer
	db     Pinger
	broker Broker
	log    *zap.Logger
}

// NewHealthServer creates a new health check server. broker may be nil when
// events are disabled.
func NewHealthServer(database Pinger, broker Broker, log *zap.Logger) *HealthServer {
	return &HealthServer{
		db:     database,
		broker: broker,
		log:    log,
	}
}

// Check implements the health check
func (h *HealthServer) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	return &grpc_health_v1.HealthCheckResponse{Status: h.status(ctx)}, nil
}

// Watch sends the current status once and returns.
func (h *HealthServer) Watch(req *grpc_health_v1.HealthCheckRequest, server grpc_health_v1.Health_WatchServer) error {
	return server.Send(&grpc_health_v1.HealthCheckResponse{Status: h.status(server.Context())})
}

func (h *HealthServer) status(ctx context.Context) grpc_health_v1.HealthCheckResponse_ServingStatus {
	if err := h.db.Ping(ctx); err != nil {
		h.log.Error("Database health check failed", zap.Error(err))
		return grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}

	if h.broker != nil && !h.broker.IsHealthy() {
		h.log.Error("RabbitMQ health check failed")
		return grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}

	return grpc_health_v1.HealthCheckResponse_SERVING
}
