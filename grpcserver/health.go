// Package grpcserver exposes the cart health probe over the standard gRPC
// health-checking protocol.
package grpcserver

import (
	"context"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/MouadFiali/gke-cloud-project/services"
)

// Checker is satisfied by services.CartService and *services.HealthProbe.
type Checker interface {
	CheckHealth(ctx context.Context) services.ServingStatus
}

// HealthServer never fails Check because the store is down; that is
// reported as NOT_SERVING.
type HealthServer struct {
	healthpb.UnimplementedHealthServer
	checker Checker
}

func NewHealthServer(checker Checker) *HealthServer {
	return &HealthServer{checker: checker}
}

func (h *HealthServer) Check(ctx context.Context, _ *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	resp := &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}
	if h.checker.CheckHealth(ctx) == services.Serving {
		resp.Status = healthpb.HealthCheckResponse_SERVING
	}
	return resp, nil
}

func (h *HealthServer) Watch(*healthpb.HealthCheckRequest, healthpb.Health_WatchServer) error {
	return status.Error(codes.Unimplemented, "health watch is not supported")
}

// NewServer returns a gRPC server with the health service registered and
// unary calls logged at debug level.
func NewServer(checker Checker, logger *zap.Logger) *grpc.Server {
	srv := grpc.NewServer(grpc.UnaryInterceptor(loggingInterceptor(logger)))
	healthpb.RegisterHealthServer(srv, NewHealthServer(checker))
	return srv
}

func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err != nil {
			logger.Warn("grpc_request", zap.String("method", info.FullMethod), zap.Error(err))
		} else {
			logger.Debug("grpc_request", zap.String("method", info.FullMethod))
		}
		return resp, err
	}
}
