package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"workflow-tracker/backend/internal/server/interceptors"
)

// Health check methods are callable without a token and are not logged.
var healthMethods = map[string]bool{
	healthpb.Health_Check_FullMethodName: true,
	healthpb.Health_Watch_FullMethodName: true,
}

// GRPCServer bundles the gRPC server with its health service.
type GRPCServer struct {
	*grpc.Server
	Health *health.Server
}

// NewGRPCServer builds a gRPC server with tracing, request logging and bearer
// authentication, and registers the standard health service.
func NewGRPCServer(auth *interceptors.Authenticator, log *zap.Logger, enableReflection bool) *GRPCServer {
	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			interceptors.LoggingUnary(log, healthMethods),
			interceptors.AuthUnary(auth, healthMethods),
		),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if enableReflection {
		reflection.Register(s)
	}
	return &GRPCServer{Server: s, Health: hs}
}

// Stop marks every service NOT_SERVING and drains in-flight RPCs.
func (s *GRPCServer) Stop() {
	s.Health.Shutdown()
	s.GracefulStop()
}
