package health

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	healthgrpc "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCServer exposes the standard gRPC health service
// (grpc.health.v1.Health), so orchestrators and gRPC load balancers can
// use their built-in health checking against this process.
//
// Serving statuses mirror the monitor's snapshots: the empty service
// name carries the overall status and each dependency is published as
// its own service name, so `grpc_health_probe -service=db` answers for
// one dependency.
type GRPCServer struct {
	addr   string
	logger *slog.Logger
	server *grpc.Server
	health *healthgrpc.Server
}

// NewGRPCServer creates a gRPC health server. Until the first Publish,
// every check returns NOT_SERVING.
func NewGRPCServer(addr string, logger *slog.Logger) *GRPCServer {
	healthServer := healthgrpc.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)

	server := grpc.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)

	return &GRPCServer{
		addr:   addr,
		logger: logger,
		server: server,
		health: healthServer,
	}
}

// Publish maps a snapshot onto gRPC serving statuses. Degraded still
// serves: a dependency answering slowly is not a reason for a load
// balancer to drop the whole process.
func (g *GRPCServer) Publish(snap *Snapshot) {
	if snap == nil {
		return
	}
	g.health.SetServingStatus("", servingStatus(snap.Overall))
	for name, dep := range snap.Dependencies {
		g.health.SetServingStatus(name, servingStatus(dep.Status))
	}
}

// servingStatus converts a health status to the gRPC wire enum.
func servingStatus(s Status) healthpb.HealthCheckResponse_ServingStatus {
	if s == StatusUnhealthy {
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	return healthpb.HealthCheckResponse_SERVING
}

// Start starts the gRPC server and blocks until the context is
// cancelled or serving fails. Shutdown first flips every status to
// NOT_SERVING so in-flight health watchers observe the drain, then
// stops gracefully.
func (g *GRPCServer) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", g.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", g.addr, err)
	}

	errChan := make(chan error, 1)
	go func() {
		g.logger.Info("grpc health server starting", slog.String("addr", g.addr))
		if err := g.server.Serve(listener); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		g.logger.Info("grpc health server shutting down")
		g.health.Shutdown()
		g.server.GracefulStop()
		g.logger.Info("grpc health server stopped")
		return nil

	case err := <-errChan:
		g.logger.Error("grpc health server failed", slog.Any("error", err))
		return err
	}
}
