// Package grpc exposes the standard gRPC health service for orchestrators.
package grpc

import (
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name probes should ask for. The empty name reports the whole server.
const ServiceName = "chat.relay"

type HealthServer struct {
	log    *slog.Logger
	server *grpc.Server
	health *health.Server
}

// NewHealthServer starts NOT_SERVING until the first successful probe.
func NewHealthServer(log *slog.Logger) *HealthServer {
	h := &HealthServer{log: log, server: grpc.NewServer(), health: health.NewServer()}
	healthpb.RegisterHealthServer(h.server, h.health)
	h.SetServing(false)
	return h
}

func (h *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
}

func (h *HealthServer) Serve(listener net.Listener) error {
	h.log.Info("Starting gRPC health server", "address", listener.Addr().String())
	if err := h.server.Serve(listener); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

// Stop flips every service to NOT_SERVING so watchers see the shutdown, then drains the server.
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.server.GracefulStop()
}
