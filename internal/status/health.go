package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rbright/dexter/internal/fsm"
)

// RecordingService reports SERVING only while a recording is open.
const RecordingService = "dexter.Recording"

// HealthSink exposes listener liveness over the standard gRPC health protocol.
// The overall service turns SERVING after the first published status.
type HealthSink struct {
	server *grpc.Server
	health *health.Server
	lis    net.Listener
	done   chan error
}

// ListenHealth binds addr and serves the health protocol in the background.
func ListenHealth(addr string, logger *slog.Logger) (*HealthSink, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen health %s: %w", addr, err)
	}
	return ServeHealth(lis, logger), nil
}

// ServeHealth serves the health protocol on lis until Close.
func ServeHealth(lis net.Listener, logger *slog.Logger) *HealthSink {
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(RecordingService, healthpb.HealthCheckResponse_NOT_SERVING)

	sink := &HealthSink{server: srv, health: hs, lis: lis, done: make(chan error, 1)}
	go func() {
		err := srv.Serve(lis)
		if err != nil && logger != nil {
			logger.Error("health server stopped", "error", err)
		}
		sink.done <- err
	}()
	return sink
}

// Addr returns the bound address.
func (h *HealthSink) Addr() net.Addr {
	return h.lis.Addr()
}

func (h *HealthSink) Publish(_ context.Context, snap Snapshot) error {
	h.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	recording := healthpb.HealthCheckResponse_NOT_SERVING
	if snap.State == fsm.StateRecording {
		recording = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus(RecordingService, recording)
	return nil
}

// Close marks every service NOT_SERVING and stops the server.
func (h *HealthSink) Close() error {
	h.health.Shutdown()
	h.server.GracefulStop()
	if err := <-h.done; err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
