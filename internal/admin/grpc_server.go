package admin

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/qwb00/ChatApp/internal/domain"
	"github.com/qwb00/ChatApp/pkg/log"
)

// HealthServer exposes grpc.health.v1 with one service entry per room.
// It is registered with the directory as a room observer.
type HealthServer struct {
	health *health.Server
}

func NewHealthServer() *HealthServer {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return &HealthServer{health: hs}
}

func (h *HealthServer) RoomCreated(ctx context.Context, entry domain.RoomEntry) {
	h.health.SetServingStatus(entry.Name, healthpb.HealthCheckResponse_SERVING)
	l := log.Ctx(ctx)
	l.Debug().Str(log.FieldRoom, entry.Name).Msg("room health registered")
}

// Shutdown flips every entry to NOT_SERVING.
func (h *HealthServer) Shutdown() {
	h.health.Shutdown()
}

// StartGRPCServer binds addr and serves the health service in the background.
func StartGRPCServer(addr string, hs *HealthServer, logger zerolog.Logger) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s := grpc.NewServer(
		grpc.UnaryInterceptor(log.UnaryServerInterceptor(logger)),
		grpc.StreamInterceptor(log.StreamServerInterceptor(logger)),
	)
	healthpb.RegisterHealthServer(s, hs.health)

	go func() {
		l := log.L()
		l.Info().Str("address", addr).Msg("admin grpc server listening")
		if err := s.Serve(lis); err != nil {
			l.Error().Err(err).Msg("grpc server error")
		}
	}()

	return s, nil
}
